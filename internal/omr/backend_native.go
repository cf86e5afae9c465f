//go:build !opencv

package omr

import "image"

// BackendName identifies the binarization and contour backend in reports.
const BackendName = "native"

func binarize(gray *image.Gray, p Params) (*image.Gray, error) {
	return adaptiveThreshold(gray, p), nil
}

func extractBlobs(mask *image.Gray) ([]Blob, error) {
	return ExtractBlobs(mask), nil
}
