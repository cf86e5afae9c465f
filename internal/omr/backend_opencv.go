//go:build opencv

package omr

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// BackendName identifies the binarization and contour backend in reports.
const BackendName = "opencv"

func binarize(gray *image.Gray, p Params) (*image.Gray, error) {
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to Mat: %w", err)
	}
	defer src.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Point{X: p.BlurKernel, Y: p.BlurKernel}, 0, 0, gocv.BorderDefault)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.AdaptiveThreshold(blurred, &mask, 255,
		gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv,
		p.ThresholdBlock, float32(p.ThresholdOffset))

	out, err := mask.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mask: %w", err)
	}
	g, ok := out.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected mask image type %T", out)
	}
	return g, nil
}

func extractBlobs(mask *image.Gray) ([]Blob, error) {
	m, err := gocv.ImageGrayToMatGray(mask)
	if err != nil {
		return nil, fmt.Errorf("failed to convert mask to Mat: %w", err)
	}
	defer m.Close()

	contours := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	blobs := make([]Blob, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		blobs = append(blobs, Blob{
			Bounds: gocv.BoundingRect(contour),
			Area:   gocv.ContourArea(contour),
		})
	}
	sortBlobs(blobs)
	return blobs, nil
}
