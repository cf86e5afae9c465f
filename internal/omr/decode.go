package omr

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// DecodeImage decodes a scanned page (JPEG, PNG, GIF, BMP or TIFF) and
// applies its EXIF orientation. Failures wrap ErrImageRead.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageRead, err)
	}
	return img, nil
}

// LoadImage opens and decodes the page at path.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageRead, path, err)
	}
	return img, nil
}
