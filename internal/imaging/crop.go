package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/omr-grader/internal/omr"
)

// Preview is a PNG rendering returned to MCP clients.
type Preview struct {
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	ImageBase64 string     `json:"image_base64"`
	MimeType    string     `json:"mime_type"`
	Region      omr.Region `json:"region"`
	GridSpacing int        `json:"grid_spacing,omitempty"`
}

// CropRegion cuts the answer region out of img and optionally resizes it by
// scale. The region is given in image coordinates relative to the top-left
// corner of img.
func CropRegion(img image.Image, r omr.Region, scale float64) (*Preview, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	rect := r.Rect().Add(bounds.Min)
	if err := r.Within(image.Rect(0, 0, bounds.Dx(), bounds.Dy())); err != nil {
		return nil, err
	}
	if scale < 0 {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}

	cropped := imaging.Crop(img, rect)
	if scale != 1.0 && scale > 0 {
		w := int(float64(cropped.Bounds().Dx()) * scale)
		h := int(float64(cropped.Bounds().Dy()) * scale)
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("scale %v leaves an empty image", scale)
		}
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}

	return encodePreview(cropped, r, 0)
}

func encodePreview(img image.Image, r omr.Region, spacing int) (*Preview, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	return &Preview{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Region:      r,
		GridSpacing: spacing,
	}, nil
}
