package omr

import (
	"fmt"
	"image"
	"math"
)

// Region is the calibrated answer area in page pixel coordinates.
//
// (X1, Y1) is inclusive and (X2, Y2) exclusive, so Width = X2 - X1 and
// Height = Y2 - Y1. TemplateWidth and TemplateHeight record the dimensions of
// the template image the Region was drawn on; zero means unknown and disables
// resolution scaling.
type Region struct {
	X1     int `json:"x1"`
	Y1     int `json:"y1"`
	X2     int `json:"x2"`
	Y2     int `json:"y2"`
	Width  int `json:"width"`
	Height int `json:"height"`

	TemplateWidth  int `json:"template_width,omitempty"`
	TemplateHeight int `json:"template_height,omitempty"`
}

// NewRegion builds a Region from two opposite corners given in any order.
func NewRegion(ax, ay, bx, by int) Region {
	x1, x2 := minInt(ax, bx), maxInt(ax, bx)
	y1, y2 := minInt(ay, by), maxInt(ay, by)
	return Region{
		X1:     x1,
		Y1:     y1,
		X2:     x2,
		Y2:     y2,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

// EstimateRegion guesses the answer area of a page from fixed layout
// fractions. The result is a starting point for manual calibration.
func EstimateRegion(pageWidth, pageHeight int) Region {
	r := NewRegion(
		int(float64(pageWidth)*0.10),
		int(float64(pageHeight)*0.25),
		int(float64(pageWidth)*0.65),
		int(float64(pageHeight)*0.90),
	)
	r.TemplateWidth = pageWidth
	r.TemplateHeight = pageHeight
	return r
}

// Validate checks the rectangle invariants x1<x2, y1<y2 and, when set, that
// Width and Height agree with the corners.
func (r Region) Validate() error {
	if r.X1 < 0 || r.Y1 < 0 {
		return fmt.Errorf("%w: negative origin (%d,%d)", ErrInvalidRegion, r.X1, r.Y1)
	}
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return fmt.Errorf("%w: x1 must be < x2 and y1 must be < y2", ErrInvalidRegion)
	}
	if r.Width != 0 && r.Width != r.X2-r.X1 {
		return fmt.Errorf("%w: width %d does not match x2-x1=%d", ErrInvalidRegion, r.Width, r.X2-r.X1)
	}
	if r.Height != 0 && r.Height != r.Y2-r.Y1 {
		return fmt.Errorf("%w: height %d does not match y2-y1=%d", ErrInvalidRegion, r.Height, r.Y2-r.Y1)
	}
	if r.TemplateWidth < 0 || r.TemplateHeight < 0 {
		return fmt.Errorf("%w: negative template dimensions", ErrInvalidRegion)
	}
	return nil
}

// Rect returns the Region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Within reports an error if the Region does not fit inside bounds.
func (r Region) Within(bounds image.Rectangle) error {
	if !r.Rect().In(bounds) {
		return fmt.Errorf("%w: region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			ErrInvalidRegion, r.X1, r.Y1, r.X2, r.Y2,
			bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	return nil
}

// ScaleTo maps the Region onto a page of the given bounds.
//
// When the template dimensions are unknown or equal to the page size the
// Region is returned unchanged with factor 1. Otherwise the corners are scaled
// per axis and the returned factor is the mean of both axis factors, suitable
// for Params.Scaled.
func (r Region) ScaleTo(bounds image.Rectangle) (Region, float64) {
	w, h := bounds.Dx(), bounds.Dy()
	if r.TemplateWidth <= 0 || r.TemplateHeight <= 0 {
		return r, 1
	}
	if r.TemplateWidth == w && r.TemplateHeight == h {
		return r, 1
	}

	sx := float64(w) / float64(r.TemplateWidth)
	sy := float64(h) / float64(r.TemplateHeight)

	scaled := NewRegion(
		int(math.Round(float64(r.X1)*sx)),
		int(math.Round(float64(r.Y1)*sy)),
		int(math.Round(float64(r.X2)*sx)),
		int(math.Round(float64(r.Y2)*sy)),
	)
	scaled.TemplateWidth = w
	scaled.TemplateHeight = h

	return scaled, (sx + sy) / 2
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
