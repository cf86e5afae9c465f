package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/omr-grader/internal/omr"
)

// DefaultGridColor is used when RegionOverlay gets an empty or invalid color.
const DefaultGridColor = "#ff0000"

var (
	regionColor = color.NRGBA{R: 0, G: 120, B: 255, A: 255}
	labelFg     = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	labelBg     = color.NRGBA{R: 0, G: 0, B: 0, A: 180}
)

const regionStroke = 3

// RegionOverlay draws a coordinate grid every gridSpacing pixels and outlines
// the answer region on a copy of img. With showCoordinates each grid crossing
// is labelled "x,y". Grid lines are semi-transparent in the given hex color.
func RegionOverlay(img image.Image, r omr.Region, gridSpacing int, showCoordinates bool, colorHex string) (*Preview, error) {
	if gridSpacing < 1 {
		return nil, fmt.Errorf("grid spacing must be positive, got %d", gridSpacing)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	out := imaging.Clone(img)
	b := out.Bounds()
	grid := gridColor(colorHex)

	for x := gridSpacing; x < b.Dx(); x += gridSpacing {
		draw.Draw(out, image.Rect(x, 0, x+1, b.Dy()), image.NewUniform(grid), image.Point{}, draw.Over)
	}
	for y := gridSpacing; y < b.Dy(); y += gridSpacing {
		draw.Draw(out, image.Rect(0, y, b.Dx(), y+1), image.NewUniform(grid), image.Point{}, draw.Over)
	}

	outline(out, r.Rect(), regionColor)

	if showCoordinates {
		for y := gridSpacing; y < b.Dy(); y += gridSpacing {
			for x := gridSpacing; x < b.Dx(); x += gridSpacing {
				drawLabel(out, x+2, y+2, fmt.Sprintf("%d,%d", x, y))
			}
		}
	}

	return encodePreview(out, r, gridSpacing)
}

// gridColor parses colorHex with go-colorful and returns it at half opacity.
func gridColor(colorHex string) color.NRGBA {
	c, err := colorful.Hex(colorHex)
	if err != nil {
		c, _ = colorful.Hex(DefaultGridColor)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 160}
}

func outline(img *image.NRGBA, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+regionStroke),
		image.Rect(r.Min.X, r.Max.Y-regionStroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+regionStroke, r.Max.Y),
		image.Rect(r.Max.X-regionStroke, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a dark box whose top-left corner is (x, y).
func drawLabel(img *image.NRGBA, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(labelFg), Face: face}
	w := d.MeasureString(text).Ceil()
	h := face.Metrics().Height.Ceil()

	box := image.Rect(x, y, x+w+2, y+h).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(labelBg), image.Point{}, draw.Over)

	d.Dot = fixed.P(x+1, y+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}
