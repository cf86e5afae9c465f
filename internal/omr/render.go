package omr

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Question ties a graded question index to the row it was read from.
type Question struct {
	Index   int
	Row     Row
	Outcome Outcome
}

// Annotation colours.
var (
	ColorCorrect    = hexColor("#00ff00")
	ColorWrong      = hexColor("#ff0000")
	ColorUnanswered = hexColor("#ffa500")
)

// Render draws the grading outcome onto a copy of img.
//
// A credited answer gets a 2 px rectangle around its bubble and the question
// number to its left, green when correct and red otherwise. Every marked
// bubble of a multiple-mark row is outlined in red. An unanswered row gets an
// orange "N:?" label next to its first bubble. The source image is not
// modified.
func Render(img image.Image, questions []Question, key AnswerKey, policy ScoringPolicy) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("render: nil image")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("render: empty image bounds %v", bounds)
	}

	out := imaging.Clone(img)
	shift := bounds.Min

	for _, q := range questions {
		if len(q.Row.Bubbles) == 0 {
			continue
		}
		label := fmt.Sprint(q.Index + 1)

		switch {
		case q.Outcome.Kind == Unanswered:
			first := q.Row.Bubbles[0]
			drawText(out, first.X-25-shift.X, first.Y+first.H/2-shift.Y, label+":?", ColorUnanswered)

		case q.Outcome.Kind == MultipleMarks && policy.MultipleMarks != MultipleDarkest:
			for _, opt := range q.Outcome.Options {
				drawBox(out, q.Row.Bubbles[opt].Rect().Sub(shift), ColorWrong)
			}
			b := q.Row.Bubbles[q.Outcome.Options[0]]
			drawText(out, b.X-20-shift.X, b.Y+b.H/2-shift.Y, label, ColorWrong)

		default:
			opt := policy.resolve(q.Outcome)
			if opt < 0 || opt >= len(q.Row.Bubbles) {
				continue
			}
			col := ColorWrong
			if want, ok := key[q.Index]; ok && want == opt {
				col = ColorCorrect
			}
			b := q.Row.Bubbles[opt]
			drawBox(out, b.Rect().Sub(shift), col)
			drawText(out, b.X-20-shift.X, b.Y+b.H/2-shift.Y, label, col)
		}
	}

	return out, nil
}

// drawBox outlines r grown by 2 px with a 2 px stroke, clipped to the image.
func drawBox(img *image.NRGBA, r image.Rectangle, c color.Color) {
	r = r.Inset(-2)
	const stroke = 2
	fill := func(rr image.Rectangle) {
		rr = rr.Intersect(img.Bounds())
		for y := rr.Min.Y; y < rr.Max.Y; y++ {
			for x := rr.Min.X; x < rr.Max.X; x++ {
				img.Set(x, y, c)
			}
		}
	}
	fill(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke))
	fill(image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y))
	fill(image.Rect(r.Min.X, r.Min.Y, r.Min.X+stroke, r.Max.Y))
	fill(image.Rect(r.Max.X-stroke, r.Min.Y, r.Max.X, r.Max.Y))
}

// drawText writes text with its baseline starting at (x, y).
func drawText(img *image.NRGBA, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func hexColor(s string) color.NRGBA {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("omr: bad palette colour %q: %v", s, err))
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
