package omr

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Classify decides which option of a row is marked.
//
// gray is the unblurred grayscale crop of the Region; bubbles are sampled at
// their region-local bounding boxes. A bubble is marked when its mean
// intensity is strictly below Params.FilledThreshold. Placeholders are not
// sampled and can never be marked.
//
// With no marked bubble the row is Unanswered, whichever bubble was darkest.
// With exactly one it is a SingleAnswer. With two or more it is MultipleMarks,
// carrying every marked option; Option is then the darkest of them.
func Classify(gray *image.Gray, row Row, p Params) Outcome {
	out := Outcome{
		Kind:         Unanswered,
		Option:       -1,
		MinIntensity: math.Inf(1),
		Intensities:  make([]float64, len(row.Bubbles)),
	}

	for i, b := range row.Bubbles {
		v := meanIntensity(gray, b)
		out.Intensities[i] = v
		if v < 0 {
			continue
		}
		if v < out.MinIntensity {
			out.MinIntensity = v
			out.Option = i
		}
		if v < p.FilledThreshold {
			out.Options = append(out.Options, i)
		}
	}

	switch len(out.Options) {
	case 0:
		out.Option = -1
		out.Options = nil
	case 1:
		out.Kind = SingleAnswer
		out.Options = nil
	default:
		out.Kind = MultipleMarks
	}
	if math.IsInf(out.MinIntensity, 1) {
		out.MinIntensity = -1
	}
	return out
}

// meanIntensity returns the mean gray level inside the bubble's bounding box,
// or -1 when the box is empty or outside the crop.
func meanIntensity(gray *image.Gray, b Bubble) float64 {
	if b.Placeholder {
		return -1
	}
	r := b.LocalRect().Intersect(gray.Bounds())
	if r.Empty() {
		return -1
	}

	values := make([]float64, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := gray.PixOffset(r.Min.X, y)
		for _, v := range gray.Pix[off : off+r.Dx()] {
			values = append(values, float64(v))
		}
	}
	return stat.Mean(values, nil)
}
