package omr

import "image"

// FilterBubbles keeps the blobs matching the answer-oval profile and converts
// them to Bubbles in page coordinates. origin is the page position of the mask's
// top-left corner. Blobs touching the Region edge are not treated specially.
func FilterBubbles(blobs []Blob, origin image.Point, p Params) []Bubble {
	bubbles := make([]Bubble, 0, len(blobs))
	for _, b := range blobs {
		w, h := b.Bounds.Dx(), b.Bounds.Dy()
		if !p.Accepts(w, h, b.Area) {
			continue
		}
		bubbles = append(bubbles, Bubble{
			X:           b.Bounds.Min.X + origin.X,
			Y:           b.Bounds.Min.Y + origin.Y,
			W:           w,
			H:           h,
			LocalX:      b.Bounds.Min.X,
			LocalY:      b.Bounds.Min.Y,
			Area:        b.Area,
			AspectRatio: float64(w) / float64(h),
		})
	}
	return bubbles
}
