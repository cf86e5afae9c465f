package omr

import (
	"image"
	"sort"
)

// Blob is a connected foreground component described by its outer boundary.
//
// Bounds is relative to the mask origin with an exclusive maximum, so
// Bounds.Dx() is the pixel width. Area approximates the area enclosed by the
// outer boundary traced through pixel centres: holes count, the half pixel
// outside the boundary centres does not.
type Blob struct {
	Bounds image.Rectangle `json:"bounds"`
	Area   float64         `json:"area"`
}

// ExtractBlobs finds the outer blobs of a binary mask.
//
// Foreground (values above 127) is grouped with 8-connectivity. Only blobs
// reachable from the page background are returned; blobs nested inside the
// hole of another blob are ignored, as are the holes themselves. An all
// background mask yields an empty result.
func ExtractBlobs(mask *image.Gray) []Blob {
	bounds := mask.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	fg := make([]bool, w*h)
	hasForeground := false
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.Pix[mask.PixOffset(x+bounds.Min.X, y+bounds.Min.Y)] > 127 {
				fg[y*w+x] = true
				hasForeground = true
			}
		}
	}
	if !hasForeground {
		return nil
	}

	outside := markOutside(fg, w, h)
	labels := make([]int32, w*h)
	stack := make([]int, 0, 1024)

	var blobs []Blob
	var next int32
	for i := range fg {
		if !fg[i] || labels[i] != 0 {
			continue
		}
		next++
		comp := traceComponent(fg, outside, labels, i, next, w, h, &stack)
		if !comp.external {
			continue
		}
		blobs = append(blobs, Blob{
			Bounds: comp.bounds,
			Area:   enclosedArea(labels, next, comp.bounds, w, &stack),
		})
	}

	sortBlobs(blobs)
	return blobs
}

type component struct {
	bounds   image.Rectangle
	external bool
}

// markOutside flags background pixels connected (4-way) to the mask border.
func markOutside(fg []bool, w, h int) []bool {
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))

	push := func(x, y int) {
		i := y*w + x
		if !fg[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}
	return outside
}

// traceComponent labels the 8-connected component containing start and
// reports its bounding box and whether it touches the outer background.
func traceComponent(fg, outside []bool, labels []int32, start int, id int32, w, h int, stack *[]int) component {
	minX, minY := w, h
	maxX, maxY := -1, -1
	external := false

	s := (*stack)[:0]
	labels[start] = id
	s = append(s, start)

	for len(s) > 0 {
		i := s[len(s)-1]
		s = s[:len(s)-1]
		x, y := i%w, i/w

		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}

		if !external {
			if x == 0 || y == 0 || x == w-1 || y == h-1 ||
				outside[i-1] || outside[i+1] || outside[i-w] || outside[i+w] {
				external = true
			}
		}

		for dy := -1; dy <= 1; dy++ {
			ny := y + dy
			if ny < 0 || ny >= h {
				continue
			}
			for dx := -1; dx <= 1; dx++ {
				nx := x + dx
				if (dx == 0 && dy == 0) || nx < 0 || nx >= w {
					continue
				}
				j := ny*w + nx
				if fg[j] && labels[j] == 0 {
					labels[j] = id
					s = append(s, j)
				}
			}
		}
	}

	*stack = s
	return component{
		bounds:   image.Rect(minX, minY, maxX+1, maxY+1),
		external: external,
	}
}

// enclosedArea measures the area inside the outer boundary of component id.
// A background flood from a one pixel frame around the bounding box finds
// everything outside; the rest is enclosed. Half of the boundary pixels are
// then removed to measure from pixel centres.
func enclosedArea(labels []int32, id int32, r image.Rectangle, w int, stack *[]int) float64 {
	gw, gh := r.Dx()+2, r.Dy()+2
	wall := func(gx, gy int) bool {
		x, y := gx-1+r.Min.X, gy-1+r.Min.Y
		if x < r.Min.X || x >= r.Max.X || y < r.Min.Y || y >= r.Max.Y {
			return false
		}
		return labels[y*w+x] == id
	}

	reached := make([]bool, gw*gh)
	s := (*stack)[:0]
	reached[0] = true
	s = append(s, 0)
	count := 0

	for len(s) > 0 {
		i := s[len(s)-1]
		s = s[:len(s)-1]
		count++
		gx, gy := i%gw, i/gw

		neighbours := [4][2]int{{gx - 1, gy}, {gx + 1, gy}, {gx, gy - 1}, {gx, gy + 1}}
		for _, n := range neighbours {
			nx, ny := n[0], n[1]
			if nx < 0 || nx >= gw || ny < 0 || ny >= gh {
				continue
			}
			j := ny*gw + nx
			if reached[j] || wall(nx, ny) {
				continue
			}
			reached[j] = true
			s = append(s, j)
		}
	}
	*stack = s

	boundary := 0
	for gy := 1; gy < gh-1; gy++ {
		for gx := 1; gx < gw-1; gx++ {
			if !wall(gx, gy) {
				continue
			}
			if reached[gy*gw+gx-1] || reached[gy*gw+gx+1] || reached[(gy-1)*gw+gx] || reached[(gy+1)*gw+gx] {
				boundary++
			}
		}
	}

	enclosed := gw*gh - count
	area := float64(enclosed) - float64(boundary)/2
	if area < 0 {
		area = 0
	}
	return area
}

func sortBlobs(blobs []Blob) {
	sort.Slice(blobs, func(i, j int) bool {
		if blobs[i].Bounds.Min.Y != blobs[j].Bounds.Min.Y {
			return blobs[i].Bounds.Min.Y < blobs[j].Bounds.Min.Y
		}
		return blobs[i].Bounds.Min.X < blobs[j].Bounds.Min.X
	})
}
