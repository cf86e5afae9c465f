package omr

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ClusterColumns groups bubbles into answer columns by horizontal position.
//
// The unique x-positions are sorted and walked in order; a new cluster starts
// whenever the distance to the previous position is at least gap. A cluster's
// centre is the mean of its member positions. Every bubble is then assigned to
// the nearest centre, ties going to the leftmost column. Columns are returned
// left to right and keep the input order of their bubbles.
//
// This is sequential-gap grouping, not k-means: it relies on the gap between
// columns being wider than the spread of options within a column.
func ClusterColumns(bubbles []Bubble, gap float64) []Column {
	if len(bubbles) == 0 {
		return nil
	}

	seen := make(map[int]bool, len(bubbles))
	xs := make([]int, 0, len(bubbles))
	for _, b := range bubbles {
		if !seen[b.X] {
			seen[b.X] = true
			xs = append(xs, b.X)
		}
	}
	sort.Ints(xs)

	var centers []float64
	group := []float64{float64(xs[0])}
	for _, x := range xs[1:] {
		if float64(x)-group[len(group)-1] < gap {
			group = append(group, float64(x))
			continue
		}
		centers = append(centers, stat.Mean(group, nil))
		group = []float64{float64(x)}
	}
	centers = append(centers, stat.Mean(group, nil))

	columns := make([]Column, len(centers))
	for i, c := range centers {
		columns[i] = Column{Index: i, Center: c}
	}

	for _, b := range bubbles {
		best := 0
		bestDist := math.Inf(1)
		for i, c := range centers {
			if d := math.Abs(float64(b.X) - c); d < bestDist {
				best, bestDist = i, d
			}
		}
		columns[best].Bubbles = append(columns[best].Bubbles, b)
	}

	return columns
}

// columnGap resolves the gap used by ClusterColumns: the explicit
// Params.ColumnGap, or ColumnGapPitchFactor times the median bubble width.
func (p Params) columnGap(bubbles []Bubble) float64 {
	if p.ColumnGap > 0 || len(bubbles) == 0 {
		return p.ColumnGap
	}
	widths := make([]float64, len(bubbles))
	for i, b := range bubbles {
		widths[i] = float64(b.W)
	}
	return p.ColumnGapPitchFactor * median(widths)
}

// median returns the empirical median of values. values is sorted in place.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	return stat.Quantile(0.5, stat.Empirical, values, nil)
}
