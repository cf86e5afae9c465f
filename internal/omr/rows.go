package omr

import (
	"math"
	"sort"
)

// GroupRows splits a column into question rows ordered top to bottom.
//
// Bubbles are sorted by (y, x) and walked in order. A bubble joins the current
// row while its y differs from the row's first bubble by less than
// Params.RowTolerance; otherwise the row closes and a new one starts. Rows
// with fewer than Params.MinRowBubbles bubbles are dropped and counted in
// skipped.
//
// Accepted rows are sorted left to right and normalized to exactly
// Params.Options slots. Missing slots are reconstructed from geometry rather
// than assumed to be rightmost: first from the column's slot anchors (median
// centre of each slot over the complete rows), then from the row's own
// spacing. Only when neither locates the gap is the placeholder appended at
// the end, and the row is marked Guessed. Rows with surplus bubbles are
// reduced to the bubbles nearest the anchors, or skipped when the column has
// no complete row to anchor on.
func GroupRows(col Column, p Params) (rows []Row, skipped int) {
	if len(col.Bubbles) == 0 {
		return nil, 0
	}

	sorted := append([]Bubble(nil), col.Bubbles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var raw [][]Bubble
	current := []Bubble{sorted[0]}
	flush := func() {
		if len(current) >= p.MinRowBubbles {
			raw = append(raw, current)
		} else {
			skipped++
		}
	}
	for _, b := range sorted[1:] {
		if math.Abs(float64(b.Y-current[0].Y)) < p.RowTolerance {
			current = append(current, b)
			continue
		}
		flush()
		current = []Bubble{b}
	}
	flush()

	for _, r := range raw {
		sort.SliceStable(r, func(i, j int) bool { return r[i].X < r[j].X })
	}

	anchors := slotAnchors(raw, p.Options)

	for _, r := range raw {
		slots, guessed, ok := assignSlots(r, anchors, p.Options)
		if !ok {
			skipped++
			continue
		}
		detected := 0
		for _, b := range slots {
			if !b.Placeholder {
				detected++
			}
		}
		rows = append(rows, Row{
			Column:   col.Index,
			Bubbles:  slots,
			Detected: detected,
			Guessed:  guessed,
		})
	}

	return rows, skipped
}

// slotAnchors returns the median centre x of each option slot across the
// complete rows, or nil when there are none.
func slotAnchors(rows [][]Bubble, n int) []float64 {
	perSlot := make([][]float64, n)
	for _, r := range rows {
		if len(r) != n {
			continue
		}
		for i, b := range r {
			perSlot[i] = append(perSlot[i], b.CenterX())
		}
	}
	if len(perSlot[0]) == 0 {
		return nil
	}

	anchors := make([]float64, n)
	for i := range perSlot {
		anchors[i] = median(perSlot[i])
	}
	return anchors
}

// assignSlots maps a sorted row onto n option slots.
func assignSlots(row []Bubble, anchors []float64, n int) (slots []Bubble, guessed, ok bool) {
	switch {
	case len(row) == n:
		return row, false, true
	case len(row) > n:
		if anchors == nil {
			return nil, false, false
		}
		return nearestToAnchors(row, anchors), false, true
	}

	if anchors != nil {
		if slots, ok := slotsFromAnchors(row, anchors); ok {
			return slots, false, true
		}
	}
	if slots, ok := slotsFromSpacing(row, n); ok {
		return slots, false, true
	}

	// Neither the column nor the row tells where the gap is.
	slots = append([]Bubble(nil), row...)
	pitch := rowPitch(row)
	last := row[len(row)-1]
	for k := 1; len(slots) < n; k++ {
		slots = append(slots, placeholder(row, last.CenterX()+float64(k)*pitch))
	}
	return slots, true, true
}

// nearestToAnchors picks, for each anchor, the closest unused bubble.
func nearestToAnchors(row []Bubble, anchors []float64) []Bubble {
	used := make([]bool, len(row))
	slots := make([]Bubble, len(anchors))
	for i, a := range anchors {
		best := -1
		bestDist := math.Inf(1)
		for j, b := range row {
			if used[j] {
				continue
			}
			if d := math.Abs(b.CenterX() - a); d < bestDist {
				best, bestDist = j, d
			}
		}
		used[best] = true
		slots[i] = row[best]
	}
	return slots
}

// slotsFromAnchors places each bubble in its nearest anchor slot. It fails
// when two bubbles claim the same slot.
func slotsFromAnchors(row []Bubble, anchors []float64) ([]Bubble, bool) {
	filled := make([]bool, len(anchors))
	slots := make([]Bubble, len(anchors))
	for _, b := range row {
		best := 0
		bestDist := math.Inf(1)
		for i, a := range anchors {
			if d := math.Abs(b.CenterX() - a); d < bestDist {
				best, bestDist = i, d
			}
		}
		if filled[best] {
			return nil, false
		}
		filled[best] = true
		slots[best] = b
	}
	for i, a := range anchors {
		if !filled[i] {
			slots[i] = placeholder(row, a)
		}
	}
	return slots, true
}

// slotsFromSpacing infers interior gaps from the row's own spacing: with the
// smallest gap as the option pitch, a gap of about k pitches skips k-1 slots.
// It only succeeds when the inferred positions span exactly n slots, since a
// gap at either end leaves no trace in the spacing.
func slotsFromSpacing(row []Bubble, n int) ([]Bubble, bool) {
	if len(row) < 2 {
		return nil, false
	}
	pitch := rowPitch(row)
	if pitch <= 0 {
		return nil, false
	}

	positions := make([]int, len(row))
	for i := 1; i < len(row); i++ {
		step := int(math.Round((row[i].CenterX() - row[i-1].CenterX()) / pitch))
		if step < 1 {
			return nil, false
		}
		positions[i] = positions[i-1] + step
	}
	if positions[len(positions)-1] != n-1 {
		return nil, false
	}

	slots := make([]Bubble, n)
	filled := make([]bool, n)
	for i, pos := range positions {
		slots[pos] = row[i]
		filled[pos] = true
	}
	start := row[0].CenterX()
	for i := range slots {
		if !filled[i] {
			slots[i] = placeholder(row, start+float64(i)*pitch)
		}
	}
	return slots, true
}

// rowPitch returns the smallest distance between neighbouring centres, or the
// mean bubble width for single-bubble rows.
func rowPitch(row []Bubble) float64 {
	pitch := math.Inf(1)
	for i := 1; i < len(row); i++ {
		if d := row[i].CenterX() - row[i-1].CenterX(); d > 0 && d < pitch {
			pitch = d
		}
	}
	if math.IsInf(pitch, 1) {
		return float64(row[0].W)
	}
	return pitch
}

// placeholder builds a zero-sized bubble centred at centerX on the row's line.
func placeholder(row []Bubble, centerX float64) Bubble {
	ref := row[0]
	x := int(math.Round(centerX))
	return Bubble{
		X:           x,
		Y:           ref.Y,
		LocalX:      x - (ref.X - ref.LocalX),
		LocalY:      ref.LocalY,
		Placeholder: true,
	}
}
