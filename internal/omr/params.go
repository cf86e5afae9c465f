package omr

import (
	"fmt"
	"math"
)

// Params holds every tunable of the detection pipeline.
//
// Pixel quantities are expressed at template resolution; Params.Scaled
// converts them for pages scanned at a different resolution. The struct tags
// allow the values to be overridden from a TOML file.
type Params struct {
	// BlurKernel is the side of the Gaussian blur kernel (odd).
	BlurKernel int `toml:"blur_kernel" json:"blur_kernel"`

	// ThresholdBlock is the side of the neighbourhood used for the local
	// Gaussian-weighted mean of the adaptive threshold (odd).
	ThresholdBlock int `toml:"threshold_block" json:"threshold_block"`

	// ThresholdOffset is subtracted from the local mean before comparing.
	ThresholdOffset float64 `toml:"threshold_offset" json:"threshold_offset"`

	MinBubbleSize  int     `toml:"min_bubble_size" json:"min_bubble_size"`
	MaxBubbleSize  int     `toml:"max_bubble_size" json:"max_bubble_size"`
	MinAspectRatio float64 `toml:"min_aspect_ratio" json:"min_aspect_ratio"`
	MaxAspectRatio float64 `toml:"max_aspect_ratio" json:"max_aspect_ratio"`

	// MinBubbleArea is the minimum area enclosed by the blob's outer
	// boundary, not the bounding box area.
	MinBubbleArea float64 `toml:"min_bubble_area" json:"min_bubble_area"`

	// ColumnGap starts a new column when consecutive bubble x-positions are
	// at least this far apart. Zero derives the gap from the bubble pitch as
	// ColumnGapPitchFactor times the median bubble width.
	ColumnGap            float64 `toml:"column_gap" json:"column_gap"`
	ColumnGapPitchFactor float64 `toml:"column_gap_pitch_factor" json:"column_gap_pitch_factor"`

	// RowTolerance is the maximum vertical offset from a row's first bubble.
	RowTolerance float64 `toml:"row_tolerance" json:"row_tolerance"`

	// MinRowBubbles is the number of detected bubbles a row needs to be graded.
	MinRowBubbles int `toml:"min_row_bubbles" json:"min_row_bubbles"`

	// Options is the number of answer options per question (A-E = 5).
	Options int `toml:"options" json:"options"`

	// FilledThreshold is the mean intensity (0 black, 255 white) below which
	// a bubble counts as marked.
	FilledThreshold float64 `toml:"filled_threshold" json:"filled_threshold"`
}

// DefaultParams returns the parameters tuned for the 180-question sheet
// scanned at roughly 300 DPI.
func DefaultParams() Params {
	return Params{
		BlurKernel:           5,
		ThresholdBlock:       11,
		ThresholdOffset:      2,
		MinBubbleSize:        35,
		MaxBubbleSize:        50,
		MinAspectRatio:       0.70,
		MaxAspectRatio:       1.30,
		MinBubbleArea:        1000,
		ColumnGap:            100,
		ColumnGapPitchFactor: 2.5,
		RowTolerance:         15,
		MinRowBubbles:        4,
		Options:              5,
		FilledThreshold:      150,
	}
}

// Validate reports inconsistent parameter combinations.
func (p Params) Validate() error {
	switch {
	case p.BlurKernel < 1 || p.BlurKernel%2 == 0:
		return fmt.Errorf("%w: blur_kernel must be odd and positive, got %d", ErrInvalidParams, p.BlurKernel)
	case p.ThresholdBlock < 3 || p.ThresholdBlock%2 == 0:
		return fmt.Errorf("%w: threshold_block must be odd and >= 3, got %d", ErrInvalidParams, p.ThresholdBlock)
	case p.MinBubbleSize <= 0 || p.MinBubbleSize > p.MaxBubbleSize:
		return fmt.Errorf("%w: bubble size range %d-%d", ErrInvalidParams, p.MinBubbleSize, p.MaxBubbleSize)
	case p.MinAspectRatio <= 0 || p.MinAspectRatio > p.MaxAspectRatio:
		return fmt.Errorf("%w: aspect ratio range %.2f-%.2f", ErrInvalidParams, p.MinAspectRatio, p.MaxAspectRatio)
	case p.ColumnGap < 0 || (p.ColumnGap == 0 && p.ColumnGapPitchFactor <= 0):
		return fmt.Errorf("%w: column_gap or column_gap_pitch_factor must be positive", ErrInvalidParams)
	case p.RowTolerance <= 0:
		return fmt.Errorf("%w: row_tolerance must be positive", ErrInvalidParams)
	case p.Options < 2 || p.Options > 26:
		return fmt.Errorf("%w: options must be within 2-26, got %d", ErrInvalidParams, p.Options)
	case p.MinRowBubbles < 1 || p.MinRowBubbles > p.Options:
		return fmt.Errorf("%w: min_row_bubbles must be within 1-%d, got %d", ErrInvalidParams, p.Options, p.MinRowBubbles)
	case p.FilledThreshold <= 0 || p.FilledThreshold > 255:
		return fmt.Errorf("%w: filled_threshold must be within (0,255], got %.1f", ErrInvalidParams, p.FilledThreshold)
	}
	return nil
}

// Scaled returns a copy with every pixel quantity multiplied by factor.
// Areas scale quadratically and kernel sizes stay odd. Intensity and ratio
// parameters are unchanged.
func (p Params) Scaled(factor float64) Params {
	if factor <= 0 || factor == 1 {
		return p
	}

	s := p
	s.BlurKernel = oddAtLeast(float64(p.BlurKernel)*factor, 1)
	s.ThresholdBlock = oddAtLeast(float64(p.ThresholdBlock)*factor, 3)
	s.MinBubbleSize = int(math.Floor(float64(p.MinBubbleSize) * factor))
	s.MaxBubbleSize = int(math.Ceil(float64(p.MaxBubbleSize) * factor))
	s.MinBubbleArea = p.MinBubbleArea * factor * factor
	s.ColumnGap = p.ColumnGap * factor
	s.RowTolerance = p.RowTolerance * factor
	return s
}

// Accepts is the bubble acceptance predicate applied by FilterBubbles.
func (p Params) Accepts(w, h int, area float64) bool {
	if w < p.MinBubbleSize || w > p.MaxBubbleSize {
		return false
	}
	if h < p.MinBubbleSize || h > p.MaxBubbleSize {
		return false
	}
	ar := float64(w) / float64(h)
	if ar < p.MinAspectRatio || ar > p.MaxAspectRatio {
		return false
	}
	return area >= p.MinBubbleArea
}

func oddAtLeast(v float64, min int) int {
	n := int(math.Round(v))
	if n%2 == 0 {
		n++
	}
	if n < min {
		n = min
	}
	return n
}
