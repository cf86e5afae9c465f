package omr

import "errors"

var (
	// ErrConfigMissing is returned when the Region or AnswerKey is absent.
	ErrConfigMissing = errors.New("omr: configuration missing")

	// ErrImageRead is returned when the source image cannot be decoded.
	ErrImageRead = errors.New("omr: cannot read image")

	// ErrNoBubblesDetected is returned when no blob inside the Region passes
	// the bubble filter. The caller should ask for a re-scan or recalibration.
	ErrNoBubblesDetected = errors.New("omr: no bubbles detected")

	// ErrInvalidRegion is returned for malformed regions or regions outside
	// the page.
	ErrInvalidRegion = errors.New("omr: invalid region")

	// ErrInvalidParams is returned when detection parameters are inconsistent.
	ErrInvalidParams = errors.New("omr: invalid parameters")
)
