package omr

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/rs/zerolog"
)

// Grader runs the detection and grading pipeline with a fixed set of
// parameters. It is immutable once built.
type Grader struct {
	params Params
	policy ScoringPolicy
	log    zerolog.Logger
}

// Option configures a Grader.
type Option func(*Grader)

// WithParams overrides DefaultParams.
func WithParams(p Params) Option {
	return func(g *Grader) { g.params = p }
}

// WithScoringPolicy overrides DefaultScoringPolicy.
func WithScoringPolicy(s ScoringPolicy) Option {
	return func(g *Grader) { g.policy = s }
}

// WithLogger sets the logger used for detection diagnostics. The default
// discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Grader) { g.log = l }
}

// NewGrader builds a Grader and validates its configuration.
func NewGrader(opts ...Option) (*Grader, error) {
	g := &Grader{
		params: DefaultParams(),
		policy: DefaultScoringPolicy(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.params.Validate(); err != nil {
		return nil, err
	}
	if err := g.policy.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Params returns the configured detection parameters.
func (g *Grader) Params() Params { return g.params }

// Policy returns the configured scoring policy.
func (g *Grader) Policy() ScoringPolicy { return g.policy }

// Result is the outcome of grading one sheet.
//
// Answers holds the credited option of every answered question. Unanswered
// lists the detected rows without a mark, and MultipleMarks the rows with
// several marks that the policy did not resolve to one answer. Questions
// that were never reached appear in none of the three; Processed counts the
// rows that were graded and Partial is set when Processed falls short of the
// active question count or rows had to be skipped.
type Result struct {
	Answers       map[int]int    `json:"answers"`
	Unanswered    []int          `json:"unanswered"`
	MultipleMarks map[int][]int  `json:"multiple_marks,omitempty"`
	GuessedRows   []int          `json:"guessed_rows,omitempty"`
	Details       []AnswerDetail `json:"details"`
	Score         ScoreSummary   `json:"score"`
	Processed     int            `json:"processed"`
	SkippedRows   int            `json:"skipped_rows"`
	Partial       bool           `json:"partial"`
	ScaleFactor   float64        `json:"scale_factor"`
	Backend       string         `json:"backend"`

	// MarkedImage is nil when rendering failed; RenderError then says why.
	MarkedImage image.Image `json:"-"`
	RenderError string      `json:"render_error,omitempty"`
}

// ColumnReport summarizes one detected column.
type ColumnReport struct {
	Index       int     `json:"index"`
	Center      float64 `json:"center"`
	Bubbles     int     `json:"bubbles"`
	Rows        int     `json:"rows"`
	PaddedRows  int     `json:"padded_rows"`
	GuessedRows int     `json:"guessed_rows"`
}

// DetectionReport describes the geometry found in a Region without grading
// it. It is meant for calibrating the Region and the detection parameters.
type DetectionReport struct {
	Backend     string         `json:"backend"`
	Region      Region         `json:"region"`
	ScaleFactor float64        `json:"scale_factor"`
	Params      Params         `json:"params"`
	Blobs       int            `json:"blobs"`
	Bubbles     int            `json:"bubbles"`
	ColumnGap   float64        `json:"column_gap"`
	Columns     []ColumnReport `json:"columns"`
	RowsByWidth map[int]int    `json:"rows_by_detected_bubbles"`
	SkippedRows int            `json:"skipped_rows"`
	Questions   int            `json:"questions"`
}

// detection carries stages 1-5 for one image.
type detection struct {
	frame   *Frame
	params  Params
	region  Region
	factor  float64
	blobs   int
	gap     float64
	columns []Column
	rows    [][]Row
	skipped int
}

// questions flattens the rows column by column, top to bottom, numbering
// them from zero. At most limit rows are returned when limit > 0.
func (d *detection) questions(limit int) []Question {
	var qs []Question
	for _, rows := range d.rows {
		for _, r := range rows {
			if limit > 0 && len(qs) == limit {
				return qs
			}
			qs = append(qs, Question{Index: len(qs), Row: r})
		}
	}
	return qs
}

func (g *Grader) detect(img image.Image, region *Region) (*detection, error) {
	if region == nil {
		return nil, fmt.Errorf("%w: answer region not calibrated", ErrConfigMissing)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrImageRead)
	}

	scaled, factor := region.ScaleTo(img.Bounds())
	params := g.params.Scaled(factor)

	frame, err := Preprocess(img, scaled, params)
	if err != nil {
		return nil, err
	}

	blobs, err := extractBlobs(frame.Mask)
	if err != nil {
		return nil, fmt.Errorf("failed to extract contours: %w", err)
	}

	bubbles := FilterBubbles(blobs, frame.Origin, params)
	g.log.Debug().
		Str("backend", BackendName).
		Float64("scale", factor).
		Int("blobs", len(blobs)).
		Int("bubbles", len(bubbles)).
		Msg("bubble filter")

	if len(bubbles) == 0 {
		return nil, ErrNoBubblesDetected
	}

	gap := params.columnGap(bubbles)
	columns := ClusterColumns(bubbles, gap)

	d := &detection{
		frame:   frame,
		params:  params,
		region:  scaled,
		factor:  factor,
		blobs:   len(blobs),
		gap:     gap,
		columns: columns,
		rows:    make([][]Row, len(columns)),
	}
	for i, col := range columns {
		rows, skipped := GroupRows(col, params)
		d.rows[i] = rows
		d.skipped += skipped
		g.log.Debug().
			Int("column", col.Index).
			Float64("center", col.Center).
			Int("bubbles", len(col.Bubbles)).
			Int("rows", len(rows)).
			Int("skipped", skipped).
			Msg("column grouped")
	}
	return d, nil
}

// Detect runs the geometric stages and reports what they found.
func (g *Grader) Detect(img image.Image, region *Region) (*DetectionReport, error) {
	d, err := g.detect(img, region)
	if err != nil {
		return nil, err
	}

	report := &DetectionReport{
		Backend:     BackendName,
		Region:      d.region,
		ScaleFactor: d.factor,
		Params:      d.params,
		Blobs:       d.blobs,
		ColumnGap:   d.gap,
		RowsByWidth: make(map[int]int),
		SkippedRows: d.skipped,
	}
	for i, col := range d.columns {
		cr := ColumnReport{
			Index:   col.Index,
			Center:  col.Center,
			Bubbles: len(col.Bubbles),
			Rows:    len(d.rows[i]),
		}
		for _, r := range d.rows[i] {
			report.RowsByWidth[r.Detected]++
			if r.Detected < d.params.Options {
				cr.PaddedRows++
			}
			if r.Guessed {
				cr.GuessedRows++
			}
		}
		report.Bubbles += cr.Bubbles
		report.Questions += cr.Rows
		report.Columns = append(report.Columns, cr)
	}
	return report, nil
}

// Grade runs the full pipeline on one page.
//
// The Region and AnswerKey are read only. active is the number of questions
// to grade, counted column by column from the top-left. Whole-image failures
// (missing configuration, unreadable image, no bubbles) are returned as
// errors; skipped rows are reported in the Result. A rendering failure never
// fails the call.
func (g *Grader) Grade(img image.Image, region *Region, key AnswerKey, active int) (*Result, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: answer key is empty", ErrConfigMissing)
	}
	if active <= 0 {
		return nil, fmt.Errorf("%w: active questions must be positive, got %d", ErrInvalidParams, active)
	}

	d, err := g.detect(img, region)
	if err != nil {
		return nil, err
	}

	questions := d.questions(active)
	outcomes := make(map[int]Outcome, len(questions))

	res := &Result{
		Answers:     make(map[int]int),
		Unanswered:  []int{},
		Processed:   len(questions),
		SkippedRows: d.skipped,
		ScaleFactor: d.factor,
		Backend:     BackendName,
	}

	for i := range questions {
		q := &questions[i]
		q.Outcome = Classify(d.frame.Gray, q.Row, d.params)
		outcomes[q.Index] = q.Outcome

		if q.Row.Guessed {
			res.GuessedRows = append(res.GuessedRows, q.Index)
		}
		switch opt := g.policy.resolve(q.Outcome); {
		case opt >= 0:
			res.Answers[q.Index] = opt
		case q.Outcome.Kind == MultipleMarks:
			if res.MultipleMarks == nil {
				res.MultipleMarks = make(map[int][]int)
			}
			res.MultipleMarks[q.Index] = q.Outcome.Options
		default:
			res.Unanswered = append(res.Unanswered, q.Index)
		}
	}
	sort.Ints(res.Unanswered)

	res.Score, res.Details = Score(outcomes, key, active, g.policy)
	res.Partial = res.Processed < active || res.SkippedRows > 0
	if res.Partial {
		g.log.Warn().
			Int("processed", res.Processed).
			Int("active", active).
			Int("skipped_rows", res.SkippedRows).
			Msg("partial detection")
	}

	res.MarkedImage, err = g.render(img, questions, key)
	if err != nil {
		res.RenderError = err.Error()
		g.log.Error().Err(err).Msg("failed to render annotated image")
	}

	return res, nil
}

// render calls Render and turns a panic into an error.
func (g *Grader) render(img image.Image, questions []Question, key AnswerKey) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("render panicked: %v", r)
		}
	}()
	marked, err := Render(img, questions, key, g.policy)
	if err != nil {
		return nil, err
	}
	return marked, nil
}

// IsDetectionFailure reports whether err means the page could not be read as
// an answer sheet, as opposed to a configuration problem.
func IsDetectionFailure(err error) bool {
	return errors.Is(err, ErrNoBubblesDetected) || errors.Is(err, ErrImageRead)
}
