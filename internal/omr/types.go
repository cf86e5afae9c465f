package omr

import (
	"image"
	"strings"
)

// Bubble is a detected answer-oval candidate.
//
// X, Y are absolute page coordinates of the bounding box's top-left corner and
// LocalX, LocalY the same corner relative to the Region. Area is the area
// enclosed by the blob's outer boundary. A Placeholder bubble has zero size and
// stands in for an option slot that was not detected.
type Bubble struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	W           int     `json:"w"`
	H           int     `json:"h"`
	LocalX      int     `json:"x_local"`
	LocalY      int     `json:"y_local"`
	Area        float64 `json:"area"`
	AspectRatio float64 `json:"ar"`
	Placeholder bool    `json:"placeholder,omitempty"`
}

// CenterX returns the horizontal centre of the bounding box.
func (b Bubble) CenterX() float64 {
	return float64(b.X) + float64(b.W)/2
}

// Rect returns the bounding box in page coordinates.
func (b Bubble) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// LocalRect returns the bounding box relative to the Region.
func (b Bubble) LocalRect() image.Rectangle {
	return image.Rect(b.LocalX, b.LocalY, b.LocalX+b.W, b.LocalY+b.H)
}

// Column is a vertical group of bubbles sharing a horizontal cluster.
type Column struct {
	Index   int      `json:"index"`
	Center  float64  `json:"center"`
	Bubbles []Bubble `json:"-"`
}

// Row is one question slot: exactly Params.Options bubbles ordered left to
// right, A first. Detected counts the real (non-placeholder) bubbles. Guessed
// is set when a missing slot could not be located from the geometry and the
// placeholder was appended rightmost.
type Row struct {
	Column   int      `json:"column"`
	Bubbles  []Bubble `json:"bubbles"`
	Detected int      `json:"detected"`
	Guessed  bool     `json:"guessed,omitempty"`
}

// AnswerKey maps a zero-based question index to the zero-based correct
// option (0=A ... 4=E).
type AnswerKey map[int]int

// OutcomeKind tags a row classification.
type OutcomeKind int

const (
	// Unanswered means no bubble is darker than the filled threshold.
	Unanswered OutcomeKind = iota
	// SingleAnswer means exactly one bubble is marked.
	SingleAnswer
	// MultipleMarks means two or more bubbles are marked.
	MultipleMarks
)

func (k OutcomeKind) String() string {
	switch k {
	case SingleAnswer:
		return "single"
	case MultipleMarks:
		return "multiple"
	default:
		return "unanswered"
	}
}

// MarshalText encodes the kind by name.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the classification of one row.
//
// For SingleAnswer, Option is the marked option. For MultipleMarks, Options
// lists every marked option in ascending order and Option is the darkest one.
// Intensities holds the mean intensity per slot, -1 for placeholders.
type Outcome struct {
	Kind         OutcomeKind `json:"kind"`
	Option       int         `json:"option"`
	Options      []int       `json:"options,omitempty"`
	MinIntensity float64     `json:"min_intensity"`
	Intensities  []float64   `json:"intensities"`
}

// Answered reports whether the row carries any mark.
func (o Outcome) Answered() bool {
	return o.Kind != Unanswered
}

// AnswerDetail is the per-question record returned to callers.
type AnswerDetail struct {
	QuestionNum   int     `json:"question_num"`
	AnswerKey     string  `json:"answer_key"`
	StudentAnswer string  `json:"student_answer"`
	IsCorrect     bool    `json:"is_correct"`
	Points        float64 `json:"points"`
	Status        string  `json:"status"`
}

// Question statuses used in AnswerDetail.Status.
const (
	StatusCorrect    = "correct"
	StatusWrong      = "wrong"
	StatusMultiple   = "multiple"
	StatusUnanswered = "unanswered"
	StatusMissing    = "missing"
)

// ScoreSummary is derived from the graded answers and never mutated on its own.
// Correct + Wrong + Unanswered == Total; Multiple is the subset of Wrong
// caused by multiple marks.
type ScoreSummary struct {
	Correct    int     `json:"correct"`
	Wrong      int     `json:"wrong"`
	Unanswered int     `json:"unanswered"`
	Multiple   int     `json:"multiple"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Points     float64 `json:"points"`
}

// OptionLetter converts a zero-based option index to its letter.
func OptionLetter(option int) string {
	if option < 0 || option > 25 {
		return ""
	}
	return string(rune('A' + option))
}

// optionLetters joins several options as "A+C".
func optionLetters(options []int) string {
	letters := make([]string, 0, len(options))
	for _, o := range options {
		letters = append(letters, OptionLetter(o))
	}
	return strings.Join(letters, "+")
}
