package omr

import "fmt"

// Multiple-mark policies for ScoringPolicy.MultipleMarks.
const (
	// MultipleAsWrong scores a row with several marks as wrong.
	MultipleAsWrong = "wrong"
	// MultipleDarkest keeps the darkest mark as the answer.
	MultipleDarkest = "darkest"
)

// ScoringPolicy assigns points per outcome and decides how multiple marks
// are treated.
type ScoringPolicy struct {
	Correct       float64 `json:"correct" toml:"correct"`
	Wrong         float64 `json:"wrong" toml:"wrong"`
	Unanswered    float64 `json:"unanswered" toml:"unanswered"`
	MultipleMarks string  `json:"multiple_marks" toml:"multiple_marks"`
}

// DefaultScoringPolicy awards one point per correct answer and treats
// multiple marks as wrong.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{Correct: 1, MultipleMarks: MultipleAsWrong}
}

// Validate rejects unknown multiple-mark policies.
func (s ScoringPolicy) Validate() error {
	switch s.MultipleMarks {
	case "", MultipleAsWrong, MultipleDarkest:
		return nil
	}
	return fmt.Errorf("%w: unknown multiple_marks policy %q", ErrInvalidParams, s.MultipleMarks)
}

// resolve returns the option the policy credits for an outcome, or -1.
func (s ScoringPolicy) resolve(o Outcome) int {
	switch o.Kind {
	case SingleAnswer:
		return o.Option
	case MultipleMarks:
		if s.MultipleMarks == MultipleDarkest {
			return o.Option
		}
	}
	return -1
}

// Score grades questions [0, active) against key.
//
// outcomes holds the classification of every question the row grouper
// reached. A question absent from outcomes was never detected; it is reported
// with status "missing" and counted as unanswered, the same as a detected
// blank row. A question is correct only when the credited option equals the
// key entry; a question without a key entry can never be correct.
//
// Percentage is Correct / active * 100 at full precision, or 0 when active
// is 0.
func Score(outcomes map[int]Outcome, key AnswerKey, active int, policy ScoringPolicy) (ScoreSummary, []AnswerDetail) {
	if active < 0 {
		active = 0
	}
	sum := ScoreSummary{Total: active}
	details := make([]AnswerDetail, 0, active)

	for q := 0; q < active; q++ {
		want, hasKey := key[q]
		if !hasKey {
			want = -1
		}

		d := AnswerDetail{
			QuestionNum:   q + 1,
			AnswerKey:     "?",
			StudentAnswer: "-",
		}
		if want >= 0 {
			d.AnswerKey = OptionLetter(want)
		}

		o, reached := outcomes[q]
		switch {
		case !reached:
			d.Status = StatusMissing
			d.Points = policy.Unanswered
			sum.Unanswered++

		case o.Kind == Unanswered:
			d.Status = StatusUnanswered
			d.Points = policy.Unanswered
			sum.Unanswered++

		case o.Kind == MultipleMarks && policy.MultipleMarks != MultipleDarkest:
			d.StudentAnswer = optionLetters(o.Options)
			d.Status = StatusMultiple
			d.Points = policy.Wrong
			sum.Wrong++
			sum.Multiple++

		default:
			got := policy.resolve(o)
			d.StudentAnswer = OptionLetter(got)
			if hasKey && got == want {
				d.IsCorrect = true
				d.Status = StatusCorrect
				d.Points = policy.Correct
				sum.Correct++
			} else {
				d.Status = StatusWrong
				d.Points = policy.Wrong
				sum.Wrong++
			}
		}

		sum.Points += d.Points
		details = append(details, d)
	}

	if active > 0 {
		sum.Percentage = float64(sum.Correct) * 100 / float64(active)
	}
	return sum, details
}
