package omr

import (
	"math"
	"testing"
)

func single(option int) Outcome {
	return Outcome{Kind: SingleAnswer, Option: option}
}

func multiple(options ...int) Outcome {
	return Outcome{Kind: MultipleMarks, Option: options[len(options)-1], Options: options}
}

func TestScore(t *testing.T) {
	key := AnswerKey{0: 0, 1: 1, 2: 2, 3: 3, 4: 4}
	outcomes := map[int]Outcome{
		0: single(0),
		1: single(2),
		2: {Kind: Unanswered, Option: -1},
		3: multiple(1, 3),
	}

	sum, details := Score(outcomes, key, 5, DefaultScoringPolicy())

	want := ScoreSummary{Correct: 1, Wrong: 2, Unanswered: 2, Multiple: 1, Total: 5, Percentage: 20, Points: 1}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}
	if sum.Correct+sum.Wrong+sum.Unanswered != sum.Total {
		t.Errorf("correct+wrong+unanswered != total")
	}
	if len(details) != 5 {
		t.Fatalf("expected 5 details, got %d", len(details))
	}

	wantDetails := []struct {
		num     int
		key     string
		student string
		status  string
		correct bool
	}{
		{1, "A", "A", StatusCorrect, true},
		{2, "B", "C", StatusWrong, false},
		{3, "C", "-", StatusUnanswered, false},
		{4, "D", "B+D", StatusMultiple, false},
		{5, "E", "-", StatusMissing, false},
	}
	for i, w := range wantDetails {
		d := details[i]
		if d.QuestionNum != w.num || d.AnswerKey != w.key || d.StudentAnswer != w.student ||
			d.Status != w.status || d.IsCorrect != w.correct {
			t.Errorf("detail %d = %+v, want %+v", i, d, w)
		}
	}
}

func TestScore_DarkestPolicy(t *testing.T) {
	key := AnswerKey{0: 3, 1: 0}
	outcomes := map[int]Outcome{
		0: multiple(1, 3),
		1: multiple(1, 3),
	}
	policy := ScoringPolicy{Correct: 2, Wrong: -0.5, MultipleMarks: MultipleDarkest}

	sum, details := Score(outcomes, key, 2, policy)
	if sum.Correct != 1 || sum.Wrong != 1 || sum.Multiple != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Points != 1.5 {
		t.Errorf("points = %.2f, want 1.5", sum.Points)
	}
	if details[0].StudentAnswer != "D" || !details[0].IsCorrect {
		t.Errorf("detail 0 = %+v", details[0])
	}
}

func TestScore_MissingKeyEntry(t *testing.T) {
	sum, details := Score(map[int]Outcome{0: single(0)}, AnswerKey{}, 1, DefaultScoringPolicy())
	if sum.Correct != 0 || sum.Wrong != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if details[0].AnswerKey != "?" {
		t.Errorf("answer key letter = %q, want ?", details[0].AnswerKey)
	}
}

func TestScore_ZeroActive(t *testing.T) {
	sum, details := Score(nil, AnswerKey{0: 0}, 0, DefaultScoringPolicy())
	if sum.Percentage != 0 || sum.Total != 0 || len(details) != 0 {
		t.Errorf("unexpected result %+v %v", sum, details)
	}
}

func TestScore_Percentage(t *testing.T) {
	key := AnswerKey{0: 0, 1: 0, 2: 0}
	outcomes := map[int]Outcome{0: single(0), 1: single(1), 2: single(1)}

	sum, _ := Score(outcomes, key, 3, DefaultScoringPolicy())
	if math.Abs(sum.Percentage-100.0/3) > 1e-9 {
		t.Errorf("percentage = %v, want %v", sum.Percentage, 100.0/3)
	}
}

func TestScoringPolicy_Validate(t *testing.T) {
	for _, mode := range []string{"", MultipleAsWrong, MultipleDarkest} {
		if err := (ScoringPolicy{MultipleMarks: mode}).Validate(); err != nil {
			t.Errorf("mode %q: unexpected error %v", mode, err)
		}
	}
	if err := (ScoringPolicy{MultipleMarks: "first"}).Validate(); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestOptionLetter(t *testing.T) {
	if OptionLetter(0) != "A" || OptionLetter(4) != "E" {
		t.Errorf("unexpected letters %q %q", OptionLetter(0), OptionLetter(4))
	}
	if OptionLetter(-1) != "" {
		t.Errorf("expected empty letter for -1")
	}
	if got := optionLetters([]int{0, 2, 4}); got != "A+C+E" {
		t.Errorf("optionLetters = %q", got)
	}
}
