package store

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ironsheep/omr-grader/internal/omr"
)

// MaxQuestions is the capacity of the printed answer sheet.
const MaxQuestions = 180

// Exam is an exam definition with its answer key.
type Exam struct {
	ID              string            `json:"exam_id"`
	Title           string            `json:"title"`
	Date            string            `json:"date"`
	Subject         string            `json:"subject"`
	ClassName       string            `json:"class"`
	TotalQuestions  int               `json:"total_questions"`
	ActiveQuestions int               `json:"active_questions"`
	Scoring         omr.ScoringPolicy `json:"scoring"`
	AnswerKey       map[int]int       `json:"answer_key"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Key returns the answer key in the form the grader takes.
func (e *Exam) Key() omr.AnswerKey {
	return omr.AnswerKey(e.AnswerKey)
}

// normalize fills defaults and validates the exam.
func (e *Exam) normalize() error {
	if n := utf8.RuneCountInString(e.Title); n < 3 || n > 200 {
		return fmt.Errorf("%w: title must be 3-200 characters, got %d", ErrInvalidExam, n)
	}
	if e.TotalQuestions == 0 {
		e.TotalQuestions = MaxQuestions
	}
	if e.TotalQuestions < 1 || e.TotalQuestions > MaxQuestions {
		return fmt.Errorf("%w: total_questions must be within 1-%d, got %d", ErrInvalidExam, MaxQuestions, e.TotalQuestions)
	}
	if e.ActiveQuestions < 1 || e.ActiveQuestions > e.TotalQuestions {
		return fmt.Errorf("%w: active_questions must be within 1-%d, got %d", ErrInvalidExam, e.TotalQuestions, e.ActiveQuestions)
	}
	if len(e.AnswerKey) == 0 {
		return fmt.Errorf("%w: answer_key is empty", ErrInvalidExam)
	}
	for q, opt := range e.AnswerKey {
		if q < 0 || q >= e.TotalQuestions {
			return fmt.Errorf("%w: answer_key question %d outside 0-%d", ErrInvalidExam, q, e.TotalQuestions-1)
		}
		if opt < 0 || opt > 4 {
			return fmt.Errorf("%w: answer_key option %d for question %d outside 0-4", ErrInvalidExam, opt, q)
		}
	}

	if e.Scoring == (omr.ScoringPolicy{}) {
		e.Scoring = omr.DefaultScoringPolicy()
	}
	if e.Scoring.MultipleMarks == "" {
		e.Scoring.MultipleMarks = omr.MultipleAsWrong
	}
	if err := e.Scoring.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExam, err)
	}
	return nil
}

// Result is a graded answer sheet.
type Result struct {
	ID                 string             `json:"result_id"`
	ExamID             string             `json:"exam_id"`
	StudentName        string             `json:"student_name,omitempty"`
	StudentNumber      string             `json:"student_number,omitempty"`
	Answers            map[int]int        `json:"answers"`
	Unanswered         []int              `json:"unanswered"`
	MultipleMarks      map[int][]int      `json:"multiple_marks,omitempty"`
	GuessedRows        []int              `json:"guessed_rows,omitempty"`
	Score              omr.ScoreSummary   `json:"score"`
	Details            []omr.AnswerDetail `json:"details"`
	Processed          int                `json:"processed"`
	SkippedRows        int                `json:"skipped_rows"`
	Partial            bool               `json:"partial"`
	ImagePath          string             `json:"image_path"`
	ProcessedImagePath string             `json:"processed_image_path,omitempty"`
	ProcessedAt        time.Time          `json:"processed_at"`
}

// NewResult copies the grading outcome of one sheet into a Result.
func NewResult(examID string, res *omr.Result) *Result {
	return &Result{
		ExamID:        examID,
		Answers:       res.Answers,
		Unanswered:    res.Unanswered,
		MultipleMarks: res.MultipleMarks,
		GuessedRows:   res.GuessedRows,
		Score:         res.Score,
		Details:       res.Details,
		Processed:     res.Processed,
		SkippedRows:   res.SkippedRows,
		Partial:       res.Partial,
	}
}

// Statistics summarizes the results of one exam. Scores are percentages.
type Statistics struct {
	TotalStudents int     `json:"total_students"`
	AverageScore  float64 `json:"average_score"`
	HighestScore  float64 `json:"highest_score"`
	LowestScore   float64 `json:"lowest_score"`
	PassRate      float64 `json:"pass_rate"`
	PassingScore  float64 `json:"passing_score"`
}
