package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/store"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A"},
		{90, "A"},
		{89.99, "B"},
		{80, "B"},
		{70, "C"},
		{60, "D"},
		{59.5, "E"},
		{0, "E"},
	}
	for _, tt := range tests {
		if got := Grade(tt.pct); got != tt.want {
			t.Errorf("Grade(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func fixture() (*store.Exam, []*store.Result, *store.Statistics) {
	exam := &store.Exam{
		ID:              "exam_0a1b2c3d",
		Title:           "Physics Quiz",
		Subject:         "Physics",
		ClassName:       "XI-2",
		Date:            "2024-05-02",
		TotalQuestions:  180,
		ActiveQuestions: 3,
		AnswerKey:       map[int]int{0: 0, 1: 2},
	}
	results := []*store.Result{
		{
			ID:            "exam_0a1b2c3d_11111111",
			StudentName:   "Ani",
			StudentNumber: "1001",
			Score:         omr.ScoreSummary{Correct: 2, Unanswered: 1, Total: 3, Percentage: 200.0 / 3},
			Details: []omr.AnswerDetail{
				{QuestionNum: 1, AnswerKey: "A", StudentAnswer: "A", IsCorrect: true, Status: omr.StatusCorrect},
				{QuestionNum: 2, AnswerKey: "C", StudentAnswer: "C", IsCorrect: true, Status: omr.StatusCorrect},
				{QuestionNum: 3, AnswerKey: "?", StudentAnswer: "-", Status: omr.StatusUnanswered},
			},
		},
		{
			ID:    "exam_0a1b2c3d_22222222",
			Score: omr.ScoreSummary{Correct: 0, Wrong: 1, Multiple: 1, Unanswered: 1, Total: 3},
			Details: []omr.AnswerDetail{
				{QuestionNum: 1, AnswerKey: "A", StudentAnswer: "B", Status: omr.StatusWrong},
				{QuestionNum: 2, AnswerKey: "C", StudentAnswer: "A+C", Status: omr.StatusMultiple},
			},
		},
	}
	stats := &store.Statistics{TotalStudents: 2, AverageScore: 100.0 / 3, HighestScore: 200.0 / 3, PassingScore: 75}
	return exam, results, stats
}

func openWorkbook(t *testing.T, exam *store.Exam, results []*store.Result, stats *store.Statistics) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, exam, results, stats); err != nil {
		t.Fatalf("WriteWorkbook failed: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, axis string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, axis)
	if err != nil {
		t.Fatalf("GetCellValue(%s!%s) failed: %v", sheet, axis, err)
	}
	return v
}

func TestWriteWorkbook_Sheets(t *testing.T) {
	exam, results, stats := fixture()
	f := openWorkbook(t, exam, results, stats)

	got := f.GetSheetList()
	want := []string{SheetSummary, SheetScores, SheetDetails}
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWriteWorkbook_Summary(t *testing.T) {
	exam, results, stats := fixture()
	f := openWorkbook(t, exam, results, stats)

	tests := []struct{ axis, want string }{
		{"A1", "Exam"},
		{"B1", "Physics Quiz"},
		{"B2", "exam_0a1b2c3d"},
		{"B6", "3"},
		{"A7", "Students"},
		{"B7", "2"},
		{"B8", "33.33"},
		{"B9", "66.67"},
	}
	for _, tt := range tests {
		if got := cell(t, f, SheetSummary, tt.axis); got != tt.want {
			t.Errorf("Summary!%s = %q, want %q", tt.axis, got, tt.want)
		}
	}
}

func TestWriteWorkbook_SummaryWithoutStatistics(t *testing.T) {
	exam, results, _ := fixture()
	f := openWorkbook(t, exam, results, nil)
	if got := cell(t, f, SheetSummary, "A7"); got != "" {
		t.Errorf("expected no statistics rows, got %q", got)
	}
}

func TestWriteWorkbook_Scores(t *testing.T) {
	exam, results, stats := fixture()
	f := openWorkbook(t, exam, results, stats)

	tests := []struct{ axis, want string }{
		{"B1", "Student"},
		{"H1", "Grade"},
		{"A2", "1"},
		{"B2", "Ani"},
		{"C2", "1001"},
		{"D2", "2"},
		{"F2", "1"},
		{"H2", "D"},
		{"B3", "exam_0a1b2c3d_22222222"},
		{"E3", "2"},
		{"G2", "66.67"},
		{"H3", "E"},
	}
	for _, tt := range tests {
		if got := cell(t, f, SheetScores, tt.axis); got != tt.want {
			t.Errorf("Scores!%s = %q, want %q", tt.axis, got, tt.want)
		}
	}
}

func TestWriteWorkbook_PercentageKeepsPrecision(t *testing.T) {
	exam, results, stats := fixture()
	f := openWorkbook(t, exam, results, stats)

	raw, err := f.GetCellValue(SheetScores, "G2", excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(raw, "66.6666") {
		t.Errorf("stored percentage = %q, want full precision", raw)
	}
}

func TestWriteWorkbook_Details(t *testing.T) {
	exam, results, stats := fixture()
	f := openWorkbook(t, exam, results, stats)

	tests := []struct{ axis, want string }{
		{"A1", "Question"},
		{"C1", "Ani"},
		{"A2", "1"},
		{"B2", "A"},
		{"B3", "C"},
		{"B4", "?"},
		{"C2", "A"},
		{"C4", "-"},
		{"D2", "B"},
		{"D3", "A+C"},
		{"D4", ""},
	}
	for _, tt := range tests {
		if got := cell(t, f, SheetDetails, tt.axis); got != tt.want {
			t.Errorf("Details!%s = %q, want %q", tt.axis, got, tt.want)
		}
	}

	style := func(axis string) int {
		id, err := f.GetCellStyle(SheetDetails, axis)
		if err != nil {
			t.Fatalf("GetCellStyle(%s) failed: %v", axis, err)
		}
		return id
	}
	correctA, correctB := style("C2"), style("C3")
	wrongA, wrongB := style("D2"), style("D3")
	blank := style("C4")

	if correctA != correctB || wrongA != wrongB {
		t.Errorf("cells with the same status should share a style: %d/%d %d/%d", correctA, correctB, wrongA, wrongB)
	}
	if correctA == wrongA || correctA == blank || wrongA == blank {
		t.Errorf("correct, wrong and blank cells should be styled differently: %d %d %d", correctA, wrongA, blank)
	}
}

func TestWriteWorkbook_NoResults(t *testing.T) {
	exam, _, _ := fixture()
	f := openWorkbook(t, exam, nil, &store.Statistics{PassingScore: 75})

	if got := cell(t, f, SheetScores, "A2"); got != "" {
		t.Errorf("expected no score rows, got %q", got)
	}
	if got := cell(t, f, SheetDetails, "A4"); got != "3" {
		t.Errorf("question rows should still be listed, got %q", got)
	}
}

func TestWriteWorkbook_NilExam(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, nil, nil, nil); err == nil {
		t.Error("expected error for nil exam")
	}
}
