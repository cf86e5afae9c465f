package server

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/store"
)

// Sheet geometry: two columns of five questions, options 55 px apart,
// rows 60 px apart, bubbles with a 20.5 px outer radius.
const (
	testColumns = 2
	testRows    = 5
	testWidth   = 2*100 + 400 + 4*55
	testHeight  = 2*100 + (testRows-1)*60
)

// writeSheet draws a sheet with marks[q] filled and saves it as PNG.
func writeSheet(t *testing.T, dir string, marks map[int]int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, testWidth, testHeight))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for c := 0; c < testColumns; c++ {
		for r := 0; r < testRows; r++ {
			q := c*testRows + r
			for o := 0; o < 5; o++ {
				opt, marked := marks[q]
				drawBubble(img, 100+c*400+o*55, 100+r*60, marked && opt == o)
			}
		}
	}

	path := filepath.Join(dir, "sheet.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func drawBubble(img *image.Gray, cx, cy int, filled bool) {
	for dy := -21; dy <= 21; dy++ {
		for dx := -21; dx <= 21; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			if d <= 20.5 && (filled || d >= 17.5) {
				img.SetGray(cx+dx, cy+dy, color.Gray{Y: 0})
			}
		}
	}
}

// call runs a tool through handleRequest and decodes its text content into
// out. It returns the JSON-RPC error, if any.
func call(t *testing.T, s *Server, name string, args interface{}, out interface{}) *MCPError {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatal(err)
	}
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}

	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content %v", content)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("failed to decode %s result: %v", name, err)
		}
	}
	return nil
}

func mustCall(t *testing.T, s *Server, name string, args interface{}, out interface{}) {
	t.Helper()
	if e := call(t, s, name, args, out); e != nil {
		t.Fatalf("%s failed: %s: %v", name, e.Message, e.Data)
	}
}

func calibrate(t *testing.T, s *Server, template string) {
	t.Helper()
	mustCall(t, s, "omr_calibrate_region", map[string]interface{}{
		"x1": 40, "y1": 40, "x2": testWidth - 40, "y2": testHeight - 40,
		"template_path": template,
	}, nil)
}

func TestCalibrateRegion(t *testing.T) {
	s, st := newTestServer(t)
	template := writeSheet(t, t.TempDir(), nil)

	var got struct {
		Success bool       `json:"success"`
		Region  omr.Region `json:"region"`
	}
	mustCall(t, s, "omr_calibrate_region", map[string]interface{}{
		"x1": testWidth - 40, "y1": testHeight - 40, "x2": 40, "y2": 40,
		"template_path": template,
	}, &got)

	want := omr.NewRegion(40, 40, testWidth-40, testHeight-40)
	want.TemplateWidth, want.TemplateHeight = testWidth, testHeight
	if !got.Success || got.Region != want {
		t.Errorf("region = %+v, want %+v", got.Region, want)
	}
	if r := s.Region(); r == nil || *r != want {
		t.Errorf("server region = %v", r)
	}
	if r, err := st.LoadRegion(); err != nil || *r != want {
		t.Errorf("stored region = %v, %v", r, err)
	}

	var status templateStatus
	mustCall(t, s, "omr_template_status", map[string]interface{}{"template_path": template}, &status)
	if !status.Calibrated || status.Template == nil || status.Template.Width != testWidth {
		t.Errorf("unexpected status %+v", status)
	}
	if status.Backend != omr.BackendName || status.Cached != 1 {
		t.Errorf("backend = %q, cached = %d", status.Backend, status.Cached)
	}
}

func TestCalibrateRegion_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"degenerate", map[string]interface{}{"x1": 10, "y1": 10, "x2": 10, "y2": 50}},
		{"outside template", map[string]interface{}{"x1": 10, "y1": 10, "x2": 500, "y2": 50, "template_width": 400, "template_height": 300}},
		{"missing template", map[string]interface{}{"x1": 10, "y1": 10, "x2": 50, "y2": 50, "template_path": "/nonexistent/template.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := call(t, s, "omr_calibrate_region", tt.args, nil)
			if e == nil || e.Code != codeToolFailed {
				t.Fatalf("expected tool error, got %+v", e)
			}
		})
	}
	if s.Region() != nil {
		t.Error("failed calibration must not set a region")
	}
}

func TestEstimateRegion(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeSheet(t, t.TempDir(), nil)

	var got struct {
		Region omr.Region `json:"region"`
		Saved  bool       `json:"saved"`
	}
	mustCall(t, s, "omr_estimate_region", map[string]interface{}{"path": path}, &got)
	if got.Region != omr.EstimateRegion(testWidth, testHeight) || got.Saved {
		t.Errorf("unexpected estimate %+v", got)
	}
	if s.Region() != nil {
		t.Error("estimate must not calibrate")
	}
}

func TestPreviewRegion(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeSheet(t, t.TempDir(), nil)

	var overlay struct {
		Width       int    `json:"width"`
		ImageBase64 string `json:"image_base64"`
		GridSpacing int    `json:"grid_spacing"`
	}
	mustCall(t, s, "omr_preview_region", map[string]interface{}{
		"path": path, "x1": 40, "y1": 40, "x2": 200, "y2": 200,
	}, &overlay)
	if overlay.Width != testWidth || overlay.GridSpacing != 100 || overlay.ImageBase64 == "" {
		t.Errorf("unexpected overlay width=%d spacing=%d", overlay.Width, overlay.GridSpacing)
	}

	calibrate(t, s, path)
	var crop struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	mustCall(t, s, "omr_preview_region", map[string]interface{}{"path": path, "mode": "crop", "scale": 0.5}, &crop)
	if crop.Width != (testWidth-80)/2 || crop.Height != (testHeight-80)/2 {
		t.Errorf("crop = %dx%d", crop.Width, crop.Height)
	}

	if e := call(t, s, "omr_preview_region", map[string]interface{}{"path": path, "mode": "zoom"}, nil); e == nil {
		t.Error("expected error for unknown mode")
	}
	if e := call(t, s, "omr_preview_region", map[string]interface{}{"path": path, "x1": 10}, nil); e == nil {
		t.Error("expected error for partial region")
	}
}

func TestDetectAndAnalyze(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeSheet(t, t.TempDir(), map[int]int{0: 0, 1: 1, 2: 2})

	e := call(t, s, "omr_detect_bubbles", map[string]interface{}{"path": path}, nil)
	if e == nil || !strings.Contains(e.Data.(string), "not calibrated") {
		t.Fatalf("expected calibration error, got %+v", e)
	}

	calibrate(t, s, writeSheet(t, t.TempDir(), nil))

	var report omr.DetectionReport
	mustCall(t, s, "omr_detect_bubbles", map[string]interface{}{"path": path}, &report)
	if report.Bubbles != testColumns*testRows*5 || len(report.Columns) != testColumns {
		t.Errorf("bubbles=%d columns=%d", report.Bubbles, len(report.Columns))
	}
	if report.Questions != testColumns*testRows {
		t.Errorf("questions = %d", report.Questions)
	}

	var intensity omr.IntensityReport
	mustCall(t, s, "omr_analyze_intensity", map[string]interface{}{"path": path}, &intensity)
	if intensity.Rows != testColumns*testRows {
		t.Errorf("rows = %d", intensity.Rows)
	}

	if n := s.cache.Len(); n != 1 {
		t.Errorf("cache holds %d images, want only the template", n)
	}
}

func TestParseAnswerKey(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[int]int
		wantErr bool
	}{
		{"letters", `"ABCDE"`, map[int]int{0: 0, 1: 1, 2: 2, 3: 3, 4: 4}, false},
		{"lowercase with gaps", `"a-c, e"`, map[int]int{0: 0, 2: 2, 3: 4}, false},
		{"by number", `{"1":"B","10":"e"}`, map[int]int{0: 1, 9: 4}, false},
		{"bad letter", `"ABF"`, nil, true},
		{"bad number", `{"0":"A"}`, nil, true},
		{"bad option", `{"2":"AB"}`, nil, true},
		{"wrong type", `[1,2]`, nil, true},
		{"missing", ``, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnswerKey(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func createExam(t *testing.T, s *Server, args map[string]interface{}) examView {
	t.Helper()
	var v examView
	mustCall(t, s, "omr_create_exam", args, &v)
	return v
}

func TestExamTools(t *testing.T) {
	s, _ := newTestServer(t)

	v := createExam(t, s, map[string]interface{}{
		"title":            "Biology midterm",
		"subject":          "Biology",
		"class":            "X-1",
		"active_questions": 4,
		"answer_key":       "AB-D",
		"scoring":          map[string]interface{}{"correct": 2, "wrong": -1},
	})
	if v.ID == "" || v.KeyLetters != "AB-D" || v.TotalQuestions != store.MaxQuestions {
		t.Errorf("unexpected exam %+v", v)
	}
	if v.Scoring.Correct != 2 || v.Scoring.MultipleMarks != omr.MultipleAsWrong {
		t.Errorf("scoring = %+v", v.Scoring)
	}

	createExam(t, s, map[string]interface{}{"title": "Chemistry quiz", "active_questions": 1, "answer_key": "C"})

	var list struct {
		Exams []examSummary `json:"exams"`
		Count int           `json:"count"`
	}
	mustCall(t, s, "omr_list_exams", nil, &list)
	if list.Count != 2 {
		t.Errorf("count = %d", list.Count)
	}

	var got examView
	mustCall(t, s, "omr_get_exam", map[string]interface{}{"exam_id": v.ID}, &got)
	if got.Title != "Biology midterm" || got.AnswerKey[3] != 3 {
		t.Errorf("unexpected exam %+v", got)
	}

	mustCall(t, s, "omr_delete_exam", map[string]interface{}{"exam_id": v.ID}, nil)
	e := call(t, s, "omr_get_exam", map[string]interface{}{"exam_id": v.ID}, nil)
	if e == nil || !strings.Contains(e.Data.(string), "not found") {
		t.Errorf("expected not found, got %+v", e)
	}

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"short title", map[string]interface{}{"title": "X", "active_questions": 1, "answer_key": "A"}},
		{"no key", map[string]interface{}{"title": "No key", "active_questions": 1}},
		{"bad policy", map[string]interface{}{"title": "Bad policy", "active_questions": 1, "answer_key": "A", "scoring": map[string]interface{}{"multiple_marks": "first"}}},
		{"no exam id", map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := "omr_create_exam"
			if tt.name == "no exam id" {
				tool = "omr_get_exam"
			}
			if e := call(t, s, tool, tt.args, nil); e == nil || e.Code != codeToolFailed {
				t.Errorf("expected tool error, got %+v", e)
			}
		})
	}
}

func TestUpdateExam(t *testing.T) {
	s, _ := newTestServer(t)
	created := createExam(t, s, map[string]interface{}{
		"title": "Biology midterm", "subject": "Biology", "active_questions": 4, "answer_key": "AB-D",
	})

	var updated examView
	mustCall(t, s, "omr_update_exam", map[string]interface{}{
		"exam_id":          created.ID,
		"title":            "Biology final",
		"active_questions": 3,
		"answer_key":       map[string]string{"3": "C"},
	}, &updated)
	if updated.Title != "Biology final" || updated.Subject != "Biology" || updated.KeyLetters != "--C" {
		t.Errorf("unexpected exam %+v", updated)
	}

	var got examView
	mustCall(t, s, "omr_get_exam", map[string]interface{}{"exam_id": created.ID}, &got)
	if got.ActiveQuestions != 3 || !got.CreatedAt.Equal(created.CreatedAt) || got.KeyLetters != "--C" {
		t.Errorf("stored exam = %+v", got)
	}

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"unknown exam", map[string]interface{}{"exam_id": "exam_ffffffff", "title": "Whatever"}, "not found"},
		{"short title", map[string]interface{}{"exam_id": created.ID, "title": "X"}, "title"},
		{"bad key", map[string]interface{}{"exam_id": created.ID, "answer_key": "AXB"}, "invalid option"},
		{"no exam id", map[string]interface{}{"title": "Whatever"}, "exam_id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := call(t, s, "omr_update_exam", tt.args, nil)
			if e == nil || !strings.Contains(e.Data.(string), tt.want) {
				t.Errorf("expected error containing %q, got %+v", tt.want, e)
			}
		})
	}

	mustCall(t, s, "omr_get_exam", map[string]interface{}{"exam_id": created.ID}, &got)
	if got.Title != "Biology final" {
		t.Errorf("failed update changed the exam: %+v", got)
	}
}

func TestGradeSheet(t *testing.T) {
	s, st := newTestServer(t)
	dir := t.TempDir()

	// Key ABCDEABCDE; question 3 answered E instead of D, question 8 blank.
	marks := map[int]int{0: 0, 1: 1, 2: 2, 3: 4, 4: 4, 5: 0, 6: 1, 7: 2, 9: 4}
	path := writeSheet(t, dir, marks)

	exam := createExam(t, s, map[string]interface{}{
		"title": "Physics final", "active_questions": 10, "answer_key": "ABCDEABCDE",
	})

	if e := call(t, s, "omr_grade_sheet", map[string]interface{}{"exam_id": exam.ID, "path": path}, nil); e == nil ||
		!strings.Contains(e.Data.(string), "not calibrated") {
		t.Fatalf("expected calibration error, got %+v", e)
	}

	calibrate(t, s, path)

	var res gradeResponse
	mustCall(t, s, "omr_grade_sheet", map[string]interface{}{
		"exam_id": exam.ID, "path": path, "student_name": "Dewi", "student_number": "2024-07",
	}, &res)

	if res.Result == nil || res.ID == "" {
		t.Fatal("expected a stored result")
	}
	want := omr.ScoreSummary{Correct: 8, Wrong: 1, Unanswered: 1, Total: 10, Percentage: 80, Points: 8}
	if res.Score != want {
		t.Errorf("score = %+v, want %+v", res.Score, want)
	}
	if res.Answers[3] != 4 || !reflect.DeepEqual(res.Unanswered, []int{8}) || res.Partial {
		t.Errorf("answers=%v unanswered=%v partial=%v", res.Answers, res.Unanswered, res.Partial)
	}
	if res.StudentName != "Dewi" || res.ImagePath != path || res.ScaleFactor != 1 {
		t.Errorf("unexpected result %+v", res.Result)
	}
	if _, err := os.Stat(res.ProcessedImagePath); err != nil {
		t.Errorf("annotated image not saved: %v", err)
	}

	var stored store.Result
	mustCall(t, s, "omr_get_result", map[string]interface{}{"result_id": res.ID}, &stored)
	if stored.Score != want || len(stored.Details) != 10 {
		t.Errorf("stored result mismatch: %+v", stored.Score)
	}

	var list struct {
		Results []resultSummary `json:"results"`
		Count   int             `json:"count"`
	}
	mustCall(t, s, "omr_list_results", map[string]interface{}{"exam_id": exam.ID}, &list)
	if list.Count != 1 || list.Results[0].Grade != "B" {
		t.Errorf("unexpected list %+v", list)
	}

	var stats store.Statistics
	mustCall(t, s, "omr_exam_statistics", map[string]interface{}{"exam_id": exam.ID}, &stats)
	if stats.TotalStudents != 1 || stats.AverageScore != 80 || stats.PassRate != 100 {
		t.Errorf("unexpected statistics %+v", stats)
	}

	var exported struct {
		Path    string `json:"path"`
		Results int    `json:"results"`
	}
	mustCall(t, s, "omr_export_results", map[string]interface{}{"exam_id": exam.ID}, &exported)
	if exported.Results != 1 || filepath.Dir(exported.Path) != st.ExportsDir() {
		t.Errorf("unexpected export %+v", exported)
	}
	wb, err := excelize.OpenFile(exported.Path)
	if err != nil {
		t.Fatalf("failed to open export: %v", err)
	}
	defer wb.Close()
	if v, _ := wb.GetCellValue("Scores", "B2"); v != "Dewi" {
		t.Errorf("Scores!B2 = %q", v)
	}

	mustCall(t, s, "omr_delete_result", map[string]interface{}{"result_id": res.ID}, nil)
	if _, err := st.GetResult(res.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected result deleted, got %v", err)
	}
}

func TestGradeSheet_ExamScoring(t *testing.T) {
	s, _ := newTestServer(t)
	path := writeSheet(t, t.TempDir(), map[int]int{0: 0, 1: 0})
	calibrate(t, s, path)

	exam := createExam(t, s, map[string]interface{}{
		"title": "Penalty quiz", "active_questions": 2, "answer_key": "AB",
		"scoring": map[string]interface{}{"correct": 4, "wrong": -1},
	})

	var res gradeResponse
	mustCall(t, s, "omr_grade_sheet", map[string]interface{}{"exam_id": exam.ID, "path": path}, &res)
	if res.Score.Points != 3 || res.Score.Correct != 1 || res.Score.Wrong != 1 {
		t.Errorf("score = %+v", res.Score)
	}
}

func TestGradeSheet_ConfiguredScoring(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	policy := omr.ScoringPolicy{Correct: 2, Wrong: -1, MultipleMarks: omr.MultipleDarkest}
	g, err := omr.NewGrader(omr.WithScoringPolicy(policy))
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(st, g)
	if err != nil {
		t.Fatal(err)
	}

	path := writeSheet(t, t.TempDir(), map[int]int{0: 0})
	calibrate(t, s, path)

	exam := createExam(t, s, map[string]interface{}{
		"title": "Configured policy", "active_questions": 2, "answer_key": "AC",
	})
	if exam.Scoring != policy {
		t.Errorf("exam scoring = %+v, want %+v", exam.Scoring, policy)
	}

	var res gradeResponse
	mustCall(t, s, "omr_grade_sheet", map[string]interface{}{"exam_id": exam.ID, "path": path}, &res)
	if res.Score.Points != 2 || res.Score.Correct != 1 || res.Score.Unanswered != 1 {
		t.Errorf("score = %+v", res.Score)
	}
}

func TestGradeSheet_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()
	path := writeSheet(t, dir, nil)
	calibrate(t, s, path)
	exam := createExam(t, s, map[string]interface{}{"title": "Errors", "active_questions": 1, "answer_key": "A"})

	blank := filepath.Join(dir, "blank.png")
	f, _ := os.Create(blank)
	png.Encode(f, image.NewGray(image.Rect(0, 0, testWidth, testHeight)))
	f.Close()

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"unknown exam", map[string]interface{}{"exam_id": "exam_ffffffff", "path": path}, "not found"},
		{"missing path", map[string]interface{}{"exam_id": exam.ID}, "path is required"},
		{"unreadable image", map[string]interface{}{"exam_id": exam.ID, "path": filepath.Join(dir, "none.png")}, "cannot read image"},
		{"no bubbles", map[string]interface{}{"exam_id": exam.ID, "path": blank}, "no bubbles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := call(t, s, "omr_grade_sheet", tt.args, nil)
			if e == nil || e.Code != codeToolFailed || !strings.Contains(e.Data.(string), tt.want) {
				t.Errorf("expected error containing %q, got %+v", tt.want, e)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`[]`)})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("expected invalid params, got %+v", resp)
	}

	if e := call(t, s, "image_crop", map[string]interface{}{}, nil); e == nil || !strings.Contains(e.Data.(string), "unknown tool") {
		t.Errorf("expected unknown tool error, got %+v", e)
	}
	if e := call(t, s, "omr_get_exam", "exam_1", nil); e == nil || !strings.Contains(e.Data.(string), "invalid arguments") {
		t.Errorf("expected invalid arguments error, got %+v", e)
	}
}
