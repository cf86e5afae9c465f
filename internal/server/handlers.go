package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/omr-grader/internal/export"
	"github.com/ironsheep/omr-grader/internal/imaging"
	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/store"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("tool failed")
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	s.log.Debug().Str("tool", params.Name).Dur("elapsed", time.Since(start)).Msg("tool done")

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Calibration
	case "omr_template_status":
		return s.handleTemplateStatus(args)
	case "omr_calibrate_region":
		return s.handleCalibrateRegion(args)
	case "omr_estimate_region":
		return s.handleEstimateRegion(args)
	case "omr_preview_region":
		return s.handlePreviewRegion(args)
	case "omr_detect_bubbles":
		return s.handleDetectBubbles(args)
	case "omr_analyze_intensity":
		return s.handleAnalyzeIntensity(args)

	// Exams
	case "omr_create_exam":
		return s.handleCreateExam(args)
	case "omr_list_exams":
		return s.handleListExams(args)
	case "omr_get_exam":
		return s.handleGetExam(args)
	case "omr_update_exam":
		return s.handleUpdateExam(args)
	case "omr_delete_exam":
		return s.handleDeleteExam(args)

	// Grading
	case "omr_grade_sheet":
		return s.handleGradeSheet(args)
	case "omr_get_result":
		return s.handleGetResult(args)
	case "omr_list_results":
		return s.handleListResults(args)
	case "omr_delete_result":
		return s.handleDeleteResult(args)
	case "omr_exam_statistics":
		return s.handleExamStatistics(args)
	case "omr_export_results":
		return s.handleExportResults(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// === Calibration Handlers ===

// regionArgs are optional explicit region corners.
type regionArgs struct {
	X1 *int `json:"x1"`
	Y1 *int `json:"y1"`
	X2 *int `json:"x2"`
	Y2 *int `json:"y2"`
}

// explicit returns the region given in the arguments, or nil when none of
// the corners are set.
func (a regionArgs) explicit() (*omr.Region, error) {
	set := 0
	for _, v := range []*int{a.X1, a.Y1, a.X2, a.Y2} {
		if v != nil {
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case 4:
		r := omr.NewRegion(*a.X1, *a.Y1, *a.X2, *a.Y2)
		if err := r.Validate(); err != nil {
			return nil, err
		}
		return &r, nil
	default:
		return nil, fmt.Errorf("%w: give all of x1, y1, x2, y2 or none", omr.ErrInvalidRegion)
	}
}

// resolveRegion returns the explicit region of a, or the calibrated one.
func (s *Server) resolveRegion(a regionArgs) (*omr.Region, error) {
	r, err := a.explicit()
	if err != nil || r != nil {
		return r, err
	}
	if r = s.Region(); r == nil {
		return nil, fmt.Errorf("%w: answer region not calibrated, use omr_calibrate_region", omr.ErrConfigMissing)
	}
	return r, nil
}

type templateStatusArgs struct {
	TemplatePath string `json:"template_path"`
}

type templateStatus struct {
	Calibrated bool               `json:"calibrated"`
	Region     *omr.Region        `json:"region,omitempty"`
	Backend    string             `json:"backend"`
	Params     omr.Params         `json:"params"`
	DataDir    string             `json:"data_dir"`
	Template   *imaging.ImageInfo `json:"template,omitempty"`
	Cached     int                `json:"cached_templates"`
}

func (s *Server) handleTemplateStatus(args json.RawMessage) (interface{}, error) {
	var a templateStatusArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	r := s.Region()
	st := &templateStatus{
		Calibrated: r != nil,
		Region:     r,
		Backend:    omr.BackendName,
		Params:     s.grader.Params(),
		DataDir:    s.store.Root(),
	}
	if a.TemplatePath != "" {
		info, err := imaging.LoadImageInfo(s.cache, a.TemplatePath)
		if err != nil {
			return nil, err
		}
		st.Template = info
	}
	st.Cached = s.cache.Len()
	return st, nil
}

type calibrateArgs struct {
	X1             int    `json:"x1"`
	Y1             int    `json:"y1"`
	X2             int    `json:"x2"`
	Y2             int    `json:"y2"`
	TemplatePath   string `json:"template_path"`
	TemplateWidth  int    `json:"template_width"`
	TemplateHeight int    `json:"template_height"`
}

func (s *Server) handleCalibrateRegion(args json.RawMessage) (interface{}, error) {
	var a calibrateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	r := omr.NewRegion(a.X1, a.Y1, a.X2, a.Y2)
	r.TemplateWidth, r.TemplateHeight = a.TemplateWidth, a.TemplateHeight
	if a.TemplatePath != "" {
		dims, err := imaging.GetDimensions(s.cache, a.TemplatePath)
		if err != nil {
			return nil, err
		}
		r.TemplateWidth, r.TemplateHeight = dims.Width, dims.Height
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.TemplateWidth > 0 && r.TemplateHeight > 0 {
		if err := r.Within(image.Rect(0, 0, r.TemplateWidth, r.TemplateHeight)); err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveRegion(r); err != nil {
		return nil, err
	}
	s.region.Store(&r)
	s.log.Info().
		Int("x1", r.X1).Int("y1", r.Y1).Int("x2", r.X2).Int("y2", r.Y2).
		Int("template_width", r.TemplateWidth).Int("template_height", r.TemplateHeight).
		Msg("region calibrated")

	return map[string]interface{}{
		"success": true,
		"region":  r,
	}, nil
}

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleEstimateRegion(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("path", a.Path); err != nil {
		return nil, err
	}

	dims, err := imaging.GetDimensions(s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"region": omr.EstimateRegion(dims.Width, dims.Height),
		"saved":  false,
	}, nil
}

type previewArgs struct {
	regionArgs
	Path            string  `json:"path"`
	Mode            string  `json:"mode"`
	GridSpacing     int     `json:"grid_spacing"`
	ShowCoordinates *bool   `json:"show_coordinates"`
	Color           string  `json:"color"`
	Scale           float64 `json:"scale"`
}

func (s *Server) handlePreviewRegion(args json.RawMessage) (interface{}, error) {
	var a previewArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("path", a.Path); err != nil {
		return nil, err
	}

	region, err := s.resolveRegion(a.regionArgs)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	r, _ := region.ScaleTo(img.Bounds())

	switch a.Mode {
	case "", "overlay":
		if a.GridSpacing == 0 {
			a.GridSpacing = 100
		}
		show := a.ShowCoordinates == nil || *a.ShowCoordinates
		return imaging.RegionOverlay(img, r, a.GridSpacing, show, a.Color)
	case "crop":
		if a.Scale == 0 {
			a.Scale = 1.0
		}
		return imaging.CropRegion(img, r, a.Scale)
	default:
		return nil, fmt.Errorf("unknown preview mode: %s", a.Mode)
	}
}

type pageArgs struct {
	regionArgs
	Path string `json:"path"`
}

// loadPage decodes the scanned page named in args, bypassing the template
// cache, and resolves the region to use.
func (s *Server) loadPage(args json.RawMessage) (image.Image, *omr.Region, error) {
	var a pageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, nil, err
	}
	if err := required("path", a.Path); err != nil {
		return nil, nil, err
	}
	region, err := s.resolveRegion(a.regionArgs)
	if err != nil {
		return nil, nil, err
	}
	img, err := omr.LoadImage(a.Path)
	if err != nil {
		return nil, nil, err
	}
	return img, region, nil
}

func (s *Server) handleDetectBubbles(args json.RawMessage) (interface{}, error) {
	img, region, err := s.loadPage(args)
	if err != nil {
		return nil, err
	}
	return s.grader.Detect(img, region)
}

func (s *Server) handleAnalyzeIntensity(args json.RawMessage) (interface{}, error) {
	img, region, err := s.loadPage(args)
	if err != nil {
		return nil, err
	}
	return s.grader.Analyze(img, region)
}

// === Exam Handlers ===

type createExamArgs struct {
	Title           string             `json:"title"`
	Date            string             `json:"date"`
	Subject         string             `json:"subject"`
	ClassName       string             `json:"class"`
	TotalQuestions  int                `json:"total_questions"`
	ActiveQuestions int                `json:"active_questions"`
	AnswerKey       json.RawMessage    `json:"answer_key"`
	Scoring         *omr.ScoringPolicy `json:"scoring"`
}

func (s *Server) handleCreateExam(args json.RawMessage) (interface{}, error) {
	var a createExamArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	key, err := parseAnswerKey(a.AnswerKey)
	if err != nil {
		return nil, err
	}
	e := &store.Exam{
		Title:           a.Title,
		Date:            a.Date,
		Subject:         a.Subject,
		ClassName:       a.ClassName,
		TotalQuestions:  a.TotalQuestions,
		ActiveQuestions: a.ActiveQuestions,
		AnswerKey:       key,
	}
	// Exams without their own scoring take the configured policy.
	e.Scoring = s.grader.Policy()
	if a.Scoring != nil {
		e.Scoring = *a.Scoring
	}
	if err := s.store.CreateExam(e); err != nil {
		return nil, err
	}

	s.log.Info().Str("exam_id", e.ID).Str("title", e.Title).Int("active_questions", e.ActiveQuestions).Msg("exam created")
	return newExamView(e), nil
}

// parseAnswerKey accepts a string of option letters, one per question, or an
// object of 1-based question numbers to letters. In the string form '-', '?'
// and '.' leave a question without a key and spaces and commas are ignored.
// The returned key is indexed from zero.
func parseAnswerKey(raw json.RawMessage) (map[int]int, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("answer_key is required")
	}

	key := make(map[int]int)

	var letters string
	if err := json.Unmarshal(raw, &letters); err == nil {
		q := 0
		for _, ch := range strings.ToUpper(letters) {
			switch {
			case ch == ' ' || ch == ',':
				continue
			case ch == '-' || ch == '?' || ch == '.':
			case ch >= 'A' && ch <= 'E':
				key[q] = int(ch - 'A')
			default:
				return nil, fmt.Errorf("answer_key: invalid option %q for question %d", ch, q+1)
			}
			q++
		}
		return key, nil
	}

	var byNumber map[string]string
	if err := json.Unmarshal(raw, &byNumber); err != nil {
		return nil, errors.New("answer_key must be a string of letters or an object of question numbers to letters")
	}
	for num, letter := range byNumber {
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("answer_key: invalid question number %q", num)
		}
		opt, err := optionIndex(letter)
		if err != nil {
			return nil, fmt.Errorf("answer_key: question %d: %w", n, err)
		}
		key[n-1] = opt
	}
	return key, nil
}

func optionIndex(letter string) (int, error) {
	l := strings.ToUpper(strings.TrimSpace(letter))
	if len(l) != 1 || l[0] < 'A' || l[0] > 'E' {
		return 0, fmt.Errorf("invalid option %q", letter)
	}
	return int(l[0] - 'A'), nil
}

// examView is an exam with its key also spelled as letters.
type examView struct {
	*store.Exam
	KeyLetters string `json:"key_letters"`
}

func newExamView(e *store.Exam) examView {
	var b strings.Builder
	for q := 0; q < e.ActiveQuestions; q++ {
		if opt, ok := e.AnswerKey[q]; ok {
			b.WriteString(omr.OptionLetter(opt))
		} else {
			b.WriteByte('-')
		}
	}
	return examView{Exam: e, KeyLetters: b.String()}
}

type examSummary struct {
	ID              string    `json:"exam_id"`
	Title           string    `json:"title"`
	Date            string    `json:"date"`
	Subject         string    `json:"subject"`
	ClassName       string    `json:"class"`
	ActiveQuestions int       `json:"active_questions"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *Server) handleListExams(args json.RawMessage) (interface{}, error) {
	exams, err := s.store.ListExams()
	if err != nil {
		return nil, err
	}
	out := make([]examSummary, len(exams))
	for i, e := range exams {
		out[i] = examSummary{
			ID:              e.ID,
			Title:           e.Title,
			Date:            e.Date,
			Subject:         e.Subject,
			ClassName:       e.ClassName,
			ActiveQuestions: e.ActiveQuestions,
			CreatedAt:       e.CreatedAt,
		}
	}
	return map[string]interface{}{
		"exams": out,
		"count": len(out),
	}, nil
}

type examIDArgs struct {
	ExamID string `json:"exam_id"`
}

func (s *Server) examArg(args json.RawMessage) (string, error) {
	var a examIDArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	return a.ExamID, required("exam_id", a.ExamID)
}

func (s *Server) handleGetExam(args json.RawMessage) (interface{}, error) {
	id, err := s.examArg(args)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetExam(id)
	if err != nil {
		return nil, err
	}
	return newExamView(e), nil
}

type updateExamArgs struct {
	ExamID          string             `json:"exam_id"`
	Title           *string            `json:"title"`
	Date            *string            `json:"date"`
	Subject         *string            `json:"subject"`
	ClassName       *string            `json:"class"`
	TotalQuestions  *int               `json:"total_questions"`
	ActiveQuestions *int               `json:"active_questions"`
	AnswerKey       json.RawMessage    `json:"answer_key"`
	Scoring         *omr.ScoringPolicy `json:"scoring"`
}

func (s *Server) handleUpdateExam(args json.RawMessage) (interface{}, error) {
	var a updateExamArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("exam_id", a.ExamID); err != nil {
		return nil, err
	}

	e, err := s.store.GetExam(a.ExamID)
	if err != nil {
		return nil, err
	}
	if a.Title != nil {
		e.Title = *a.Title
	}
	if a.Date != nil {
		e.Date = *a.Date
	}
	if a.Subject != nil {
		e.Subject = *a.Subject
	}
	if a.ClassName != nil {
		e.ClassName = *a.ClassName
	}
	if a.TotalQuestions != nil {
		e.TotalQuestions = *a.TotalQuestions
	}
	if a.ActiveQuestions != nil {
		e.ActiveQuestions = *a.ActiveQuestions
	}
	if len(a.AnswerKey) > 0 && string(a.AnswerKey) != "null" {
		if e.AnswerKey, err = parseAnswerKey(a.AnswerKey); err != nil {
			return nil, err
		}
	}
	if a.Scoring != nil {
		e.Scoring = *a.Scoring
	}

	if err := s.store.UpdateExam(e); err != nil {
		return nil, err
	}
	s.log.Info().Str("exam_id", e.ID).Msg("exam updated")
	return newExamView(e), nil
}

func (s *Server) handleDeleteExam(args json.RawMessage) (interface{}, error) {
	id, err := s.examArg(args)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteExam(id); err != nil {
		return nil, err
	}
	s.log.Info().Str("exam_id", id).Msg("exam deleted")
	return map[string]interface{}{"success": true, "exam_id": id}, nil
}

// === Grading Handlers ===

type gradeArgs struct {
	ExamID        string `json:"exam_id"`
	Path          string `json:"path"`
	StudentName   string `json:"student_name"`
	StudentNumber string `json:"student_number"`
}

// gradeResponse is the stored result plus the diagnostics of this run.
type gradeResponse struct {
	*store.Result
	ScaleFactor float64 `json:"scale_factor"`
	Backend     string  `json:"backend"`
	RenderError string  `json:"render_error,omitempty"`
}

func (s *Server) handleGradeSheet(args json.RawMessage) (interface{}, error) {
	var a gradeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("exam_id", a.ExamID); err != nil {
		return nil, err
	}
	if err := required("path", a.Path); err != nil {
		return nil, err
	}

	region := s.Region()
	if region == nil {
		return nil, fmt.Errorf("%w: answer region not calibrated, use omr_calibrate_region", omr.ErrConfigMissing)
	}
	exam, err := s.store.GetExam(a.ExamID)
	if err != nil {
		return nil, err
	}
	g, err := s.examGrader(exam)
	if err != nil {
		return nil, err
	}

	img, err := omr.LoadImage(a.Path)
	if err != nil {
		return nil, err
	}
	res, err := g.Grade(img, region, exam.Key(), exam.ActiveQuestions)
	if err != nil {
		if omr.IsDetectionFailure(err) {
			s.log.Warn().Err(err).Str("path", a.Path).Msg("sheet could not be read")
		}
		return nil, err
	}

	r := store.NewResult(exam.ID, res)
	r.StudentName = a.StudentName
	r.StudentNumber = a.StudentNumber
	r.ImagePath = a.Path
	if err := s.store.SaveResult(r, res.MarkedImage); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("result_id", r.ID).
		Str("exam_id", exam.ID).
		Float64("percentage", r.Score.Percentage).
		Bool("partial", r.Partial).
		Msg("sheet graded")

	return &gradeResponse{
		Result:      r,
		ScaleFactor: res.ScaleFactor,
		Backend:     res.Backend,
		RenderError: res.RenderError,
	}, nil
}

// examGrader returns a grader with the server's detection parameters and the
// exam's scoring policy.
func (s *Server) examGrader(e *store.Exam) (*omr.Grader, error) {
	if e.Scoring == s.grader.Policy() {
		return s.grader, nil
	}
	return omr.NewGrader(
		omr.WithParams(s.grader.Params()),
		omr.WithScoringPolicy(e.Scoring),
		omr.WithLogger(s.log),
	)
}

type resultIDArgs struct {
	ResultID string `json:"result_id"`
}

func (s *Server) resultArg(args json.RawMessage) (string, error) {
	var a resultIDArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	return a.ResultID, required("result_id", a.ResultID)
}

func (s *Server) handleGetResult(args json.RawMessage) (interface{}, error) {
	id, err := s.resultArg(args)
	if err != nil {
		return nil, err
	}
	return s.store.GetResult(id)
}

type resultSummary struct {
	ID            string           `json:"result_id"`
	StudentName   string           `json:"student_name,omitempty"`
	StudentNumber string           `json:"student_number,omitempty"`
	Score         omr.ScoreSummary `json:"score"`
	Grade         string           `json:"grade"`
	Partial       bool             `json:"partial"`
	ProcessedAt   time.Time        `json:"processed_at"`
}

func (s *Server) handleListResults(args json.RawMessage) (interface{}, error) {
	id, err := s.examArg(args)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetExam(id); err != nil {
		return nil, err
	}
	results, err := s.store.ListResults(id)
	if err != nil {
		return nil, err
	}

	out := make([]resultSummary, len(results))
	for i, r := range results {
		out[i] = resultSummary{
			ID:            r.ID,
			StudentName:   r.StudentName,
			StudentNumber: r.StudentNumber,
			Score:         r.Score,
			Grade:         export.Grade(r.Score.Percentage),
			Partial:       r.Partial,
			ProcessedAt:   r.ProcessedAt,
		}
	}
	return map[string]interface{}{
		"exam_id": id,
		"results": out,
		"count":   len(out),
	}, nil
}

func (s *Server) handleDeleteResult(args json.RawMessage) (interface{}, error) {
	id, err := s.resultArg(args)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteResult(id); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "result_id": id}, nil
}

func (s *Server) handleExamStatistics(args json.RawMessage) (interface{}, error) {
	id, err := s.examArg(args)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetExam(id); err != nil {
		return nil, err
	}
	return s.store.Statistics(id)
}

type exportArgs struct {
	ExamID string `json:"exam_id"`
	Path   string `json:"path"`
}

func (s *Server) handleExportResults(args json.RawMessage) (interface{}, error) {
	var a exportArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("exam_id", a.ExamID); err != nil {
		return nil, err
	}

	exam, err := s.store.GetExam(a.ExamID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResults(exam.ID)
	if err != nil {
		return nil, err
	}
	// Oldest first.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ProcessedAt.Before(results[j].ProcessedAt)
	})
	stats, err := s.store.Statistics(exam.ID)
	if err != nil {
		return nil, err
	}

	path := a.Path
	if path == "" {
		name := fmt.Sprintf("%s_%s.xlsx", exam.ID, time.Now().Format("20060102_150405"))
		path = filepath.Join(s.store.ExportsDir(), name)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	if err := export.WriteWorkbook(f, exam, results, stats); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}

	s.log.Info().Str("exam_id", exam.ID).Str("path", path).Int("results", len(results)).Msg("results exported")
	return map[string]interface{}{
		"success": true,
		"path":    path,
		"results": len(results),
	}, nil
}
