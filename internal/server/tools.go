package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func schema(props map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

var (
	pathProp     = prop("string", "Absolute path to the scanned page (JPEG, PNG, GIF, BMP or TIFF)")
	examIDProp   = prop("string", "Exam ID, e.g. exam_1a2b3c4d")
	resultIDProp = prop("string", "Result ID returned by omr_grade_sheet")
)

// examProps describes the editable exam fields.
func examProps() map[string]interface{} {
	return map[string]interface{}{
		"title":            prop("string", "Exam title (3-200 characters)"),
		"date":             prop("string", "Exam date"),
		"subject":          prop("string", "Subject"),
		"class":            prop("string", "Class name"),
		"total_questions":  map[string]interface{}{"type": "integer", "description": "Questions printed on the sheet", "default": 180},
		"active_questions": prop("integer", "Questions to grade, counted column by column"),
		"answer_key": map[string]interface{}{
			"description": "Answer key",
			"oneOf": []interface{}{
				map[string]interface{}{"type": "string"},
				map[string]interface{}{"type": "object", "additionalProperties": map[string]interface{}{"type": "string"}},
			},
		},
		"scoring": schema(map[string]interface{}{
			"correct":        prop("number", "Points for a correct answer (default 1)"),
			"wrong":          prop("number", "Points for a wrong answer (default 0)"),
			"unanswered":     prop("number", "Points for an unanswered question (default 0)"),
			"multiple_marks": map[string]interface{}{"type": "string", "enum": []string{"wrong", "darkest"}},
		}),
	}
}

func withProp(props map[string]interface{}, name string, p interface{}) map[string]interface{} {
	props[name] = p
	return props
}

// regionProps are the optional corner coordinates of a region. When absent the
// calibrated region is used.
func regionProps(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"x1": prop("integer", "Left edge X coordinate (0-based, inclusive)"),
		"y1": prop("integer", "Top edge Y coordinate (0-based, inclusive)"),
		"x2": prop("integer", "Right edge X coordinate (exclusive)"),
		"y2": prop("integer", "Bottom edge Y coordinate (exclusive)"),
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Calibration
		{
			Name:        "omr_template_status",
			Description: "Report whether the answer region is calibrated, the region itself, the detection backend and the active detection parameters. With template_path, also describe the template image.",
			InputSchema: schema(map[string]interface{}{
				"template_path": prop("string", "Optional path to the blank template image"),
			}),
		},
		{
			Name:        "omr_calibrate_region",
			Description: "Save the answer region (x1,y1)-(x2,y2) in template pixel coordinates. Corners may be given in any order. The template dimensions are recorded so sheets scanned at another resolution are scaled automatically.",
			InputSchema: schema(regionProps(map[string]interface{}{
				"template_path":   prop("string", "Template image the region was drawn on; its dimensions are recorded"),
				"template_width":  prop("integer", "Template width in pixels, when template_path is not given"),
				"template_height": prop("integer", "Template height in pixels, when template_path is not given"),
			}), "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "omr_estimate_region",
			Description: "Estimate the answer region of a page from the standard sheet layout. The estimate is not saved; review it with omr_preview_region and save it with omr_calibrate_region.",
			InputSchema: schema(map[string]interface{}{"path": pathProp}, "path"),
		},
		{
			Name:        "omr_preview_region",
			Description: "Render a region as base64 PNG. mode=overlay draws a coordinate grid and outlines the region on the whole page; mode=crop returns the region alone. Uses the calibrated region unless x1..y2 are given.",
			InputSchema: schema(regionProps(map[string]interface{}{
				"path":             pathProp,
				"mode":             map[string]interface{}{"type": "string", "enum": []string{"overlay", "crop"}, "default": "overlay"},
				"grid_spacing":     map[string]interface{}{"type": "integer", "description": "Grid spacing in pixels (overlay)", "default": 100},
				"show_coordinates": map[string]interface{}{"type": "boolean", "description": "Label grid crossings (overlay)", "default": true},
				"color":            map[string]interface{}{"type": "string", "description": "Grid color as #RRGGBB (overlay)", "default": "#ff0000"},
				"scale":            map[string]interface{}{"type": "number", "description": "Resize factor (crop)", "default": 1.0},
			}), "path"),
		},
		{
			Name:        "omr_detect_bubbles",
			Description: "Run bubble detection on a page without grading it. Reports bubble count, columns and rows grouped by the number of bubbles found. Use this to check the calibration.",
			InputSchema: schema(regionProps(map[string]interface{}{"path": pathProp}), "path"),
		},
		{
			Name:        "omr_analyze_intensity",
			Description: "Measure the mean intensity of filled and empty bubbles on a page and recommend a filled threshold.",
			InputSchema: schema(regionProps(map[string]interface{}{"path": pathProp}), "path"),
		},

		// Exams
		{
			Name:        "omr_create_exam",
			Description: "Create an exam with its answer key. answer_key is either a string of letters A-E, one per question (use - for no key), or an object mapping 1-based question numbers to letters.",
			InputSchema: schema(examProps(), "title", "active_questions", "answer_key"),
		},
		{
			Name:        "omr_list_exams",
			Description: "List all exams, newest first.",
			InputSchema: schema(map[string]interface{}{}),
		},
		{
			Name:        "omr_get_exam",
			Description: "Get one exam including its answer key.",
			InputSchema: schema(map[string]interface{}{"exam_id": examIDProp}, "exam_id"),
		},
		{
			Name:        "omr_update_exam",
			Description: "Change an exam. Only the fields given are replaced; the answer key is replaced as a whole. Existing results keep their scores.",
			InputSchema: schema(withProp(examProps(), "exam_id", examIDProp), "exam_id"),
		},
		{
			Name:        "omr_delete_exam",
			Description: "Delete an exam and all of its results.",
			InputSchema: schema(map[string]interface{}{"exam_id": examIDProp}, "exam_id"),
		},

		// Grading
		{
			Name:        "omr_grade_sheet",
			Description: "Grade a scanned answer sheet against an exam. Saves the result and an annotated image (green = correct, red = wrong, orange = unanswered) and returns the score with per-question details.",
			InputSchema: schema(map[string]interface{}{
				"exam_id":        examIDProp,
				"path":           pathProp,
				"student_name":   prop("string", "Student name"),
				"student_number": prop("string", "Student number"),
			}, "exam_id", "path"),
		},
		{
			Name:        "omr_get_result",
			Description: "Get one graded result.",
			InputSchema: schema(map[string]interface{}{"result_id": resultIDProp}, "result_id"),
		},
		{
			Name:        "omr_list_results",
			Description: "List the results of an exam, newest first, without per-question details.",
			InputSchema: schema(map[string]interface{}{"exam_id": examIDProp}, "exam_id"),
		},
		{
			Name:        "omr_delete_result",
			Description: "Delete one graded result.",
			InputSchema: schema(map[string]interface{}{"result_id": resultIDProp}, "result_id"),
		},
		{
			Name:        "omr_exam_statistics",
			Description: "Summarize the scores of an exam: student count, average, highest, lowest and pass rate.",
			InputSchema: schema(map[string]interface{}{"exam_id": examIDProp}, "exam_id"),
		},
		{
			Name:        "omr_export_results",
			Description: "Export an exam's results to an Excel workbook with Summary, Scores and Details sheets. Returns the file path.",
			InputSchema: schema(map[string]interface{}{
				"exam_id": examIDProp,
				"path":    prop("string", "Optional output path; defaults to the exports directory"),
			}, "exam_id"),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
