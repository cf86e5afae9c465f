// Package server implements the MCP (Model Context Protocol) server for
// grading bubble answer sheets.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0, one message per
// line. Logs go to stderr. Supported methods are initialize, tools/list,
// tools/call and ping.
//
// # Available Tools
//
// Calibration:
//   - omr_template_status: Calibration state, backend and detection parameters
//   - omr_calibrate_region: Save the answer region
//   - omr_estimate_region: Guess the answer region from the sheet layout
//   - omr_preview_region: Grid overlay or crop of a region as PNG
//   - omr_detect_bubbles: Detection report without grading
//   - omr_analyze_intensity: Filled/empty intensity statistics
//
// Exams:
//   - omr_create_exam, omr_list_exams, omr_get_exam, omr_update_exam,
//     omr_delete_exam
//
// Grading:
//   - omr_grade_sheet: Grade a page, save the result and annotated image
//   - omr_get_result, omr_list_results, omr_delete_result
//   - omr_exam_statistics: Average, highest, lowest and pass rate
//   - omr_export_results: Excel workbook of an exam's results
//
// # Calibration
//
// The calibrated region is loaded from the store at start and replaced
// atomically by omr_calibrate_region, so a grading call always sees one
// complete region.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC errors with code -32000 and the Go
// error text in data.
package server
