// Package export writes exam results to an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/store"
)

// Sheet names in the workbook.
const (
	SheetSummary = "Summary"
	SheetScores  = "Scores"
	SheetDetails = "Details"
)

// Fill colors of the Details sheet.
const (
	fillCorrect = "C6EFCE"
	fillWrong   = "FFC7CE"
)

// Grade maps a percentage score to a letter grade.
func Grade(pct float64) string {
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "E"
	}
}

// WriteWorkbook writes an .xlsx workbook for one exam to w. stats may be nil,
// in which case the Summary sheet only describes the exam.
func WriteWorkbook(w io.Writer, exam *store.Exam, results []*store.Result, stats *store.Statistics) error {
	if exam == nil {
		return fmt.Errorf("export: exam is required")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	for _, name := range []string{SheetScores, SheetDetails} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	// Built-in format 2 is "0.00"; percentages are stored unrounded.
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := writeSummary(f, header, percent, exam, stats); err != nil {
		return err
	}
	if err := writeScores(f, header, percent, results); err != nil {
		return err
	}
	if err := writeDetails(f, header, exam, results); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, header, percent int, exam *store.Exam, stats *store.Statistics) error {
	rows := [][]interface{}{
		{"Exam", exam.Title},
		{"Exam ID", exam.ID},
		{"Subject", exam.Subject},
		{"Class", exam.ClassName},
		{"Date", exam.Date},
		{"Questions", exam.ActiveQuestions},
	}
	if stats != nil {
		rows = append(rows,
			[]interface{}{"Students", stats.TotalStudents},
			[]interface{}{"Average", stats.AverageScore},
			[]interface{}{"Highest", stats.HighestScore},
			[]interface{}{"Lowest", stats.LowestScore},
			[]interface{}{"Pass rate", stats.PassRate},
			[]interface{}{"Passing score", stats.PassingScore},
		)
	}

	for i, row := range rows {
		if err := setRow(f, SheetSummary, 1, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), header); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if stats != nil {
		// Average through passing score.
		if err := f.SetCellStyle(SheetSummary, "B8", fmt.Sprintf("B%d", len(rows)), percent); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	return f.SetColWidth(SheetSummary, "A", "A", 16)
}

func writeScores(f *excelize.File, header, percent int, results []*store.Result) error {
	cols := []interface{}{"No", "Student", "Student Number", "Correct", "Wrong", "Blank", "Score", "Grade"}
	if err := setRow(f, SheetScores, 1, 1, cols); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetScores, "A1", "H1", header); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	for i, r := range results {
		s := r.Score
		row := []interface{}{
			i + 1,
			studentLabel(r),
			r.StudentNumber,
			s.Correct,
			s.Wrong + s.Multiple,
			s.Unanswered,
			s.Percentage,
			Grade(s.Percentage),
		}
		if err := setRow(f, SheetScores, 1, i+2, row); err != nil {
			return err
		}
	}
	if len(results) > 0 {
		if err := f.SetCellStyle(SheetScores, "G2", fmt.Sprintf("G%d", len(results)+1), percent); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	return f.SetColWidth(SheetScores, "B", "C", 22)
}

// writeDetails lays out one row per question and one column per student. The
// second column holds the key.
func writeDetails(f *excelize.File, header int, exam *store.Exam, results []*store.Result) error {
	correct, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillCorrect}},
	})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	wrong, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fillWrong}},
	})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	head := []interface{}{"Question", "Key"}
	for _, r := range results {
		head = append(head, studentLabel(r))
	}
	if err := setRow(f, SheetDetails, 1, 1, head); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(head), 1)
	if err := f.SetCellStyle(SheetDetails, "A1", last, header); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	byQuestion := make([]map[int]omr.AnswerDetail, len(results))
	for i, r := range results {
		byQuestion[i] = make(map[int]omr.AnswerDetail, len(r.Details))
		for _, d := range r.Details {
			byQuestion[i][d.QuestionNum] = d
		}
	}

	for q := 0; q < exam.ActiveQuestions; q++ {
		row := q + 2
		key := "?"
		if opt, ok := exam.AnswerKey[q]; ok {
			key = omr.OptionLetter(opt)
		}
		if err := setRow(f, SheetDetails, 1, row, []interface{}{q + 1, key}); err != nil {
			return err
		}

		for i := range results {
			d, ok := byQuestion[i][q+1]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+3, row)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if err := f.SetCellValue(SheetDetails, cell, d.StudentAnswer); err != nil {
				return fmt.Errorf("export: %w", err)
			}

			style := 0
			switch d.Status {
			case omr.StatusCorrect:
				style = correct
			case omr.StatusWrong, omr.StatusMultiple:
				style = wrong
			}
			if style != 0 {
				if err := f.SetCellStyle(SheetDetails, cell, cell, style); err != nil {
					return fmt.Errorf("export: %w", err)
				}
			}
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, col, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

func studentLabel(r *store.Result) string {
	if r.StudentName != "" {
		return r.StudentName
	}
	return r.ID
}
