// Package report renders a planning session as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-mapper/internal/curriculum"
)

// SummarySheet is the name of the first worksheet.
const SummarySheet = "Summary"

const maxSheetName = 31

var (
	summaryHeader = []any{"Source", "Objectives", "Whole topics", "Minutes"}
	sourceHeader  = []any{"Topic", "Subtopic", "Code", "Objective", "Minutes"}
)

// Plan is the content of an exported workbook.
type Plan struct {
	Index       *curriculum.Index
	Selection   curriculum.Selection
	WholeTopics []string
	Estimate    curriculum.Estimate
}

// WritePlan writes the plan as an xlsx workbook: a Summary sheet with the
// per-source totals followed by one sheet per source listing what is counted.
func WritePlan(w io.Writer, plan Plan) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("renaming summary sheet: %w", err)
	}
	if err := writeSummary(f, plan.Estimate, bold); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(SummarySheet): true}
	for _, src := range plan.Estimate.Sources {
		name := sheetName(src.SourceID, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet for %s: %w", src.SourceID, err)
		}
		if err := writeSource(f, name, src.SourceID, plan, bold); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, est curriculum.Estimate, header int) error {
	rows := [][]any{summaryHeader}
	var objectives, wholeTopics int
	for _, src := range est.Sources {
		rows = append(rows, []any{src.SourceID, src.Objectives, src.WholeTopics, src.Minutes})
		objectives += src.Objectives
		wholeTopics += src.WholeTopics
	}
	rows = append(rows,
		[]any{"Total", objectives, wholeTopics, est.TotalMinutes},
		[]any{"Total hours", est.TotalHours},
	)

	if err := setRows(f, SummarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "D1", header); err != nil {
		return fmt.Errorf("styling summary header: %w", err)
	}
	first := fmt.Sprintf("A%d", len(rows)-1)
	if err := f.SetCellStyle(SummarySheet, first, fmt.Sprintf("D%d", len(rows)), header); err != nil {
		return fmt.Errorf("styling summary total: %w", err)
	}
	return f.SetColWidth(SummarySheet, "A", "A", 24)
}

func writeSource(f *excelize.File, sheet, sourceID string, plan Plan, header int) error {
	idx := plan.Index
	rows := [][]any{sourceHeader}

	for _, topicID := range idx.TopicsOf(sourceID) {
		topic, _ := idx.Topic(topicID)
		if slices.Contains(plan.WholeTopics, topicID) {
			rows = append(rows, []any{topic.Name, "(whole topic)", topic.SpecificationCode, "", topic.DurationMinutes.Value()})
			continue
		}
		for _, subID := range idx.SubtopicsOf(topicID) {
			sub, _ := idx.Subtopic(subID)
			for _, leafID := range idx.SubtopicLeaves(subID) {
				if !plan.Selection.Has(leafID) {
					continue
				}
				o, _ := idx.Objective(leafID)
				rows = append(rows, []any{topic.Name, sub.Name, o.Code, o.Statement, o.EstimatedTeachingMinutes.Value()})
			}
		}
	}

	if err := setRows(f, sheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "E1", header); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", "B", 28); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "D", "D", 60)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// sheetName turns a source id into a worksheet name Excel accepts and that
// no earlier sheet uses. Names compare case-insensitively.
func sheetName(sourceID string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, sourceID)
	base = strings.Trim(base, "'")
	if base == "" {
		base = "Source"
	}
	base = truncate(base, maxSheetName)

	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
