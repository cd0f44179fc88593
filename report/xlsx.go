package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/legalrisk/extractor"
	"github.com/brunobiangulo/legalrisk/retrieval"
)

// Sheet names of the exported workbook.
const (
	SheetSummary   = "Summary"
	SheetFindings  = "Findings"
	SheetClauses   = "Clauses"
	SheetCitations = "Citations"
)

// Input is everything the spreadsheet export shows about one analysis.
type Input struct {
	RunID            string
	DocumentPath     string
	Report           *extractor.DocumentReport
	Clauses          []retrieval.Clause
	Analysis         *Analysis
	Citations        []Citation
	RetrievalWarning string
}

// WriteXLSX renders in as an .xlsx workbook.
func WriteXLSX(w io.Writer, in Input) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("report: creating style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("report: creating style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	for _, name := range []string{SheetFindings, SheetClauses, SheetCitations} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("report: adding sheet %s: %w", name, err)
		}
	}

	sw := sheetWriter{f: f, bold: bold, wrap: wrap}
	sw.summary(in)
	sw.findings(in.Analysis)
	sw.clauses(in.Clauses, in.Citations)
	sw.citations(in.Citations)
	if sw.err != nil {
		return fmt.Errorf("report: writing workbook: %w", sw.err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: writing workbook: %w", err)
	}
	return nil
}

// sheetWriter keeps the first error so the sheet builders stay linear.
type sheetWriter struct {
	f    *excelize.File
	bold int
	wrap int
	err  error
}

func (s *sheetWriter) row(sheet string, r int, values ...any) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetSheetRow(sheet, cell, &values)
}

func (s *sheetWriter) header(sheet string, widths []float64, titles ...any) {
	s.row(sheet, 1, titles...)
	if s.err != nil {
		return
	}
	last, _ := excelize.CoordinatesToCellName(len(titles), 1)
	s.err = s.f.SetCellStyle(sheet, "A1", last, s.bold)
	for i, wd := range widths {
		if s.err != nil {
			return
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		s.err = s.f.SetColWidth(sheet, col, col, wd)
	}
}

func (s *sheetWriter) wrapColumn(sheet, col string, rows int) {
	if s.err != nil || rows < 2 {
		return
	}
	s.err = s.f.SetCellStyle(sheet, col+"2", fmt.Sprintf("%s%d", col, rows), s.wrap)
}

func (s *sheetWriter) summary(in Input) {
	s.header(SheetSummary, []float64{22, 100}, "Field", "Value")
	rows := [][2]string{
		{"Run ID", in.RunID},
		{"Document", in.DocumentPath},
	}
	if r := in.Report; r != nil {
		rows = append(rows,
			[2]string{"Purpose", r.Purpose},
			[2]string{"Date", deref(r.Date)},
			[2]string{"Location", Location(r)},
			[2]string{"Parties", partiesText(r.Parties)},
			[2]string{"Important clauses", strings.Join(r.ImportantClauses, "\n")},
		)
	}
	if in.Analysis != nil {
		rows = append(rows, [2]string{"Executive summary", in.Analysis.ExecutiveSummary})
	}
	rows = append(rows, [2]string{"Retrieved clauses", fmt.Sprint(len(in.Clauses))})
	if in.RetrievalWarning != "" {
		rows = append(rows, [2]string{"Retrieval warning", in.RetrievalWarning})
	}
	for i, r := range rows {
		s.row(SheetSummary, i+2, r[0], r[1])
	}
	s.wrapColumn(SheetSummary, "B", len(rows)+1)
}

func (s *sheetWriter) findings(a *Analysis) {
	s.header(SheetFindings, []float64{18, 100}, "Category", "Finding")
	if a == nil {
		return
	}
	items := a.Findings()
	for i, it := range items {
		s.row(SheetFindings, i+2, it.Category, it.Text)
	}
	s.wrapColumn(SheetFindings, "B", len(items)+1)
}

func (s *sheetWriter) clauses(clauses []retrieval.Clause, cites []Citation) {
	s.header(SheetClauses, []float64{6, 30, 8, 10, 100, 8}, "#", "Source", "Score", "ID", "Text", "Cited")
	cited := make(map[int]bool)
	for _, c := range cites {
		if c.Verified {
			cited[c.ClauseIndex] = true
		}
	}
	for i, c := range clauses {
		var score any = ""
		if c.Score != nil {
			score = *c.Score
		}
		s.row(SheetClauses, i+2, i+1, c.Source, score, c.ID, c.Text, yesNo(cited[i]))
	}
	s.wrapColumn(SheetClauses, "E", len(clauses)+1)
}

func (s *sheetWriter) citations(cites []Citation) {
	s.header(SheetCitations, []float64{30, 14, 12, 10, 10, 80}, "Reference", "Kind", "Target", "Clause #", "Verified", "Passage")
	for i, c := range cites {
		var idx any = ""
		if c.ClauseIndex >= 0 {
			idx = c.ClauseIndex + 1
		}
		s.row(SheetCitations, i+2, c.Text, c.Kind, c.Target, idx, yesNo(c.Verified), c.Passage)
	}
	s.wrapColumn(SheetCitations, "F", len(cites)+1)
}

// Location joins the known city, state and country of a report.
func Location(r *extractor.DocumentReport) string {
	var parts []string
	for _, p := range []*string{r.City, r.State, r.Country} {
		if v := deref(p); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func partiesText(parties []extractor.Party) string {
	lines := make([]string, len(parties))
	for i, p := range parties {
		if p.Role != "" {
			lines[i] = p.Name + " (" + p.Role + ")"
		} else {
			lines[i] = p.Name
		}
	}
	return strings.Join(lines, "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
