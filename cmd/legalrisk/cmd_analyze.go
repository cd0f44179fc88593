package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/legalrisk"
	"github.com/brunobiangulo/legalrisk/report"
)

var analyzeFlags struct {
	jsonOut  bool
	xlsxPath string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a legal document (.txt, .pdf, .docx)",
	Long: `Analyze runs extraction, statute retrieval and risk synthesis on one
document and prints the result.

Usage:
  legalrisk analyze lease.pdf
  legalrisk analyze lease.pdf --json > run.json
  legalrisk analyze lease.pdf --xlsx lease-risk.xlsx

Statutes must have been ingested first (legalrisk ingest). With an empty
index the analysis still runs, without supporting clauses.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.BoolVar(&analyzeFlags.jsonOut, "json", false, "Print the full pipeline state as JSON")
	f.StringVar(&analyzeFlags.xlsxPath, "xlsx", "", "Also write a spreadsheet report to this path")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	st, err := engine.Analyze(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if analyzeFlags.xlsxPath != "" {
		if err := writeXLSXFile(analyzeFlags.xlsxPath, st); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if analyzeFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(newAnalysisResponse(st, ""))
	}
	printAnalysis(out, st)
	if analyzeFlags.xlsxPath != "" {
		fmt.Fprintf(out, "\nSpreadsheet written to %s\n", analyzeFlags.xlsxPath)
	}
	return nil
}

func writeXLSXFile(path string, st *legalrisk.State) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := report.WriteXLSX(f, reportInput(st)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printAnalysis(w io.Writer, st *legalrisk.State) {
	r := st.DocumentReport
	fmt.Fprintf(w, "Document: %s\n", st.DocumentPath)
	fmt.Fprintf(w, "Run:      %s\n\n", st.RunID)

	if r != nil {
		fmt.Fprintf(w, "Purpose:  %s\n", r.Purpose)
		for _, p := range r.Parties {
			fmt.Fprintf(w, "Party:    %s (%s)\n", p.Name, p.Role)
		}
		if loc := report.Location(r); loc != "" {
			fmt.Fprintf(w, "Location: %s\n", loc)
		}
		if r.Date != nil {
			fmt.Fprintf(w, "Date:     %s\n", *r.Date)
		}
		fmt.Fprintf(w, "Clauses:  %d extracted\n", len(r.ImportantClauses))
	}

	fmt.Fprintf(w, "\nRetrieved %d statute clauses\n", len(st.RetrievedLaws))
	if st.RetrievalWarning != nil {
		fmt.Fprintf(w, "Warning: %v\n", st.RetrievalWarning)
	}
	for i, c := range st.RetrievedLaws {
		fmt.Fprintf(w, "  [%d] %s: %s\n", i+1, c.Source, truncate(c.Text, 100))
	}

	a := report.Parse(st.LegalAnalysis)
	fmt.Fprintln(w)
	if !a.Structured {
		fmt.Fprintln(w, st.LegalAnalysis)
		return
	}
	if a.ExecutiveSummary != "" {
		fmt.Fprintf(w, "Summary\n  %s\n", a.ExecutiveSummary)
	}
	category := ""
	for _, f := range a.Findings() {
		if f.Category != category {
			category = f.Category
			fmt.Fprintf(w, "\n%s\n", category)
		}
		fmt.Fprintf(w, "  - %s\n", f.Text)
	}

	cites := report.Citations(st.LegalAnalysis, st.RetrievedLaws)
	if len(cites) > 0 {
		fmt.Fprintln(w, "\nCitations")
		for _, c := range cites {
			mark := "unverified"
			if c.Verified {
				mark = fmt.Sprintf("clause %d", c.ClauseIndex+1)
			}
			fmt.Fprintf(w, "  %s -> %s\n", c.Text, mark)
			if c.Passage != "" {
				fmt.Fprintf(w, "      %q\n", truncate(c.Passage, 160))
			}
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
