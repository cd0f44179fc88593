// Package eval scores analysis runs against datasets of documents with
// known expected findings.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/legalrisk"
	"github.com/brunobiangulo/legalrisk/report"
)

// Analyzer runs one analysis. *legalrisk.Engine satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*legalrisk.State, error)
}

var errorKinds = map[string]error{
	"input":      legalrisk.ErrInput,
	"extraction": legalrisk.ErrExtraction,
	"schema":     legalrisk.ErrSchemaViolation,
	"synthesis":  legalrisk.ErrSynthesis,
}

// DefaultPassThreshold is the minimum extraction, retrieval and analysis
// score for a case to pass.
const DefaultPassThreshold = 0.5

// Evaluator runs datasets through an Analyzer.
type Evaluator struct {
	engine    Analyzer
	threshold float64
	log       *slog.Logger
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(a Analyzer) *Evaluator {
	return &Evaluator{
		engine:    a,
		threshold: DefaultPassThreshold,
		log:       slog.Default().With(slog.String("component", "eval")),
	}
}

// SetPassThreshold changes the per-metric pass threshold.
func (e *Evaluator) SetPassThreshold(t float64) {
	e.threshold = t
}

// Report holds the results of an evaluation run.
type Report struct {
	Dataset         string                      `json:"dataset"`
	TotalCases      int                         `json:"total_cases"`
	Passed          int                         `json:"passed"`
	Failed          int                         `json:"failed"`
	Metrics         AggregateMetrics            `json:"metrics"`
	CategoryMetrics map[string]AggregateMetrics `json:"category_metrics,omitempty"`
	Results         []CaseResult                `json:"results"`
	RunTime         time.Duration               `json:"run_time"`
}

// AggregateMetrics holds averaged metrics over the cases that produced an
// analysis.
type AggregateMetrics struct {
	AvgExtraction      float64 `json:"avg_extraction"`
	AvgRetrievalRecall float64 `json:"avg_retrieval_recall"`
	AvgAccuracy        float64 `json:"avg_accuracy"`
	AvgCitationQuality float64 `json:"avg_citation_quality"`
	StructuredRate     float64 `json:"structured_rate"`
	DegradedRate       float64 `json:"degraded_rate"`
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Category string `json:"category,omitempty"`
	RunID    string `json:"run_id,omitempty"`

	Extraction      float64 `json:"extraction"`
	RetrievalRecall float64 `json:"retrieval_recall"`
	Accuracy        float64 `json:"accuracy"`
	CitationQuality float64 `json:"citation_quality"`
	Structured      bool    `json:"structured"`
	Degraded        bool    `json:"degraded"`
	Retrieved       int     `json:"retrieved"`

	MissingFacts  []string `json:"missing_facts,omitempty"`
	ExpectedError string   `json:"expected_error,omitempty"`
	Passed        bool     `json:"passed"`
	Error         string   `json:"error,omitempty"`
	ElapsedMs     int64    `json:"elapsed_ms"`
}

// Run evaluates every case in order. Analysis failures are recorded on the
// case rather than returned; only context cancellation stops the run.
func (e *Evaluator) Run(ctx context.Context, ds Dataset) (*Report, error) {
	start := time.Now()
	rep := &Report{
		Dataset:         ds.Name,
		TotalCases:      len(ds.Cases),
		CategoryMetrics: make(map[string]AggregateMetrics),
	}

	var sum AggregateMetrics
	n := 0
	catSums := make(map[string]AggregateMetrics)
	catCounts := make(map[string]int)

	for i, c := range ds.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := e.runCase(ctx, c)
		rep.Results = append(rep.Results, res)

		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		e.log.Info("eval: case complete",
			"progress", fmt.Sprintf("%d/%d", i+1, len(ds.Cases)),
			"case", c.Name,
			"status", status,
			"accuracy", fmt.Sprintf("%.2f", res.Accuracy),
			"retrieval_recall", fmt.Sprintf("%.2f", res.RetrievalRecall),
			"elapsed_ms", res.ElapsedMs)

		if res.Passed {
			rep.Passed++
		} else {
			rep.Failed++
		}

		// Averages cover only cases that produced an analysis.
		if res.Error != "" {
			continue
		}
		n++
		sum = addMetrics(sum, res)
		if c.Category != "" {
			catCounts[c.Category]++
			catSums[c.Category] = addMetrics(catSums[c.Category], res)
		}
	}

	rep.Metrics = divMetrics(sum, n)
	for cat, count := range catCounts {
		rep.CategoryMetrics[cat] = divMetrics(catSums[cat], count)
	}
	rep.RunTime = time.Since(start)
	return rep, nil
}

func (e *Evaluator) runCase(ctx context.Context, c Case) (res CaseResult) {
	start := time.Now()
	res = CaseResult{Name: c.Name, Document: c.Document, Category: c.Category}
	defer func() { res.ElapsedMs = time.Since(start).Milliseconds() }()

	st, err := e.engine.Analyze(ctx, c.Document)

	var pe *legalrisk.PipelineError
	if errors.As(err, &pe) {
		res.RunID = pe.RunID
	}
	if c.ExpectError != "" {
		res.ExpectedError = c.ExpectError
		switch {
		case err == nil:
			res.Error = fmt.Sprintf("expected %s error, analysis succeeded", c.ExpectError)
		case !errors.Is(err, errorKinds[c.ExpectError]):
			res.Error = fmt.Sprintf("expected %s error, got: %v", c.ExpectError, err)
		default:
			res.Passed = true
		}
		return res
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.RunID = st.RunID
	res.Retrieved = len(st.RetrievedLaws)
	res.Degraded = st.RetrievalWarning != nil
	res.Extraction = computeExtraction(st.DocumentReport, c.ExpectedPurpose, c.ExpectedParties)
	res.RetrievalRecall = computeRetrievalRecall(st.RetrievedLaws, c.ExpectedSources)
	res.Accuracy = computeAccuracy(st.LegalAnalysis, c.ExpectedFacts)
	res.CitationQuality = computeCitationQuality(report.Citations(st.LegalAnalysis, st.RetrievedLaws))
	res.Structured = report.Parse(st.LegalAnalysis).Structured
	for _, f := range c.ExpectedFacts {
		if !containsFact(st.LegalAnalysis, f) {
			res.MissingFacts = append(res.MissingFacts, f)
		}
	}

	res.Passed = res.Extraction >= e.threshold &&
		res.RetrievalRecall >= e.threshold &&
		res.Accuracy >= e.threshold
	return res
}

func addMetrics(m AggregateMetrics, r CaseResult) AggregateMetrics {
	m.AvgExtraction += r.Extraction
	m.AvgRetrievalRecall += r.RetrievalRecall
	m.AvgAccuracy += r.Accuracy
	m.AvgCitationQuality += r.CitationQuality
	if r.Structured {
		m.StructuredRate++
	}
	if r.Degraded {
		m.DegradedRate++
	}
	return m
}

func divMetrics(m AggregateMetrics, n int) AggregateMetrics {
	if n == 0 {
		return AggregateMetrics{}
	}
	d := float64(n)
	return AggregateMetrics{
		AvgExtraction:      m.AvgExtraction / d,
		AvgRetrievalRecall: m.AvgRetrievalRecall / d,
		AvgAccuracy:        m.AvgAccuracy / d,
		AvgCitationQuality: m.AvgCitationQuality / d,
		StructuredRate:     m.StructuredRate / d,
		DegradedRate:       m.DegradedRate / d,
	}
}

// FormatReport renders a human-readable summary of r.
func FormatReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Evaluation Report: %s ===\n", r.Dataset)
	fmt.Fprintf(&b, "Total: %d | Passed: %d (%.1f%%) | Failed: %d\n",
		r.TotalCases, r.Passed, passRate(r.Passed, r.TotalCases), r.Failed)
	fmt.Fprintf(&b, "Run time: %s\n\n", r.RunTime.Round(time.Millisecond))

	fmt.Fprintf(&b, "Aggregate Metrics:\n")
	fmt.Fprintf(&b, "  Extraction:        %.2f\n", r.Metrics.AvgExtraction)
	fmt.Fprintf(&b, "  Retrieval Recall:  %.2f\n", r.Metrics.AvgRetrievalRecall)
	fmt.Fprintf(&b, "  Accuracy:          %.2f\n", r.Metrics.AvgAccuracy)
	fmt.Fprintf(&b, "  Citation Quality:  %.2f\n", r.Metrics.AvgCitationQuality)
	fmt.Fprintf(&b, "  Structured:        %.1f%%\n", r.Metrics.StructuredRate*100)
	fmt.Fprintf(&b, "  Degraded:          %.1f%%\n\n", r.Metrics.DegradedRate*100)

	// Per-category breakdown (sorted for deterministic output)
	if len(r.CategoryMetrics) > 0 {
		cats := make([]string, 0, len(r.CategoryMetrics))
		for cat := range r.CategoryMetrics {
			cats = append(cats, cat)
		}
		sort.Strings(cats)

		fmt.Fprintf(&b, "Per-Category Metrics:\n")
		for _, cat := range cats {
			m := r.CategoryMetrics[cat]
			fmt.Fprintf(&b, "  [%s] Ext=%.2f Ret=%.2f Acc=%.2f Cite=%.2f\n",
				cat, m.AvgExtraction, m.AvgRetrievalRecall, m.AvgAccuracy, m.AvgCitationQuality)
		}
		fmt.Fprintln(&b)
	}

	for i, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %d. %s\n", status, i+1, res.Name)
		switch {
		case res.Error != "":
			fmt.Fprintf(&b, "  Error: %s\n", res.Error)
		case res.ExpectedError != "":
			fmt.Fprintf(&b, "  Failed as expected (%s)\n", res.ExpectedError)
		default:
			fmt.Fprintf(&b, "  Ext=%.2f Ret=%.2f Acc=%.2f Cite=%.2f  (%dms)\n",
				res.Extraction, res.RetrievalRecall, res.Accuracy, res.CitationQuality, res.ElapsedMs)
			if len(res.MissingFacts) > 0 {
				fmt.Fprintf(&b, "  Missing: %s\n", strings.Join(res.MissingFacts, "; "))
			}
		}
	}

	return b.String()
}

func passRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}
