package legalrisk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/legalrisk/extractor"
	"github.com/brunobiangulo/legalrisk/logging"
	"github.com/brunobiangulo/legalrisk/retrieval"
	"github.com/brunobiangulo/legalrisk/store"
)

// Loader reads the plain text of a document. *parser.Registry satisfies it.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) (string, error)

func (f LoaderFunc) Load(ctx context.Context, path string) (string, error) { return f(ctx, path) }

// Extractor produces the structured report for a document's text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*extractor.DocumentReport, error)
}

// Retriever finds statute clauses for the extracted important clauses.
// It never fails; problems are reported in Result.Degraded.
type Retriever interface {
	Retrieve(ctx context.Context, clauses []string) retrieval.Result
}

// Synthesizer writes the risk analysis.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, clauses []retrieval.Clause) (string, error)
}

// Observer receives a copy of the state after every phase transition.
type Observer func(State)

// AuditLog stores one summary row per analysis. *store.Store satisfies it.
type AuditLog interface {
	LogAnalysis(ctx context.Context, r store.AnalysisRecord) error
}

// Pipeline runs extract, retrieve and synthesize in order for one
// document at a time. A Pipeline is safe for concurrent Runs as long as
// its collaborators are.
type Pipeline struct {
	loader      Loader
	extractor   Extractor
	retriever   Retriever
	synthesizer Synthesizer

	rec      logging.Recorder
	observer Observer
	audit    AuditLog
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRecorder sets the diagnostics sink.
func WithRecorder(rec logging.Recorder) PipelineOption {
	return func(p *Pipeline) { p.rec = rec }
}

// WithObserver registers a transition callback.
func WithObserver(fn Observer) PipelineOption {
	return func(p *Pipeline) { p.observer = fn }
}

// WithAuditLog records a summary of every run.
func WithAuditLog(a AuditLog) PipelineOption {
	return func(p *Pipeline) { p.audit = a }
}

// NewPipeline wires the stage collaborators.
func NewPipeline(l Loader, x Extractor, r Retriever, s Synthesizer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		loader:      l,
		extractor:   x,
		retriever:   r,
		synthesizer: s,
		rec:         logging.Discard,
	}
	for _, o := range opts {
		o(p)
	}
	if p.rec == nil {
		p.rec = logging.Discard
	}
	return p
}

// Run analyzes the document at path. On failure the partial state is
// dropped and a *PipelineError is returned.
func (p *Pipeline) Run(ctx context.Context, path string) (*State, error) {
	st := &State{RunID: uuid.NewString(), DocumentPath: path, Phase: PhaseCreated}
	start := time.Now()
	p.notify(st)

	p.rec.Record(ctx, slog.LevelInfo, "pipeline: analysis started", "run_id", st.RunID, "path", path)

	// Extraction: load the text, then ask for the structured report.
	if err := p.transition(st, PhaseExtracting); err != nil {
		return nil, err
	}
	text, err := p.loader.Load(ctx, path)
	if err != nil {
		return p.fail(ctx, st, start, &loadError{err: err})
	}
	report, err := p.extractor.Extract(ctx, text)
	if err != nil {
		return p.fail(ctx, st, start, err)
	}
	if report == nil {
		return p.fail(ctx, st, start, fmt.Errorf("%w: no report returned", extractor.ErrSchemaViolation))
	}
	st.DocumentText = text
	st.DocumentReport = report

	if err := p.transition(st, PhaseRetrieving); err != nil {
		return nil, err
	}
	res := p.retriever.Retrieve(ctx, report.ImportantClauses)
	st.RetrievedLaws = res.Clauses
	if st.RetrievedLaws == nil {
		st.RetrievedLaws = []retrieval.Clause{}
	}
	if res.Degraded != nil {
		st.RetrievalWarning = res.Degraded
	}

	if err := p.transition(st, PhaseSynthesizing); err != nil {
		return nil, err
	}
	analysis, err := p.synthesizer.Synthesize(ctx, st.DocumentText, st.RetrievedLaws)
	if err != nil {
		return p.fail(ctx, st, start, err)
	}
	st.LegalAnalysis = analysis

	if err := p.transition(st, PhaseCompleted); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	p.rec.Record(ctx, slog.LevelInfo, "pipeline: analysis complete",
		"run_id", st.RunID,
		"clause_queries", len(report.ImportantClauses),
		"retrieved", len(st.RetrievedLaws),
		"degraded", st.RetrievalWarning != nil,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	p.logRun(ctx, st, nil, nil, elapsed)
	return st, nil
}

func (p *Pipeline) transition(st *State, to Phase) error {
	if err := st.advance(to); err != nil {
		return err
	}
	p.notify(st)
	return nil
}

func (p *Pipeline) notify(st *State) {
	if p.observer != nil {
		p.observer(st.snapshot())
	}
}

func (p *Pipeline) fail(ctx context.Context, st *State, start time.Time, cause error) (*State, error) {
	phase := st.Phase
	kind := classify(phase, cause)
	if err := st.advance(PhaseFailed); err == nil {
		p.notify(st)
	}

	level := slog.LevelError
	if errors.Is(kind, ErrInput) {
		level = slog.LevelWarn
	}
	p.rec.Record(ctx, level, "pipeline: analysis failed",
		"run_id", st.RunID, "phase", phase.String(), "kind", kind, "error", cause)

	p.logRun(ctx, st, kind, cause, time.Since(start))
	return nil, &PipelineError{RunID: st.RunID, Phase: phase, Kind: kind, Err: cause}
}

func (p *Pipeline) logRun(ctx context.Context, st *State, kind, cause error, elapsed time.Duration) {
	if p.audit == nil {
		return
	}
	rec := store.AnalysisRecord{
		RunID:        st.RunID,
		DocumentPath: st.DocumentPath,
		Status:       "completed",
		Retrieved:    len(st.RetrievedLaws),
		Degraded:     st.RetrievalWarning != nil,
		Duration:     elapsed,
	}
	if st.DocumentReport != nil {
		rec.Purpose = st.DocumentReport.Purpose
		rec.ClauseQueries = len(st.DocumentReport.ImportantClauses)
	}
	if cause != nil {
		rec.Status = "failed"
		rec.ErrorKind = kind.Error()
		rec.Error = cause.Error()
	}
	// The audit row is best effort; the analysis result stands regardless.
	if err := p.audit.LogAnalysis(context.WithoutCancel(ctx), rec); err != nil {
		p.rec.Record(ctx, slog.LevelWarn, "pipeline: audit log write failed", "run_id", st.RunID, "error", err)
	}
}
