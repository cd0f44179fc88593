package legalrisk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brunobiangulo/legalrisk/extractor"
	"github.com/brunobiangulo/legalrisk/logging"
	"github.com/brunobiangulo/legalrisk/parser"
	"github.com/brunobiangulo/legalrisk/retrieval"
	"github.com/brunobiangulo/legalrisk/store"
)

// --- stubs ---

type stubLoader struct {
	text  string
	err   error
	calls int
}

func (l *stubLoader) Load(_ context.Context, path string) (string, error) {
	l.calls++
	if l.err != nil {
		return "", l.err
	}
	return l.text, nil
}

type stubExtractor struct {
	report *extractor.DocumentReport
	err    error
	calls  int
}

func (x *stubExtractor) Extract(_ context.Context, text string) (*extractor.DocumentReport, error) {
	x.calls++
	if x.err != nil {
		return nil, x.err
	}
	return x.report, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

// stubIndex returns k hits per query, labelled with the query vector, or
// fails on every call when err is set. Search runs on concurrent workers.
type stubIndex struct {
	err   error
	calls atomic.Int32
}

func (s *stubIndex) Search(_ context.Context, q []float32, k int) ([]store.Hit, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	hits := make([]store.Hit, k)
	for i := range hits {
		hits[i] = store.Hit{ID: int64(i + 1), Text: fmt.Sprintf("q%v-hit%d", q[0], i+1), Source: "Act", Score: 0.5}
	}
	return hits, nil
}

type stubSynthesizer struct {
	out     string
	err     error
	calls   int
	clauses []retrieval.Clause
}

func (s *stubSynthesizer) Synthesize(_ context.Context, text string, clauses []retrieval.Clause) (string, error) {
	s.calls++
	s.clauses = clauses
	if s.err != nil {
		return "", s.err
	}
	return s.out, nil
}

type memAudit struct{ rows []store.AnalysisRecord }

func (m *memAudit) LogAnalysis(_ context.Context, r store.AnalysisRecord) error {
	m.rows = append(m.rows, r)
	return nil
}

type fixture struct {
	loader *stubLoader
	ext    *stubExtractor
	index  *stubIndex
	synth  *stubSynthesizer
	audit  *memAudit
	rec    *logging.Memory
	seen   []State
}

func newFixture(clauses []string) *fixture {
	return &fixture{
		loader: &stubLoader{text: "This lease is between Acme and Jane."},
		ext: &stubExtractor{report: &extractor.DocumentReport{
			Purpose:          "Residential lease",
			Parties:          []extractor.Party{{Name: "Acme", Role: "Landlord"}},
			ImportantClauses: clauses,
		}},
		index: &stubIndex{},
		synth: &stubSynthesizer{out: `{"executive_summary": "ok"}`},
		audit: &memAudit{},
		rec:   &logging.Memory{},
	}
}

func (f *fixture) pipeline() *Pipeline {
	r := retrieval.New(stubEmbedder{}, f.index, retrieval.Config{TopK: 2, Concurrency: 4}, f.rec)
	return NewPipeline(f.loader, f.ext, r, f.synth,
		WithRecorder(f.rec),
		WithAuditLog(f.audit),
		WithObserver(func(s State) { f.seen = append(f.seen, s) }),
	)
}

// --- scenarios ---

func TestRunScenarioA(t *testing.T) {
	f := newFixture([]string{"Rent due monthly", "No subletting"})

	st, err := f.pipeline().Run(context.Background(), "lease.docx")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var texts []string
	for _, c := range st.RetrievedLaws {
		texts = append(texts, c.Text)
	}
	// Query vectors are the query lengths: 16 and 13.
	want := []string{"q16-hit1", "q16-hit2", "q13-hit1", "q13-hit2"}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Errorf("retrieved laws (-want +got):\n%s", diff)
	}

	if st.Phase != PhaseCompleted {
		t.Errorf("phase = %s, want completed", st.Phase)
	}
	if st.DocumentPath != "lease.docx" || st.DocumentText == "" || st.DocumentReport == nil || st.LegalAnalysis == "" {
		t.Errorf("derived fields not populated: %+v", st)
	}
	if st.RunID == "" {
		t.Error("missing run id")
	}
	if st.RetrievalWarning != nil {
		t.Errorf("unexpected warning: %v", st.RetrievalWarning)
	}
	if len(f.synth.clauses) != 4 {
		t.Errorf("synthesizer got %d clauses, want 4", len(f.synth.clauses))
	}

	if len(f.audit.rows) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(f.audit.rows))
	}
	row := f.audit.rows[0]
	if row.Status != "completed" || row.RunID != st.RunID || row.ClauseQueries != 2 || row.Retrieved != 4 {
		t.Errorf("audit row = %+v", row)
	}
}

func TestRunScenarioBNoClauses(t *testing.T) {
	f := newFixture([]string{})

	st, err := f.pipeline().Run(context.Background(), "nda.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.RetrievedLaws == nil || len(st.RetrievedLaws) != 0 {
		t.Errorf("retrieved laws = %#v, want empty non-nil", st.RetrievedLaws)
	}
	if n := f.index.calls.Load(); n != 0 {
		t.Errorf("index called %d times, want 0", n)
	}
	if f.synth.calls != 1 {
		t.Errorf("synthesizer called %d times, want 1", f.synth.calls)
	}
	if f.synth.clauses == nil || len(f.synth.clauses) != 0 {
		t.Errorf("synthesizer clauses = %#v, want empty", f.synth.clauses)
	}
	if st.Phase != PhaseCompleted {
		t.Errorf("phase = %s", st.Phase)
	}
}

func TestRunScenarioCNotFound(t *testing.T) {
	f := newFixture([]string{"x"})
	f.loader.err = fmt.Errorf("%w: missing.pdf", parser.ErrNotFound)

	st, err := f.pipeline().Run(context.Background(), "missing.pdf")
	if st != nil {
		t.Errorf("state = %+v, want nil", st)
	}
	if !errors.Is(err, ErrInput) {
		t.Fatalf("err = %v, want ErrInput", err)
	}
	if !errors.Is(err, parser.ErrNotFound) {
		t.Error("cause should stay reachable")
	}
	if f.ext.calls != 0 || f.synth.calls != 0 {
		t.Errorf("extractor=%d synthesizer=%d calls, want 0", f.ext.calls, f.synth.calls)
	}

	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Phase != PhaseExtracting {
		t.Errorf("pipeline error = %+v", pe)
	}
	if last := f.seen[len(f.seen)-1]; last.Phase != PhaseFailed {
		t.Errorf("last observed phase = %s, want failed", last.Phase)
	}
	if len(f.audit.rows) != 1 || f.audit.rows[0].Status != "failed" {
		t.Errorf("audit rows = %+v", f.audit.rows)
	}
}

func TestRunDegradedRetrievalIsNotAnError(t *testing.T) {
	f := newFixture([]string{"Rent due monthly", "No subletting"})
	f.index.err = errors.New("vector index offline")

	st, err := f.pipeline().Run(context.Background(), "lease.docx")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.RetrievedLaws) != 0 {
		t.Errorf("retrieved %d clauses, want 0", len(st.RetrievedLaws))
	}
	if !errors.Is(st.RetrievalWarning, retrieval.ErrDegraded) {
		t.Errorf("warning = %v, want degradation", st.RetrievalWarning)
	}
	if f.synth.calls != 1 {
		t.Error("synthesizer should still run")
	}
	if len(f.rec.AtLevel(slog.LevelWarn)) == 0 {
		t.Error("degradation should be recorded as a warning")
	}
	if !f.audit.rows[0].Degraded {
		t.Error("audit row should be marked degraded")
	}
}

func TestRunSingleWriter(t *testing.T) {
	f := newFixture([]string{"Rent due monthly"})
	if _, err := f.pipeline().Run(context.Background(), "lease.docx"); err != nil {
		t.Fatal(err)
	}

	var phases []Phase
	for _, s := range f.seen {
		phases = append(phases, s.Phase)
		switch s.Phase {
		case PhaseCreated, PhaseExtracting:
			if s.DocumentText != "" || s.DocumentReport != nil {
				t.Errorf("%s: extraction output visible early", s.Phase)
			}
			fallthrough
		case PhaseRetrieving:
			if s.RetrievedLaws != nil {
				t.Errorf("%s: retrieved laws visible before retrieval", s.Phase)
			}
			fallthrough
		case PhaseSynthesizing:
			if s.LegalAnalysis != "" {
				t.Errorf("%s: analysis visible before synthesis", s.Phase)
			}
		}
		if s.Phase >= PhaseRetrieving && s.DocumentReport == nil {
			t.Errorf("%s: report missing after extraction", s.Phase)
		}
	}
	want := []Phase{PhaseCreated, PhaseExtracting, PhaseRetrieving, PhaseSynthesizing, PhaseCompleted}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("phases (-want +got):\n%s", diff)
	}
}

func TestObserverCannotMutateState(t *testing.T) {
	f := newFixture([]string{"Rent due monthly"})
	p := f.pipeline()
	p.observer = func(s State) {
		if s.DocumentReport != nil {
			s.DocumentReport.Purpose = "tampered"
			s.DocumentReport.ImportantClauses = append(s.DocumentReport.ImportantClauses[:0], "tampered")
		}
		for i := range s.RetrievedLaws {
			s.RetrievedLaws[i].Text = "tampered"
		}
	}
	st, err := p.Run(context.Background(), "lease.docx")
	if err != nil {
		t.Fatal(err)
	}
	if st.DocumentReport.Purpose == "tampered" || st.DocumentReport.ImportantClauses[0] == "tampered" {
		t.Error("observer mutated the report")
	}
	if strings.Contains(st.RetrievedLaws[0].Text, "tampered") {
		t.Error("observer mutated retrieved laws")
	}
}

func TestRunErrorKinds(t *testing.T) {
	tests := []struct {
		name      string
		loadErr   error
		extErr    error
		synthErr  error
		wantKind  error
		wantPhase Phase
	}{
		{"unreadable", fmt.Errorf("%w: bad zip", parser.ErrUnreadable), nil, nil, ErrInput, PhaseExtracting},
		{"unsupported", fmt.Errorf("%w: xls", parser.ErrUnsupportedFormat), nil, nil, ErrInput, PhaseExtracting},
		{"loader path error", &fs.PathError{Op: "open", Path: "lease.docx", Err: fs.ErrNotExist}, nil, nil, ErrInput, PhaseExtracting},
		{"loader plain error", errors.New("document store unavailable"), nil, nil, ErrInput, PhaseExtracting},
		{"loader cancelled", context.Canceled, nil, nil, ErrInput, PhaseExtracting},
		{"empty document", nil, extractor.ErrEmptyDocument, nil, ErrInput, PhaseExtracting},
		{"model failure", nil, fmt.Errorf("%w: 503", extractor.ErrModelCall), nil, ErrExtraction, PhaseExtracting},
		{"schema violation", nil, fmt.Errorf("%w: missing purpose", extractor.ErrSchemaViolation), nil, ErrSchemaViolation, PhaseExtracting},
		{"synthesis failure", nil, nil, errors.New("timeout"), ErrSynthesis, PhaseSynthesizing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture([]string{"a"})
			f.loader.err = tt.loadErr
			f.ext.err = tt.extErr
			f.synth.err = tt.synthErr

			st, err := f.pipeline().Run(context.Background(), "doc.txt")
			if st != nil {
				t.Error("partial state returned")
			}
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("err = %v, want kind %v", err, tt.wantKind)
			}
			var pe *PipelineError
			if !errors.As(err, &pe) {
				t.Fatalf("err is %T, want *PipelineError", err)
			}
			if pe.Phase != tt.wantPhase {
				t.Errorf("phase = %s, want %s", pe.Phase, tt.wantPhase)
			}
			for _, other := range []error{ErrInput, ErrExtraction, ErrSchemaViolation, ErrSynthesis} {
				if other != tt.wantKind && errors.Is(err, other) {
					t.Errorf("err also matches %v", other)
				}
			}
		})
	}
}

func TestLoaderErrorKeepsCause(t *testing.T) {
	f := newFixture([]string{"a"})
	f.loader.err = &fs.PathError{Op: "open", Path: "lease.docx", Err: fs.ErrNotExist}

	_, err := f.pipeline().Run(context.Background(), "lease.docx")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want it to wrap fs.ErrNotExist", err)
	}
	if errors.Is(err, ErrExtraction) {
		t.Errorf("loader failure classified as extraction: %v", err)
	}
	if f.ext.calls != 0 {
		t.Errorf("extractor called %d times after load failure", f.ext.calls)
	}
	if len(f.audit.rows) != 1 || f.audit.rows[0].Status != "failed" {
		t.Errorf("audit rows = %+v", f.audit.rows)
	}
}

func TestEmptyDocumentIsInputError(t *testing.T) {
	if !errors.Is(classify(PhaseExtracting, ErrEmptyDocument), ErrInput) {
		t.Error("ErrEmptyDocument should classify as ErrInput")
	}
}

func TestNilReportIsSchemaViolation(t *testing.T) {
	f := newFixture(nil)
	f.ext.report = nil
	_, err := f.pipeline().Run(context.Background(), "doc.txt")
	if !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("err = %v, want ErrSchemaViolation", err)
	}
}

func TestAdvance(t *testing.T) {
	s := &State{}
	if err := s.advance(PhaseRetrieving); err == nil {
		t.Error("skipping a phase should fail")
	}
	for _, p := range []Phase{PhaseExtracting, PhaseRetrieving, PhaseSynthesizing, PhaseCompleted} {
		if err := s.advance(p); err != nil {
			t.Fatalf("advance(%s): %v", p, err)
		}
	}
	if err := s.advance(PhaseFailed); err == nil {
		t.Error("completed is terminal")
	}

	s = &State{Phase: PhaseRetrieving}
	if err := s.advance(PhaseFailed); err != nil {
		t.Errorf("failed should be reachable: %v", err)
	}
	if s.Reached(PhaseCreated) {
		t.Error("failed state reached nothing")
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseSynthesizing.String() != "synthesizing" || Phase(42).String() != "phase(42)" {
		t.Error("unexpected phase names")
	}
}

func TestLoaderFunc(t *testing.T) {
	l := LoaderFunc(func(_ context.Context, path string) (string, error) { return "text of " + path, nil })
	got, err := l.Load(context.Background(), "a.txt")
	if err != nil || got != "text of a.txt" {
		t.Errorf("Load = %q, %v", got, err)
	}
}
