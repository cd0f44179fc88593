// Package retrieval finds the statute clauses most similar to each
// important clause extracted from a document.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/legalrisk/logging"
	"github.com/brunobiangulo/legalrisk/store"
)

// ErrDegraded matches every Degradation with errors.Is.
var ErrDegraded = errors.New("retrieval: degraded to empty result")

// Clause is one retrieved statute fragment.
type Clause struct {
	Text   string   `json:"text"`
	Source string   `json:"source"`
	Score  *float64 `json:"score,omitempty"`
	ID     string   `json:"id,omitempty"`
}

// Degradation describes why a retrieval produced nothing. It is a
// diagnostic, not a failure: the pipeline continues with no clauses.
type Degradation struct {
	Index int    // position of the failing query in the input
	Query string // the failing query text
	Err   error
}

func (d *Degradation) Error() string {
	return fmt.Sprintf("retrieval: query %d degraded: %v", d.Index, d.Err)
}

func (d *Degradation) Unwrap() error { return d.Err }

func (d *Degradation) Is(target error) bool { return target == ErrDegraded }

// Embedder turns query text into vectors. llm.Provider satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is a nearest-neighbour search over stored clauses. *store.Store
// satisfies it.
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]store.Hit, error)
}

// Config holds retrieval settings.
type Config struct {
	TopK        int // results per query
	Concurrency int // queries in flight at once
}

// DefaultTopK is the number of hits kept per query.
const DefaultTopK = 3

// Result is the outcome of Retrieve. Clauses is never nil.
type Result struct {
	Clauses  []Clause
	Degraded *Degradation
}

// Retriever runs one similarity search per query.
type Retriever struct {
	emb Embedder
	idx Index
	cfg Config
	rec logging.Recorder
}

// New creates a Retriever. Zero config values fall back to DefaultTopK and
// sequential execution.
func New(emb Embedder, idx Index, cfg Config, rec logging.Recorder) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if rec == nil {
		rec = logging.Discard
	}
	return &Retriever{emb: emb, idx: idx, cfg: cfg, rec: rec}
}

// Retrieve searches the index once per query and flattens the hits in
// query order. Any embedding or search failure discards every hit and is
// reported in Result.Degraded instead of as an error.
func (r *Retriever) Retrieve(ctx context.Context, queries []string) Result {
	if len(queries) == 0 {
		return Result{Clauses: []Clause{}}
	}

	start := time.Now()
	slots := make([][]Clause, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			hits, err := r.search(gctx, q)
			if err != nil {
				return &Degradation{Index: i, Query: q, Err: err}
			}
			slots[i] = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var d *Degradation
		if !errors.As(err, &d) {
			d = &Degradation{Index: -1, Err: err}
		}
		r.rec.Record(ctx, slog.LevelWarn, "retrieval: degraded to empty result",
			"query_index", d.Index, "queries", len(queries), "error", d.Err)
		return Result{Clauses: []Clause{}, Degraded: d}
	}

	out := make([]Clause, 0, len(queries)*r.cfg.TopK)
	for _, s := range slots {
		out = append(out, s...)
	}

	r.rec.Record(ctx, slog.LevelInfo, "retrieval: search complete",
		"queries", len(queries),
		"clauses", len(out),
		"top_k", r.cfg.TopK,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return Result{Clauses: out}
}

func (r *Retriever) search(ctx context.Context, query string) ([]Clause, error) {
	vecs, err := r.emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors, want 1", len(vecs))
	}
	if len(vecs[0]) == 0 {
		return nil, errors.New("embedding query: got zero-dimension vector")
	}

	hits, err := r.idx.Search(ctx, vecs[0], r.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	clauses := make([]Clause, len(hits))
	for i, h := range hits {
		score := h.Score
		clauses[i] = Clause{
			Text:   h.Text,
			Source: h.Source,
			Score:  &score,
			ID:     strconv.FormatInt(h.ID, 10),
		}
	}
	return clauses, nil
}
