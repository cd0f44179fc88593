// Package legalrisk analyzes legal documents for risk: it extracts the
// document's key facts with an LLM, retrieves related statute clauses from
// a local vector index, and asks the LLM for a compliance and risk report.
package legalrisk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/legalrisk/chunker"
	"github.com/brunobiangulo/legalrisk/extractor"
	"github.com/brunobiangulo/legalrisk/llm"
	"github.com/brunobiangulo/legalrisk/logging"
	"github.com/brunobiangulo/legalrisk/parser"
	"github.com/brunobiangulo/legalrisk/retrieval"
	"github.com/brunobiangulo/legalrisk/store"
	"github.com/brunobiangulo/legalrisk/synthesis"
)

// Engine owns the statute index and runs analyses against it.
type Engine struct {
	cfg      Config
	store    *store.Store
	chatLLM  llm.Provider
	embedLLM llm.Provider
	parsers  *parser.Registry
	chunkr   *chunker.Chunker
	pipeline *Pipeline
	log      *slog.Logger
}

// New creates an Engine. Extra pipeline options (an Observer, say) are
// applied after the defaults.
func New(cfg Config, opts ...PipelineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(cfg.Chat.provider())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}
	embedLLM, err := llm.NewProvider(cfg.Embedding.provider())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	reg := parser.NewRegistry()

	x := extractor.New(chatLLM, extractor.Config{
		Temperature: cfg.ExtractionTemperature,
		MaxTokens:   cfg.MaxTokens,
	}, logging.NewRecorder(logging.New("extractor")))

	r := retrieval.New(embedLLM, s, retrieval.Config{
		TopK:        cfg.TopK,
		Concurrency: cfg.RetrievalConcurrency,
	}, logging.NewRecorder(logging.New("retrieval")))

	sy := synthesis.New(chatLLM, synthesis.Config{
		Temperature: cfg.SynthesisTemperature,
		MaxTokens:   cfg.MaxTokens,
		JSONMode:    cfg.SynthesisJSONMode,
	}, logging.NewRecorder(logging.New("synthesis")))

	base := []PipelineOption{
		WithRecorder(logging.NewRecorder(logging.New("pipeline"))),
		WithAuditLog(s),
	}

	return &Engine{
		cfg:      cfg,
		store:    s,
		chatLLM:  chatLLM,
		embedLLM: embedLLM,
		parsers:  reg,
		chunkr: chunker.New(chunker.Config{
			MaxChars: cfg.ChunkMaxChars,
			Overlap:  cfg.ChunkOverlap,
		}),
		pipeline: NewPipeline(reg, x, r, sy, append(base, opts...)...),
		log:      logging.New("engine"),
	}, nil
}

// Analyze runs the full pipeline for the document at path.
func (e *Engine) Analyze(ctx context.Context, path string) (*State, error) {
	return e.pipeline.Run(ctx, path)
}

// ListSources returns every ingested statute source.
func (e *Engine) ListSources(ctx context.Context) ([]store.Source, error) {
	return e.store.ListSources(ctx)
}

// DeleteSource removes a source with its clauses and embeddings.
func (e *Engine) DeleteSource(ctx context.Context, id int64) error {
	if err := e.store.DeleteSource(ctx, id); err != nil {
		return err
	}
	e.log.Info("engine: source deleted", "source_id", id)
	return nil
}

// RecentAnalyses returns the newest audit rows.
func (e *Engine) RecentAnalyses(ctx context.Context, limit int) ([]store.AnalysisRecord, error) {
	return e.store.RecentAnalyses(ctx, limit)
}

// Stats returns index counts.
func (e *Engine) Stats(ctx context.Context) (*store.Stats, error) {
	return e.store.Stats(ctx)
}

// Close shuts down the engine.
func (e *Engine) Close() error {
	return e.store.Close()
}
