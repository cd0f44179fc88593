package legalrisk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/legalrisk/parser"
	"github.com/brunobiangulo/legalrisk/store"
)

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReparse bool
	name         string
	metadata     map[string]string
}

// WithForceReparse forces re-parsing even if the hash hasn't changed.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

// WithSourceName overrides the provenance name reported with every
// clause of the source. By default the document title or file name is used.
func WithSourceName(name string) IngestOption {
	return func(o *ingestOptions) { o.name = name }
}

// WithMetadata attaches custom metadata to the ingested source.
func WithMetadata(metadata map[string]string) IngestOption {
	return func(o *ingestOptions) { o.metadata = metadata }
}

// UpdateResult reports the outcome of a source update check.
type UpdateResult struct {
	SourceID int64  `json:"source_id"`
	Path     string `json:"path"`
	Changed  bool   `json:"changed"`
	Error    string `json:"error,omitempty"`
}

// Ingest parses a statute file, splits it into clauses and indexes their
// embeddings. Unchanged files (same content hash) are skipped. Returns
// the source ID.
func (e *Engine) Ingest(ctx context.Context, path string, opts ...IngestOption) (int64, error) {
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", parser.ErrNotFound, absPath)
		}
		return 0, fmt.Errorf("hashing file: %w", err)
	}

	if !options.forceReparse {
		existing, err := e.store.GetSourceByPath(ctx, absPath)
		if err == nil && existing.ContentHash == hash && existing.Status == "ready" {
			e.log.Info("ingest: source unchanged, skipping", "file", existing.Name, "source_id", existing.ID)
			return existing.ID, nil
		}
	}

	filename := filepath.Base(absPath)
	e.log.Info("ingest: parsing source", "file", filename)
	start := time.Now()

	parsed, err := e.parsers.Parse(ctx, absPath)
	if err != nil {
		return 0, err
	}

	name := options.name
	if name == "" {
		name = parsed.Metadata["title"]
	}
	if name == "" {
		name = filename
	}

	meta := maps.Clone(parsed.Metadata)
	if meta == nil {
		meta = make(map[string]string)
	}
	maps.Copy(meta, options.metadata)
	metaJSON, _ := json.Marshal(meta)

	sourceID, err := e.store.UpsertSource(ctx, store.Source{
		Path:        absPath,
		Name:        name,
		Format:      parser.Format(absPath),
		ContentHash: hash,
		Status:      "processing",
		Metadata:    string(metaJSON),
	})
	if err != nil {
		return 0, fmt.Errorf("upserting source: %w", err)
	}

	clauses := e.chunkr.Chunk(parsed.Sections)
	e.log.Info("ingest: chunking complete",
		"file", filename, "sections", len(parsed.Sections), "clauses", len(clauses),
		"max_chars", e.cfg.ChunkMaxChars, "overlap", e.cfg.ChunkOverlap)

	// Re-ingest replaces every clause of the source.
	if err := e.store.DeleteSourceClauses(ctx, sourceID); err != nil {
		e.store.UpdateSourceStatus(ctx, sourceID, "error")
		return 0, fmt.Errorf("cleaning old clauses: %w", err)
	}

	ids, err := e.store.InsertClauses(ctx, sourceID, clauses)
	if err != nil {
		e.store.UpdateSourceStatus(ctx, sourceID, "error")
		return 0, fmt.Errorf("inserting clauses: %w", err)
	}

	embedStart := time.Now()
	if err := e.embedClauses(ctx, clauses, ids); err != nil {
		e.store.UpdateSourceStatus(ctx, sourceID, "error")
		return 0, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	e.log.Info("ingest: embeddings complete",
		"file", filename, "clauses", len(clauses),
		"elapsed", time.Since(embedStart).Round(time.Millisecond))

	if err := e.store.UpdateSourceStatus(ctx, sourceID, "ready"); err != nil {
		return 0, fmt.Errorf("updating source status: %w", err)
	}
	e.log.Info("ingest: source ready",
		"file", filename, "source_id", sourceID, "name", name,
		"total_elapsed", time.Since(start).Round(time.Millisecond))
	return sourceID, nil
}

// Update re-ingests a known source if its file changed.
func (e *Engine) Update(ctx context.Context, path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}

	src, err := e.store.GetSourceByPath(ctx, absPath)
	if err != nil {
		return false, err
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return false, fmt.Errorf("hashing file: %w", err)
	}
	if hash == src.ContentHash && src.Status == "ready" {
		return false, nil
	}

	if _, err := e.Ingest(ctx, absPath, WithForceReparse(), WithSourceName(src.Name)); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateAll checks every source for changes.
func (e *Engine) UpdateAll(ctx context.Context) ([]UpdateResult, error) {
	sources, err := e.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]UpdateResult, 0, len(sources))
	for _, src := range sources {
		changed, err := e.Update(ctx, src.Path)
		r := UpdateResult{SourceID: src.ID, Path: src.Path, Changed: changed}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results, nil
}

// maxEmbedChars caps a single embedding input. Clauses are far smaller
// than this with default chunking; the cap only matters for custom configs.
const maxEmbedChars = 24000

// truncateForEmbed truncates text to maxEmbedChars on a word boundary.
func truncateForEmbed(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := strings.LastIndex(text[:maxEmbedChars], " ")
	if cut <= 0 {
		cut = maxEmbedChars
	}
	return text[:cut]
}

const embedBatchSize = 32

// embedClauses generates embeddings in batches. A failed batch falls back
// to one request per text so a single bad input does not lose the batch.
func (e *Engine) embedClauses(ctx context.Context, clauses []store.Clause, ids []int64) error {
	if len(clauses) == 0 {
		return nil
	}
	var failed int

	for i := 0; i < len(clauses); i += embedBatchSize {
		end := min(i+embedBatchSize, len(clauses))

		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = truncateForEmbed(clauses[j].Text)
		}

		embeddings, err := e.embedLLM.Embed(ctx, texts)
		if err == nil && len(embeddings) != len(texts) {
			err = fmt.Errorf("got %d embeddings for %d texts", len(embeddings), len(texts))
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("ingest: embedding batch failed, falling back to individual",
				"batch_start", i, "batch_end", end, "error", err)
			for j, text := range texts {
				single, serr := e.embedLLM.Embed(ctx, []string{text})
				if serr == nil && (len(single) == 0 || len(single[0]) == 0) {
					serr = errors.New("empty embedding")
				}
				if serr == nil {
					serr = e.store.InsertEmbedding(ctx, ids[i+j], single[0])
				}
				if serr != nil {
					e.log.Warn("ingest: embedding clause failed", "clause_id", ids[i+j], "error", serr)
					failed++
				}
			}
			continue
		}

		for j, emb := range embeddings {
			if err := e.store.InsertEmbedding(ctx, ids[i+j], emb); err != nil {
				e.log.Warn("ingest: storing embedding failed", "clause_id", ids[i+j], "error", err)
				failed++
			}
		}
	}

	if failed == len(clauses) {
		return fmt.Errorf("all %d clauses failed embedding", len(clauses))
	}
	if failed > 0 {
		e.log.Warn("ingest: some embeddings failed", "failed", failed, "total", len(clauses))
	}
	return nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
