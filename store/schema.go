package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Statute/act registry with hash-based change detection
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Retrievable statute clauses
CREATE TABLE IF NOT EXISTS clauses (
    id INTEGER PRIMARY KEY,
    source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    heading TEXT,
    clause_number TEXT,
    page_number INTEGER,
    position INTEGER,
    content_hash TEXT NOT NULL
);

-- Clause embeddings via sqlite-vec, ranked by cosine distance
CREATE VIRTUAL TABLE IF NOT EXISTS vec_clauses USING vec0(
    clause_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

-- One row per analysis run (summary only, never the document)
CREATE TABLE IF NOT EXISTS analysis_log (
    id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL,
    document_path TEXT NOT NULL,
    status TEXT NOT NULL,
    error_kind TEXT,
    error TEXT,
    purpose TEXT,
    clause_queries INTEGER DEFAULT 0,
    retrieved INTEGER DEFAULT 0,
    degraded INTEGER DEFAULT 0,
    duration_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_clauses_source ON clauses(source_id);
CREATE INDEX IF NOT EXISTS idx_sources_hash ON sources(content_hash);
`, embeddingDim)
}
