// Package store persists statute clauses and their embeddings in SQLite
// with the sqlite-vec extension, and keeps an audit log of analysis runs.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Source represents a row in the sources table: one ingested statute,
// act or regulation file.
type Source struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	Metadata    string `json:"metadata,omitempty"`
	ClauseCount int    `json:"clause_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Clause represents a row in the clauses table.
type Clause struct {
	ID           int64  `json:"id"`
	SourceID     int64  `json:"source_id"`
	Text         string `json:"text"`
	Heading      string `json:"heading,omitempty"`
	ClauseNumber string `json:"clause_number,omitempty"`
	PageNumber   int    `json:"page_number,omitempty"`
	Position     int    `json:"position"`
	ContentHash  string `json:"content_hash"`
}

// Hit is one nearest-neighbour result. Score is cosine similarity
// (1 - cosine distance): higher is closer.
type Hit struct {
	ID     int64   `json:"id"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// AnalysisRecord is one row of the analysis audit log.
type AnalysisRecord struct {
	RunID         string        `json:"run_id"`
	DocumentPath  string        `json:"document_path"`
	Status        string        `json:"status"` // "completed" or "failed"
	ErrorKind     string        `json:"error_kind,omitempty"`
	Error         string        `json:"error,omitempty"`
	Purpose       string        `json:"purpose,omitempty"`
	ClauseQueries int           `json:"clause_queries"`
	Retrieved     int           `json:"retrieved"`
	Degraded      bool          `json:"degraded"`
	Duration      time.Duration `json:"duration"`
	CreatedAt     string        `json:"created_at,omitempty"`
}

// Store wraps the SQLite database for all legalrisk persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	if embeddingDim <= 0 {
		return nil, fmt.Errorf("store: embedding dimension must be positive, got %d", embeddingDim)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Source operations ---

// UpsertSource inserts or updates a source record keyed by path. Returns
// the source ID.
func (s *Store) UpsertSource(ctx context.Context, src Source) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (path, name, format, content_hash, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			format = excluded.format,
			content_hash = excluded.content_hash,
			status = excluded.status,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`, src.Path, src.Name, src.Format, src.ContentHash, src.Status, src.Metadata)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	// If UPSERT did an UPDATE, LastInsertId may not reflect the existing row.
	if id == 0 {
		if err := s.db.QueryRowContext(ctx, "SELECT id FROM sources WHERE path = ?", src.Path).Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

const sourceColumns = `s.id, s.path, s.name, s.format, s.content_hash, s.status, s.metadata,
	(SELECT COUNT(*) FROM clauses c WHERE c.source_id = s.id), s.created_at, s.updated_at`

func scanSource(row interface{ Scan(...any) error }) (*Source, error) {
	src := &Source{}
	var metadata sql.NullString
	if err := row.Scan(&src.ID, &src.Path, &src.Name, &src.Format, &src.ContentHash,
		&src.Status, &metadata, &src.ClauseCount, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return nil, err
	}
	src.Metadata = metadata.String
	return src, nil
}

// GetSourceByPath retrieves a source by its file path.
func (s *Store) GetSourceByPath(ctx context.Context, path string) (*Source, error) {
	src, err := scanSource(s.db.QueryRowContext(ctx,
		"SELECT "+sourceColumns+" FROM sources s WHERE s.path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source %s", ErrNotFound, path)
	}
	return src, err
}

// GetSource retrieves a source by ID.
func (s *Store) GetSource(ctx context.Context, id int64) (*Source, error) {
	src, err := scanSource(s.db.QueryRowContext(ctx,
		"SELECT "+sourceColumns+" FROM sources s WHERE s.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source %d", ErrNotFound, id)
	}
	return src, err
}

// ListSources returns all sources, newest first.
func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sourceColumns+" FROM sources s ORDER BY s.created_at DESC, s.id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// UpdateSourceStatus updates just the status field.
func (s *Store) UpdateSourceStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sources SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// DeleteSource removes a source with its clauses and embeddings.
func (s *Store) DeleteSource(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteClauses(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: source %d", ErrNotFound, id)
		}
		return nil
	})
}

// DeleteSourceClauses removes all clauses and embeddings for a source but
// keeps the source record itself (used before re-ingesting changed files).
func (s *Store) DeleteSourceClauses(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return deleteClauses(ctx, tx, id)
	})
}

func deleteClauses(ctx context.Context, tx *sql.Tx, sourceID int64) error {
	// vec0 tables do not take part in foreign-key cascades.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM vec_clauses WHERE clause_id IN (
			SELECT id FROM clauses WHERE source_id = ?
		)`, sourceID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM clauses WHERE source_id = ?", sourceID)
	return err
}

// --- Clause operations ---

// InsertClauses inserts a batch of clauses for one source and returns
// their IDs in input order.
func (s *Store) InsertClauses(ctx context.Context, sourceID int64, clauses []Clause) ([]int64, error) {
	ids := make([]int64, len(clauses))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO clauses (source_id, text, heading, clause_number, page_number, position, content_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, c := range clauses {
			res, err := stmt.ExecContext(ctx, sourceID, c.Text, c.Heading, c.ClauseNumber,
				c.PageNumber, c.Position, c.ContentHash)
			if err != nil {
				return err
			}
			ids[i], err = res.LastInsertId()
			if err != nil {
				return err
			}
		}
		return nil
	})

	return ids, err
}

// ClausesBySource returns the clauses of a source in document order.
func (s *Store) ClausesBySource(ctx context.Context, sourceID int64) ([]Clause, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, text, COALESCE(heading, ''), COALESCE(clause_number, ''),
			COALESCE(page_number, 0), COALESCE(position, 0), content_hash
		FROM clauses WHERE source_id = ? ORDER BY position
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clauses []Clause
	for rows.Next() {
		var c Clause
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Text, &c.Heading, &c.ClauseNumber,
			&c.PageNumber, &c.Position, &c.ContentHash); err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, rows.Err()
}

// --- Embedding operations ---

func (s *Store) checkDim(v []float32) error {
	if len(v) != s.embeddingDim {
		return fmt.Errorf("store: vector has %d dimensions, index expects %d", len(v), s.embeddingDim)
	}
	return nil
}

// InsertEmbedding stores a vector embedding for a clause.
func (s *Store) InsertEmbedding(ctx context.Context, clauseID int64, embedding []float32) error {
	if err := s.checkDim(embedding); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_clauses (clause_id, embedding) VALUES (?, ?)",
		clauseID, serializeFloat32(embedding))
	return err
}

// Search performs a KNN search returning the top-k nearest clauses,
// closest first.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	if err := s.checkDim(query); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.clause_id, v.distance, c.text, src.name
		FROM vec_clauses v
		JOIN clauses c ON c.id = v.clause_id
		JOIN sources src ON src.id = c.source_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		var distance float64
		if err := rows.Scan(&h.ID, &distance, &h.Text, &h.Source); err != nil {
			return nil, err
		}
		h.Score = 1.0 - distance
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// --- Analysis log ---

// LogAnalysis appends a run summary to the audit log.
func (s *Store) LogAnalysis(ctx context.Context, r AnalysisRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_log (run_id, document_path, status, error_kind, error, purpose,
			clause_queries, retrieved, degraded, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.DocumentPath, r.Status, r.ErrorKind, r.Error, r.Purpose,
		r.ClauseQueries, r.Retrieved, r.Degraded, r.Duration.Milliseconds())
	return err
}

// RecentAnalyses returns up to limit audit rows, newest first.
func (s *Store) RecentAnalyses(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, document_path, status, COALESCE(error_kind, ''), COALESCE(error, ''),
			COALESCE(purpose, ''), clause_queries, retrieved, degraded, duration_ms, created_at
		FROM analysis_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var r AnalysisRecord
		var ms int64
		if err := rows.Scan(&r.RunID, &r.DocumentPath, &r.Status, &r.ErrorKind, &r.Error,
			&r.Purpose, &r.ClauseQueries, &r.Retrieved, &r.Degraded, &ms, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats holds counts of key database objects.
type Stats struct {
	Sources       int `json:"sources"`
	Clauses       int `json:"clauses"`
	Embeddings    int `json:"embeddings"`
	Analyses      int `json:"analyses"`
	SchemaVersion int `json:"schema_version"`
}

// Stats returns row counts and the applied schema version.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM sources", &stats.Sources},
		{"SELECT COUNT(*) FROM clauses", &stats.Clauses},
		{"SELECT COUNT(*) FROM vec_clauses", &stats.Embeddings},
		{"SELECT COUNT(*) FROM analysis_log", &stats.Analyses},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading schema version: %w", err)
	}
	stats.SchemaVersion = v
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
