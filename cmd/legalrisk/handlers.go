package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brunobiangulo/legalrisk"
	"github.com/brunobiangulo/legalrisk/parser"
	"github.com/brunobiangulo/legalrisk/report"
	"github.com/brunobiangulo/legalrisk/store"
)

// analyzer is the part of *legalrisk.Engine the API uses.
type analyzer interface {
	Analyze(ctx context.Context, path string) (*legalrisk.State, error)
	Ingest(ctx context.Context, path string, opts ...legalrisk.IngestOption) (int64, error)
	ListSources(ctx context.Context) ([]store.Source, error)
	DeleteSource(ctx context.Context, id int64) error
	RecentAnalyses(ctx context.Context, limit int) ([]store.AnalysisRecord, error)
}

// Document types accepted for analysis.
var allowedExt = map[string]bool{".txt": true, ".pdf": true, ".docx": true}

const unsupportedMsg = "unsupported file type, allowed types: .txt, .pdf, .docx"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type handler struct {
	engine    analyzer
	maxUpload int64
	timeout   time.Duration
	log       *slog.Logger
}

func newHandler(a analyzer, sc legalrisk.ServerConfig, log *slog.Logger) *handler {
	maxUpload := int64(sc.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}
	return &handler{
		engine:    a,
		maxUpload: maxUpload,
		timeout:   time.Duration(sc.AnalyzeTimeoutSec) * time.Second,
		log:       log,
	}
}

// POST /analyze/file
// Multipart upload with a "file" field.
func (h *handler) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.formError(w, err, "invalid request: expected multipart form with 'file'")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	h.analyzeUpload(w, r, file, header)
}

// POST /analyze/filepath
// JSON body {"file_path": "..."} naming a file on the server.
func (h *handler) handleAnalyzeFilepath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FilePath string `json:"file_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	h.analyzePath(w, r, req.FilePath)
}

// POST /analyze/combined
// Form with either a "file" upload or a "file_path" field, not both.
func (h *handler) handleAnalyzeCombined(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.formError(w, err, "invalid form")
		return
	}

	path := r.FormValue("file_path")
	file, header, fileErr := r.FormFile("file")
	hasFile := fileErr == nil
	if hasFile {
		defer file.Close()
	}

	switch {
	case hasFile && path != "":
		writeError(w, http.StatusBadRequest, "provide either a file upload or a file path, not both")
	case hasFile:
		h.analyzeUpload(w, r, file, header)
	case path != "":
		h.analyzePath(w, r, path)
	default:
		writeError(w, http.StatusBadRequest, "provide either a file upload or a file path")
	}
}

func (h *handler) analyzeUpload(w http.ResponseWriter, r *http.Request, file multipart.File, header *multipart.FileHeader) {
	// Sanitise filename to prevent path traversal.
	name := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExt[ext] {
		writeError(w, http.StatusBadRequest, unsupportedMsg)
		return
	}

	tmp, err := os.CreateTemp("", "legalrisk-upload-*"+ext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		h.log.Error("server: creating temp file", "error", err)
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, "failed to save file")
		h.log.Error("server: saving uploaded file", "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save file")
		h.log.Error("server: saving uploaded file", "error", err)
		return
	}

	h.analyze(w, r, tmp.Name(), name, "Successfully analyzed uploaded file: "+name)
}

func (h *handler) analyzePath(w http.ResponseWriter, r *http.Request, path string) {
	if path == "" {
		writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found: "+path)
		return
	}
	if !allowedExt[strings.ToLower(filepath.Ext(path))] {
		writeError(w, http.StatusBadRequest, unsupportedMsg)
		return
	}

	name := filepath.Base(path)
	h.analyze(w, r, path, name, "Successfully analyzed file: "+name)
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request, path, name, message string) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	st, err := h.engine.Analyze(ctx, path)
	if err != nil {
		h.analysisError(w, r, name, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		var buf bytes.Buffer
		if err := report.WriteXLSX(&buf, reportInput(st)); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to build spreadsheet")
			h.log.Error("server: xlsx export", "run_id", st.RunID, "error", err)
			return
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"-risk.xlsx"))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		return
	}

	writeJSON(w, http.StatusOK, newAnalysisResponse(st, message))
}

// analysisError maps a pipeline failure to a status code. Problems with
// the document itself are the caller's fault; everything else is ours.
func (h *handler) analysisError(w http.ResponseWriter, r *http.Request, name string, err error) {
	status := http.StatusInternalServerError
	msg := "analysis failed"
	switch {
	case errors.Is(err, parser.ErrNotFound):
		status, msg = http.StatusNotFound, "file not found: "+name
	case errors.Is(err, legalrisk.ErrInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "analysis timed out"
	}

	body := map[string]string{"error": msg}
	var pe *legalrisk.PipelineError
	if errors.As(err, &pe) {
		body["run_id"] = pe.RunID
		body["phase"] = pe.Phase.String()
	}

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.log.Log(r.Context(), level, "server: analysis failed",
		"file", name, "status", status, "request_id", requestID(r.Context()), "error", err)
	writeJSON(w, status, body)
}

func (h *handler) formError(w http.ResponseWriter, err error, msg string) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, msg)
}

// POST /ingest
// JSON body {"path": "...", "name": "...", "force": true}.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var req struct {
		Path  string `json:"path"`
		Name  string `json:"name,omitempty"`
		Force bool   `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []legalrisk.IngestOption
	if req.Force {
		opts = append(opts, legalrisk.WithForceReparse())
	}
	if req.Name != "" {
		opts = append(opts, legalrisk.WithSourceName(req.Name))
	}

	id, err := h.engine.Ingest(ctx, absPath, opts...)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		h.log.Error("server: ingest error", "path", absPath, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"source_id": id,
		"path":      absPath,
	})
}

// GET /sources
func (h *handler) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.engine.ListSources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		h.log.Error("server: list sources error", "error", err)
		return
	}
	if sources == nil {
		sources = []store.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// DELETE /sources/{id}
func (h *handler) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	if err := h.engine.DeleteSource(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		h.log.Error("server: delete error", "source_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /analyses?limit=N
func (h *handler) handleRecentAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	recs, err := h.engine.RecentAnalyses(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		h.log.Error("server: recent analyses error", "error", err)
		return
	}
	if recs == nil {
		recs = []store.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": recs})
}

// GET /
func (h *handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Legal Document Analyzer API",
		"version": version,
		"endpoints": map[string]string{
			"/analyze/file":     "POST - Upload a file for analysis",
			"/analyze/filepath": "POST - Analyze file by providing local file path",
			"/analyze/combined": "POST - Upload file OR provide file path",
			"/ingest":           "POST - Add a statute file to the clause index",
			"/sources":          "GET - List ingested statute sources",
			"/sources/{id}":     "DELETE - Remove a statute source",
			"/analyses":         "GET - Recent analysis runs",
		},
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "legal-document-analyzer",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
