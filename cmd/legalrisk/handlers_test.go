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
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/legalrisk"
	"github.com/brunobiangulo/legalrisk/extractor"
	"github.com/brunobiangulo/legalrisk/parser"
	"github.com/brunobiangulo/legalrisk/report"
	"github.com/brunobiangulo/legalrisk/retrieval"
	"github.com/brunobiangulo/legalrisk/store"
)

const fakeAnalysis = `{"risks": ["Deposit breaches Section 4.1"], "executive_summary": "One risk."}`

type fakeAnalyzer struct {
	analyze   func(ctx context.Context, path string) (*legalrisk.State, error)
	analyzed  []string
	ingested  []string
	ingestErr error
	sources   []store.Source
	deleteErr error
	deleted   []int64
	recent    []store.AnalysisRecord
	limit     int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, path string) (*legalrisk.State, error) {
	f.analyzed = append(f.analyzed, path)
	if f.analyze != nil {
		return f.analyze(ctx, path)
	}
	return completedState(path), nil
}

func (f *fakeAnalyzer) Ingest(_ context.Context, path string, _ ...legalrisk.IngestOption) (int64, error) {
	f.ingested = append(f.ingested, path)
	if f.ingestErr != nil {
		return 0, f.ingestErr
	}
	return 7, nil
}

func (f *fakeAnalyzer) ListSources(context.Context) ([]store.Source, error) {
	return f.sources, nil
}

func (f *fakeAnalyzer) DeleteSource(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeAnalyzer) RecentAnalyses(_ context.Context, limit int) ([]store.AnalysisRecord, error) {
	f.limit = limit
	return f.recent, nil
}

func completedState(path string) *legalrisk.State {
	score := 0.91
	return &legalrisk.State{
		RunID:        "run-1",
		DocumentPath: path,
		DocumentText: "The tenant pays a deposit of three months rent.",
		DocumentReport: &extractor.DocumentReport{
			Purpose:          "Residential lease",
			Parties:          []extractor.Party{{Name: "A. Tenant", Role: "tenant"}},
			ImportantClauses: []string{"Deposit of three months rent"},
		},
		RetrievedLaws: []retrieval.Clause{
			{Text: "4.1 A deposit may not exceed two months rent.", Source: "rent_act.pdf", Score: &score, ID: "12"},
		},
		LegalAnalysis: fakeAnalysis,
		Phase:         legalrisk.PhaseCompleted,
	}
}

func newTestServer(t *testing.T, a analyzer, sc legalrisk.ServerConfig) http.Handler {
	t.Helper()
	if sc.MaxUploadMB == 0 {
		sc.MaxUploadMB = 1
	}
	return newServer(a, sc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return body
}

// multipartBody builds a form with optional file and text fields.
func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{})
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := map[string]any{"status": "healthy", "service": "legal-document-analyzer"}
	if diff := cmp.Diff(want, decodeBody(t, rec)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestRootInfo(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	endpoints, ok := body["endpoints"].(map[string]any)
	if !ok {
		t.Fatalf("endpoints missing: %v", body)
	}
	for _, ep := range []string{"/analyze/file", "/analyze/filepath", "/analyze/combined"} {
		if _, ok := endpoints[ep]; !ok {
			t.Errorf("endpoint %s not listed", ep)
		}
	}

	// Only the exact root path is the info page.
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want 404", rec.Code)
	}
}

func TestAnalyzeFilepath(t *testing.T) {
	path := writeDoc(t, "lease.txt", "The tenant pays a deposit.")
	fa := &fakeAnalyzer{}
	h := newTestServer(t, fa, legalrisk.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/analyze/filepath",
		strings.NewReader(fmt.Sprintf(`{"file_path": %q}`, path)))
	rec := do(t, h, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp analysisResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" || resp.Message != "Successfully analyzed file: lease.txt" {
		t.Errorf("status/message = %q / %q", resp.Status, resp.Message)
	}
	if resp.LegalAnalysis != fakeAnalysis {
		t.Errorf("legal_analysis = %q", resp.LegalAnalysis)
	}
	if resp.RunID != "run-1" || len(resp.RetrievedLaws) != 1 {
		t.Errorf("run_id = %q, retrieved = %d", resp.RunID, len(resp.RetrievedLaws))
	}
	if len(resp.Citations) != 1 || !resp.Citations[0].Verified {
		t.Errorf("citations = %+v, want one verified Section 4.1", resp.Citations)
	}
	if diff := cmp.Diff([]string{path}, fa.analyzed); diff != "" {
		t.Errorf("analyzed paths (-want +got):\n%s", diff)
	}
}

func TestAnalyzeFilepathRejects(t *testing.T) {
	csv := writeDoc(t, "lease.csv", "a,b")
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"empty path", `{"file_path": ""}`, http.StatusBadRequest},
		{"missing file", `{"file_path": "/no/such/lease.txt"}`, http.StatusNotFound},
		{"unsupported extension", fmt.Sprintf(`{"file_path": %q}`, csv), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAnalyzer{}
			h := newTestServer(t, fa, legalrisk.ServerConfig{})
			rec := do(t, h, httptest.NewRequest(http.MethodPost, "/analyze/filepath", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if len(fa.analyzed) != 0 {
				t.Errorf("Analyze called for rejected request")
			}
		})
	}
}

func TestAnalyzeFileUpload(t *testing.T) {
	content := []byte("The tenant pays a deposit of three months rent.")
	var seen string
	fa := &fakeAnalyzer{
		analyze: func(_ context.Context, path string) (*legalrisk.State, error) {
			seen = path
			got, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if !bytes.Equal(got, content) {
				return nil, fmt.Errorf("temp file content = %q", got)
			}
			return completedState(path), nil
		},
	}
	h := newTestServer(t, fa, legalrisk.ServerConfig{})

	body, ctype := multipartBody(t, "../../lease.txt", content, nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze/file", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(t, h, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if msg := decodeBody(t, rec)["message"]; msg != "Successfully analyzed uploaded file: lease.txt" {
		t.Errorf("message = %v", msg)
	}
	if filepath.Ext(seen) != ".txt" {
		t.Errorf("temp file %q lost its extension", seen)
	}
	if _, err := os.Stat(seen); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file %q not removed (stat err %v)", seen, err)
	}
}

func TestAnalyzeFileUploadRejects(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		fa := &fakeAnalyzer{}
		h := newTestServer(t, fa, legalrisk.ServerConfig{})
		body, ctype := multipartBody(t, "lease.exe", []byte("MZ"), nil)
		req := httptest.NewRequest(http.MethodPost, "/analyze/file", body)
		req.Header.Set("Content-Type", ctype)

		rec := do(t, h, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if len(fa.analyzed) != 0 {
			t.Error("Analyze called for rejected upload")
		}
	})

	t.Run("no file field", func(t *testing.T) {
		h := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{})
		body, ctype := multipartBody(t, "", nil, map[string]string{"other": "x"})
		req := httptest.NewRequest(http.MethodPost, "/analyze/file", body)
		req.Header.Set("Content-Type", ctype)

		if rec := do(t, h, req); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		h := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{MaxUploadMB: 1})
		body, ctype := multipartBody(t, "big.txt", bytes.Repeat([]byte("a"), 2<<20), nil)
		req := httptest.NewRequest(http.MethodPost, "/analyze/file", body)
		req.Header.Set("Content-Type", ctype)

		if rec := do(t, h, req); rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})
}

func TestAnalyzeCombined(t *testing.T) {
	path := writeDoc(t, "lease.docx", "not really a docx")

	t.Run("both", func(t *testing.T) {
		fa := &fakeAnalyzer{}
		h := newTestServer(t, fa, legalrisk.ServerConfig{})
		body, ctype := multipartBody(t, "lease.txt", []byte("x"), map[string]string{"file_path": path})
		req := httptest.NewRequest(http.MethodPost, "/analyze/combined", body)
		req.Header.Set("Content-Type", ctype)

		rec := do(t, h, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if len(fa.analyzed) != 0 {
			t.Error("Analyze called with both inputs")
		}
	})

	t.Run("neither", func(t *testing.T) {
		h := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{})
		body, ctype := multipartBody(t, "", nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/analyze/combined", body)
		req.Header.Set("Content-Type", ctype)

		if rec := do(t, h, req); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("path as urlencoded form", func(t *testing.T) {
		fa := &fakeAnalyzer{}
		h := newTestServer(t, fa, legalrisk.ServerConfig{})
		form := url.Values{"file_path": {path}}
		req := httptest.NewRequest(http.MethodPost, "/analyze/combined", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := do(t, h, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		if diff := cmp.Diff([]string{path}, fa.analyzed); diff != "" {
			t.Errorf("analyzed (-want +got):\n%s", diff)
		}
	})

	t.Run("file only", func(t *testing.T) {
		fa := &fakeAnalyzer{}
		h := newTestServer(t, fa, legalrisk.ServerConfig{})
		body, ctype := multipartBody(t, "lease.pdf", []byte("%PDF"), nil)
		req := httptest.NewRequest(http.MethodPost, "/analyze/combined", body)
		req.Header.Set("Content-Type", ctype)

		rec := do(t, h, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		if len(fa.analyzed) != 1 || filepath.Ext(fa.analyzed[0]) != ".pdf" {
			t.Errorf("analyzed = %v", fa.analyzed)
		}
	})
}

func TestAnalyzeErrorStatus(t *testing.T) {
	pipelineErr := func(kind error, phase legalrisk.Phase, cause error) error {
		return &legalrisk.PipelineError{RunID: "run-9", Phase: phase, Kind: kind, Err: cause}
	}
	tests := []struct {
		name      string
		err       error
		want      int
		wantRunID bool
	}{
		{"input", pipelineErr(legalrisk.ErrInput, legalrisk.PhaseExtracting, legalrisk.ErrEmptyDocument), http.StatusBadRequest, true},
		{"not found", pipelineErr(legalrisk.ErrInput, legalrisk.PhaseExtracting, parser.ErrNotFound), http.StatusNotFound, true},
		{"schema", pipelineErr(legalrisk.ErrSchemaViolation, legalrisk.PhaseExtracting, errors.New("missing purpose")), http.StatusInternalServerError, true},
		{"synthesis", pipelineErr(legalrisk.ErrSynthesis, legalrisk.PhaseSynthesizing, errors.New("429")), http.StatusInternalServerError, true},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, false},
	}
	path := writeDoc(t, "lease.txt", "text")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAnalyzer{analyze: func(context.Context, string) (*legalrisk.State, error) {
				return nil, tt.err
			}}
			h := newTestServer(t, fa, legalrisk.ServerConfig{})
			req := httptest.NewRequest(http.MethodPost, "/analyze/filepath",
				strings.NewReader(fmt.Sprintf(`{"file_path": %q}`, path)))

			rec := do(t, h, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			body := decodeBody(t, rec)
			if _, ok := body["error"]; !ok {
				t.Errorf("no error in body: %v", body)
			}
			if got := body["run_id"] == "run-9"; got != tt.wantRunID {
				t.Errorf("run_id = %v, want present %v", body["run_id"], tt.wantRunID)
			}
		})
	}
}

func TestAnalyzeXLSX(t *testing.T) {
	path := writeDoc(t, "lease.txt", "text")
	h := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/analyze/filepath?format=xlsx",
		strings.NewReader(fmt.Sprintf(`{"file_path": %q}`, path)))
	rec := do(t, h, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "lease-risk.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a workbook: %v", err)
	}
	defer f.Close()
	want := []string{report.SheetSummary, report.SheetFindings, report.SheetClauses, report.SheetCitations}
	if diff := cmp.Diff(want, f.GetSheetList()); diff != "" {
		t.Errorf("sheets (-want +got):\n%s", diff)
	}
}

func TestAuth(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{APIKey: "secret"})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is open", "/health", "", http.StatusOK},
		{"root is open", "/", "", http.StatusOK},
		{"missing token", "/sources", "", http.StatusUnauthorized},
		{"wrong token", "/sources", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/sources", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if rec := do(t, h, req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if id := rec.Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = do(t, h, req)
	if id := rec.Header().Get("X-Request-ID"); id != "abc-123" {
		t.Errorf("X-Request-ID = %q, want caller's", id)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{CORSOrigins: "https://app.example"})

	rec := do(t, h, httptest.NewRequest(http.MethodOptions, "/analyze/file", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestRecovery(t *testing.T) {
	path := writeDoc(t, "lease.txt", "text")
	fa := &fakeAnalyzer{analyze: func(context.Context, string) (*legalrisk.State, error) {
		panic("boom")
	}}
	h := newTestServer(t, fa, legalrisk.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/analyze/filepath",
		strings.NewReader(fmt.Sprintf(`{"file_path": %q}`, path)))
	if rec := do(t, h, req); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestIngest(t *testing.T) {
	statute := writeDoc(t, "rent_act.txt", "1.1 Deposits.")

	tests := []struct {
		name      string
		body      string
		ingestErr error
		want      int
		calls     int
	}{
		{"ok", fmt.Sprintf(`{"path": %q, "force": true}`, statute), nil, http.StatusOK, 1},
		{"invalid json", `nope`, nil, http.StatusBadRequest, 0},
		{"no path", `{}`, nil, http.StatusBadRequest, 0},
		{"directory", fmt.Sprintf(`{"path": %q}`, filepath.Dir(statute)), nil, http.StatusBadRequest, 0},
		{"unsupported", fmt.Sprintf(`{"path": %q}`, statute), fmt.Errorf("%w: .txt", parser.ErrUnsupportedFormat), http.StatusBadRequest, 1},
		{"engine failure", fmt.Sprintf(`{"path": %q}`, statute), errors.New("disk full"), http.StatusInternalServerError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAnalyzer{ingestErr: tt.ingestErr}
			h := newTestServer(t, fa, legalrisk.ServerConfig{})
			rec := do(t, h, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if len(fa.ingested) != tt.calls {
				t.Errorf("ingest calls = %d, want %d", len(fa.ingested), tt.calls)
			}
			if tt.want == http.StatusOK {
				if id := decodeBody(t, rec)["source_id"]; id != float64(7) {
					t.Errorf("source_id = %v", id)
				}
			}
		})
	}
}

func TestSources(t *testing.T) {
	fa := &fakeAnalyzer{sources: []store.Source{{ID: 3, Name: "Rent Act", Status: "ready", ClauseCount: 12}}}
	h := newTestServer(t, fa, legalrisk.ServerConfig{})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/sources", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Sources []store.Source `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fa.sources, body.Sources); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}

	// No sources is an empty list, not null.
	empty := newTestServer(t, &fakeAnalyzer{}, legalrisk.ServerConfig{})
	rec = do(t, empty, httptest.NewRequest(http.MethodGet, "/sources", nil))
	if !strings.Contains(rec.Body.String(), `"sources":[]`) {
		t.Errorf("body = %s, want empty list", rec.Body)
	}
}

func TestDeleteSource(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"ok", "/sources/3", nil, http.StatusOK},
		{"bad id", "/sources/abc", nil, http.StatusBadRequest},
		{"missing", "/sources/9", fmt.Errorf("%w: source 9", store.ErrNotFound), http.StatusNotFound},
		{"failure", "/sources/3", errors.New("locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAnalyzer{deleteErr: tt.err}
			h := newTestServer(t, fa, legalrisk.ServerConfig{})
			if rec := do(t, h, httptest.NewRequest(http.MethodDelete, tt.path, nil)); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRecentAnalyses(t *testing.T) {
	fa := &fakeAnalyzer{recent: []store.AnalysisRecord{{RunID: "r1", Status: "completed"}}}
	h := newTestServer(t, fa, legalrisk.ServerConfig{})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/analyses?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if fa.limit != 5 {
		t.Errorf("limit = %d, want 5", fa.limit)
	}

	for _, q := range []string{"0", "-1", "x", "501"} {
		rec := do(t, h, httptest.NewRequest(http.MethodGet, "/analyses?limit="+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", q, rec.Code)
		}
	}
}
