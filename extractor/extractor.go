// Package extractor turns raw legal-document text into a typed
// DocumentReport with one schema-constrained model call.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/legalrisk/llm"
	"github.com/brunobiangulo/legalrisk/logging"
)

var (
	// ErrEmptyDocument is returned for whitespace-only input. No model call
	// is made.
	ErrEmptyDocument = errors.New("extractor: document has no text")

	// ErrModelCall is returned when the model endpoint fails (network,
	// auth, rate limit, server error).
	ErrModelCall = errors.New("extractor: model call failed")

	// ErrSchemaViolation is returned when the model answered but the
	// output does not match the DocumentReport shape.
	ErrSchemaViolation = errors.New("extractor: output violates report schema")
)

// Party is one party named in the document, in order of appearance.
type Party struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// DocumentReport is the structured extraction result. The location and
// date fields are nil when the model found nothing and point to "" when
// it found an empty value.
type DocumentReport struct {
	Purpose          string   `json:"purpose"`
	Parties          []Party  `json:"parties_involved"`
	Date             *string  `json:"date"`
	City             *string  `json:"city"`
	State            *string  `json:"state"`
	Country          *string  `json:"country"`
	ImportantClauses []string `json:"important_clauses"`
}

// Chatter is the slice of llm.Provider the extractor needs.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Config tunes the extraction request.
type Config struct {
	Model       string  // optional override of the provider's model
	Temperature float64 // 0.1 keeps extraction close to deterministic
	MaxTokens   int
}

// Extractor implements the structured-extraction stage.
type Extractor struct {
	chat Chatter
	cfg  Config
	rec  logging.Recorder
}

// New creates an Extractor. A nil recorder discards diagnostics.
func New(chat Chatter, cfg Config, rec logging.Recorder) *Extractor {
	if rec == nil {
		rec = logging.Discard
	}
	return &Extractor{chat: chat, cfg: cfg, rec: rec}
}

// Extract asks the model for a DocumentReport describing rawText.
func (e *Extractor) Extract(ctx context.Context, rawText string) (*DocumentReport, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, ErrEmptyDocument
	}

	start := time.Now()
	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Model: e.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, rawText)},
		},
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Schema:      ReportSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	report, err := Decode(resp.Content)
	if err != nil {
		e.rec.Record(ctx, slog.LevelWarn, "extractor: invalid model output",
			"error", err, "finish_reason", resp.FinishReason, "bytes", len(resp.Content))
		return nil, err
	}

	e.rec.Record(ctx, slog.LevelInfo, "extractor: report extracted",
		"purpose", report.Purpose,
		"parties", len(report.Parties),
		"clauses", len(report.ImportantClauses),
		"tokens", resp.TotalTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return report, nil
}

var requiredKeys = []string{"purpose", "parties_involved", "important_clauses"}

// Decode validates model output against the report shape. A single
// markdown code fence around the JSON is tolerated; anything else that is
// not a JSON object is a schema violation.
func Decode(content string) (*DocumentReport, error) {
	body := []byte(stripFence(content))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrSchemaViolation, err)
	}
	for _, k := range requiredKeys {
		raw, ok := fields[k]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrSchemaViolation, k)
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, fmt.Errorf("%w: %q is null", ErrSchemaViolation, k)
		}
	}

	var report DocumentReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	for i, p := range report.Parties {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: parties_involved[%d] has no name", ErrSchemaViolation, i)
		}
	}
	if report.Parties == nil {
		report.Parties = []Party{}
	}
	if report.ImportantClauses == nil {
		report.ImportantClauses = []string{}
	}
	return &report, nil
}

// stripFence removes one surrounding ``` or ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
