// Package synthesis produces the narrative risk report from the document
// text and the statute clauses retrieved for it.
package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/legalrisk/llm"
	"github.com/brunobiangulo/legalrisk/logging"
	"github.com/brunobiangulo/legalrisk/retrieval"
)

// ErrModelCall is returned when the model endpoint fails.
var ErrModelCall = errors.New("synthesis: model call failed")

// Report keys the prompt asks the model to produce.
const (
	KeyOmissions        = "omissions"
	KeyCorrections      = "corrections"
	KeyCompliance       = "compliance"
	KeyRisks            = "risks"
	KeyRecommendations  = "recommendations"
	KeyExecutiveSummary = "executive_summary"
)

const promptTemplate = `You are a legal analyst reviewing a document for omissions and required corrections.
Your inputs are the document and a list of context clauses taken from government acts and laws.

Original document:
%s

Clauses from government acts and laws (JSON):
%s

Analyze the document and report:
- Omissions: missing information or clauses that should be included
- Corrections: incorrect or misleading information that needs to be revised
- Compliance: sections that do not comply with the law
- Risks: potential risks or liabilities in the document
- Recommendations: suggestions for improving the document
- Executive Summary: a brief summary of the analysis

Return a JSON object in this format:
{
    "omissions": ["Missing clause X"],
    "corrections": ["Correct clause Y"],
    "compliance": ["Non-compliant section Z"],
    "risks": ["Risk of ABC"],
    "recommendations": ["Include clause A"],
    "executive_summary": "The document is mostly compliant with the law, but several areas need attention."
}`

// Chatter is the slice of llm.Provider the synthesizer needs.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Config tunes the synthesis request.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider for a JSON object response. The output is
	// returned as-is either way.
	JSONMode bool
}

// Synthesizer implements the risk-synthesis stage.
type Synthesizer struct {
	chat Chatter
	cfg  Config
	rec  logging.Recorder
}

// New creates a Synthesizer. A nil recorder discards diagnostics.
func New(chat Chatter, cfg Config, rec logging.Recorder) *Synthesizer {
	if rec == nil {
		rec = logging.Discard
	}
	return &Synthesizer{chat: chat, cfg: cfg, rec: rec}
}

// Synthesize returns the model's analysis verbatim.
func (s *Synthesizer) Synthesize(ctx context.Context, documentText string, clauses []retrieval.Clause) (string, error) {
	prompt, err := BuildPrompt(documentText, clauses)
	if err != nil {
		return "", err
	}

	req := llm.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}
	if s.cfg.JSONMode {
		req.ResponseFormat = "json_object"
	}

	s.rec.Record(ctx, slog.LevelDebug, "synthesis: invoking model",
		"document_chars", len(documentText), "clauses", len(clauses))

	start := time.Now()
	resp, err := s.chat.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	s.rec.Record(ctx, slog.LevelInfo, "synthesis: analysis complete",
		"chars", len(resp.Content),
		"finish_reason", resp.FinishReason,
		"tokens", resp.TotalTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return resp.Content, nil
}

// BuildPrompt renders the analysis prompt. Every field of every clause is
// included; no clauses renders as an empty JSON array.
func BuildPrompt(documentText string, clauses []retrieval.Clause) (string, error) {
	if clauses == nil {
		clauses = []retrieval.Clause{}
	}
	data, err := json.MarshalIndent(clauses, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding clauses: %w", err)
	}
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(documentText), data), nil
}
