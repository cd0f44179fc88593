// Package report interprets synthesizer output and renders analysis
// results for people: parsed findings, citation checks and spreadsheet
// export.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Analysis is the best-effort structured view of a synthesizer answer.
// When the answer is not JSON, Structured is false and ExecutiveSummary
// holds the whole text.
type Analysis struct {
	Omissions        []string `json:"omissions"`
	Corrections      []string `json:"corrections"`
	Compliance       []string `json:"compliance"`
	Risks            []string `json:"risks"`
	Recommendations  []string `json:"recommendations"`
	ExecutiveSummary string   `json:"executive_summary"`
	Structured       bool     `json:"structured"`
}

// Finding is one categorized line item of an Analysis.
type Finding struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Findings lists every item in display order.
func (a *Analysis) Findings() []Finding {
	var out []Finding
	add := func(cat string, items []string) {
		for _, it := range items {
			out = append(out, Finding{Category: cat, Text: it})
		}
	}
	add("Omissions", a.Omissions)
	add("Corrections", a.Corrections)
	add("Compliance", a.Compliance)
	add("Risks", a.Risks)
	add("Recommendations", a.Recommendations)
	return out
}

// Parse interprets raw synthesizer output. It accepts a ```json fenced
// block anywhere in the text, a bare JSON object, or falls back to prose.
func Parse(raw string) *Analysis {
	if body, ok := jsonBody(raw); ok {
		var w wireAnalysis
		if err := json.Unmarshal([]byte(body), &w); err == nil {
			return &Analysis{
				Omissions:        w.Omissions,
				Corrections:      w.Corrections,
				Compliance:       w.Compliance,
				Risks:            w.Risks,
				Recommendations:  w.Recommendations,
				ExecutiveSummary: w.ExecutiveSummary.String(),
				Structured:       true,
			}
		}
	}
	return &Analysis{ExecutiveSummary: strings.TrimSpace(raw)}
}

func jsonBody(raw string) (string, bool) {
	if i := strings.Index(raw, "```json"); i >= 0 {
		rest := raw[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest), true
	}
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, "{") {
		return s, true
	}
	return "", false
}

type wireAnalysis struct {
	Omissions        looseList `json:"omissions"`
	Corrections      looseList `json:"corrections"`
	Compliance       looseList `json:"compliance"`
	Risks            looseList `json:"risks"`
	Recommendations  looseList `json:"recommendations"`
	ExecutiveSummary looseText `json:"executive_summary"`
}

// looseList accepts a string, a list of strings or a list of arbitrary
// values. Non-string items are kept as compact JSON.
type looseList []string

func (l *looseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "" {
			*l = looseList{s}
		}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("report: expected list, got %s", data)
	}
	out := make(looseList, 0, len(items))
	for _, it := range items {
		out = append(out, looseText(it).String())
	}
	*l = out
	return nil
}

// looseText is any JSON value rendered as text.
type looseText json.RawMessage

func (t *looseText) UnmarshalJSON(data []byte) error {
	*t = append((*t)[:0], data...)
	return nil
}

func (t looseText) String() string {
	if len(t) == 0 || string(t) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(t, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, t); err != nil {
		return string(t)
	}
	return buf.String()
}
