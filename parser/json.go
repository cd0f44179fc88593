package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// PageJSONParser reads statute dumps produced by the OCR/ETL step: a JSON
// object with a "text_by_page" array of {"page", "text"} entries. Each page
// becomes one section.
type PageJSONParser struct{}

func (p *PageJSONParser) SupportedFormats() []string { return []string{"json"} }

type pageDump struct {
	Title      string `json:"title"`
	TextByPage []struct {
		Page int    `json:"page"`
		Text string `json:"text"`
	} `json:"text_by_page"`
}

func (p *PageJSONParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading page dump: %w", err)
	}

	var dump pageDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("decoding page dump: %w", err)
	}
	if dump.TextByPage == nil {
		return nil, fmt.Errorf("page dump has no text_by_page array")
	}

	sections := make([]Section, 0, len(dump.TextByPage))
	for i, pg := range dump.TextByPage {
		page := pg.Page
		if page == 0 {
			page = i + 1
		}
		sections = append(sections, Section{
			Content:    pg.Text,
			PageNumber: page,
			Type:       "paragraph",
		})
	}

	result := &ParseResult{
		Sections: sections,
		Method:   "native",
		Metadata: map[string]string{"pages": strconv.Itoa(len(sections))},
	}
	if dump.Title != "" {
		result.Metadata["title"] = dump.Title
	}
	return result, nil
}
