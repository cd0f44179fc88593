// Package parser turns document files into plain text for analysis and
// statute ingestion.
package parser

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when the document path does not exist.
	ErrNotFound = errors.New("parser: document not found")

	// ErrUnreadable is returned when the file exists but cannot be read or
	// decoded (permissions, corrupt archive, malformed XML or PDF).
	ErrUnreadable = errors.New("parser: document unreadable")

	// ErrUnsupportedFormat is returned for extensions with no registered parser.
	ErrUnsupportedFormat = errors.New("parser: unsupported document format")
)

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section // Ordered sections extracted from the document
	Method   string    // "native"
	Metadata map[string]string
}

// Section represents a logical section of a parsed document.
type Section struct {
	Heading    string
	Content    string
	Level      int // Heading level (1=top, 2=sub, etc.)
	PageNumber int
	Type       string // "section", "table", "definition", "obligation", "termination", "paragraph"
}

// Text flattens the sections back into plain text, headings first, with a
// blank line between sections. An empty result yields "".
func (r *ParseResult) Text() string {
	var b strings.Builder
	for _, s := range r.Sections {
		for _, part := range []string{s.Heading, s.Content} {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(part)
		}
	}
	return b.String()
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
