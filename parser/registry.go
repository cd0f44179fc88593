package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	// Register built-in parsers
	for _, p := range []Parser{&TextParser{}, &PDFParser{}, &DOCXParser{}, &PageJSONParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p, nil
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// Format returns the lower-cased extension of path without the dot.
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Parse resolves the parser for path and runs it. Errors are classified as
// ErrNotFound, ErrUnsupportedFormat or ErrUnreadable.
func (r *Registry) Parse(ctx context.Context, path string) (*ParseResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnreadable, path)
	}

	p, err := r.Get(Format(path))
	if err != nil {
		return nil, err
	}

	result, err := p.Parse(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnreadable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return result, nil
}

// Load returns the plain text of the document at path.
func (r *Registry) Load(ctx context.Context, path string) (string, error) {
	result, err := r.Parse(ctx, path)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}

var defaultRegistry = NewRegistry()

// Load returns the plain text of the document at path using the built-in
// parsers.
func Load(ctx context.Context, path string) (string, error) {
	return defaultRegistry.Load(ctx, path)
}
