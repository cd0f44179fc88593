// Package chunker splits parsed statute text into retrievable clauses.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/brunobiangulo/legalrisk/parser"
	"github.com/brunobiangulo/legalrisk/store"
)

// Config controls the chunking behaviour. Sizes are in characters.
type Config struct {
	MaxChars int // Maximum characters per chunk.
	Overlap  int // Characters of trailing context repeated in the next chunk.
}

// Chunker converts parsed document sections into store-ready clauses.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with defaults (2048 / 200).
func New(cfg Config) *Chunker {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 2048
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	} else if cfg.Overlap == 0 {
		cfg.Overlap = 200
	}
	if cfg.Overlap >= cfg.MaxChars {
		cfg.Overlap = cfg.MaxChars / 10
	}
	return &Chunker{cfg: cfg}
}

// Chunk converts parsed sections into clauses in document order. The
// returned clauses have no ID or SourceID; those are assigned on insert.
func (c *Chunker) Chunk(sections []parser.Section) []store.Clause {
	var out []store.Clause
	for _, sec := range sections {
		text := strings.TrimSpace(sec.Content)
		if sec.Heading != "" {
			text = strings.TrimSpace(sec.Heading + "\n" + text)
		}
		if text == "" {
			continue
		}
		for _, frag := range c.Split(text) {
			number, ok := ExtractClauseNumber(frag)
			if !ok {
				number, _ = ExtractClauseNumber(sec.Heading)
			}
			out = append(out, store.Clause{
				Text:         frag,
				Heading:      sec.Heading,
				ClauseNumber: number,
				PageNumber:   sec.PageNumber,
				Position:     len(out),
				ContentHash:  contentHash(frag),
			})
		}
	}
	return out
}

// separators are tried in order once clause boundaries are exhausted.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split breaks text into fragments of at most MaxChars characters. Numbered
// clause boundaries are the preferred split points, then paragraphs, lines,
// sentences and words. Consecutive fragments share up to Overlap characters.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runeLen(text) <= c.cfg.MaxChars {
		return []string{text}
	}

	return c.splitPieces(SplitByClauses(text), "\n\n", separators)
}

// splitRecursive splits text on the first separator it contains, recursing
// with the finer separators on pieces that are still too long.
func (c *Chunker) splitRecursive(text string, seps []string) []string {
	for i, sep := range seps {
		if sep == "" {
			return c.splitPieces(splitRunes(text, c.cfg.MaxChars), sep, nil)
		}
		if strings.Contains(text, sep) {
			return c.splitPieces(strings.Split(text, sep), sep, seps[i+1:])
		}
	}
	return splitRunes(text, c.cfg.MaxChars)
}

// splitPieces merges runs of short pieces and splits long ones further
// with the remaining separators, keeping document order.
func (c *Chunker) splitPieces(pieces []string, sep string, rest []string) []string {
	var out []string
	var small []string
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if runeLen(p) <= c.cfg.MaxChars {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			out = append(out, c.merge(small, sep)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, splitRunes(p, c.cfg.MaxChars)...)
		} else {
			out = append(out, c.splitRecursive(p, rest)...)
		}
	}
	if len(small) > 0 {
		out = append(out, c.merge(small, sep)...)
	}
	return out
}

// merge packs pieces into fragments of at most MaxChars, carrying trailing
// pieces worth up to Overlap characters into the next fragment.
func (c *Chunker) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var out []string
	var window []string
	total := 0

	for _, p := range pieces {
		plen := runeLen(p)
		join := 0
		if len(window) > 0 {
			join = sepLen
		}
		if total+join+plen > c.cfg.MaxChars && len(window) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(window, sep)))
			// Drop from the front until the carried tail fits the overlap
			// and leaves room for p.
			for len(window) > 0 && (total > c.cfg.Overlap || total+sepLen+plen > c.cfg.MaxChars) {
				total -= runeLen(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, p)
		total += plen
	}
	if len(window) > 0 {
		out = append(out, strings.TrimSpace(strings.Join(window, sep)))
	}
	return out
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// splitRunes hard-cuts text every n runes.
func splitRunes(text string, n int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > n {
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// contentHash returns the SHA-256 hex digest of text.
func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
