package eval

import (
	"strings"
	"unicode"

	"github.com/brunobiangulo/legalrisk/extractor"
	"github.com/brunobiangulo/legalrisk/report"
	"github.com/brunobiangulo/legalrisk/retrieval"
)

// normalizeLLMText folds the Unicode spaces, hyphens and zero-width
// characters LLMs like to emit so substring matching works.
func normalizeLLMText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r == '\u2010' || r == '\u2011' || r == '\u2012' || r == '\u2013' || r == '\u2014':
			b.WriteByte('-')
		case r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF':
			// strip zero-width characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// containsFact reports whether text mentions any pipe-separated
// alternative of fact, ignoring case, spacing and hyphenation.
func containsFact(text, fact string) bool {
	normalized := normalizeLLMText(strings.ToLower(text))
	spaceless := strings.ReplaceAll(normalized, " ", "")
	hyphenless := strings.ReplaceAll(spaceless, "-", "")
	for _, alt := range strings.Split(fact, "|") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		normAlt := normalizeLLMText(strings.ToLower(alt))
		noSpace := strings.ReplaceAll(normAlt, " ", "")
		if strings.Contains(normalized, normAlt) ||
			strings.Contains(spaceless, noSpace) ||
			strings.Contains(hyphenless, strings.ReplaceAll(noSpace, "-", "")) {
			return true
		}
	}
	return false
}

// computeAccuracy is the share of expected facts the analysis mentions.
func computeAccuracy(analysis string, facts []string) float64 {
	if len(facts) == 0 {
		return 1
	}
	if analysis == "" {
		return 0
	}
	found := 0
	for _, f := range facts {
		if containsFact(analysis, f) {
			found++
		}
	}
	return float64(found) / float64(len(facts))
}

// computeExtraction scores the document report against the expected
// purpose and party names.
func computeExtraction(r *extractor.DocumentReport, purpose string, parties []string) float64 {
	total := len(parties)
	if purpose != "" {
		total++
	}
	if total == 0 {
		return 1
	}
	if r == nil {
		return 0
	}

	found := 0
	if purpose != "" && containsFact(r.Purpose, purpose) {
		found++
	}
	for _, want := range parties {
		for _, p := range r.Parties {
			if containsFact(p.Name, want) {
				found++
				break
			}
		}
	}
	return float64(found) / float64(total)
}

// computeRetrievalRecall is the share of expected statutes that at least
// one retrieved clause came from.
func computeRetrievalRecall(clauses []retrieval.Clause, sources []string) float64 {
	if len(sources) == 0 {
		return 1
	}
	found := 0
	for _, want := range sources {
		for _, c := range clauses {
			if containsFact(c.Source, want) {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(sources))
}

// computeCitationQuality is the share of references in the analysis that
// point at a retrieved clause. An analysis citing nothing scores 0.
func computeCitationQuality(cites []report.Citation) float64 {
	if len(cites) == 0 {
		return 0
	}
	verified := 0
	for _, c := range cites {
		if c.Verified {
			verified++
		}
	}
	return float64(verified) / float64(len(cites))
}
