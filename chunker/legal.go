package chunker

import (
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Clause boundary detection
// ---------------------------------------------------------------------------

// clausePattern matches hierarchical numbered clauses such as
// "1.1", "1.1.1", "12.3.4", etc. at the start of a line.
var clausePattern = regexp.MustCompile(`^(\d+(?:\.\d+)+)\s`)

// headedClausePattern matches statute-style headings such as
// "Section 4", "Article 12" or "Clause 7.2" at the start of a line.
var headedClausePattern = regexp.MustCompile(`(?i)^(?:section|article|clause|§)\s*(\d+(?:\.\d+)*[a-z]?)\b`)

// DetectClauseBoundaries scans text and returns the byte offsets where
// new clauses begin.  Each entry in the returned slice is the index of the
// first byte of a line starting with a clause number or clause heading.
func DetectClauseBoundaries(text string) []int {
	lines := strings.Split(text, "\n")
	var boundaries []int
	offset := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if clausePattern.MatchString(trimmed) || headedClausePattern.MatchString(trimmed) {
			boundaries = append(boundaries, offset)
		}
		offset += len(line) + 1 // +1 for the newline
	}
	return boundaries
}

// SplitByClauses splits text at clause boundaries so that each
// returned string starts with a clause number.  Text before the
// first clause (preamble) is returned as the first element if
// non-empty.
func SplitByClauses(text string) []string {
	boundaries := DetectClauseBoundaries(text)
	if len(boundaries) == 0 {
		return []string{text}
	}

	var parts []string
	for i, b := range boundaries {
		// Preamble before the first clause.
		if i == 0 && b > 0 {
			preamble := strings.TrimSpace(text[:b])
			if preamble != "" {
				parts = append(parts, preamble)
			}
		}

		var end int
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		} else {
			end = len(text)
		}
		part := strings.TrimSpace(text[b:end])
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// ExtractClauseNumber extracts the leading clause number from text.
// For example, given "1.2.3 The tenant shall..." or "Section 1.2.3 Rent"
// it returns "1.2.3" and true.
func ExtractClauseNumber(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if m := clausePattern.FindStringSubmatch(text); len(m) >= 2 {
		return m[1], true
	}
	if m := headedClausePattern.FindStringSubmatch(text); len(m) >= 2 {
		return m[1], true
	}
	return "", false
}

// ClauseDepth returns the nesting depth of a clause number.
// "1.1" returns 2, "1.1.1" returns 3, etc.
func ClauseDepth(clause string) int {
	if clause == "" {
		return 0
	}
	return strings.Count(clause, ".") + 1
}

// ---------------------------------------------------------------------------
// Cross-reference detection
// ---------------------------------------------------------------------------

// crossRefPatterns match common cross-reference styles found in legal
// and contractual documents.
var crossRefPatterns = []*regexp.Regexp{
	// "clause 1.2", "Clause 1.2.3"
	regexp.MustCompile(`(?i)\bclause\s+(\d+(?:\.\d+)*)`),
	// "section 1.2", "Section 3"
	regexp.MustCompile(`(?i)\bsection\s+(\d+(?:\.\d+)*)`),
	// "article 5", "Article IV"
	regexp.MustCompile(`(?i)\barticle\s+(\d+|[IVXLCDM]+)`),
	// "schedule 1", "Schedule A"
	regexp.MustCompile(`(?i)\bschedule\s+([A-Z0-9]+)`),
	// "appendix A", "Appendix 3"
	regexp.MustCompile(`(?i)\bappendix\s+([A-Z0-9]+)`),
	// "annex 1", "Annex B"
	regexp.MustCompile(`(?i)\bannex\s+([A-Z0-9]+)`),
	// Parenthetical references: "(see 1.2.3)", "(ref. 4.5)"
	regexp.MustCompile(`\((?:see|ref\.?)\s+(\d+(?:\.\d+)*)\)`),
}

// CrossReference holds a detected cross-reference within text.
type CrossReference struct {
	FullMatch string // The entire matched substring (e.g. "clause 1.2.3")
	Target    string // The reference target (e.g. "1.2.3")
	Type      string // "clause", "section", "article", "schedule", "appendix", "annex", "ref"
	Offset    int    // Byte offset of the match within the input text
}

// DetectCrossReferences scans text and returns all cross-references
// found.
func DetectCrossReferences(text string) []CrossReference {
	typeLabels := []string{
		"clause", "section", "article", "schedule", "appendix", "annex", "ref",
	}

	var refs []CrossReference
	for i, re := range crossRefPatterns {
		matches := re.FindAllStringSubmatchIndex(text, -1)
		for _, loc := range matches {
			if len(loc) < 4 {
				continue
			}
			refs = append(refs, CrossReference{
				FullMatch: text[loc[0]:loc[1]],
				Target:    text[loc[2]:loc[3]],
				Type:      typeLabels[i],
				Offset:    loc[0],
			})
		}
	}
	return refs
}
