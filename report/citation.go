package report

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brunobiangulo/legalrisk/chunker"
	"github.com/brunobiangulo/legalrisk/retrieval"
)

// Citation is a reference found in the analysis text.
type Citation struct {
	Text        string `json:"text"`         // matched text, e.g. "Section 3.2"
	Kind        string `json:"kind"`         // section, clause, article, file, source, page...
	Target      string `json:"target"`       // reference target, e.g. "3.2"
	ClauseIndex int    `json:"clause_index"` // index into the retrieved clauses, -1 if unmatched
	ClauseID    string `json:"clause_id,omitempty"`
	Verified    bool   `json:"verified"`
	// Passage is the part of the matched clause closest to the analysis.
	Passage string `json:"passage,omitempty"`
}

var (
	fileRefPattern   = regexp.MustCompile(`\b([\w\-]+\.(?:pdf|docx|txt|json))\b`)
	sourceNumPattern = regexp.MustCompile(`\[Source\s*(\d+)\]`)
	pagePattern      = regexp.MustCompile(`(?:Page|p\.)\s*(\d+)`)
)

type match struct {
	Citation
	offset int
}

// Citations finds the references in analysis and checks each one against
// the retrieved clauses. Results are in order of appearance.
func Citations(analysis string, clauses []retrieval.Clause) []Citation {
	var found []match
	seen := make(map[string]bool)
	words := significantWords(analysis)
	add := func(text, kind, target string, offset int) {
		key := strings.ToLower(text)
		if seen[key] {
			return
		}
		seen[key] = true
		c := Citation{Text: text, Kind: kind, Target: target, ClauseIndex: -1}
		if i, ok := matchClause(kind, target, text, clauses); ok {
			c.ClauseIndex = i
			c.ClauseID = clauses[i].ID
			c.Verified = true
			c.Passage = passage(clauses[i].Text, words)
		}
		found = append(found, match{Citation: c, offset: offset})
	}

	for _, ref := range chunker.DetectCrossReferences(analysis) {
		add(ref.FullMatch, ref.Type, ref.Target, ref.Offset)
	}
	for _, loc := range fileRefPattern.FindAllStringSubmatchIndex(analysis, -1) {
		target := strings.TrimSpace(analysis[loc[2]:loc[3]])
		add(target, "file", target, loc[2])
	}
	for _, loc := range sourceNumPattern.FindAllStringSubmatchIndex(analysis, -1) {
		add(analysis[loc[0]:loc[1]], "source_number", analysis[loc[2]:loc[3]], loc[0])
	}
	for _, loc := range pagePattern.FindAllStringSubmatchIndex(analysis, -1) {
		add(analysis[loc[0]:loc[1]], "page", analysis[loc[2]:loc[3]], loc[0])
	}

	// Statute names quoted directly in the analysis.
	lower := strings.ToLower(analysis)
	for _, c := range clauses {
		name := strings.TrimSpace(c.Source)
		if name == "" {
			continue
		}
		if off := strings.Index(lower, strings.ToLower(name)); off >= 0 {
			add(name, "source", name, off)
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].offset < found[j].offset })
	out := make([]Citation, len(found))
	for i, m := range found {
		out[i] = m.Citation
	}
	return out
}

// matchClause finds the retrieved clause a reference points at.
func matchClause(kind, target, text string, clauses []retrieval.Clause) (int, bool) {
	lowerTarget := strings.ToLower(target)
	switch kind {
	case "source_number":
		n, err := strconv.Atoi(target)
		if err == nil && n > 0 && n <= len(clauses) {
			return n - 1, true
		}
		return 0, false
	case "file", "source":
		for i, c := range clauses {
			if c.Source != "" && strings.Contains(strings.ToLower(c.Source), lowerTarget) {
				return i, true
			}
		}
		return 0, false
	case "page":
		return 0, false
	}

	// Numbered references: the clause carries that number, or quotes the
	// reference verbatim.
	lowerText := strings.ToLower(text)
	for i, c := range clauses {
		if num, ok := chunker.ExtractClauseNumber(c.Text); ok && strings.EqualFold(num, target) {
			return i, true
		}
	}
	for i, c := range clauses {
		if strings.Contains(strings.ToLower(c.Text), lowerText) {
			return i, true
		}
	}
	return nearestParent(target, clauses)
}

// nearestParent matches a sub-clause reference ("4.1.3") to the deepest
// retrieved clause it falls under ("4.1" before "4").
func nearestParent(target string, clauses []retrieval.Clause) (int, bool) {
	best, bestDepth := 0, 0
	for i, c := range clauses {
		num, ok := chunker.ExtractClauseNumber(c.Text)
		if !ok || !strings.HasPrefix(target, num+".") {
			continue
		}
		if d := chunker.ClauseDepth(num); d > bestDepth {
			best, bestDepth = i, d
		}
	}
	return best, bestDepth > 0
}
