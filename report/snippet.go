package report

import (
	"strings"
	"unicode"
)

// passageMaxLen is the approximate maximum length of a passage, in bytes.
const passageMaxLen = 300

// Passage returns the one or two adjacent sentences of clause that share
// the most significant words with against. It returns "" when no sentence
// shares any.
func Passage(clause, against string) string {
	return passage(clause, significantWords(against))
}

func passage(clause string, words map[string]bool) string {
	if len(words) == 0 || clause == "" {
		return ""
	}
	sentences := splitSentences(clause)
	if len(sentences) == 0 {
		return ""
	}

	scores := make([]int, len(sentences))
	best := 0
	for i, s := range sentences {
		for w := range significantWords(s) {
			if words[w] {
				scores[i]++
			}
		}
		if scores[i] > scores[best] {
			best = i
		}
	}
	if scores[best] == 0 {
		return ""
	}

	out := sentences[best]
	if len(out) >= passageMaxLen {
		return out
	}

	// Extend with the stronger neighbour when it also matches and fits.
	next := -1
	for _, adj := range []int{best + 1, best - 1} {
		if adj >= 0 && adj < len(sentences) && scores[adj] > 0 && (next < 0 || scores[adj] > scores[next]) {
			next = adj
		}
	}
	if next < 0 {
		return out
	}
	combined := out + " " + sentences[next]
	if next < best {
		combined = sentences[next] + " " + out
	}
	if len(combined) <= passageMaxLen {
		return combined
	}
	return out
}

// significantWords returns the lowercased words of four or more
// characters, minus stop words.
func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) >= 4 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

// splitSentences splits at '.', '?', '!' and ';' followed by whitespace or
// the end of the text. A terminator right after a digit ("4.1", "Sec. 4.")
// is treated as numbering, not a sentence end.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		switch r {
		case '.', '?', '!', ';':
		default:
			continue
		}
		if r == '.' && i > 0 && unicode.IsDigit(runes[i-1]) && i+1 < len(runes) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(cur.String()); s != "" {
			sentences = append(sentences, s)
		}
		cur.Reset()
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

var stopWords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true,
	"have": true, "been": true, "were": true, "they": true,
	"their": true, "will": true, "would": true, "could": true,
	"should": true, "about": true, "which": true, "there": true,
	"these": true, "those": true, "then": true, "than": true,
	"them": true, "what": true, "when": true, "where": true,
	"shall": true, "such": true, "said": true, "hereby": true,
	"herein": true, "thereof": true, "under": true, "upon": true,
	"into": true, "over": true, "each": true, "other": true,
	"being": true, "same": true, "both": true, "between": true,
	"also": true, "only": true, "must": true, "does": true,
}
