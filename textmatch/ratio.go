// Package textmatch provides the fuzzy string-similarity primitive shared by
// entity extraction validation, entity alignment, and relation-extractor
// capture matching: a single Levenshtein-based ratio in [0, 1].
package textmatch

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

// Ratio returns the Levenshtein similarity ratio between a and b, in [0, 1].
// 1 means identical strings; 0 means no similarity (or an empty operand).
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return float64(sim)
}

// NormalizeName lowercases, strips punctuation, and collapses whitespace —
// the canonical preprocessing applied to entity names before comparison.
func NormalizeName(name string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		case isPunct(r):
			// drop
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func isPunct(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?', '\'', '"', '(', ')', '[', ']', '{', '}',
		'-', '_', '/', '\\', '、', '，', '。', '！', '？', '：', '；', '“', '”', '‘', '’', '（', '）':
		return true
	}
	return false
}

// Contains reports whether haystack contains needle after both are
// lowercased, used for the substring stage of the matching cascade.
func Contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
