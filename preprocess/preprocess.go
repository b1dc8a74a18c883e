// Package preprocess implements the Preprocessor component: text
// normalization and near-duplicate detection ahead of entity extraction.
package preprocess

import "strings"

// Strategy normalizes a single text and deduplicates a batch of texts. Both
// SimHash and MinHash implement it; callers that only need normalization can
// use either interchangeably.
type Strategy interface {
	// Process normalizes a single text segment.
	Process(text string) string
	// Dedupe removes near-duplicate texts, keeping the first occurrence of
	// each equivalence class, in input order.
	Dedupe(texts []string) []string
}

// Normalize trims surrounding whitespace. Both strategies in this package
// share this as their Process step; the algorithms differ only in Dedupe.
func Normalize(text string) string {
	return strings.TrimSpace(text)
}
