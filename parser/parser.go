// Package parser implements the File Parser component: it extracts plain
// text from a single document, one strategy per supported format.
package parser

import "context"

// Parser extracts plain text from one document format.
type Parser interface {
	// Parse reads the file at path and returns its raw extracted text,
	// before any post-processing or meaningfulness checks.
	Parse(ctx context.Context, path string) (string, error)
	// SupportedFormats lists the format tags this parser handles (e.g. "pdf").
	SupportedFormats() []string
}
