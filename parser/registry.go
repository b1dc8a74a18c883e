package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Registry resolves a format tag to the Parser that handles it.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds the registry with the four supported formats.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&PDFParser{}, &DOCXParser{}, &XLSXParser{}, &TextParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Get returns the parser registered for format, or ErrFormatUnsupported.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFormatUnsupported, format)
	}
	return p, nil
}

// Register installs or overrides the parser for a format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// Sniff infers a format tag from a file's extension. It never inspects file
// content — when it returns "", ParseFile falls back to trying each
// registered parser in turn (parseByTrial).
func Sniff(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "pdf", "docx", "xlsx":
		return ext
	case "txt", "text":
		return "txt"
	default:
		return ""
	}
}
