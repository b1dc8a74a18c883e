package parser

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultRegistry is the registry used by ParseFile when no explicit
// Registry is supplied.
var DefaultRegistry = NewRegistry()

// ParseFile resolves a document's format, extracts its text, cleans it, and
// rejects the result if it isn't meaningful. format may be "" or "auto" to
// infer the format from the file extension; when extension sniffing fails,
// every registered parser is tried in turn.
func ParseFile(ctx context.Context, path string, format string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileMissing, path)
	}

	if format == "" || format == "auto" {
		format = Sniff(path)
	}

	var raw string
	var err error

	if format != "" {
		p, gerr := DefaultRegistry.Get(format)
		if gerr != nil {
			return "", gerr
		}
		raw, err = p.Parse(ctx, path)
	} else {
		raw, err = parseByTrial(ctx, path)
	}
	if err != nil {
		return "", err
	}

	cleaned := cleanText(raw)
	if cleaned == "" {
		return "", ErrEmptyExtraction
	}
	if !isMeaningfulText(cleaned) {
		return "", ErrNotMeaningful
	}
	return cleaned, nil
}

// parseByTrial tries each registered parser in a fixed order until one
// succeeds, used when the extension gives no hint about the format.
func parseByTrial(ctx context.Context, path string) (string, error) {
	var lastErr error
	for _, format := range []string{"pdf", "docx", "xlsx", "txt"} {
		p, err := DefaultRegistry.Get(format)
		if err != nil {
			continue
		}
		text, err := p.Parse(ctx, path)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrFormatUnsupported
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// softHyphenRe matches a word fragment split across a line break by a
// trailing hyphen, e.g. "Go-\nogle" after whitespace collapse becomes
// "Go- ogle".
var softHyphenRe = regexp.MustCompile(`([A-Za-z0-9_]+)-\s+([A-Za-z0-9_]+)`)

// cleanText mirrors the original parser's whitespace and punctuation
// normalization: collapse runs of whitespace to a single space, collapse
// runs of 2+ identical special characters down to one, rejoin word
// fragments split by a soft hyphen, and trim ends.
func cleanText(text string) string {
	text = whitespaceRunRe.ReplaceAllString(text, " ")
	text = collapseRepeatedSpecials(text)
	text = softHyphenRe.ReplaceAllString(text, "$1$2")
	text = strings.TrimSpace(text)
	return text
}

// collapseRepeatedSpecials collapses runs of 2+ of the same non-word,
// non-whitespace rune into a single occurrence, leaving lone special
// characters untouched.
func collapseRepeatedSpecials(text string) string {
	var b strings.Builder
	runes := []rune(text)
	n := len(runes)
	for i := 0; i < n; {
		r := runes[i]
		if isWordOrSpace(r) {
			b.WriteRune(r)
			i++
			continue
		}
		j := i + 1
		for j < n && runes[j] == r {
			j++
		}
		b.WriteRune(r)
		i = j
	}
	return b.String()
}

func isWordOrSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' ||
		('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') || r == '_' ||
		r > 127 // treat non-ASCII (CJK, accented letters) as word runes
}

var meaningfulPattern = regexp.MustCompile(`[\x{4e00}-\x{9fa5}a-zA-Z0-9]{2,}`)

// isMeaningfulText rejects extracted text that is too short, has too few
// meaningful character sequences, or is dominated by punctuation — the
// signature of a garbled or non-text extraction.
func isMeaningfulText(text string) bool {
	if utf8.RuneCountInString(text) < 100 {
		return false
	}

	matches := meaningfulPattern.FindAllString(text, -1)
	if len(matches) < 10 {
		return false
	}

	total := utf8.RuneCountInString(text)
	punct := 0
	for _, r := range text {
		if !isWordOrSpace(r) {
			punct++
		}
	}
	if total > 0 && float64(punct)/float64(total) > 0.3 {
		return false
	}
	return true
}
