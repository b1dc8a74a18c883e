package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry()

	formats := []struct {
		format     string
		wantParser string
	}{
		{"pdf", "*parser.PDFParser"},
		{"docx", "*parser.DOCXParser"},
		{"xlsx", "*parser.XLSXParser"},
		{"xls", "*parser.XLSXParser"},
		{"txt", "*parser.TextParser"},
	}

	for _, tt := range formats {
		t.Run(tt.format, func(t *testing.T) {
			p, err := reg.Get(tt.format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", tt.format, err)
			}
			if p == nil {
				t.Fatalf("Get(%q) returned nil parser", tt.format)
			}
			supported := p.SupportedFormats()
			found := false
			for _, f := range supported {
				if f == tt.format {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("parser for %q does not list %q in SupportedFormats(): %v",
					tt.format, tt.format, supported)
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()

	unknownFormats := []string{"csv", "json", "html", "rtf", "odt", ""}
	for _, format := range unknownFormats {
		t.Run("format_"+format, func(t *testing.T) {
			p, err := reg.Get(format)
			if err == nil {
				t.Errorf("Get(%q) expected error for unknown format, got parser: %v", format, p)
			}
			if p != nil {
				t.Errorf("Get(%q) expected nil parser for unknown format", format)
			}
		})
	}
}

func TestRegistryCustomParser(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Get("custom"); err == nil {
		t.Fatal("expected error for unregistered format")
	}

	reg.Register("custom", &PDFParser{}) // reuse PDFParser as a stand-in
	p, err := reg.Get("custom")
	if err != nil {
		t.Fatalf("Get(\"custom\") after Register returned error: %v", err)
	}
	if p == nil {
		t.Fatal("Get(\"custom\") returned nil after Register")
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"report.pdf", "pdf"},
		{"report.PDF", "pdf"},
		{"notes.docx", "docx"},
		{"data.xlsx", "xlsx"},
		{"readme.txt", "txt"},
		{"readme.text", "txt"},
		{"archive.zip", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := Sniff(tt.path); got != tt.want {
			t.Errorf("Sniff(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestTextParserEncodings(t *testing.T) {
	dir := t.TempDir()

	utf8Path := filepath.Join(dir, "utf8.txt")
	content := strings.Repeat("百度公司于2023年推出文心一言，这是一段测试文本用于验证解析器。", 3)
	if err := os.WriteFile(utf8Path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &TextParser{}
	got, err := p.Parse(context.Background(), utf8Path)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got != content {
		t.Errorf("Parse() = %q, want %q", got, content)
	}
}

func TestTextParserMissingFile(t *testing.T) {
	p := &TextParser{}
	_, err := p.Parse(context.Background(), "/nonexistent/path.txt")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	got := cleanText("hello   \n\n  world\t\tagain")
	want := "hello world again"
	if got != want {
		t.Errorf("cleanText() = %q, want %q", got, want)
	}
}

func TestCleanTextCollapsesRepeatedSpecials(t *testing.T) {
	got := cleanText("value----here")
	if strings.Contains(got, "----") {
		t.Errorf("cleanText() did not collapse repeated specials: %q", got)
	}
}

func TestCleanTextRejoinsSoftHyphenatedWords(t *testing.T) {
	got := cleanText("Go-\nogle is a search engine")
	want := "Google is a search engine"
	if got != want {
		t.Errorf("cleanText() = %q, want %q", got, want)
	}
}

func TestIsMeaningfulTextRejectsShort(t *testing.T) {
	if isMeaningfulText("too short") {
		t.Error("expected short text to be rejected")
	}
}

func TestIsMeaningfulTextRejectsPunctuationHeavy(t *testing.T) {
	text := strings.Repeat("!@#$%^&*()_+-={}[]|;:,.<>?/~`", 10)
	if isMeaningfulText(text) {
		t.Error("expected punctuation-heavy text to be rejected")
	}
}

func TestIsMeaningfulTextAcceptsProse(t *testing.T) {
	text := strings.Repeat("百度公司于2023年推出文心一言，王海峰领导百度研究院。这段文字包含足够多的有意义内容。", 4)
	if !isMeaningfulText(text) {
		t.Error("expected prose to be accepted as meaningful")
	}
}
