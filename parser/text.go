package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// TextParser handles plain text files, sniffing the encoding since uploads
// arrive with no declared charset.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt"} }

type namedEncoding struct {
	name string
	enc  encoding.Encoding // nil marks the fast-path UTF-8 validity check
}

// candidateEncodings are tried in this exact order: "try encodings UTF-8,
// GBK, GB2312, ISO-8859-1, UTF-16 in order; first to decode without
// replacement wins".
func candidateEncodings() []namedEncoding {
	return []namedEncoding{
		{"utf-8", nil},
		{"gbk", simplifiedchinese.GBK},
		{"gb2312", simplifiedchinese.HZGB2312},
		{"iso-8859-1", charmap.ISO8859_1},
		{"utf-16", unicode.UTF16(unicode.BigEndian, unicode.UseBOM)},
	}
}

func (p *TextParser) Parse(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrFileMissing, path)
		}
		return "", fmt.Errorf("reading text file: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}

	text, _, err := DecodeText(data)
	if err != nil {
		return "", err
	}
	return text, nil
}

// DecodeText tries each candidate encoding in order and returns the first
// one that decodes without producing the Unicode replacement character.
func DecodeText(data []byte) (string, string, error) {
	for _, c := range candidateEncodings() {
		if c.enc == nil {
			if utf8.Valid(data) {
				return string(data), c.name, nil
			}
			continue
		}
		decoded, err := c.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return string(decoded), c.name, nil
	}
	return "", "", fmt.Errorf("%w: no candidate encoding decoded cleanly", ErrEncodingUnknown)
}
