package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCXParser extracts text from word/document.xml: non-empty paragraphs in
// order, followed by each table rendered as tab-joined rows between
// explicit boundary markers.
type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening DOCX: %v", ErrCorrupt, err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("%w: word/document.xml not found in DOCX", ErrCorrupt)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("%w: opening document.xml: %v", ErrCorrupt, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("%w: reading document.xml: %v", ErrCorrupt, err)
	}

	text, err := parseDocxXML(data)
	if err != nil {
		return "", fmt.Errorf("%w: parsing DOCX XML: %v", ErrCorrupt, err)
	}
	return text, nil
}

// DOCX XML structures (simplified to what we read).
type docxBody struct {
	XMLName xml.Name    `xml:"body"`
	Paras   []docxPara  `xml:"p"`
	Tables  []docxTable `xml:"tbl"`
}

type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxPara struct {
	XMLName xml.Name  `xml:"p"`
	Runs    []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paras []docxPara `xml:"p"`
}

func parseDocxXML(data []byte) (string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", err
	}

	var out []string
	for _, para := range doc.Body.Paras {
		text := strings.TrimSpace(extractParaText(para))
		if text != "" {
			out = append(out, text)
		}
	}

	for _, tbl := range doc.Body.Tables {
		out = append(out, "=== table start ===")
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var cellText strings.Builder
				for _, p := range cell.Paras {
					t := strings.TrimSpace(extractParaText(p))
					if t == "" {
						continue
					}
					if cellText.Len() > 0 {
						cellText.WriteString(" ")
					}
					cellText.WriteString(t)
				}
				cells = append(cells, strings.TrimSpace(cellText.String()))
			}
			out = append(out, strings.Join(cells, "\t"))
		}
		out = append(out, "=== table end ===")
	}

	return strings.Join(out, "\n"), nil
}

func extractParaText(para docxPara) string {
	var b strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}
