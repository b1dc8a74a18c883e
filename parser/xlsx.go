package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxXLSXDataRows caps how many data rows are emitted per sheet; beyond this
// a truncation marker replaces the remainder.
const maxXLSXDataRows = 100

// XLSXParser extracts text from a spreadsheet: per sheet, a header line
// followed by up to maxXLSXDataRows data rows, tab-joined.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xls"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening XLSX: %v", ErrCorrupt, err)
	}
	defer f.Close()

	var out []string

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		out = append(out, fmt.Sprintf("=== sheet: %s ===", sheet))
		out = append(out, strings.Join(rows[0], "\t"))

		data := rows[1:]
		truncated := false
		if len(data) > maxXLSXDataRows {
			truncated = true
			data = data[:maxXLSXDataRows]
		}
		for _, row := range data {
			out = append(out, strings.Join(row, "\t"))
		}
		if truncated {
			out = append(out, fmt.Sprintf("... (truncated, %d more rows)", len(rows[1:])-maxXLSXDataRows))
		}
	}

	if len(out) == 0 {
		return "", fmt.Errorf("%w: no data found in XLSX", ErrEmptyExtraction)
	}

	return strings.Join(out, "\n"), nil
}
