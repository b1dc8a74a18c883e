package parser

import "errors"

// Error kinds for the File Parser component (§4.A).
var (
	ErrFormatUnsupported = errors.New("parser: unsupported document format")
	ErrFileMissing       = errors.New("parser: file missing")
	ErrCorrupt           = errors.New("parser: corrupt document")
	ErrEncodingUnknown   = errors.New("parser: unknown text encoding")
	ErrEmptyExtraction   = errors.New("parser: no text extracted")
	ErrNotMeaningful     = errors.New("parser: extracted text is not meaningful")
)
