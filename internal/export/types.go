// Package export renders a greeting as a printable card, as HTML or as PDF.
package export

import "errors"

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatHTML, FormatPDF:
		return Format(s), nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Result is a rendered card.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat    = errors.New("unsupported export format")
	ErrPDFDependencyMissing = errors.New("pdf export dependency missing")
)
