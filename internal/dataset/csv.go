package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Options controls delimited-text parsing.
type Options struct {
	// Encoding is "latin1" (default) or "utf-8".
	Encoding string
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// decoder wraps r so that it yields UTF-8.
func decoder(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case "utf-8", "utf8":
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q (supported: latin1, utf-8)", encoding)
	}
}

// LoadCSV parses delimited text with a header row.
func LoadCSV(r io.Reader, opts Options) (*Table, error) {
	dec, err := decoder(r, opts.Encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(dec)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	raw, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return newTable(raw)
}
