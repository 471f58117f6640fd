package dataset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extensions lists the file extensions Load understands.
var Extensions = []string{".csv", ".tsv", ".xlsx", ".xlsm", ".ods"}

// Supported reports whether path has a loadable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads the file at path and parses it according to its extension.
func Load(path string, opts Options) (*Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return LoadBytes(content, strings.ToLower(filepath.Ext(path)), opts)
}

// LoadBytes parses content based on the given extension, which includes the leading dot.
func LoadBytes(content []byte, ext string, opts Options) (*Table, error) {
	switch strings.ToLower(ext) {
	case ".csv", "":
		return LoadCSV(bytes.NewReader(content), opts)
	case ".tsv":
		opts.Comma = '\t'
		return LoadCSV(bytes.NewReader(content), opts)
	case ".xlsx", ".xlsm":
		return LoadXLSX(bytes.NewReader(content))
	case ".ods":
		return LoadODS(content)
	default:
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(Extensions, ", "))
	}
}
