package utils

import (
	"path/filepath"
	"strings"
)

// InDir reports whether path is dir or lies beneath it. Both paths should be absolute and clean.
func InDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
