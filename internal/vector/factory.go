package vector

import (
	"errors"
	"fmt"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses a FAISS IndexFlatIP. Requires -tags=faiss and the FAISS C library.
	IndexTypeFAISS IndexType = "faiss"
)

// NewIndex builds a Searcher of the given type over vectors.
// Supported types: "memory" (default), "faiss". A faiss request falls back to the memory
// index when FAISS support is not compiled in.
func NewIndex(indexType string, vectors [][]float32) (Searcher, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return Build(vectors)
	case IndexTypeFAISS:
		idx, err := BuildFAISS(vectors)
		if errors.Is(err, ErrFAISSUnavailable) {
			return Build(vectors)
		}
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, faiss)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := BuildFAISS([][]float32{{1}})
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
