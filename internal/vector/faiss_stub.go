//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

// FAISSIndex is a stub used when the faiss build tag is not set.
type FAISSIndex struct{}

// BuildFAISS returns ErrFAISSUnavailable.
func BuildFAISS(vectors [][]float32) (*FAISSIndex, error) {
	return nil, ErrFAISSUnavailable
}

// Search is not implemented without FAISS.
func (f *FAISSIndex) Search(query []float32, topK int) ([]SearchResult, error) {
	return nil, ErrFAISSUnavailable
}

// Size returns 0 without FAISS.
func (f *FAISSIndex) Size() int { return 0 }

// Dimensions returns 0 without FAISS.
func (f *FAISSIndex) Dimensions() int { return 0 }

// Close is a no-op without FAISS.
func (f *FAISSIndex) Close() error { return nil }

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string { return string(IndexTypeFAISS) }
