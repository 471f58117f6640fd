// Package vector provides exact cosine-similarity search over unit-normalised embeddings.
package vector

// Searcher answers top-k nearest-neighbour queries over a corpus built once.
// Implementations are read-only after construction and safe for concurrent Search calls.
type Searcher interface {
	// Search returns at most topK results ordered by descending score, ties broken by
	// ascending RecordID. topK above Size() is clamped.
	Search(query []float32, topK int) ([]SearchResult, error)
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// SearchResult is a single hit. Score is the cosine similarity in [-1, 1].
type SearchResult struct {
	RecordID int     `json:"record_id"`
	Score    float64 `json:"score"`
}
