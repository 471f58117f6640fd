// Package models defines core data structures for records, datasets, and queries.
package models

import "time"

// Record is one row of a dataset rendered as text. ID is its 0-based position in the
// corpus, which is also its position in the vector index.
type Record struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// ScoredRecord is a retrieved record with its cosine similarity to the query.
type ScoredRecord struct {
	Record
	Score float64 `json:"score"`
}

// Dataset describes a stored tabular corpus.
type Dataset struct {
	ID string `json:"id"`
	Name string `json:"name"`
	// SourcePath is set for datasets loaded from a server-side file.
	SourcePath  string    `json:"source_path,omitempty"`
	Columns     []string  `json:"columns"`
	RecordCount int       `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
