package models

import (
	"fmt"
	"strings"
)

// QueryRequest is a retrieve or ask request against one dataset.
type QueryRequest struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k,omitempty" validate:"gte=0"`
}

// Normalize trims the query, defaults TopK and caps it at maxTopK.
// Returns an error if the query is empty or TopK is negative.
func (q *QueryRequest) Normalize(defaultTopK, maxTopK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK < 0 {
		return fmt.Errorf("top_k must not be negative")
	}
	if q.TopK == 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return nil
}

// RetrieveResponse is the result of a retrieve request.
type RetrieveResponse struct {
	DatasetID string         `json:"dataset_id"`
	Query     string         `json:"query"`
	Records   []ScoredRecord `json:"records"`
	// Context is the text handed to the answer generator.
	Context string `json:"context"`
}

// AskResponse is the result of an ask request.
type AskResponse struct {
	DatasetID string         `json:"dataset_id"`
	Query     string         `json:"query"`
	Answer    string         `json:"answer"`
	Records   []ScoredRecord `json:"records"`
}
