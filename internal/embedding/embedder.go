// Package embedding turns text into fixed-dimension vectors.
//
// Every backend implements Embedder. Callers share one Service per process, which loads the
// configured backend lazily and exposes it through the same interface.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding is returned when text cannot be embedded: an empty batch, an unavailable
// model or a failed backend call.
var ErrEmbedding = errors.New("embedding failed")

// Embedder produces vector embeddings for text.
type Embedder interface {
	// Embed returns one vector per input text, in input order. Empty strings are valid
	// input. An empty batch fails with ErrEmbedding.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func errEmptyBatch() error {
	return fmt.Errorf("%w: empty batch", ErrEmbedding)
}

func checkBatch(texts []string, vecs [][]float32) error {
	if len(vecs) != len(texts) {
		return fmt.Errorf("%w: backend returned %d vectors for %d texts", ErrEmbedding, len(vecs), len(texts))
	}
	return nil
}
