package embedding

import (
	"context"
	"hash/fnv"

	"github.com/hyperjump/kotae/pkg/utils"
)

// DefaultHashingDimensions matches the dimension of the MiniLM sentence model.
const DefaultHashingDimensions = 384

// HashingEmbedder is a deterministic bag-of-words embedder. Each lowercase word is hashed
// with FNV-1a into one of dimensions-1 buckets; bucket 0 carries a constant bias so that
// text without words still maps to a unit vector. Texts sharing words get positive cosine
// similarity, which makes it usable offline and in tests.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder. Dimensions below 2 fall back to the default.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions < 2 {
		dimensions = DefaultHashingDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed hashes each text independently.
func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errEmptyBatch()
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *HashingEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimensions)
	vec[0] = 1
	buckets := uint32(e.dimensions - 1)
	for _, word := range Words(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[1+h.Sum32()%buckets]++
	}
	utils.NormalizeL2(vec)
	return vec
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashingEmbedder.
func (e *HashingEmbedder) Close() error {
	return nil
}
