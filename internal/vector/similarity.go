package vector

import (
	"fmt"
	"math"
	"sort"
)

// InnerProduct returns the inner product of two equal-length vectors. For unit vectors this
// equals cosine similarity.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. Zero, NaN and infinite norms cannot be
// normalised and yield ErrDegenerateVector.
func Normalize(v []float32) ([]float32, error) {
	norm := L2Norm(v)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("%w: norm %v", ErrDegenerateVector, norm)
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// ClampScore bounds a dot product of two unit vectors to [-1, 1], absorbing rounding error.
func ClampScore(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}

// SortResults orders results by descending score, then ascending RecordID.
func SortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].RecordID < results[j].RecordID
	})
}

func validateTopK(topK int) error {
	if topK < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	return nil
}

// normalizeAll validates and normalises a batch for index construction. The dimension is
// fixed by the first vector. Nothing is returned unless every vector is valid.
func normalizeAll(vectors [][]float32) ([][]float32, int, error) {
	if len(vectors) == 0 {
		return nil, 0, ErrEmptyCorpus
	}
	dim := len(vectors[0])
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
		n, err := Normalize(v)
		if err != nil {
			return nil, 0, fmt.Errorf("vector %d: %w", i, err)
		}
		out[i] = n
	}
	return out, dim, nil
}
