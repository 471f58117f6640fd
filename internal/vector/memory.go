package vector

import "fmt"

// FlatIndex is an in-memory index using exact brute-force inner product search.
// Vectors are stored unit-normalised, contiguous and in insertion order; position i maps to
// ids[i]. The index is immutable once built.
type FlatIndex struct {
	dimensions int
	data       []float32
	ids        []int
}

// Build normalises vectors and returns an index where the i-th vector belongs to record i.
// Construction is all-or-nothing: any invalid vector fails the whole build.
func Build(vectors [][]float32) (*FlatIndex, error) {
	normalized, dim, err := normalizeAll(vectors)
	if err != nil {
		return nil, err
	}
	data := make([]float32, 0, len(normalized)*dim)
	ids := make([]int, len(normalized))
	for i, v := range normalized {
		data = append(data, v...)
		ids[i] = i
	}
	return &FlatIndex{dimensions: dim, data: data, ids: ids}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeMemory)
}

// Search returns the topK stored vectors most similar to query.
func (f *FlatIndex) Search(query []float32, topK int) ([]SearchResult, error) {
	if err := validateTopK(topK); err != nil {
		return nil, err
	}
	n := f.Size()
	if n == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	q, err := Normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	results := make([]SearchResult, n)
	for i := 0; i < n; i++ {
		results[i] = SearchResult{
			RecordID: f.ids[i],
			Score:    ClampScore(InnerProduct(q, f.row(i))),
		}
	}
	SortResults(results)
	if topK > n {
		topK = n
	}
	return results[:topK], nil
}

// Vector returns a copy of the stored (normalised) vector at position i.
func (f *FlatIndex) Vector(i int) []float32 {
	out := make([]float32, f.dimensions)
	copy(out, f.row(i))
	return out
}

func (f *FlatIndex) row(i int) []float32 {
	return f.data[i*f.dimensions : (i+1)*f.dimensions]
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	return len(f.ids)
}

// Dimensions returns the vector dimension fixed at build time.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
