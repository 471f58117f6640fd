package vector

import (
	"errors"
	"math"
	"testing"
)

func TestBuild_NormalizesVectors(t *testing.T) {
	idx, err := Build([][]float32{{3, 4, 0}, {0, 0, 2}, {1, 1, 1}, {-5, 0.5, 7}})
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	for i := 0; i < idx.Size(); i++ {
		if n := L2Norm(idx.Vector(i)); math.Abs(n-1) > 1e-5 {
			t.Errorf("vector %d norm=%v, want 1", i, n)
		}
	}
}

func TestBuild_PreservesInsertionOrder(t *testing.T) {
	idx, err := Build([][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Fatalf("Size=%d, want 3", idx.Size())
	}
	if idx.Dimensions() != 2 {
		t.Errorf("Dimensions=%d, want 2", idx.Dimensions())
	}
	if v := idx.Vector(1); v[0] != 0 || v[1] != 1 {
		t.Errorf("Vector(1)=%v, want [0 1]", v)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		want    error
	}{
		{"empty corpus", nil, ErrEmptyCorpus},
		{"empty slice", [][]float32{}, ErrEmptyCorpus},
		{"zero vector", [][]float32{{1, 0}, {0, 0}}, ErrDegenerateVector},
		{"nan vector", [][]float32{{float32(math.NaN()), 1}}, ErrDegenerateVector},
		{"inf vector", [][]float32{{float32(math.Inf(1)), 1}}, ErrDegenerateVector},
		{"zero length", [][]float32{{}}, ErrDegenerateVector},
		{"dimension mismatch", [][]float32{make384(1), make([]float32, 300)}, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Build(tt.vectors)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want %v", err, tt.want)
			}
			if idx != nil {
				t.Error("expected no index on failure")
			}
		})
	}
}

func TestSearch_SelfSimilarity(t *testing.T) {
	vecs := [][]float32{{1, 2, 3}, {-1, 0, 2}, {4, -1, 0}, {0, 0, 1}}
	idx, err := Build(vecs)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vecs {
		results, err := idx.Search(v, 1)
		if err != nil {
			t.Fatal(err)
		}
		if results[0].RecordID != i {
			t.Errorf("query %d: top=%d", i, results[0].RecordID)
		}
		if math.Abs(results[0].Score-1) > 1e-5 {
			t.Errorf("query %d: score=%v, want 1", i, results[0].Score)
		}
	}
}

func TestSearch_TopKClamp(t *testing.T) {
	idx, err := Build([][]float32{{1, 0}, {0, 1}, {1, 1}, {-1, 0}, {0, -1}})
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search([]float32{1, 0}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Errorf("len=%d, want 5", len(results))
	}
}

func TestSearch_OrderingAndDeterminism(t *testing.T) {
	// 0 and 2 are identical, as are 1 and 3.
	idx, err := Build([][]float32{{0, 1}, {1, 0}, {0, 2}, {2, 0}, {-1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	first, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []int{1, 3, 0, 2, 4}
	for i, r := range first {
		if r.RecordID != wantIDs[i] {
			t.Fatalf("position %d: id=%d, want %d (results %v)", i, r.RecordID, wantIDs[i], first)
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i].Score > first[i-1].Score {
			t.Errorf("scores not descending at %d: %v", i, first)
		}
	}
	if first[4].Score != -1 {
		t.Errorf("opposite vector score=%v, want -1", first[4].Score)
	}

	for n := 0; n < 10; n++ {
		again, err := idx.Search([]float32{1, 0}, 5)
		if err != nil {
			t.Fatal(err)
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("run %d differs at %d: %v vs %v", n, i, again[i], first[i])
			}
		}
	}
}

func TestSearch_ScoresWithinRange(t *testing.T) {
	idx, err := Build([][]float32{{0.1, 0.2, 0.3}, {0.3, 0.2, 0.1}, {1e-3, 1e-3, 1e-3}})
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search([]float32{0.1, 0.2, 0.3}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Score > 1 || r.Score < -1 {
			t.Errorf("score %v out of range", r.Score)
		}
	}
}

func TestSearch_Errors(t *testing.T) {
	idx, err := Build([][]float32{{1, 0, 0}, {0, 1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		idx   *FlatIndex
		query []float32
		topK  int
		want  error
	}{
		{"top_k zero", idx, []float32{1, 0, 0}, 0, ErrInvalidTopK},
		{"top_k negative", idx, []float32{1, 0, 0}, -3, ErrInvalidTopK},
		{"wrong dimension", idx, []float32{1, 0}, 1, ErrDimensionMismatch},
		{"zero query", idx, []float32{0, 0, 0}, 1, ErrDegenerateVector},
		{"empty index", &FlatIndex{}, []float32{1}, 1, ErrEmptyIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.idx.Search(tt.query, tt.topK)
			if !errors.Is(err, tt.want) {
				t.Errorf("err=%v, want %v", err, tt.want)
			}
		})
	}
}

func TestFlatIndex_Type(t *testing.T) {
	idx, err := Build([][]float32{{1}})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Type() != "memory" {
		t.Errorf("Type=%q", idx.Type())
	}
}

func make384(fill float32) []float32 {
	v := make([]float32, 384)
	for i := range v {
		v[i] = fill
	}
	return v
}
