package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashingEmbedder_UnitVectors(t *testing.T) {
	e := NewHashingEmbedder(384)
	vecs, err := e.Embed(context.Background(), []string{"apple fruit", "", "   ", "Car | vehicle | 1999"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 4 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 384 {
			t.Errorf("vector %d has %d dims", i, len(v))
		}
		if n := math.Sqrt(cosine(v, v)); math.Abs(n-1) > 1e-5 {
			t.Errorf("vector %d norm=%v", i, n)
		}
	}
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(64)
	a, _ := e.Embed(context.Background(), []string{"Banana Fruit"})
	b, _ := e.Embed(context.Background(), []string{"banana, fruit"})
	if cosine(a[0], b[0]) < 1-1e-6 {
		t.Error("same words should embed identically regardless of case and punctuation")
	}
}

func TestHashingEmbedder_SharedWordsAreCloser(t *testing.T) {
	e := NewHashingEmbedder(384)
	vecs, err := e.Embed(context.Background(), []string{"fruit", "apple fruit", "banana fruit", "car vehicle"})
	if err != nil {
		t.Fatal(err)
	}
	q := vecs[0]
	apple, banana, car := cosine(q, vecs[1]), cosine(q, vecs[2]), cosine(q, vecs[3])
	if apple <= car || banana <= car {
		t.Errorf("scores apple=%v banana=%v car=%v", apple, banana, car)
	}
	if math.Abs(apple-banana) > 1e-6 {
		t.Errorf("apple and banana should tie: %v vs %v", apple, banana)
	}
}

func TestHashingEmbedder_EmptyBatch(t *testing.T) {
	_, err := NewHashingEmbedder(8).Embed(context.Background(), nil)
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("err=%v, want ErrEmbedding", err)
	}
}

func TestHashingEmbedder_DefaultDimensions(t *testing.T) {
	if d := NewHashingEmbedder(0).Dimensions(); d != DefaultHashingDimensions {
		t.Errorf("Dimensions=%d", d)
	}
}
