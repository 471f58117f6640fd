//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// FAISSIndex wraps a FAISS IndexFlatIP. Stored vectors are unit-normalised, so inner product
// equals cosine similarity. FAISS labels are insertion positions, which are the record ids.
type FAISSIndex struct {
	index      *C.FaissIndexFlatIP
	dimensions int
	ntotal     int
	mu         sync.RWMutex
}

// BuildFAISS normalises vectors and adds them to a new IndexFlatIP in one call.
func BuildFAISS(vectors [][]float32) (*FAISSIndex, error) {
	normalized, dim, err := normalizeAll(vectors)
	if err != nil {
		return nil, err
	}

	var index *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&index, C.idx_t(dim)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}

	n := len(normalized)
	flat := make([]float32, 0, n*dim)
	for _, v := range normalized {
		flat = append(flat, v...)
	}
	if ret := C.faiss_Index_add(index, C.idx_t(n), (*C.float)(unsafe.Pointer(&flat[0]))); ret != 0 {
		C.faiss_Index_free(index)
		return nil, fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}

	return &FAISSIndex{index: index, dimensions: dim, ntotal: n}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Search returns the topK most similar vectors. FAISS does not guarantee the id tie-break,
// so every vector is scored and the results are re-sorted before truncation.
func (f *FAISSIndex) Search(query []float32, topK int) ([]SearchResult, error) {
	if err := validateTopK(topK); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.index == nil || f.ntotal == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	q, err := Normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	k := f.ntotal
	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&q[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	results := make([]SearchResult, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 {
			continue
		}
		results = append(results, SearchResult{
			RecordID: int(labels[i]),
			Score:    ClampScore(float64(distances[i])),
		})
	}
	SortResults(results)
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ntotal
}

// Dimensions returns the vector dimension fixed at build time.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
		f.ntotal = 0
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
