package vector

import "errors"

var (
	// ErrEmptyCorpus is returned by Build when no vectors are supplied.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrDimensionMismatch is returned when vector lengths disagree within one index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDegenerateVector is returned for vectors that cannot be unit-normalised.
	ErrDegenerateVector = errors.New("degenerate vector")
	// ErrEmptyIndex is returned when searching an index that holds no vectors.
	ErrEmptyIndex = errors.New("index is empty")
	// ErrInvalidTopK is returned when top_k is less than 1.
	ErrInvalidTopK = errors.New("top_k must be at least 1")
	// ErrFAISSUnavailable is returned when FAISS support is not compiled in.
	ErrFAISSUnavailable = errors.New("FAISS not available: build with -tags=faiss and install FAISS library")
)
