package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Loader constructs the underlying model. A Service calls it at most once per load cycle.
type Loader func() (Embedder, error)

var (
	errServiceClosed = errors.New("embedding service closed")
	errDiscarded     = errors.New("load cycle discarded")
)

// Service is the process-wide embedding handle. It is created once and passed by reference
// to every component that embeds text. The model loads on first use; afterwards it is only
// read. Reload swaps in a fresh load cycle and Close releases the model.
type Service struct {
	backend string
	load    Loader
	cache   *EmbeddingCache
	logger  *zap.Logger

	mu sync.Mutex
	h  *handle
}

type handle struct {
	once   sync.Once
	model  Embedder
	err    error
	loaded atomic.Bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for load events.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache enables an LRU cache of the given size in front of the model.
func WithCache(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.cache = NewEmbeddingCache(size)
		}
	}
}

// NewService returns a Service that loads its model with load on first use.
func NewService(backend string, load Loader, opts ...ServiceOption) *Service {
	s := &Service{
		backend: backend,
		load:    load,
		logger:  zap.NewNop(),
		h:       &handle{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the configured backend name.
func (s *Service) Backend() string {
	return s.backend
}

func (s *Service) model() (Embedder, error) {
	for {
		s.mu.Lock()
		h := s.h
		s.mu.Unlock()

		h.once.Do(func() { s.loadInto(h) })
		if errors.Is(h.err, errDiscarded) {
			// A concurrent Reload retired this handle before it loaded.
			continue
		}
		return h.model, h.err
	}
}

func (s *Service) loadInto(h *handle) {
	start := time.Now()
	h.model, h.err = s.load()
	if h.err == nil && h.model == nil {
		h.err = errors.New("loader returned no model")
	}
	if h.err != nil {
		h.model = nil
		s.logger.Error("embedding model load failed", zap.String("backend", s.backend), zap.Error(h.err))
		return
	}
	h.loaded.Store(true)
	s.logger.Info("embedding model loaded",
		zap.String("backend", s.backend),
		zap.Int("dimensions", h.model.Dimensions()),
		zap.Duration("took", time.Since(start)))
}

// Embed embeds texts with the shared model, serving repeated texts from the cache.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errEmptyBatch()
	}
	m, err := s.model()
	if err != nil {
		return nil, fmt.Errorf("%w: model unavailable: %w", ErrEmbedding, err)
	}
	if s.cache == nil {
		vecs, err := m.Embed(ctx, texts)
		if err != nil {
			return nil, asEmbeddingError(err)
		}
		return vecs, checkBatch(texts, vecs)
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := s.cache.Get(text); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := m.Embed(ctx, missTexts)
	if err != nil {
		return nil, asEmbeddingError(err)
	}
	if err := checkBatch(missTexts, vecs); err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		s.cache.Set(texts[i], vecs[j])
	}
	return out, nil
}

// Dimensions loads the model if needed and returns its output dimension, or 0 when the
// model is unavailable.
func (s *Service) Dimensions() int {
	m, err := s.model()
	if err != nil {
		return 0
	}
	return m.Dimensions()
}

// Loaded reports whether the current load cycle produced a model. It never triggers a load.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h.loaded.Load()
}

// Reload discards the current model so the next call loads it again.
func (s *Service) Reload() error {
	return s.swap(&handle{})
}

// Close releases the model. Later calls fail with ErrEmbedding.
func (s *Service) Close() error {
	closed := &handle{}
	closed.once.Do(func() { closed.err = errServiceClosed })
	return s.swap(closed)
}

func (s *Service) swap(next *handle) error {
	s.mu.Lock()
	old := s.h
	s.h = next
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.Purge()
	}
	// Waits for an in-flight load; an untouched handle is retired without loading.
	old.once.Do(func() { old.err = errDiscarded })
	if old.loaded.Load() {
		return old.model.Close()
	}
	return nil
}

func asEmbeddingError(err error) error {
	if errors.Is(err, ErrEmbedding) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrEmbedding, err)
}
