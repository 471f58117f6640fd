// Package session keeps one searchable index per dataset and answers questions against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/dataset"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// ErrNotFound is returned for unknown dataset ids. It matches storage.ErrNotFound.
var ErrNotFound = storage.ErrNotFound

// ErrInvalidQuery is returned for empty queries or negative top_k.
var ErrInvalidQuery = errors.New("invalid query")

// Session is an indexed dataset. It is replaced wholesale, never mutated.
type Session struct {
	models.Dataset
	Records []models.Record
	Index   vector.Searcher

	// refs counts in-flight searches; a retired session closes its index when it drops to zero.
	mu      sync.Mutex
	refs    int
	retired bool
}

func (s *Session) release() {
	s.mu.Lock()
	s.refs--
	closeNow := s.refs == 0 && s.retired
	s.mu.Unlock()
	if closeNow {
		_ = s.Index.Close()
	}
}

// retire marks the session as replaced or deleted. The index is closed once no search holds it.
func (s *Session) retire() {
	s.mu.Lock()
	if s.retired {
		s.mu.Unlock()
		return
	}
	s.retired = true
	closeNow := s.refs == 0
	s.mu.Unlock()
	if closeNow {
		_ = s.Index.Close()
	}
}

// CreateRequest describes a new dataset.
type CreateRequest struct {
	Name string
	// SourcePath is the server-side file the table was loaded from, if any.
	SourcePath string
	// Columns selects the columns to index; nil means all.
	Columns []string
	Table   *dataset.Table
}

// Stats summarises the loaded sessions.
type Stats struct {
	Datasets  int    `json:"datasets"`
	Records   int    `json:"records"`
	IndexType string `json:"index_type"`
}

// Manager owns the in-memory sessions and keeps them in sync with the store.
type Manager struct {
	store       storage.Store
	retriever   *retrieval.Retriever
	generator   answer.Generator
	indexType   string
	defaultTopK int
	maxTopK     int
	separator   string
	loadOpts    dataset.Options
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	onCreate func(models.Dataset)
	onDelete func(models.Dataset)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithGenerator sets the answer generator. Without one, Ask fails with answer.ErrMissingAPIKey.
func WithGenerator(g answer.Generator) Option {
	return func(m *Manager) { m.generator = g }
}

// WithIndexType selects the vector index implementation.
func WithIndexType(indexType string) Option {
	return func(m *Manager) { m.indexType = indexType }
}

// WithTopK sets the default and maximum top_k.
func WithTopK(defaultTopK, maxTopK int) Option {
	return func(m *Manager) {
		m.defaultTopK = defaultTopK
		m.maxTopK = maxTopK
	}
}

// WithSeparator sets the string joining column values in a record.
func WithSeparator(sep string) Option {
	return func(m *Manager) { m.separator = sep }
}

// WithLoadOptions sets how source files are parsed on reload.
func WithLoadOptions(opts dataset.Options) Option {
	return func(m *Manager) { m.loadOpts = opts }
}

// NewManager returns a Manager persisting to store and embedding through retriever.
func NewManager(store storage.Store, retriever *retrieval.Retriever, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		retriever:   retriever,
		indexType:   string(vector.IndexTypeMemory),
		defaultTopK: 5,
		maxTopK:     100,
		separator:   dataset.DefaultSeparator,
		logger:      zap.NewNop(),
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create renders the table's rows, builds the index and persists the dataset.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*models.Dataset, error) {
	if req.Table == nil {
		return nil, fmt.Errorf("%w: no table", dataset.ErrEmptyTable)
	}
	columns, records, err := m.render(req.Table, req.Columns)
	if err != nil {
		return nil, err
	}
	idx, err := m.retriever.BuildIndex(ctx, m.indexType, records)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" && req.SourcePath != "" {
		name = filepath.Base(req.SourcePath)
	}
	ds := models.Dataset{
		ID:         uuid.NewString(),
		Name:       name,
		SourcePath: req.SourcePath,
		Columns:    columns,
	}
	if err := m.store.CreateDataset(ctx, &ds, records); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("store dataset: %w", err)
	}

	m.mu.Lock()
	m.sessions[ds.ID] = &Session{Dataset: ds, Records: records, Index: idx}
	onCreate := m.onCreate
	m.mu.Unlock()
	if onCreate != nil {
		onCreate(ds)
	}

	m.logger.Info("dataset indexed",
		zap.String("dataset_id", ds.ID),
		zap.String("name", ds.Name),
		zap.Int("records", len(records)),
		zap.Strings("columns", columns))
	out := ds
	return &out, nil
}

// OnCreate registers fn to be called with every dataset Create stores.
func (m *Manager) OnCreate(fn func(models.Dataset)) {
	m.mu.Lock()
	m.onCreate = fn
	m.mu.Unlock()
}

// OnDelete registers fn to be called with every dataset Delete drops.
func (m *Manager) OnDelete(fn func(models.Dataset)) {
	m.mu.Lock()
	m.onDelete = fn
	m.mu.Unlock()
}

func (m *Manager) render(tbl *dataset.Table, columns []string) ([]string, []models.Record, error) {
	resolved, _, err := tbl.ResolveColumns(columns)
	if err != nil {
		return nil, nil, err
	}
	records, err := tbl.Records(resolved, m.separator)
	if err != nil {
		return nil, nil, err
	}
	return resolved, records, nil
}

func (m *Manager) session(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// acquire returns the session for id with a reference held. Callers must release it.
func (m *Manager) acquire(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
	return s, nil
}

// Get returns the dataset summary for id.
func (m *Manager) Get(ctx context.Context, id string) (*models.Dataset, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}
	ds := s.Dataset
	return &ds, nil
}

// List returns every loaded dataset, oldest first.
func (m *Manager) List(ctx context.Context) []models.Dataset {
	m.mu.RLock()
	out := make([]models.Dataset, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Dataset)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes the dataset from the store and drops its index.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.DeleteDataset(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete dataset: %w", err)
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	onDelete := m.onDelete
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.retire()
	if onDelete != nil {
		onDelete(s.Dataset)
	}
	m.logger.Info("dataset deleted", zap.String("dataset_id", id))
	return nil
}

// Retrieve returns the records most similar to query together with the joined context.
func (m *Manager) Retrieve(ctx context.Context, id, query string, topK int) (*models.RetrieveResponse, error) {
	q := models.QueryRequest{Query: query, TopK: topK}
	if err := q.Normalize(m.defaultTopK, m.maxTopK); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	s, err := m.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.release()

	start := time.Now()
	hits, err := m.retriever.RetrieveScored(ctx, q.Query, s.Index, s.Records, q.TopK)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("retrieved",
		zap.String("dataset_id", id),
		zap.Int("top_k", q.TopK),
		zap.Int("hits", len(hits)),
		zap.Duration("took", time.Since(start)))

	return &models.RetrieveResponse{
		DatasetID: id,
		Query:     q.Query,
		Records:   hits,
		Context:   retrieval.ContextFromScored(hits),
	}, nil
}

// Ask retrieves context for query and asks the generator to answer from it.
func (m *Manager) Ask(ctx context.Context, id, query string, topK int) (*models.AskResponse, error) {
	if m.generator == nil {
		return nil, answer.ErrMissingAPIKey
	}
	res, err := m.Retrieve(ctx, id, query, topK)
	if err != nil {
		return nil, err
	}
	text, err := m.generator.Generate(ctx, res.Query, res.Context)
	if err != nil {
		return nil, err
	}
	return &models.AskResponse{
		DatasetID: id,
		Query:     res.Query,
		Answer:    text,
		Records:   res.Records,
	}, nil
}

// Rebuild replaces a dataset's corpus with the rows of tbl. A nil columns keeps the current
// selection. The new index is swapped in only after it and the store update succeed.
func (m *Manager) Rebuild(ctx context.Context, id string, tbl *dataset.Table, columns []string) (*models.Dataset, error) {
	old, err := m.session(id)
	if err != nil {
		return nil, err
	}
	if columns == nil {
		columns = old.Columns
	}
	resolved, records, err := m.render(tbl, columns)
	if err != nil {
		return nil, err
	}
	idx, err := m.retriever.BuildIndex(ctx, m.indexType, records)
	if err != nil {
		return nil, err
	}
	if err := m.store.ReplaceRecords(ctx, id, resolved, records); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("store records: %w", err)
	}

	ds := old.Dataset
	ds.Columns = resolved
	ds.RecordCount = len(records)
	ds.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	prev, ok := m.sessions[id]
	if !ok {
		// Deleted while the new index was being built.
		m.mu.Unlock()
		_ = idx.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.sessions[id] = &Session{Dataset: ds, Records: records, Index: idx}
	m.mu.Unlock()
	prev.retire()

	m.logger.Info("dataset rebuilt", zap.String("dataset_id", id), zap.Int("records", len(records)))
	out := ds
	return &out, nil
}

// ReloadPath re-reads the source file at path and rebuilds every dataset loaded from it.
func (m *Manager) ReloadPath(ctx context.Context, path string) error {
	var ids []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if s.SourcePath == path {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()
	if len(ids) == 0 {
		return nil
	}

	tbl, err := dataset.Load(path, m.loadOpts)
	if err != nil {
		return fmt.Errorf("reload %s: %w", path, err)
	}
	var errs []error
	for _, id := range ids {
		if _, err := m.Rebuild(ctx, id, tbl, nil); err != nil {
			errs = append(errs, fmt.Errorf("rebuild %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// SourcePaths returns the distinct source files of loaded datasets.
func (m *Manager) SourcePaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, s := range m.sessions {
		if s.SourcePath != "" && !seen[s.SourcePath] {
			seen[s.SourcePath] = true
			out = append(out, s.SourcePath)
		}
	}
	sort.Strings(out)
	return out
}

// Restore re-indexes every stored dataset. Datasets that fail are logged and skipped.
// It returns the number restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	datasets, err := m.store.ListDatasets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list datasets: %w", err)
	}
	restored := 0
	var errs []error
	for _, ds := range datasets {
		records, err := m.store.GetRecords(ctx, ds.ID)
		if err == nil {
			var idx vector.Searcher
			idx, err = m.retriever.BuildIndex(ctx, m.indexType, records)
			if err == nil {
				m.mu.Lock()
				prev := m.sessions[ds.ID]
				m.sessions[ds.ID] = &Session{Dataset: *ds, Records: records, Index: idx}
				m.mu.Unlock()
				if prev != nil {
					prev.retire()
				}
				restored++
				continue
			}
		}
		m.logger.Warn("failed to restore dataset", zap.String("dataset_id", ds.ID), zap.Error(err))
		errs = append(errs, fmt.Errorf("restore %s: %w", ds.ID, err))
	}
	m.logger.Info("datasets restored", zap.Int("restored", restored), zap.Int("stored", len(datasets)))
	return restored, errors.Join(errs...)
}

// Stats returns counts over the loaded sessions.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{Datasets: len(m.sessions), IndexType: m.indexType}
	for _, s := range m.sessions {
		st.Records += len(s.Records)
	}
	return st
}

// Close releases every index. Searches still running finish before their index is closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.retire()
	}
	return nil
}
