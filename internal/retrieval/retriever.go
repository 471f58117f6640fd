// Package retrieval maps a natural-language query to the most similar records of a corpus.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// Retriever embeds queries and corpora through one shared embedder.
type Retriever struct {
	emb    embedding.Embedder
	logger *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New returns a Retriever using emb, normally the process-wide embedding.Service.
func New(emb embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{emb: emb, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds query, searches index and returns the topK matching records in score order.
// records must be the exact slice, in the same order, whose vectors built index.
func (r *Retriever) Retrieve(ctx context.Context, query string, index vector.Searcher, records []models.Record, topK int) ([]models.Record, error) {
	hits, err := r.RetrieveScored(ctx, query, index, records, topK)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, len(hits))
	for i, h := range hits {
		out[i] = h.Record
	}
	return out, nil
}

// RetrieveScored is Retrieve with each record's similarity score.
func (r *Retriever) RetrieveScored(ctx context.Context, query string, index vector.Searcher, records []models.Record, topK int) ([]models.ScoredRecord, error) {
	q, err := embedding.EmbedOne(ctx, r.emb, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := index.Search(q, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]models.ScoredRecord, len(results))
	for i, res := range results {
		out[i] = models.ScoredRecord{Record: records[res.RecordID], Score: res.Score}
	}
	return out, nil
}

// BuildIndex embeds every record's text in one batch and builds an index of indexType.
func (r *Retriever) BuildIndex(ctx context.Context, indexType string, records []models.Record) (vector.Searcher, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("build index: %w", vector.ErrEmptyCorpus)
	}
	start := time.Now()
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}
	vecs, err := r.emb.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed records: %w", err)
	}
	idx, err := vector.NewIndex(indexType, vecs)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	r.logger.Debug("index built",
		zap.String("type", idx.Type()),
		zap.Int("records", idx.Size()),
		zap.Int("dimensions", idx.Dimensions()),
		zap.Duration("took", time.Since(start)))
	return idx, nil
}

// BuildContext joins the records' text with newlines, keeping their order.
func BuildContext(records []models.Record) string {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n")
}

// ContextFromScored is BuildContext over scored records.
func ContextFromScored(hits []models.ScoredRecord) string {
	records := make([]models.Record, len(hits))
	for i, h := range hits {
		records[i] = h.Record
	}
	return BuildContext(records)
}
