package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/kotae/internal/retry"
)

// DefaultOpenAIModel is the default remote embedding model.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// OpenAIConfig configures the remote embedding backend.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a compatible gateway.
	BaseURL    string
	Model      string
	Dimensions int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// OpenAIEmbedder embeds a whole batch with one CreateEmbeddings request.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	policy     retry.Policy
	timeout    time.Duration
}

// NewOpenAIEmbedder returns an embedder backed by the OpenAI embeddings API.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", ErrEmbedding)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		policy:     retry.Policy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryDelay},
		timeout:    cfg.Timeout,
	}, nil
}

// Embed sends texts in a single request and returns the vectors in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errEmptyBatch()
	}

	// The API rejects empty strings.
	input := make([]string, len(texts))
	for i, t := range texts {
		if t == "" {
			t = " "
		}
		input[i] = t
	}

	var resp openai.EmbeddingResponse
	err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		var err error
		resp, err = e.client.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
			Input: input,
			Model: e.model,
		})
		return classifyOpenAIError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", ErrEmbedding, err)
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: openai returned %d dimensions, expected %d", ErrEmbedding, len(d.Embedding), e.dimensions)
		}
		out[i] = d.Embedding
	}
	if err := checkBatch(texts, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for OpenAIEmbedder.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retry.ForStatus(err, apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retry.ForStatus(err, reqErr.HTTPStatusCode)
	}
	return err
}
