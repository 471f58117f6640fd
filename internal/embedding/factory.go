package embedding

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
)

// NewLoader returns a Loader for the configured backend. The model is not constructed
// until the loader runs.
func NewLoader(cfg config.EmbeddingConfig, llm config.LLMConfig, apiKey string) (Loader, error) {
	switch cfg.Backend {
	case "hashing", "":
		return func() (Embedder, error) {
			return NewHashingEmbedder(cfg.Dimensions), nil
		}, nil
	case "onnx":
		return func() (Embedder, error) {
			e, err := NewONNXEmbedder(ONNXConfig{
				ModelPath:   cfg.ModelPath,
				VocabPath:   cfg.VocabPath,
				LibraryPath: cfg.LibraryPath,
				Dimensions:  cfg.Dimensions,
				MaxTokens:   cfg.MaxTokens,
				OutputName:  cfg.OutputName,
			})
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	case "openai":
		return func() (Embedder, error) {
			e, err := NewOpenAIEmbedder(OpenAIConfig{
				APIKey:     apiKey,
				BaseURL:    llm.BaseURL,
				Model:      cfg.OpenAIModel,
				Dimensions: cfg.Dimensions,
				MaxRetries: llm.Retries(),
				RetryDelay: llm.RetryDelay,
				Timeout:    30 * time.Second,
			})
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s (supported: hashing, onnx, openai)", cfg.Backend)
	}
}

// NewServiceFromConfig builds the shared Service for the configured backend.
func NewServiceFromConfig(cfg config.EmbeddingConfig, llm config.LLMConfig, apiKey string, logger *zap.Logger) (*Service, error) {
	load, err := NewLoader(cfg, llm, apiKey)
	if err != nil {
		return nil, err
	}
	backend := cfg.Backend
	if backend == "" {
		backend = "hashing"
	}
	return NewService(backend, load, WithLogger(logger), WithCache(cfg.CacheSize)), nil
}
