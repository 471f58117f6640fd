package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/dataset"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory, and falls back to built-in defaults when neither
// file exists. Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config named by --config and builds a logger honouring --debug.
// Server mode logs JSON; one-shot commands only log warnings to stderr.
func setup(cmd *cobra.Command, serverMode bool) (*config.Config, string, *zap.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug = debug || cfg.Debug
	cfg.Debug = debug

	var logger *zap.Logger
	if serverMode {
		logger, err = utils.NewLogger(debug)
	} else {
		logger, err = utils.NewCLILogger(debug)
	}
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, resolved, logger, nil
}

// Components holds initialized services.
type Components struct {
	Storage  *storage.SQLiteStorage
	Embedder *embedding.Service
	Sessions *session.Manager
}

// Close releases the sessions, the embedding model and the database.
func (c *Components) Close() {
	if c.Sessions != nil {
		_ = c.Sessions.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents wires storage at dbPath, the embedding service, the retriever and
// the session manager. A missing API key leaves answer generation disabled.
func initializeComponents(cfg *config.Config, logger *zap.Logger, dbPath string) (*Components, error) {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	apiKey := strings.TrimSpace(os.Getenv(cfg.LLM.APIKeyEnv))
	emb, err := embedding.NewServiceFromConfig(cfg.Embedding, cfg.LLM, apiKey, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedding: %w", err)
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithIndexType(cfg.Vector.IndexType),
		session.WithTopK(cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK),
		session.WithSeparator(cfg.Dataset.Separator),
		session.WithLoadOptions(loadOptions(cfg)),
	}
	gen, err := answer.NewOpenAIGenerator(answer.Config{
		APIKey:      apiKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temp(),
		MaxTokens:   cfg.LLM.MaxTokens,
		MaxRetries:  cfg.LLM.Retries(),
		RetryDelay:  cfg.LLM.RetryDelay,
		Timeout:     cfg.LLM.Timeout,
	}, answer.WithLogger(logger))
	switch {
	case err == nil:
		opts = append(opts, session.WithGenerator(gen))
	case errors.Is(err, answer.ErrMissingAPIKey):
		logger.Debug("answer generation disabled", zap.String("api_key_env", cfg.LLM.APIKeyEnv))
	default:
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize answer generator: %w", err)
	}

	retriever := retrieval.New(emb, retrieval.WithLogger(logger))
	return &Components{
		Storage:  store,
		Embedder: emb,
		Sessions: session.NewManager(store, retriever, opts...),
	}, nil
}

func loadOptions(cfg *config.Config) dataset.Options {
	return dataset.Options{Encoding: cfg.Dataset.Encoding}
}
