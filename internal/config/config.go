// Package config provides configuration loading and structs for the kotae server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	LLM       LLMConfig       `yaml:"llm"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MaxUploadBytes limits multipart dataset uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// StorageConfig holds the SQLite database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Backend is one of "hashing", "onnx" or "openai".
	Backend     string `yaml:"backend"`
	ModelPath   string `yaml:"model_path"`
	VocabPath   string `yaml:"vocab_path"`
	LibraryPath string `yaml:"library_path"`
	OutputName  string `yaml:"output_name"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	CacheSize   int    `yaml:"cache_size"`
	OpenAIModel string `yaml:"openai_model"`
}

// VectorConfig selects the index implementation.
type VectorConfig struct {
	// IndexType is "memory" or "faiss".
	IndexType string `yaml:"index_type"`
}

// RetrievalConfig bounds top_k.
type RetrievalConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// DatasetConfig controls how tabular files become records.
type DatasetConfig struct {
	// Encoding of CSV input: "latin1" or "utf-8".
	Encoding  string `yaml:"encoding"`
	Separator string `yaml:"separator"`
	// Root is the directory the API may load datasets from by path. Empty disables path loading.
	Root string `yaml:"root"`
}

// LLMConfig configures answer generation.
type LLMConfig struct {
	Model string `yaml:"model"`
	// Temperature and MaxRetries are pointers so an explicit 0 survives ApplyDefaults.
	Temperature *float32      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	MaxRetries  *int          `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	BaseURL     string        `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// WatchConfig controls reloading of file-backed datasets.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	expandPaths(&cfg, filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied, for running without a config file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	expandPaths(&cfg, ".")
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Embedding.Backend {
	case "hashing", "onnx", "openai":
	default:
		return fmt.Errorf("invalid embedding.backend %q (supported: hashing, onnx, openai)", c.Embedding.Backend)
	}
	switch c.Vector.IndexType {
	case "memory", "faiss":
	default:
		return fmt.Errorf("invalid vector.index_type %q (supported: memory, faiss)", c.Vector.IndexType)
	}
	switch strings.ToLower(c.Dataset.Encoding) {
	case "latin1", "latin-1", "iso-8859-1", "utf-8", "utf8":
	default:
		return fmt.Errorf("invalid dataset.encoding %q (supported: latin1, utf-8)", c.Dataset.Encoding)
	}
	if c.LLM.MaxRetries != nil && *c.LLM.MaxRetries < 0 {
		return fmt.Errorf("invalid llm.max_retries %d (must be 0 or more)", *c.LLM.MaxRetries)
	}
	if c.Retrieval.DefaultTopK < 1 || c.Retrieval.MaxTopK < c.Retrieval.DefaultTopK {
		return fmt.Errorf("invalid retrieval settings: default_top_k=%d max_top_k=%d", c.Retrieval.DefaultTopK, c.Retrieval.MaxTopK)
	}
	return nil
}

// Retries returns the configured LLM retry count, or 3 when unset.
func (l LLMConfig) Retries() int {
	if l.MaxRetries == nil {
		return 3
	}
	return *l.MaxRetries
}

// Temp returns the configured sampling temperature, or 0.7 when unset.
func (l LLMConfig) Temp() float32 {
	if l.Temperature == nil {
		return 0.7
	}
	return *l.Temperature
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	cfg.Embedding.LibraryPath = expandPath(cfg.Embedding.LibraryPath, configDir)
	cfg.Dataset.Root = expandPath(cfg.Dataset.Root, configDir)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
			return abs
		}
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
