package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg. LLM temperature and
// max_retries are only defaulted when absent, so 0 can be configured for both.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".kotae/kotae.db"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "hashing"
	}
	if cfg.Embedding.Dimensions == 0 {
		if cfg.Embedding.Backend == "openai" {
			cfg.Embedding.Dimensions = 1536
		} else {
			cfg.Embedding.Dimensions = 384
		}
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OpenAIModel == "" {
		cfg.Embedding.OpenAIModel = "text-embedding-3-small"
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 5
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 100
	}
	if cfg.Dataset.Encoding == "" {
		cfg.Dataset.Encoding = "latin1"
	}
	if cfg.Dataset.Separator == "" {
		cfg.Dataset.Separator = " | "
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4.1-mini"
	}
	if cfg.LLM.Temperature == nil {
		t := float32(0.7)
		cfg.LLM.Temperature = &t
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}
	if cfg.LLM.MaxRetries == nil {
		n := 3
		cfg.LLM.MaxRetries = &n
	}
	if cfg.LLM.RetryDelay == 0 {
		cfg.LLM.RetryDelay = time.Second
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}
