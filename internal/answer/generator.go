// Package answer turns a question and retrieved context into a natural-language answer.
package answer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/retry"
)

// SystemMessage instructs the model to stay within the supplied context.
const SystemMessage = "Ensure your answer is relevant to the provided context."

var (
	// ErrMissingAPIKey is returned when no API key has been configured.
	ErrMissingAPIKey = errors.New("please activate API key first")
	// ErrGeneration is returned when the model call fails or yields no answer.
	ErrGeneration = errors.New("answer generation failed")
)

// Generator produces an answer to query grounded in contextText, the joined retrieved records.
type Generator interface {
	Generate(ctx context.Context, query, contextText string) (string, error)
}

// UserMessage frames the question and the retrieved context for the model.
func UserMessage(query, contextText string) string {
	return fmt.Sprintf("Answer this question: %s\n\nBased on the following information:\n%s", query, contextText)
}

// Config configures the OpenAI chat generator.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// OpenAIGenerator answers with the chat completions API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	policy      retry.Policy
	timeout     time.Duration
	logger      *zap.Logger
}

// Option configures an OpenAIGenerator.
type Option func(*OpenAIGenerator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *OpenAIGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewOpenAIGenerator returns a generator, or ErrMissingAPIKey when cfg has no key.
func NewOpenAIGenerator(cfg Config, opts ...Option) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	// go-openai drops a zero temperature from the request; send the smallest non-zero value instead.
	if cfg.Temperature == 0 {
		cfg.Temperature = math.SmallestNonzeroFloat32
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	g := &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		policy:      retry.Policy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryDelay},
		timeout:     cfg.Timeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate sends the system and user messages and returns the trimmed first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, query, contextText string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: UserMessage(query, contextText)},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	var answer string
	attempt := 0
	err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			g.logger.Warn("chat completion failed", zap.Int("attempt", attempt), zap.Error(err))
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no completion choices returned")
		}
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return answer, nil
}

func classify(err error) error {
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
