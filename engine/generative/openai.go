package generative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-3.5-turbo"

// OpenAIProvider implements Provider on the OpenAI chat-completion API or any
// compatible endpoint.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// Option configures an OpenAIProvider.
type Option func(*config)

type config struct {
	model       string
	apiKey      string
	baseURL     string
	timeout     time.Duration
	maxTokens   int64
	temperature float64
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithAPIKey sets the API key. If empty, the SDK falls back to OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout bounds each completion request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *config) { c.maxTokens = int64(n) }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = t }
}

// NewOpenAIProvider creates a provider. Defaults: gpt-3.5-turbo, 1000 max
// tokens, temperature 0.7, no SDK retries (the analyze chain falls back
// instead).
func NewOpenAIProvider(opts ...Option) *OpenAIProvider {
	cfg := config{model: DefaultModel, maxTokens: 1000, temperature: 0.7}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(cfg.timeout))
	}

	return &OpenAIProvider{
		client:      openai.NewClient(clientOpts...),
		model:       cfg.model,
		maxTokens:   cfg.maxTokens,
		temperature: cfg.temperature,
	}
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string { return p.model }

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       p.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(p.temperature),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(p.maxTokens)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai returned empty content: %w", ErrNoChoices)
	}
	return content, nil
}
