// Package generator wraps chat-completion models used for query
// reformulation and grounded answer synthesis.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrDisabled is returned by the Disabled generator
	ErrDisabled = errors.New("generator disabled")
	// ErrEmptyCompletion is returned when the model produced no text
	ErrEmptyCompletion = errors.New("empty completion")
)

// Provider names
const (
	ProviderOpenAI   = "openai"
	ProviderDisabled = "none"
)

// DefaultRequestTimeout bounds a single completion call
const DefaultRequestTimeout = 60 * time.Second

// Request is a single system+user completion
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator produces text completions
type Generator interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config configures the generator provider
type Config struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string

	// RequestTimeout bounds each HTTP call; 0 uses DefaultRequestTimeout
	RequestTimeout time.Duration
}

// New builds a generator from configuration. An empty or "none" provider
// yields Disabled.
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderDisabled:
		return Disabled{}, nil
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}

// model is the subset of llms.Model used here
type model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// OpenAI talks to any OpenAI-compatible chat endpoint
type OpenAI struct {
	client model
	logger *slog.Logger
}

// NewOpenAI creates a chat generator
func NewOpenAI(cfg Config) (*OpenAI, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	opts := []openai.Option{
		openai.WithToken(firstNonEmpty(cfg.APIKey, "none")),
		openai.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	return newOpenAI(client), nil
}

func newOpenAI(client model) *OpenAI {
	return &OpenAI{
		client: client,
		logger: slog.Default().With("component", "generator"),
	}
}

// Complete sends the system and user messages and returns the first choice
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	content := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		content = append(content, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.System)},
		})
	}
	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(req.Prompt)},
	})

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := o.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		o.logger.Error("completion failed", "err", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Disabled is used when no generator is configured
type Disabled struct{}

// Complete always fails with ErrDisabled
func (Disabled) Complete(context.Context, Request) (string, error) {
	return "", ErrDisabled
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
