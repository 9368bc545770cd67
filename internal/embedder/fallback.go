package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
)

// FallbackMode selects what Fallback returns when the provider fails
type FallbackMode string

const (
	FallbackNone   FallbackMode = "none"
	FallbackZero   FallbackMode = "zero"
	FallbackRandom FallbackMode = "random"
)

// ParseFallbackMode parses a config value. Empty means none.
func ParseFallbackMode(s string) (FallbackMode, error) {
	switch FallbackMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FallbackNone:
		return FallbackNone, nil
	case FallbackZero:
		return FallbackZero, nil
	case FallbackRandom:
		return FallbackRandom, nil
	default:
		return FallbackNone, fmt.Errorf("%w: unknown fallback mode %q", ErrInvalidInput, s)
	}
}

// Fallback wraps an Embedder and substitutes a placeholder vector when the
// provider fails. Placeholders carry Fallback=true so consumers that rank
// by similarity can ignore them.
type Fallback struct {
	Embedder
	mode   FallbackMode
	logger *slog.Logger
}

// NewFallback wraps inner. With FallbackNone errors pass through unchanged.
func NewFallback(inner Embedder, mode FallbackMode, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default().With("component", "embedder")
	}
	return &Fallback{Embedder: inner, mode: mode, logger: logger}
}

// Mode returns the configured fallback mode
func (f *Fallback) Mode() FallbackMode {
	return f.mode
}

func (f *Fallback) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	emb, err := f.Embedder.GenerateEmbedding(ctx, req)
	if err == nil {
		return emb, nil
	}
	return f.substitute(ctx, req.Text, err)
}

func (f *Fallback) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	resp, err := f.Embedder.GenerateBatch(ctx, req)
	if err == nil || f.mode == FallbackNone {
		return resp, err
	}

	// Retry one by one so a single bad text does not poison the batch
	result := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := f.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return &BatchEmbeddingResponse{
		Embeddings: result,
		Provider:   f.Provider(),
		Model:      f.Model(),
	}, nil
}

func (f *Fallback) substitute(ctx context.Context, text string, cause error) (*Embedding, error) {
	if f.mode == FallbackNone || ctx.Err() != nil {
		return nil, cause
	}

	dim := f.Dimension()
	vector := make([]float32, dim)
	if f.mode == FallbackRandom {
		for i := range vector {
			vector[i] = rand.Float32()
		}
	}

	f.logger.Warn("embedding provider failed, using placeholder vector",
		"mode", string(f.mode), "provider", f.Provider(), "err", cause)

	return &Embedding{
		Vector:    vector,
		Dimension: dim,
		Provider:  f.Provider(),
		Model:     f.Model(),
		Hash:      ContentHash(text),
		Fallback:  true,
	}, nil
}
