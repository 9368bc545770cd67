package embedder

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // openai, jina or local
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int
	CacheSize int

	// Fallback is none, zero or random
	Fallback string

	// RatePerSecond throttles remote calls; 0 disables throttling
	RatePerSecond float64
	Burst         int

	// RequestTimeout bounds each remote HTTP call
	RequestTimeout time.Duration

	Logger *slog.Logger
}

// New creates an embedder with explicit configuration, wrapped in a
// Fallback when one is configured.
func New(cfg Config) (Embedder, error) {
	mode, err := ParseFallbackMode(cfg.Fallback)
	if err != nil {
		return nil, err
	}

	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	var inner Embedder
	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case "", ProviderLocal:
		inner = NewLocalProvider(cfg.Dimension, cache)
	case ProviderOpenAI, ProviderJina:
		inner, err = NewRemoteProvider(RemoteConfig{
			Provider:  provider,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,

			RequestTimeout: cfg.RequestTimeout,
		}, cache, newLimiter(cfg.RatePerSecond, cfg.Burst))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}

	if mode == FallbackNone {
		return inner, nil
	}
	return NewFallback(inner, mode, cfg.Logger), nil
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
