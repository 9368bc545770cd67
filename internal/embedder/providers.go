package embedder

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/dshills/docqa/internal/bm25"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// OpenAI-compatible endpoints
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hashing"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// DefaultRequestTimeout bounds a single remote embedding call
	DefaultRequestTimeout = 30 * time.Second
)

// RemoteConfig configures an OpenAI-compatible embedding endpoint
type RemoteConfig struct {
	Provider  string // openai or jina
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int

	// RequestTimeout bounds each HTTP call; 0 uses DefaultRequestTimeout
	RequestTimeout time.Duration
}

// RemoteProvider implements Embedder over any OpenAI-compatible
// /embeddings endpoint (OpenAI, Jina, llama.cpp, vLLM, Ollama).
type RemoteProvider struct {
	name      string
	model     string
	dimension int
	client    embeddings.Embedder
	cache     *Cache
	limiter   *rate.Limiter
	retry     RetryConfig
	logger    *slog.Logger
}

// NewRemoteProvider creates an embedder backed by langchaingo's OpenAI client.
// limiter may be nil for unthrottled access.
func NewRemoteProvider(cfg RemoteConfig, cache *Cache, limiter *rate.Limiter) (*RemoteProvider, error) {
	name := strings.ToLower(cfg.Provider)
	if name == "" {
		name = ProviderOpenAI
	}

	model, baseURL, dimension := cfg.Model, cfg.BaseURL, cfg.Dimension
	switch name {
	case ProviderOpenAI:
		model = firstNonEmpty(model, DefaultOpenAIModel)
		baseURL = firstNonEmpty(baseURL, DefaultOpenAIBaseURL)
		if dimension <= 0 {
			dimension = OpenAIDimension
		}
	case ProviderJina:
		model = firstNonEmpty(model, DefaultJinaModel)
		baseURL = firstNonEmpty(baseURL, DefaultJinaBaseURL)
		if dimension <= 0 {
			dimension = JinaDimension
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}

	// Local OpenAI-compatible servers accept any token
	token := firstNonEmpty(cfg.APIKey, "none")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
		openai.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProviderEnabled, err)
	}

	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true), embeddings.WithBatchSize(DefaultBatchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProviderEnabled, err)
	}

	return newRemoteProvider(name, model, dimension, emb, cache, limiter), nil
}

func newRemoteProvider(name, model string, dimension int, client embeddings.Embedder, cache *Cache, limiter *rate.Limiter) *RemoteProvider {
	return &RemoteProvider{
		name:      name,
		model:     model,
		dimension: dimension,
		client:    client,
		cache:     cache,
		limiter:   limiter,
		retry:     DefaultRetryConfig(),
		logger:    slog.Default().With("component", name+"-embedder"),
	}
}

func (r *RemoteProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	if r.cache != nil {
		if emb, ok := r.cache.Get(r.model, req.Text); ok {
			return emb, nil
		}
	}

	resp, err := r.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (r *RemoteProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	vectors, err := retryWithBackoff(ctx, r.retry, func() ([][]float32, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return r.client.EmbedDocuments(ctx, req.Texts)
	})
	if err != nil {
		r.logger.Error("embedding request failed", "count", len(req.Texts), "err", err)
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, r.retry.MaxRetries, err)
	}
	if len(vectors) != len(req.Texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vectors), len(req.Texts))
	}

	result := make([]*Embedding, len(vectors))
	for i, vec := range vectors {
		if len(vec) != r.dimension {
			return nil, fmt.Errorf("%w: %w: got %d, want %d", ErrProviderFailed, ErrDimensionMismatch, len(vec), r.dimension)
		}
		emb := &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  r.name,
			Model:     r.model,
			Hash:      ContentHash(req.Texts[i]),
		}
		if r.cache != nil {
			r.cache.Set(r.model, req.Texts[i], emb)
		}
		result[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: result,
		Provider:   r.name,
		Model:      r.model,
	}, nil
}

func (r *RemoteProvider) Dimension() int {
	return r.dimension
}

func (r *RemoteProvider) Provider() string {
	return r.name
}

func (r *RemoteProvider) Model() string {
	return r.model
}

func (r *RemoteProvider) Close() error {
	return nil
}

// LocalProvider is an offline embedder using signed feature hashing of
// word unigrams and bigrams. Texts sharing vocabulary land close together,
// which is enough for development and tests without a model server.
type LocalProvider struct {
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a local hashing embedder. dimension <= 0 uses LocalDimension.
func NewLocalProvider(dimension int, cache *Cache) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension, cache: cache}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.cache != nil {
		if emb, ok := l.cache.Get(DefaultLocalModel, req.Text); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    l.hashVector(req.Text),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     DefaultLocalModel,
		Hash:      ContentHash(req.Text),
	}
	if l.cache != nil {
		l.cache.Set(DefaultLocalModel, req.Text, emb)
	}
	return emb, nil
}

func (l *LocalProvider) hashVector(text string) []float32 {
	vector := make([]float32, l.dimension)
	tokens := bm25.Tokenize(text)

	add := func(feature string, weight float32) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(l.dimension))
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		vector[idx] += weight
	}

	for i, tok := range tokens {
		add(tok, 1)
		if i > 0 {
			add(tokens[i-1]+" "+tok, 0.5)
		}
	}

	return NormalizeVector(vector)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	result := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		result[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: result,
		Provider:   ProviderLocal,
		Model:      DefaultLocalModel,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return DefaultLocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity).
// A zero vector is returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// isPermanent reports errors that retrying cannot fix
func isPermanent(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrBatchTooLarge)
}
