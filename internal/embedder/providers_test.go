package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// fakeClient implements langchaingo's embeddings.Embedder
type fakeClient struct {
	calls     atomic.Int32
	embedFunc func(texts []string) ([][]float32, error)
}

func (f *fakeClient) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	return f.embedFunc(texts)
}

func (f *fakeClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func constantVectors(dim int) func([]string) ([][]float32, error) {
	return func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			v := make([]float32, dim)
			v[i%dim] = 1
			out[i] = v
		}
		return out, nil
	}
}

func fastRemote(client *fakeClient, dim int, cache *Cache) *RemoteProvider {
	r := newRemoteProvider(ProviderOpenAI, "test-model", dim, client, cache, nil)
	r.retry = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	return r
}

func TestRemoteProvider_GenerateEmbedding(t *testing.T) {
	client := &fakeClient{embedFunc: constantVectors(4)}
	r := fastRemote(client, 4, NewCache(10))

	emb, err := r.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "reglamento"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 4)
	assert.Equal(t, ProviderOpenAI, emb.Provider)
	assert.Equal(t, "test-model", emb.Model)
	assert.False(t, emb.Fallback)

	// Second call is served from the cache
	_, err = r.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "reglamento"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestRemoteProvider_RetriesThenFails(t *testing.T) {
	client := &fakeClient{embedFunc: func([]string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	}}
	r := fastRemote(client, 4, nil)

	_, err := r.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hola"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(MaxRetries), client.calls.Load())
}

func TestRemoteProvider_DimensionMismatch(t *testing.T) {
	client := &fakeClient{embedFunc: constantVectors(3)}
	r := fastRemote(client, 4, nil)

	_, err := r.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hola"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRemoteProvider_BatchLimits(t *testing.T) {
	client := &fakeClient{embedFunc: constantVectors(2)}
	r := fastRemote(client, 2, nil)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "t"
	}
	_, err := r.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)

	resp, err := r.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Len(t, resp.Embeddings, 2)
}

func TestRemoteProvider_RateLimited(t *testing.T) {
	client := &fakeClient{embedFunc: constantVectors(2)}
	r := fastRemote(client, 2, nil)
	r.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	_, err := r.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.GenerateEmbedding(ctx, EmbeddingRequest{Text: "second"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestNewRemoteProvider_Presets(t *testing.T) {
	r, err := NewRemoteProvider(RemoteConfig{Provider: "jina", APIKey: "k"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderJina, r.Provider())
	assert.Equal(t, DefaultJinaModel, r.Model())
	assert.Equal(t, JinaDimension, r.Dimension())

	r, err = NewRemoteProvider(RemoteConfig{BaseURL: "http://localhost:8080/v1", Model: "bge-m3", Dimension: 1024}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, r.Provider())
	assert.Equal(t, 1024, r.Dimension())

	_, err = NewRemoteProvider(RemoteConfig{Provider: "cohere"}, nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestLocalProvider(t *testing.T) {
	l := NewLocalProvider(0, NewCache(10))
	ctx := context.Background()

	a, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: "reglamento de bajas académicas"})
	require.NoError(t, err)
	assert.Len(t, a.Vector, LocalDimension)
	assert.InDelta(t, 1.0, vectorNorm(a.Vector), 1e-5)

	again, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: "reglamento de bajas académicas"})
	require.NoError(t, err)
	assert.Equal(t, a.Vector, again.Vector, "deterministic")

	similar, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: "bajas académicas del reglamento"})
	require.NoError(t, err)
	unrelated, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: "calendario de inscripciones"})
	require.NoError(t, err)

	assert.Greater(t, dot(a.Vector, similar.Vector), dot(a.Vector, unrelated.Vector))

	_, err = l.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestLocalProvider_Batch(t *testing.T) {
	l := NewLocalProvider(16, nil)
	resp, err := l.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"uno", "dos"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Len(t, resp.Embeddings[1].Vector, 16)
	assert.Equal(t, 16, l.Dimension())
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
