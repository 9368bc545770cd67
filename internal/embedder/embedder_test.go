package embedder

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash(t *testing.T) {
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", ContentHash("hello world"))
	assert.Equal(t, ContentHash("tema 2"), ContentHash("tema 2"))
	assert.NotEqual(t, ContentHash("tema 2"), ContentHash("tema 3"))
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "hola"}))

	err := ValidateRequest(EmbeddingRequest{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidateBatchRequest(t *testing.T) {
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}), ErrInvalidInput)
}

func TestCache_DeepCopy(t *testing.T) {
	cache := NewCache(2)
	stored := &Embedding{Vector: []float32{1, 2}, Dimension: 2}
	cache.Set("m", "hola", stored)
	stored.Vector[1] = 42

	got, ok := cache.Get("m", "hola")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, got.Vector)
	got.Vector[0] = 99

	again, ok := cache.Get("m", "hola")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestCache_KeyedByModel(t *testing.T) {
	cache := NewCache(4)
	cache.Set("model-a", "hola", &Embedding{Vector: []float32{1}})

	_, ok := cache.Get("model-b", "hola")
	assert.False(t, ok)
	_, ok = cache.Get("model-a", "hola")
	assert.True(t, ok)
}

func TestCache_EvictionAndFallback(t *testing.T) {
	cache := NewCache(2)
	cache.Set("m", "a", &Embedding{Vector: []float32{1}})
	cache.Set("m", "b", &Embedding{Vector: []float32{2}})
	cache.Set("m", "c", &Embedding{Vector: []float32{3}})
	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get("m", "a")
	assert.False(t, ok)

	cache.Set("m", "fb", &Embedding{Vector: []float32{0}, Fallback: true})
	_, ok = cache.Get("m", "fb")
	assert.False(t, ok, "placeholders are not cached")

	cache.Purge()
	assert.Zero(t, cache.Len())
}

func TestEmbedding_Clone(t *testing.T) {
	var nilEmb *Embedding
	assert.Nil(t, nilEmb.Clone())

	orig := &Embedding{Vector: []float32{1}, Provider: "local", Fallback: true}
	c := orig.Clone()
	c.Vector[0] = 5
	assert.Equal(t, float32(1), orig.Vector[0])
	assert.Equal(t, "local", c.Provider)
	assert.True(t, c.Fallback)
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func TestIsUsable(t *testing.T) {
	assert.True(t, IsUsable(&Embedding{Vector: []float32{1}}))
	assert.False(t, IsUsable(&Embedding{Vector: []float32{1}, Fallback: true}))
	assert.False(t, IsUsable(&Embedding{}))
	assert.False(t, IsUsable(nil))
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		got, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, errors.New("down")
		})
		assert.EqualError(t, err, "down")
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, ErrInvalidInput
		})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
			calls++
			cancel()
			return 0, errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
