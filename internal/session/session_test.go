package session

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docqa/pkg/types"
)

func results(docs ...string) []types.SearchResult {
	out := make([]types.SearchResult, len(docs))
	for i, d := range docs {
		out[i] = types.SearchResult{ID: fmt.Sprintf("r%d", i), Document: d}
	}
	return out
}

func repeat(doc string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = doc
	}
	return out
}

func TestUpdateFocus(t *testing.T) {
	tests := []struct {
		name    string
		current string
		docs    []string
		want    string
	}{
		{"7 of 10 sets focus", "", append(repeat("A", 7), repeat("B", 3)...), "A"},
		{"5 of 5 split clears focus", "A", append(repeat("A", 5), repeat("B", 5)...), ""},
		{"exactly 60 percent is not enough", "A", append(repeat("A", 3), "B", "C"), ""},
		{"empty results keep focus", "A", nil, "A"},
		{"unanimous", "", repeat("C", 4), "C"},
		{"empty document never focuses", "A", repeat("", 4), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UpdateFocus(tt.current, results(tt.docs...)))
		})
	}
}

func TestNextFocus(t *testing.T) {
	assert.Equal(t, "reglamento", NextFocus("calendario", "reglamento", results("calendario", "calendario")))
	assert.Equal(t, "calendario", NextFocus("", "", results("calendario", "calendario")))
	assert.Equal(t, "prev", NextFocus("prev", "", nil))
}

func TestSession_Append(t *testing.T) {
	s := &Session{}
	for i := 0; i < 5; i++ {
		s.Append(4, Turn{Role: RoleUser, Message: fmt.Sprintf("m%d", i)})
	}
	require.Len(t, s.History, 4)
	assert.Equal(t, "m1", s.History[0].Message)
	assert.Equal(t, "m4", s.History[3].Message)

	s.Append(0, Turn{Role: RoleBot, Message: "x"})
	assert.Len(t, s.History, 5)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Hour)
	defer store.Close()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	s1, created, err := GetOrCreate(ctx, store, "s1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Chat 1", s1.Name)

	s2, _, err := GetOrCreate(ctx, store, "")
	require.NoError(t, err)
	assert.NotEmpty(t, s2.ID)
	assert.Equal(t, "Chat 2", s2.Name)

	again, created, err := GetOrCreate(ctx, store, "s1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Chat 1", again.Name)

	// stored values are isolated from callers
	again.History = append(again.History, Turn{Role: RoleUser, Message: "hola"})
	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, loaded.History)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// bounded: a third session evicts the least recently used
	_, _, err = GetOrCreate(ctx, store, "s3")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, 20*time.Millisecond)
	require.NoError(t, store.Put(ctx, &Session{ID: "short"}))

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, "short")
		return err == ErrNotFound
	}, time.Second, 10*time.Millisecond)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("DOCQA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DOCQA_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, RedisConfig{Addr: addr, TTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	id := fmt.Sprintf("test-%d", time.Now().UnixNano())
	s, created, err := GetOrCreate(ctx, store, id)
	require.NoError(t, err)
	assert.True(t, created)

	s.CurrentFocus = "reglamento"
	s.Append(10, Turn{Role: RoleUser, Message: "hola"}, Turn{Role: RoleBot, Message: "¡Hola!"})
	require.NoError(t, store.Put(ctx, s))

	loaded, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "reglamento", loaded.CurrentFocus)
	assert.Len(t, loaded.History, 2)

	list, err := store.List(ctx)
	require.NoError(t, err)
	var found bool
	for _, item := range list {
		found = found || item.ID == id
	}
	assert.True(t, found)

	_, err = store.Get(ctx, id+"-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
