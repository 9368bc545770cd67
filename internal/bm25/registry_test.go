package bm25

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddAndSearch(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, 0, r.Add("global", Document{Ref: DocRef{"a.pdf", 1}, Text: "becas y apoyos económicos"}))
	assert.Equal(t, 1, r.Add("global", Document{Ref: DocRef{"a.pdf", 2}, Text: "calendario escolar"}))
	assert.Equal(t, 0, r.Add("other", Document{Ref: DocRef{"b.pdf", 1}, Text: "becas"}))

	hits, ok := r.Search("global", "becas")
	require.True(t, ok)
	require.Len(t, hits, 1)
	assert.Equal(t, DocRef{"a.pdf", 1}, hits[0].Ref)
	assert.Greater(t, hits[0].Score, 0.0)

	assert.Equal(t, 2, r.Len("global"))
	assert.Equal(t, 1, r.Len("other"))
	assert.Equal(t, []string{"global", "other"}, r.Scopes())
}

func TestRegistry_SearchUnknownScope(t *testing.T) {
	r := NewRegistry()
	hits, ok := r.Search("missing", "x")
	assert.False(t, ok)
	assert.Nil(t, hits)
}

func TestRegistry_SearchOrdersByScore(t *testing.T) {
	r := NewRegistry()
	r.Add("s", Document{Ref: DocRef{"d", 1}, Text: "beca"})
	r.Add("s", Document{Ref: DocRef{"d", 2}, Text: "beca beca beca"})

	hits, ok := r.Search("s", "beca")
	require.True(t, ok)
	require.Len(t, hits, 2)
	assert.Equal(t, 2, hits[0].Ref.PageNumber)
}

func TestRegistry_Rebuild(t *testing.T) {
	r := NewRegistry()
	r.Add("s", Document{Ref: DocRef{"old", 1}, Text: "viejo"})

	r.Rebuild("s", []Document{
		{Ref: DocRef{"new", 1}, Text: "nuevo contenido"},
		{Ref: DocRef{"new", 2}, Text: "más contenido"},
	})

	assert.Equal(t, 2, r.Len("s"))
	hits, _ := r.Search("s", "viejo")
	assert.Empty(t, hits)
	hits, _ = r.Search("s", "contenido")
	assert.Len(t, hits, 2)
}

func TestRegistry_Ensure(t *testing.T) {
	r := NewRegistry()
	r.Ensure("s")
	hits, ok := r.Search("s", "x")
	assert.True(t, ok)
	assert.Empty(t, hits)
}

func TestRegistry_RebuildLeavesPreviousRefsIntact(t *testing.T) {
	r := NewRegistry()
	r.Add("s", Document{Ref: DocRef{"old", 1}, Text: "viejo"})
	r.Add("s", Document{Ref: DocRef{"old", 2}, Text: "viejo"})

	held := r.scopes["s"].refs
	r.Rebuild("s", []Document{{Ref: DocRef{"new", 9}, Text: "nuevo"}})

	assert.Equal(t, DocRef{"old", 1}, held[0])
	assert.Equal(t, DocRef{"new", 9}, r.scopes["s"].refs[0])
}

func TestRegistry_ConcurrentRebuildAndSearch(t *testing.T) {
	r := NewRegistry()
	docs := make([]Document, 20)
	for i := range docs {
		docs[i] = Document{Ref: DocRef{"d", i + 1}, Text: fmt.Sprintf("inscripciones grupo %d", i)}
	}
	r.Rebuild("s", docs)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Rebuild("s", docs)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hits, ok := r.Search("s", "inscripciones")
				assert.True(t, ok)
				for _, h := range hits {
					assert.Equal(t, "d", h.Ref.Document)
				}
			}
		}()
	}
	wg.Wait()
}

func TestRegistry_Drop(t *testing.T) {
	r := NewRegistry()
	r.Add("s", Document{Ref: DocRef{"d", 1}, Text: "beca"})
	r.Add("t", Document{Ref: DocRef{"d", 1}, Text: "beca"})

	r.Drop("s")
	_, ok := r.Search("s", "beca")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len("s"))
	assert.Equal(t, []string{"t"}, r.Scopes())

	r.Add("s", Document{Ref: DocRef{"d", 2}, Text: "beca"})
	assert.Equal(t, 1, r.Len("s"), "a dropped scope starts empty")
}
