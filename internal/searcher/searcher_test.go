package searcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docqa/internal/bm25"
	"github.com/dshills/docqa/internal/embedder"
	"github.com/dshills/docqa/internal/generator"
	"github.com/dshills/docqa/internal/storage"
	"github.com/dshills/docqa/pkg/types"
)

const testDim = 3

// mockEmbedder implements the Embedder interface for testing
type mockEmbedder struct {
	generateFunc func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error)
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return &embedder.Embedding{Vector: []float32{1, 0, 0}, Dimension: testDim, Provider: "mock", Model: "mock-model"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "mock", Model: "mock-model"}, nil
}

func (m *mockEmbedder) Dimension() int   { return testDim }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

// mockGenerator implements generator.Generator for testing
type mockGenerator struct {
	completeFunc func(ctx context.Context, req generator.Request) (string, error)
	calls        int
}

func (m *mockGenerator) Complete(ctx context.Context, req generator.Request) (string, error) {
	m.calls++
	return m.completeFunc(ctx, req)
}

// failingStore lists one collection and fails every search
type failingStore struct{}

func (failingStore) ListCollectionNames(context.Context) ([]string, error) {
	return []string{storage.GlobalScope}, nil
}

func (failingStore) Search(context.Context, string, []float32, int, types.Filters) ([]storage.Hit, error) {
	return nil, errors.New("disk I/O error")
}

func setupStore(t *testing.T, collection string, fragments ...types.Fragment) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if collection != "" {
		require.NoError(t, store.EnsureCollection(context.Background(), collection, storage.DefaultCollectionConfig(testDim)))
		require.NoError(t, store.Upsert(context.Background(), collection, fragments))
	}
	return store
}

func frag(id, doc string, page int, topic string, level int, vec ...float32) types.Fragment {
	return types.Fragment{
		ID:         id,
		Text:       "texto " + id,
		Vector:     vec,
		Document:   doc,
		SessionID:  storage.GlobalScope,
		Topic:      topic,
		Subtopic:   types.SubtopicNone,
		Level:      level,
		PageNumber: page,
	}
}

func ids(results []types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHybridHyDE, m)

	for _, mode := range []Mode{ModeSemantic, ModeHyDE, ModeHybrid, ModeHybridHyDE} {
		got, err := ParseMode(string(mode))
		require.NoError(t, err)
		assert.Equal(t, mode, got)
	}

	_, err = ParseMode("all")
	assert.Error(t, err)

	assert.True(t, ModeHybridHyDE.UsesHyDE())
	assert.True(t, ModeHybridHyDE.UsesLexical())
	assert.False(t, ModeSemantic.UsesHyDE())
	assert.False(t, ModeHyDE.UsesLexical())
}

func TestLevelWeight(t *testing.T) {
	assert.Equal(t, 0.8, LevelWeight(types.LevelChunk))
	assert.Equal(t, 1.0, LevelWeight(types.LevelParagraph))
	assert.Equal(t, 0.9, LevelWeight(types.LevelSentence))
	assert.Equal(t, 1.0, LevelWeight(7))
}

func TestSearch_TopicQueryEndToEnd(t *testing.T) {
	store := setupStore(t, storage.GlobalScope,
		frag("other", "reglamento", 1, types.TopicGeneral, types.LevelParagraph, 1, 0, 0),
		frag("tema2", "reglamento", 2, "2", types.LevelParagraph, 0, 1, 0),
	)
	s := New(store, &mockEmbedder{})

	resp, err := s.Search(context.Background(), SearchRequest{Query: "¿qué dice el tema 2?", Mode: ModeSemantic})
	require.NoError(t, err)
	assert.Equal(t, "2", resp.Filters.Topic)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "tema2", resp.Results[0].ID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Empty(t, resp.Degradations)
	assert.Equal(t, []string{storage.GlobalScope}, resp.Collections)
}

func TestSearch_BothEmbeddingsFail(t *testing.T) {
	store := setupStore(t, storage.GlobalScope)
	emb := &mockEmbedder{generateFunc: func(context.Context, embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		return nil, embedder.ErrProviderFailed
	}}
	gen := &mockGenerator{completeFunc: func(context.Context, generator.Request) (string, error) {
		return "pregunta reformulada", nil
	}}
	s := New(store, emb, WithGenerator(gen))

	resp, err := s.Search(context.Background(), SearchRequest{Query: "becas", Mode: ModeHyDE})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, embedder.ErrProviderFailed)
}

func TestSearch_PlaceholderVectorIsFailure(t *testing.T) {
	store := setupStore(t, storage.GlobalScope)
	emb := &mockEmbedder{generateFunc: func(context.Context, embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		return &embedder.Embedding{Vector: []float32{0, 0, 0}, Fallback: true}, nil
	}}
	s := New(store, emb)

	_, err := s.Search(context.Background(), SearchRequest{Query: "becas", Mode: ModeSemantic})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestSearch_ReformulatedEmbeddingFallsBackToOriginal(t *testing.T) {
	store := setupStore(t, storage.GlobalScope, frag("a", "doc", 1, types.TopicGeneral, types.LevelParagraph, 1, 0, 0))
	emb := &mockEmbedder{generateFunc: func(_ context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		if req.Text != "becas" {
			return nil, embedder.ErrProviderFailed
		}
		return &embedder.Embedding{Vector: []float32{1, 0, 0}}, nil
	}}
	gen := &mockGenerator{completeFunc: func(context.Context, generator.Request) (string, error) {
		return "becas y apoyos económicos", nil
	}}
	s := New(store, emb, WithGenerator(gen))

	resp, err := s.Search(context.Background(), SearchRequest{Query: "becas", Mode: ModeHyDE})
	require.NoError(t, err)
	assert.Equal(t, "becas", resp.EmbeddedQuery)
	assert.True(t, resp.Degraded())
	assert.Len(t, resp.Results, 1)
}

func TestSearch_Reformulation(t *testing.T) {
	store := setupStore(t, storage.GlobalScope, frag("a", "doc", 1, types.TopicGeneral, types.LevelParagraph, 1, 0, 0))

	t.Run("uses reformulated text", func(t *testing.T) {
		var got generator.Request
		gen := &mockGenerator{completeFunc: func(_ context.Context, req generator.Request) (string, error) {
			got = req
			return "requisitos de titulación", nil
		}}
		s := New(store, &mockEmbedder{}, WithGenerator(gen))

		resp, err := s.Search(context.Background(), SearchRequest{Query: "cómo me titulo", Mode: ModeHyDE})
		require.NoError(t, err)
		assert.Equal(t, "requisitos de titulación", resp.EmbeddedQuery)
		assert.Empty(t, resp.Degradations)
		assert.Equal(t, 200, got.MaxTokens)
		assert.InDelta(t, 0.25, got.Temperature, 1e-9)
		assert.Contains(t, got.System, "No inventes hechos")
	})

	t.Run("generator failure is absorbed", func(t *testing.T) {
		gen := &mockGenerator{completeFunc: func(context.Context, generator.Request) (string, error) {
			return "", errors.New("timeout")
		}}
		s := New(store, &mockEmbedder{}, WithGenerator(gen))

		resp, err := s.Search(context.Background(), SearchRequest{Query: "cómo me titulo", Mode: ModeHyDE})
		require.NoError(t, err)
		assert.Equal(t, "cómo me titulo", resp.EmbeddedQuery)
		require.Len(t, resp.Degradations, 1)
		assert.Contains(t, resp.Degradations[0], "reformulate")
	})

	t.Run("disabled generator is silent", func(t *testing.T) {
		s := New(store, &mockEmbedder{}, WithGenerator(generator.Disabled{}))
		resp, err := s.Search(context.Background(), SearchRequest{Query: "cómo me titulo", Mode: ModeHyDE})
		require.NoError(t, err)
		assert.Empty(t, resp.Degradations)
	})

	t.Run("semantic mode skips the generator", func(t *testing.T) {
		gen := &mockGenerator{completeFunc: func(context.Context, generator.Request) (string, error) {
			return "x", nil
		}}
		s := New(store, &mockEmbedder{}, WithGenerator(gen))
		_, err := s.Search(context.Background(), SearchRequest{Query: "cómo me titulo", Mode: ModeSemantic})
		require.NoError(t, err)
		assert.Zero(t, gen.calls)
	})
}

func TestSearch_FocusResolution(t *testing.T) {
	store := setupStore(t, storage.GlobalScope,
		frag("a1", "calendario", 1, types.TopicGeneral, types.LevelParagraph, 1, 0, 0),
		frag("b1", "reglamento", 1, "2", types.LevelParagraph, 1, 0, 0),
	)
	s := New(store, &mockEmbedder{})
	ctx := context.Background()

	tests := []struct {
		name         string
		req          SearchRequest
		wantDocument string
		wantTopic    string
		wantChanged  bool
		wantIDs      []string
	}{
		{"inherits focus", SearchRequest{Query: "fechas", Focus: "calendario"}, "calendario", "", false, []string{"a1"}},
		{"explicit document wins", SearchRequest{Query: "fechas", Focus: "calendario", Document: "reglamento"}, "reglamento", "", true, []string{"b1"}},
		{"explicit filter blocks focus", SearchRequest{Query: "tema 2", Focus: "calendario"}, "", "2", false, []string{"b1"}},
		{"no focus", SearchRequest{Query: "fechas"}, "", "", false, []string{"a1", "b1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Mode = ModeSemantic
			resp, err := s.Search(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDocument, resp.Filters.Document)
			assert.Equal(t, tt.wantTopic, resp.Filters.Topic)
			assert.Equal(t, tt.wantChanged, resp.FocusChanged)
			assert.ElementsMatch(t, tt.wantIDs, ids(resp.Results))
		})
	}
}

func TestSearch_StoreFailureIsDegraded(t *testing.T) {
	s := New(failingStore{}, &mockEmbedder{})

	resp, err := s.Search(context.Background(), SearchRequest{Query: "becas", Mode: ModeSemantic})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.True(t, resp.Degraded())
}

func TestSearch_MissingCollectionIsEmpty(t *testing.T) {
	store := setupStore(t, "")
	s := New(store, &mockEmbedder{})

	resp, err := s.Search(context.Background(), SearchRequest{Query: "becas", Mode: ModeSemantic})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.False(t, resp.Degraded())
}

func TestSearch_LevelWeightingAndTopK(t *testing.T) {
	store := setupStore(t, storage.GlobalScope,
		frag("chunk", "doc", 1, types.TopicGeneral, types.LevelChunk, 1, 0, 0),
		frag("para", "doc", 2, types.TopicGeneral, types.LevelParagraph, 1, 0, 0),
		frag("sent", "doc", 3, types.TopicGeneral, types.LevelSentence, 1, 0, 0),
	)
	s := New(store, &mockEmbedder{})

	resp, err := s.Search(context.Background(), SearchRequest{Query: "x", Mode: ModeSemantic, TopK: 2, Candidates: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"para", "sent"}, ids(resp.Results))
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
	assert.InDelta(t, 0.9, resp.Results[1].Score, 1e-6)
	assert.Equal(t, 2, resp.Results[1].Rank)
}

func TestSearch_AmbiguousCollections(t *testing.T) {
	store := setupStore(t, "")
	ctx := context.Background()
	for _, name := range []string{"docs_1", "docs_2"} {
		require.NoError(t, store.EnsureCollection(ctx, name, storage.DefaultCollectionConfig(testDim)))
	}
	require.NoError(t, store.Upsert(ctx, "docs_1", []types.Fragment{frag("x", "d", 1, "1", types.LevelParagraph, 1, 0, 0)}))
	require.NoError(t, store.Upsert(ctx, "docs_2", []types.Fragment{
		frag("x", "d", 1, "1", types.LevelParagraph, 1, 0, 0),
		frag("y", "d", 2, "2", types.LevelParagraph, 1, 0, 0),
	}))

	t.Run("single collection mode picks the first", func(t *testing.T) {
		s := New(store, &mockEmbedder{})
		resp, err := s.Search(ctx, SearchRequest{Scope: "docs", Query: "q", Mode: ModeSemantic})
		require.NoError(t, err)
		assert.Equal(t, []string{"docs_1"}, resp.Collections)
		assert.Equal(t, []string{"x"}, ids(resp.Results))
		assert.True(t, resp.Degraded())
	})

	t.Run("multi collection mode searches all and deduplicates", func(t *testing.T) {
		s := New(store, &mockEmbedder{}, WithMultiCollection(true))
		resp, err := s.Search(ctx, SearchRequest{Scope: "docs", Query: "q", Mode: ModeSemantic})
		require.NoError(t, err)
		assert.Equal(t, []string{"docs_1", "docs_2"}, resp.Collections)
		assert.ElementsMatch(t, []string{"x", "y"}, ids(resp.Results))
		assert.False(t, resp.Degraded())
	})
}

func TestSearch_LexicalFusion(t *testing.T) {
	store := setupStore(t, storage.GlobalScope,
		frag("becas", "reglamento", 1, types.TopicGeneral, types.LevelParagraph, 1, 0, 0),
		frag("bajas", "reglamento", 2, types.TopicGeneral, types.LevelParagraph, 1, 0, 0),
	)
	registry := bm25.NewRegistry()
	registry.Add(storage.GlobalScope, bm25.Document{Ref: bm25.DocRef{Document: "reglamento", PageNumber: 1}, Text: "becas de excelencia"})
	registry.Add(storage.GlobalScope, bm25.Document{Ref: bm25.DocRef{Document: "reglamento", PageNumber: 2}, Text: "bajas temporales y definitivas"})

	s := New(store, &mockEmbedder{}, WithLexical(registry))

	resp, err := s.Search(context.Background(), SearchRequest{Query: "bajas definitivas", Mode: ModeHybrid})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "bajas", resp.Results[0].ID)
	assert.InDelta(t, 1.0+DefaultLexicalWeight, resp.Results[0].Score, 1e-6)
	assert.InDelta(t, 1.0, resp.Results[1].Score, 1e-6)

	resp, err = s.Search(context.Background(), SearchRequest{Query: "bajas definitivas", Mode: ModeSemantic})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
}

func TestSearch_Cache(t *testing.T) {
	store := setupStore(t, storage.GlobalScope, frag("a", "doc", 1, types.TopicGeneral, types.LevelParagraph, 1, 0, 0))
	calls := 0
	emb := &mockEmbedder{generateFunc: func(context.Context, embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		calls++
		return &embedder.Embedding{Vector: []float32{1, 0, 0}}, nil
	}}
	s := New(store, emb)
	req := SearchRequest{Query: "becas", Mode: ModeSemantic, UseCache: true}

	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, ids(first.Results), ids(second.Results))
	assert.Equal(t, 1, calls)

	// Mutating a returned response must not touch the cache
	second.Results[0].Text = "mutated"
	third, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "texto a", third.Results[0].Text)

	s.InvalidateCache(storage.GlobalScope)
	assert.Zero(t, s.CacheLen())
	_, err = s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSearch_Validation(t *testing.T) {
	s := New(setupStore(t, ""), &mockEmbedder{})

	_, err := s.Search(context.Background(), SearchRequest{})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Search(context.Background(), SearchRequest{Query: "q", Mode: "keyword"})
	assert.Error(t, err)
}

func TestResolveFilters(t *testing.T) {
	page := resolveFilters(parserIntent("página 4"), "", "calendario")
	assert.Equal(t, 4, page.PageNumber)
	assert.Empty(t, page.Document)

	both := resolveFilters(parserIntent("página 4"), "reglamento", "calendario")
	assert.Equal(t, 4, both.PageNumber)
	assert.Equal(t, "reglamento", both.Document)
}
