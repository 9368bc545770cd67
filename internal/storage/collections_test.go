package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	names []string
	err   error
}

func (l staticLister) ListCollectionNames(context.Context) ([]string, error) {
	return l.names, l.err
}

func TestCollectionName(t *testing.T) {
	const id = "3F2504E0-4F89-11D3-9A0C-0305E82C3301"

	tests := []struct {
		name  string
		scope string
		topic string
		multi bool
		want  string
	}{
		{"uuid scope", id, "", false, "knowledge_3f2504e0-4f89-11d3-9a0c-0305e82c3301"},
		{"verbatim scope", "knowledge_global", "", false, "knowledge_global"},
		{"empty scope", "", "", false, GlobalScope},
		{"topic ignored without multi", "docs", "2", false, "docs"},
		{"general topic", "docs", "general", true, "docs"},
		{"topic suffix", "docs", "Tema 2.1", true, "docs_tema_2_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CollectionName(tt.scope, tt.topic, tt.multi))
		})
	}

	long := CollectionName("docs", strings.Repeat("x", 100), true)
	assert.Equal(t, "docs_"+strings.Repeat("x", 40), long)
}

func TestResolveCollection(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		names      []string
		wantKind   ResolutionKind
		wantName   string
		candidates int
	}{
		{"exact", []string{"docs_2", "docs"}, Found, "docs", 2},
		{"single prefix", []string{"docs_2", "other"}, Found, "docs_2", 1},
		{"ambiguous", []string{"docs_3", "docs_2"}, Ambiguous, "docs_2", 2},
		{"not found", []string{"other"}, NotFound, "docs", 0},
		{"sibling scope ignored", []string{"docs", "docs2", "docsx_1"}, Found, "docs", 1},
		{"sibling scope only", []string{"docs2"}, NotFound, "docs", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ResolveCollection(ctx, staticLister{names: tt.names}, "docs")
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, tt.wantName, res.Name)
			assert.Len(t, res.Candidates, tt.candidates)
		})
	}

	_, err := ResolveCollection(ctx, staticLister{err: errors.New("boom")}, "docs")
	assert.Error(t, err)
}

func TestResolveCollection_SQLite(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "knowledge_global_2", DefaultCollectionConfig(2)))

	res, err := ResolveCollection(ctx, store, "")
	require.NoError(t, err)
	assert.Equal(t, Found, res.Kind)
	assert.Equal(t, "knowledge_global_2", res.Name)
}
