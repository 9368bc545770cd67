package bm25

import (
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Tema 2: Introducción al Curso", []string{"tema", "2", "introducción", "al", "curso"}},
		{"snake_case-words", []string{"snake_case", "words"}},
		{"¿Qué día?", []string{"qué", "día"}},
		{"", nil},
		{"...", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Tokenize(tt.input)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddDocument(t *testing.T) {
	idx := New()

	assert.Equal(t, 0, idx.AddDocument("uno dos tres"))
	assert.Equal(t, 1, idx.AddDocument("uno"))
	assert.Equal(t, 2, idx.Len())
	assert.InDelta(t, 2.0, idx.AvgDocLength(), 1e-9)
	assert.Equal(t, 2, idx.DocFrequency("uno"))
	assert.Equal(t, 1, idx.DocFrequency("DOS"))
}

func TestScore_Formula(t *testing.T) {
	idx := New()
	idx.AddDocument("gato perro")
	idx.AddDocument("gato gato raton")

	scores := idx.Score("gato")
	require.Len(t, scores, 2)

	n, df := 2.0, 2.0
	idf := math.Log((n-df+0.5)/(df+0.5) + 1.0)
	avgdl := 2.5
	expected := func(f, dl float64) float64 {
		return idf * f * (DefaultK1 + 1) / (f + DefaultK1*(1-DefaultB+DefaultB*dl/avgdl))
	}

	assert.InDelta(t, expected(1, 2), scores[0], 1e-9)
	assert.InDelta(t, expected(2, 3), scores[1], 1e-9)
}

func TestScore_AbsentTermContributesZero(t *testing.T) {
	idx := New()
	idx.AddDocument("gato perro")
	idx.AddDocument("raton queso")

	for _, s := range idx.Score("elefante") {
		assert.Zero(t, s)
	}

	withAbsent := idx.Score("gato elefante")
	without := idx.Score("gato")
	assert.Equal(t, without, withAbsent)
}

func TestScore_MonotonicInTermFrequency(t *testing.T) {
	// Documents share the same length so only the term frequency varies
	idx := New()
	idx.AddDocument("curso a b c d")
	idx.AddDocument("curso curso b c d")
	idx.AddDocument("curso curso curso c d")
	idx.AddDocument("x y z w v")

	scores := idx.Score("curso")
	require.Len(t, scores, 4)
	assert.LessOrEqual(t, scores[0], scores[1])
	assert.LessOrEqual(t, scores[1], scores[2])
	assert.Zero(t, scores[3])
}

func TestScore_RepeatedQueryTerms(t *testing.T) {
	idx := New()
	idx.AddDocument("gato perro")
	idx.AddDocument("raton")

	single := idx.Score("gato")
	double := idx.Score("gato gato")
	assert.InDelta(t, 2*single[0], double[0], 1e-9)
}

func TestScore_EmptyIndexAndQuery(t *testing.T) {
	idx := New()
	assert.Empty(t, idx.Score("algo"))

	idx.AddDocument("algo")
	assert.Equal(t, []float64{0}, idx.Score(""))
}

func TestScore_EmptyDocumentsUseUnitAvgdl(t *testing.T) {
	idx := New()
	idx.AddDocument("")
	assert.Zero(t, idx.AvgDocLength())
	assert.Equal(t, []float64{0}, idx.Score("x"))
}

func TestWithParams(t *testing.T) {
	idx := New(WithParams(1.2, 0))
	idx.AddDocument("gato")
	idx.AddDocument(strings.Repeat("gato ", 1) + strings.Repeat("relleno ", 20))

	// With b=0 document length is ignored
	scores := idx.Score("gato")
	assert.InDelta(t, scores[0], scores[1], 1e-9)
}

func TestClear(t *testing.T) {
	idx := New()
	idx.AddDocument("uno dos")
	idx.Clear()

	assert.Equal(t, 0, idx.Len())
	assert.Zero(t, idx.AvgDocLength())
	assert.Zero(t, idx.DocFrequency("uno"))
	assert.Equal(t, 0, idx.AddDocument("tres"))
}

func TestConcurrentAddAndScore(t *testing.T) {
	idx := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			idx.AddDocument("documento de prueba concurrente")
		}()
		go func() {
			defer wg.Done()
			_ = idx.Score("prueba")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, idx.Len())
}
