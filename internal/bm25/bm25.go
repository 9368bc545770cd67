package bm25

import (
	"math"
	"regexp"
	"strings"
	"sync"
)

// Default BM25 parameters
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// Tokenize lowercases text and splits it into word-character runs
func Tokenize(text string) []string {
	words := wordPattern.FindAllString(text, -1)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return words
}

// Index is an append-only BM25 corpus. It is safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	tf         []map[string]int
	docLengths []int
	df         map[string]int
	totalLen   int
	avgdl      float64
}

// Option configures an Index
type Option func(*Index)

// WithParams overrides k1 and b
func WithParams(k1, b float64) Option {
	return func(idx *Index) {
		idx.k1 = k1
		idx.b = b
	}
}

// New creates an empty index
func New(opts ...Option) *Index {
	idx := &Index{
		k1: DefaultK1,
		b:  DefaultB,
		df: make(map[string]int),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddDocument tokenizes text, updates corpus statistics and returns the
// document's internal index.
func (idx *Index) AddDocument(text string) int {
	tokens := Tokenize(text)
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.tf = append(idx.tf, counts)
	idx.docLengths = append(idx.docLengths, len(tokens))
	for term := range counts {
		idx.df[term]++
	}
	idx.totalLen += len(tokens)
	idx.avgdl = float64(idx.totalLen) / float64(len(idx.docLengths))

	return len(idx.docLengths) - 1
}

// Score returns one BM25 score per indexed document, in insertion order.
// Repeated query terms contribute once per occurrence.
func (idx *Index) Score(query string) []float64 {
	terms := Tokenize(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docLengths)
	scores := make([]float64, n)
	if n == 0 || len(terms) == 0 {
		return scores
	}

	avgdl := idx.avgdl
	if avgdl == 0 {
		avgdl = 1.0
	}

	idf := make(map[string]float64, len(terms))
	for _, term := range terms {
		if _, ok := idf[term]; ok {
			continue
		}
		df := float64(idx.df[term])
		idf[term] = math.Log((float64(n)-df+0.5)/(df+0.5) + 1.0)
	}

	for d := 0; d < n; d++ {
		dl := float64(idx.docLengths[d])
		for _, term := range terms {
			f := float64(idx.tf[d][term])
			if f == 0 {
				continue
			}
			denom := f + idx.k1*(1-idx.b+idx.b*dl/avgdl)
			scores[d] += idf[term] * (f * (idx.k1 + 1)) / denom
		}
	}

	return scores
}

// Clear resets all corpus state
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.tf = nil
	idx.docLengths = nil
	idx.df = make(map[string]int)
	idx.totalLen = 0
	idx.avgdl = 0
}

// Len returns the number of indexed documents
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docLengths)
}

// AvgDocLength returns the current average document length in tokens
func (idx *Index) AvgDocLength() float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.avgdl
}

// DocFrequency returns the number of documents containing term
func (idx *Index) DocFrequency(term string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.df[strings.ToLower(term)]
}
