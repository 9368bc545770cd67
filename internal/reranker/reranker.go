package reranker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/docqa/internal/embedder"
	"github.com/dshills/docqa/pkg/types"
)

// DefaultParallelism bounds concurrent candidate embeddings
const DefaultParallelism = 4

// ErrNoEmbedder is returned when the reranker has no embedder
var ErrNoEmbedder = errors.New("reranker has no embedder")

// Result is the reranked candidate list
type Result struct {
	Results []types.SearchResult

	// Rescored counts candidates whose score came from their own embedding
	Rescored int

	// Status is Degraded when the query could not be embedded
	Status types.Status
	Reason string
}

// Degraded reports whether the input order was kept
func (r *Result) Degraded() bool {
	return r.Status == types.StatusDegraded
}

// Reranker reorders candidates by similarity between the normalised query
// and candidate embeddings
type Reranker struct {
	embedder    embedder.Embedder
	parallelism int
	logger      *slog.Logger
}

// Option configures a Reranker
type Option func(*Reranker)

// WithParallelism sets the number of concurrent candidate embeddings
func WithParallelism(n int) Option {
	return func(r *Reranker) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Reranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Reranker
func New(emb embedder.Embedder, opts ...Option) *Reranker {
	r := &Reranker{
		embedder:    emb,
		parallelism: DefaultParallelism,
		logger:      slog.Default().With("component", "reranker"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank scores candidates against query and keeps the best n. n <= 0
// keeps all. Candidates that cannot be embedded keep their original score.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []types.SearchResult, n int) (*Result, error) {
	if r.embedder == nil {
		return nil, ErrNoEmbedder
	}
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}

	out := make([]types.SearchResult, len(candidates))
	copy(out, candidates)

	if len(out) == 0 {
		return &Result{Results: out, Status: types.StatusOK}, nil
	}

	qv, err := r.embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, keeping retrieval order", "err", err)
		out = rank(out[:n])
		return &Result{Results: out, Status: types.StatusDegraded, Reason: "query embedding failed: " + err.Error()}, nil
	}

	rescored := make([]bool, len(out))
	g := new(errgroup.Group)
	g.SetLimit(r.parallelism)
	for i := range out {
		g.Go(func() error {
			cv, err := r.embed(ctx, out[i].Text)
			if err != nil {
				r.logger.Debug("candidate embedding failed, keeping score", "id", out[i].ID, "err", err)
				return nil
			}
			if len(cv) != len(qv) {
				r.logger.Debug("candidate dimension mismatch, keeping score", "id", out[i].ID)
				return nil
			}
			out[i].Score = dot(qv, cv)
			rescored[i] = true
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, ok := range rescored {
		if ok {
			count++
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	out = rank(out[:n])

	return &Result{Results: out, Rescored: count, Status: types.StatusOK}, nil
}

// embed returns the normalised vector for text. Placeholder vectors are
// rejected.
func (r *Reranker) embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := r.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, err
	}
	if !embedder.IsUsable(emb) {
		return nil, fmt.Errorf("%w: placeholder vector", embedder.ErrProviderFailed)
	}
	return embedder.NormalizeVector(emb.Vector), nil
}

func rank(results []types.SearchResult) []types.SearchResult {
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
