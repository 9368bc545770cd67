package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/docqa/internal/bm25"
	"github.com/dshills/docqa/internal/embedder"
	"github.com/dshills/docqa/internal/generator"
	"github.com/dshills/docqa/internal/metrics"
	"github.com/dshills/docqa/internal/parser"
	"github.com/dshills/docqa/internal/storage"
	"github.com/dshills/docqa/pkg/types"
)

var (
	// ErrEmbeddingUnavailable is returned when neither the reformulated nor
	// the original query could be embedded
	ErrEmbeddingUnavailable = errors.New("query embedding unavailable")
	// ErrEmptyQuery is returned for blank queries
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Defaults
const (
	DefaultTopK          = 6
	MaxTopK              = 100
	DefaultLexicalWeight = 0.3
	DefaultCacheSize     = 1000
	DefaultCacheTTL      = 10 * time.Minute
)

// Mode selects the retrieval stages
type Mode string

const (
	ModeSemantic   Mode = "semantic"    // vector only
	ModeHyDE       Mode = "hyde"        // reformulate, then vector
	ModeHybrid     Mode = "hybrid"      // vector fused with BM25
	ModeHybridHyDE Mode = "hybrid+hyde" // reformulate, vector, BM25
)

// ParseMode validates a mode name. Empty means hybrid+hyde.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeHybridHyDE, nil
	case ModeSemantic, ModeHyDE, ModeHybrid, ModeHybridHyDE:
		return m, nil
	default:
		return "", fmt.Errorf("unknown search mode %q", s)
	}
}

// UsesHyDE reports whether the mode reformulates the query
func (m Mode) UsesHyDE() bool {
	return m == ModeHyDE || m == ModeHybridHyDE
}

// UsesLexical reports whether the mode fuses BM25 scores
func (m Mode) UsesLexical() bool {
	return m == ModeHybrid || m == ModeHybridHyDE
}

// Store is the part of the vector store the searcher reads
type Store interface {
	storage.NameLister
	Search(ctx context.Context, collection string, vector []float32, limit int, filters types.Filters) ([]storage.Hit, error)
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Scope      string // session or global scope; empty means global
	Query      string
	TopK       int
	Candidates int    // fetched per collection before weighting; defaults to TopK
	Document   string // explicit document selection
	Focus      string // the session's current focus
	Mode       Mode
	UseCache   bool
}

// SearchResponse contains ranked results and how they were produced
type SearchResponse struct {
	Results       []types.SearchResult
	Filters       types.Filters
	Match         parser.MatchKind
	EmbeddedQuery string
	Collections   []string
	Degradations  []string
	FocusChanged  bool
	Mode          Mode
	Duration      time.Duration
	CacheHit      bool
}

// Degraded reports whether any fallback was taken
func (r *SearchResponse) Degraded() bool {
	return len(r.Degradations) > 0
}

func (r *SearchResponse) degrade(component, reason string) {
	r.Degradations = append(r.Degradations, component+": "+reason)
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher is the hybrid retrieval coordinator
type Searcher struct {
	store     Store
	embedder  embedder.Embedder
	generator generator.Generator
	lexical   *bm25.Registry

	multiCollection bool
	lexicalWeight   float64
	defaultMode     Mode
	cacheTTL        time.Duration

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithGenerator enables query reformulation
func WithGenerator(g generator.Generator) Option {
	return func(s *Searcher) { s.generator = g }
}

// WithLexical enables BM25 fusion from the given registry
func WithLexical(r *bm25.Registry) Option {
	return func(s *Searcher) { s.lexical = r }
}

// WithMultiCollection searches every topic collection of a scope
func WithMultiCollection(multi bool) Option {
	return func(s *Searcher) { s.multiCollection = multi }
}

// WithLexicalWeight sets the BM25 boost weight
func WithLexicalWeight(w float64) Option {
	return func(s *Searcher) { s.lexicalWeight = w }
}

// WithDefaultMode sets the mode used when a request leaves it empty
func WithDefaultMode(m Mode) Option {
	return func(s *Searcher) { s.defaultMode = m }
}

// WithCache sizes the response cache; size <= 0 keeps the default
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Searcher) {
		if size > 0 {
			if c, err := lru.New[[32]byte, *cacheEntry](size); err == nil {
				s.cache = c
			}
		}
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithMetrics records search metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Searcher
func New(store Store, emb embedder.Embedder, opts ...Option) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](DefaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	s := &Searcher{
		store:         store,
		embedder:      emb,
		lexicalWeight: DefaultLexicalWeight,
		defaultMode:   ModeHybridHyDE,
		cacheTTL:      DefaultCacheTTL,
		cache:         cache,
		logger:        slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs Parse, Reformulate, Embed, Filter-Resolve, Retrieve, Weight,
// Merge and TopK. Only an exhausted embedding chain is an error; every
// other failure yields a (possibly empty) degraded response.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if s.embedder == nil || s.store == nil {
		return nil, fmt.Errorf("searcher not initialized")
	}
	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	resp := &SearchResponse{Mode: req.Mode}

	// Parse
	intent := parser.ParseQuery(req.Query)
	resp.Match = intent.Match

	// Reformulate
	text := intent.Text
	if req.Mode.UsesHyDE() {
		out := s.reformulate(ctx, intent.Text)
		if out.IsDegraded() {
			s.recordDegradation(resp, "reformulate", out.Reason)
		}
		text = out.Value
	}

	// Embed
	embedded, err := s.embedQuery(ctx, text, intent.Text)
	if err != nil {
		s.metrics.ObserveSearch(types.StatusFailed.String(), time.Since(start))
		return nil, err
	}
	if embedded.IsDegraded() {
		s.recordDegradation(resp, "embed", embedded.Reason)
	}
	resp.EmbeddedQuery = embedded.Value.text

	// Filter-Resolve
	resp.Filters = resolveFilters(intent, req.Document, req.Focus)
	resp.FocusChanged = req.Document != "" && req.Document != req.Focus

	// Retrieve
	retrieved := s.retrieve(ctx, req, embedded.Value.vector, resp.Filters)
	if retrieved.IsDegraded() {
		s.recordDegradation(resp, "retrieve", retrieved.Reason)
	}
	resp.Collections = retrieved.Value.collections

	// Weight
	results := weightHits(retrieved.Value.hits)

	if req.Mode.UsesLexical() {
		s.fuseLexical(req.Scope, intent.Text, results)
	}

	// Merge, TopK
	sortResults(results)
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	resp.Results = results
	resp.Duration = time.Since(start)

	status := types.StatusOK
	if resp.Degraded() {
		status = types.StatusDegraded
	}
	s.metrics.ObserveSearch(status.String(), resp.Duration)

	if req.UseCache && !resp.Degraded() && len(resp.Results) > 0 {
		s.storeInCache(req, resp)
	}

	return resp, nil
}

// queryVector is the embedded text and its vector
type queryVector struct {
	text   string
	vector []float32
}

// embedQuery embeds text, falling back to the original query. Placeholder
// vectors count as failures since they cannot rank anything.
func (s *Searcher) embedQuery(ctx context.Context, text, original string) (types.Outcome[queryVector], error) {
	vec, err := s.embedOnce(ctx, text)
	if err == nil {
		return types.OK(queryVector{text: text, vector: vec}), nil
	}
	if text == original {
		return types.Outcome[queryVector]{}, s.embeddingUnavailable(err)
	}

	s.logger.Warn("embedding reformulated query failed, using original", "err", err)
	vec, err2 := s.embedOnce(ctx, original)
	if err2 != nil {
		return types.Outcome[queryVector]{}, s.embeddingUnavailable(err2)
	}
	return types.Degraded(queryVector{text: original, vector: vec}, "reformulated query not embeddable: "+err.Error()), nil
}

func (s *Searcher) embedOnce(ctx context.Context, text string) ([]float32, error) {
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, err
	}
	if !embedder.IsUsable(emb) {
		return nil, fmt.Errorf("%w: placeholder vector", embedder.ErrProviderFailed)
	}
	return emb.Vector, nil
}

func (s *Searcher) embeddingUnavailable(err error) error {
	s.logger.Error("query embedding unavailable", "err", err)
	s.metrics.Degradation("embed")
	if !errors.Is(err, embedder.ErrProviderFailed) {
		err = fmt.Errorf("%w: %w", embedder.ErrProviderFailed, err)
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
}

// resolveFilters applies the explicit document or, when the query named
// nothing, the inherited focus
func resolveFilters(intent parser.QueryIntent, document, focus string) types.Filters {
	filters := intent.Filters
	switch {
	case document != "":
		filters.Document = document
	case !intent.HasFilters() && focus != "":
		filters.Document = focus
	}
	return filters
}

// retrieval is the raw output of the Retrieve stage
type retrieval struct {
	hits        []storage.Hit
	collections []string
}

func (s *Searcher) retrieve(ctx context.Context, req SearchRequest, vector []float32, filters types.Filters) types.Outcome[retrieval] {
	res, err := storage.ResolveCollection(ctx, s.store, req.Scope)
	if err != nil {
		s.logger.Error("collection resolution failed", "scope", req.Scope, "err", err)
		return types.Degraded(retrieval{}, "collection lookup failed")
	}

	var collections []string
	reason := ""
	switch res.Kind {
	case storage.NotFound:
		s.logger.Warn("no collection for scope", "scope", req.Scope, "collection", res.Name)
		return types.OK(retrieval{})
	case storage.Found:
		collections = []string{res.Name}
		if s.multiCollection {
			collections = res.Candidates
		}
	case storage.Ambiguous:
		if s.multiCollection {
			collections = res.Candidates
		} else {
			collections = []string{res.Name}
			reason = fmt.Sprintf("collection for %q is ambiguous, using %s", req.Scope, res.Name)
			s.logger.Warn("ambiguous collection, using first candidate",
				"scope", req.Scope, "using", res.Name, "candidates", res.Candidates)
		}
	}

	limit := req.Candidates
	if limit < req.TopK {
		limit = req.TopK
	}

	seen := make(map[string]int)
	hits := make([]storage.Hit, 0, limit)
	failed := 0
	for _, coll := range collections {
		found, err := s.store.Search(ctx, coll, vector, limit, filters)
		if err != nil {
			failed++
			s.logger.Error("vector search failed", "collection", coll, "err", err)
			continue
		}
		for _, h := range found {
			if i, dup := seen[h.Fragment.ID]; dup {
				if h.Score > hits[i].Score {
					hits[i] = h
				}
				continue
			}
			seen[h.Fragment.ID] = len(hits)
			hits = append(hits, h)
		}
	}

	out := retrieval{hits: hits, collections: collections}
	if failed > 0 {
		return types.Degraded(out, fmt.Sprintf("%d of %d collections failed", failed, len(collections)))
	}
	if reason != "" {
		return types.Degraded(out, reason)
	}
	return types.OK(out)
}

// LevelWeight returns the score multiplier for a fragment granularity
func LevelWeight(level int) float64 {
	switch level {
	case types.LevelChunk:
		return 0.8
	case types.LevelParagraph:
		return 1.0
	case types.LevelSentence:
		return 0.9
	default:
		return 1.0
	}
}

func weightHits(hits []storage.Hit) []types.SearchResult {
	results := make([]types.SearchResult, len(hits))
	for i, h := range hits {
		f := h.Fragment
		results[i] = types.SearchResult{
			ID:         f.ID,
			Collection: f.Collection,
			Score:      h.Score * LevelWeight(f.Level),
			Text:       f.Text,
			Document:   f.Document,
			PageNumber: f.PageNumber,
			Topic:      f.Topic,
			Subtopic:   f.Subtopic,
			Level:      f.Level,
		}
	}
	return results
}

// fuseLexical adds lexicalWeight times the max-normalised BM25 score of the
// best chunk sharing each result's document and page
func (s *Searcher) fuseLexical(scope, query string, results []types.SearchResult) {
	if s.lexical == nil || s.lexicalWeight <= 0 || len(results) == 0 {
		return
	}

	hits, ok := s.lexical.Search(storage.CollectionName(scope, "", false), query)
	if !ok || len(hits) == 0 {
		return
	}

	// hits are sorted, so the first is the maximum and the first per ref is the best
	maxScore := hits[0].Score
	best := make(map[bm25.DocRef]float64, len(hits))
	for _, h := range hits {
		if _, ok := best[h.Ref]; !ok {
			best[h.Ref] = h.Score / maxScore
		}
	}

	for i := range results {
		ref := bm25.DocRef{Document: results[i].Document, PageNumber: results[i].PageNumber}
		if norm, ok := best[ref]; ok {
			results[i].Score += s.lexicalWeight * norm
		}
	}
}

func sortResults(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func (s *Searcher) recordDegradation(resp *SearchResponse, component, reason string) {
	resp.degrade(component, reason)
	s.metrics.Degradation(component)
}

// validateRequest ensures search request is valid and applies defaults
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if req.Query == "" {
		return ErrEmptyQuery
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if req.TopK > MaxTopK {
		req.TopK = MaxTopK
	}
	if req.Candidates > MaxTopK {
		req.Candidates = MaxTopK
	}
	if req.Mode == "" {
		req.Mode = s.defaultMode
	}
	if _, err := ParseMode(string(req.Mode)); err != nil {
		return err
	}
	return nil
}
