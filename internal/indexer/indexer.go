package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docqa/internal/bm25"
	"github.com/dshills/docqa/internal/chunker"
	"github.com/dshills/docqa/internal/embedder"
	"github.com/dshills/docqa/internal/metrics"
	"github.com/dshills/docqa/internal/parser"
	"github.com/dshills/docqa/internal/storage"
	"github.com/dshills/docqa/pkg/types"
)

// DefaultBatchSize is the pending fragment count that triggers a write
const DefaultBatchSize = 50

// UnknownDocument names fragments whose chunk carries no document id
const UnknownDocument = "unknown"

// ErrIngestInProgress is returned when the scope is already being ingested
var ErrIngestInProgress = errors.New("ingestion already in progress for this scope")

// Indexer coordinates the ingestion pipeline: structure -> lexical -> split -> embed -> store
type Indexer struct {
	store    storage.VectorStore
	embedder embedder.Embedder
	lexical  *bm25.Registry
	locks    *KeyedLock

	workers         int
	batchSize       int
	multiCollection bool

	hooksMu sync.RWMutex
	hooks   []func(scope string)

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Config contains configuration for the indexer
type Config struct {
	Workers         int  // Concurrent fragment embeddings per chunk (default: runtime.NumCPU())
	BatchSize       int  // Pending fragments that trigger a write (default: 50)
	MultiCollection bool // One collection per topic instead of one per scope
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
}

// Statistics contains statistics about an ingestion run
type Statistics struct {
	ChunksProcessed  int
	ChunksSkipped    int
	FragmentsCreated int
	FragmentsSkipped int
	BatchesWritten   int
	Collections      []string
	Duration         time.Duration
	ErrorMessages    []string
}

// New creates a new Indexer instance. lexical may be nil to skip BM25.
func New(store storage.VectorStore, emb embedder.Embedder, lexical *bm25.Registry, config *Config) *Indexer {
	if config == nil {
		config = &Config{}
	}
	idx := &Indexer{
		store:           store,
		embedder:        emb,
		lexical:         lexical,
		locks:           NewKeyedLock(),
		workers:         config.Workers,
		batchSize:       config.BatchSize,
		multiCollection: config.MultiCollection,
		metrics:         config.Metrics,
		logger:          config.Logger,
	}
	if idx.workers <= 0 {
		idx.workers = runtime.NumCPU()
	}
	if idx.batchSize <= 0 {
		idx.batchSize = DefaultBatchSize
	}
	if idx.logger == nil {
		idx.logger = slog.Default().With("component", "indexer")
	}
	return idx
}

// OnIndexed registers fn to run after every ingestion that wrote fragments
func (idx *Indexer) OnIndexed(fn func(scope string)) {
	idx.hooksMu.Lock()
	idx.hooks = append(idx.hooks, fn)
	idx.hooksMu.Unlock()
}

// pendingBatch holds fragments awaiting a write, grouped by collection
type pendingBatch struct {
	order []string
	byCol map[string][]types.Fragment
	count int
}

func newPendingBatch() *pendingBatch {
	return &pendingBatch{byCol: make(map[string][]types.Fragment)}
}

func (p *pendingBatch) add(collection string, frags ...types.Fragment) {
	if _, ok := p.byCol[collection]; !ok {
		p.order = append(p.order, collection)
	}
	p.byCol[collection] = append(p.byCol[collection], frags...)
	p.count += len(frags)
}

func (p *pendingBatch) reset() {
	p.order = p.order[:0]
	clear(p.byCol)
	p.count = 0
}

// IndexChunks ingests chunks into scope. documentID names chunks without a
// source_document. Failures of individual fragments are counted and logged;
// only cancellation and a busy scope are errors.
func (idx *Indexer) IndexChunks(ctx context.Context, scope string, chunks []types.Chunk, documentID string) (*Statistics, error) {
	base := storage.CollectionName(scope, "", false)
	if !idx.locks.TryAcquire(base) {
		return nil, ErrIngestInProgress
	}
	defer idx.locks.Release(base)

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	documentID = strings.ToLower(strings.TrimSpace(documentID))
	if documentID == "" {
		documentID = UnknownDocument
	}

	tracker := parser.NewTracker()
	ensured := make(map[string]bool)
	pending := newPendingBatch()
	total := len(chunks)

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			idx.finish(base, stats, startTime)
			return stats, fmt.Errorf("ingestion interrupted at chunk %d/%d: %w", i+1, total, err)
		}

		if i == 0 || (i+1)%10 == 0 || i == total-1 {
			idx.logger.Info("processing chunk", "scope", base, "chunk", i+1, "total", total)
		}

		if err := chunk.Validate(); err != nil {
			stats.ChunksSkipped++
			idx.logger.Debug("skipping chunk", "chunk", i+1, "err", err)
			continue
		}

		document := strings.TrimSpace(chunk.SourceDocument)
		if document == "" {
			document = documentID
		}

		tracker = tracker.Observe(chunk.Text)
		tag := tracker.Current()

		collection := storage.CollectionName(scope, topicFor(tag, idx.multiCollection), idx.multiCollection)
		if !ensured[collection] {
			idx.ensureCollection(ctx, collection, stats)
			ensured[collection] = true
		}

		idx.recordLexical(ctx, base, document, chunk, stats)

		frags := idx.buildFragments(ctx, chunk, document, base, tag, stats)
		pending.add(collection, frags...)
		stats.ChunksProcessed++

		if pending.count > 0 && (pending.count > idx.batchSize || i == total-1) {
			idx.flush(ctx, pending, stats)
		}
	}

	if pending.count > 0 {
		idx.flush(ctx, pending, stats)
	}

	for name := range ensured {
		stats.Collections = append(stats.Collections, name)
	}
	sort.Strings(stats.Collections)

	idx.finish(base, stats, startTime)
	return stats, nil
}

func topicFor(tag types.StructureTag, multi bool) string {
	if !multi {
		return ""
	}
	return tag.Topic
}

// ensureCollection creates the collection if needed. A failure is logged
// and the following upserts report it.
func (idx *Indexer) ensureCollection(ctx context.Context, name string, stats *Statistics) {
	cfg := storage.DefaultCollectionConfig(idx.embedder.Dimension())
	if err := idx.store.EnsureCollection(ctx, name, cfg); err != nil {
		idx.logger.Error("failed to ensure collection", "collection", name, "err", err)
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("ensure %s: %v", name, err))
	}
}

// recordLexical adds the whole chunk to the scope's BM25 index and persists
// it so the index survives restarts
func (idx *Indexer) recordLexical(ctx context.Context, scope, document string, chunk types.Chunk, stats *Statistics) {
	if idx.lexical != nil {
		idx.lexical.Add(scope, bm25.Document{
			Ref:  bm25.DocRef{Document: document, PageNumber: chunk.PageNumber},
			Text: chunk.Text,
		})
	}
	err := idx.store.AppendLexicalDocument(ctx, scope, storage.LexicalDocument{
		Document:   document,
		PageNumber: chunk.PageNumber,
		Text:       chunk.Text,
	})
	if err != nil {
		idx.logger.Error("failed to persist lexical document", "scope", scope, "err", err)
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("lexical %s p%d: %v", document, chunk.PageNumber, err))
	}
}

// buildFragments splits a chunk and embeds the pieces concurrently. A piece
// whose embedding fails is skipped; order is preserved.
func (idx *Indexer) buildFragments(ctx context.Context, chunk types.Chunk, document, scope string, tag types.StructureTag, stats *Statistics) []types.Fragment {
	pieces := chunker.SplitFragments(chunk.Text)
	embeddings := make([]*embedder.Embedding, len(pieces))

	g := new(errgroup.Group)
	g.SetLimit(idx.workers)
	for j, piece := range pieces {
		g.Go(func() error {
			emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: piece.Text})
			if err != nil {
				idx.logger.Warn("fragment embedding failed, skipping", "document", document, "page", chunk.PageNumber, "err", err)
				return nil
			}
			embeddings[j] = emb
			return nil
		})
	}
	_ = g.Wait()

	frags := make([]types.Fragment, 0, len(pieces))
	for j, piece := range pieces {
		emb := embeddings[j]
		if emb == nil {
			stats.FragmentsSkipped++
			continue
		}
		if emb.Fallback {
			idx.logger.Warn("storing fragment with placeholder vector", "document", document, "page", chunk.PageNumber)
		}
		frags = append(frags, types.Fragment{
			ID:         uuid.NewString(),
			Text:       piece.Text,
			Vector:     emb.Vector,
			Document:   document,
			SessionID:  scope,
			Topic:      tag.Topic,
			Subtopic:   tag.Subtopic,
			Level:      piece.Level,
			PageNumber: chunk.PageNumber,
		})
	}
	return frags
}

// flush writes every pending collection. A failed write drops its fragments.
func (idx *Indexer) flush(ctx context.Context, pending *pendingBatch, stats *Statistics) {
	for _, collection := range pending.order {
		frags := pending.byCol[collection]
		if err := idx.store.Upsert(ctx, collection, frags); err != nil {
			idx.logger.Error("failed to write fragments", "collection", collection, "count", len(frags), "err", err)
			stats.FragmentsSkipped += len(frags)
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("upsert %s: %v", collection, err))
			continue
		}
		stats.FragmentsCreated += len(frags)
		stats.BatchesWritten++
	}
	pending.reset()
}

func (idx *Indexer) finish(scope string, stats *Statistics, startTime time.Time) {
	stats.Duration = time.Since(startTime)
	idx.metrics.ObserveIngest(stats.FragmentsCreated, stats.FragmentsSkipped, stats.Duration)
	idx.logger.Info("ingestion finished",
		"scope", scope,
		"chunks", stats.ChunksProcessed,
		"fragments", stats.FragmentsCreated,
		"skipped", stats.FragmentsSkipped,
		"duration", stats.Duration)

	if stats.FragmentsCreated == 0 {
		return
	}
	idx.runHooks(scope)
}

func (idx *Indexer) runHooks(scope string) {
	idx.hooksMu.RLock()
	hooks := append([]func(string){}, idx.hooks...)
	idx.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(scope)
	}
}

// DeleteCollection drops a collection. BM25 indexes whose persisted
// documents went with it are discarded and the OnIndexed hooks run.
// It fails with ErrIngestInProgress while an owning scope is being ingested.
func (idx *Indexer) DeleteCollection(ctx context.Context, name string) error {
	owners := []string{name}
	if idx.lexical != nil {
		for _, scope := range idx.lexical.Scopes() {
			if scope != name && storage.InScope(name, scope) {
				owners = append(owners, scope)
			}
		}
	}

	locked := make([]string, 0, len(owners))
	defer func() {
		for _, key := range locked {
			idx.locks.Release(key)
		}
	}()
	for _, key := range owners {
		if !idx.locks.TryAcquire(key) {
			return ErrIngestInProgress
		}
		locked = append(locked, key)
	}

	if err := idx.store.DeleteCollection(ctx, name); err != nil {
		return err
	}
	idx.logger.Info("collection deleted", "collection", name)

	if idx.lexical != nil {
		persisted, err := idx.store.LexicalScopes(ctx)
		if err != nil {
			idx.logger.Warn("failed to list lexical scopes after delete", "collection", name, "err", err)
		} else {
			for _, scope := range owners {
				if !slices.Contains(persisted, scope) {
					idx.lexical.Drop(scope)
				}
			}
		}
	}

	idx.runHooks(name)
	return nil
}

// Rebuild restores every BM25 index from persisted lexical documents
func (idx *Indexer) Rebuild(ctx context.Context) (int, error) {
	if idx.lexical == nil {
		return 0, nil
	}
	scopes, err := idx.store.LexicalScopes(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list lexical scopes: %w", err)
	}

	total := 0
	for _, scope := range scopes {
		docs, err := idx.store.ListLexicalDocuments(ctx, scope)
		if err != nil {
			return total, fmt.Errorf("failed to load lexical documents for %s: %w", scope, err)
		}
		entries := make([]bm25.Document, len(docs))
		for i, d := range docs {
			entries[i] = bm25.Document{
				Ref:  bm25.DocRef{Document: d.Document, PageNumber: d.PageNumber},
				Text: d.Text,
			}
		}
		idx.lexical.Rebuild(scope, entries)
		total += len(entries)
	}
	idx.logger.Info("lexical indexes rebuilt", "scopes", len(scopes), "documents", total)
	return total, nil
}

// IsIndexing reports whether scope is being ingested
func (idx *Indexer) IsIndexing(scope string) bool {
	return idx.locks.Held(storage.CollectionName(scope, "", false))
}
