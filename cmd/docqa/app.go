package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dshills/docqa/internal/bm25"
	"github.com/dshills/docqa/internal/chat"
	"github.com/dshills/docqa/internal/config"
	"github.com/dshills/docqa/internal/embedder"
	"github.com/dshills/docqa/internal/generator"
	"github.com/dshills/docqa/internal/indexer"
	"github.com/dshills/docqa/internal/metrics"
	"github.com/dshills/docqa/internal/reranker"
	"github.com/dshills/docqa/internal/searcher"
	"github.com/dshills/docqa/internal/session"
	"github.com/dshills/docqa/internal/storage"
)

// app holds the wired components shared by every subcommand
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *storage.SQLiteStore
	embedder embedder.Embedder
	gen      generator.Generator
	metrics  *metrics.Metrics
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	sessions session.Store
	chat     *chat.Service
}

// newLogger builds the process logger; stdout stays free for MCP stdio
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func loadConfig(path string, w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log := newLogger(cfg.Log, w)
	slog.SetDefault(log)
	for _, warning := range cfg.Warnings {
		log.Warn("config value replaced", "detail", warning)
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	var err error
	a.embedder, err = embedder.New(embedder.Config{
		Provider:      cfg.Embedding.Provider,
		BaseURL:       cfg.Embedding.BaseURL,
		Model:         cfg.Embedding.Model,
		APIKey:        cfg.Embedding.APIKey,
		Dimension:     cfg.Embedding.Dimension,
		CacheSize:     cfg.Embedding.CacheSize,
		Fallback:      cfg.Embedding.Fallback,
		RatePerSecond: cfg.Embedding.RatePerSecond,
		Burst:         cfg.Embedding.Burst,
		Logger:        log.With("component", "embedder"),

		RequestTimeout: cfg.Embedding.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	a.gen, err = generator.New(generator.Config{
		Provider: cfg.Generator.Provider,
		BaseURL:  cfg.Generator.BaseURL,
		Model:    cfg.Generator.Model,
		APIKey:   cfg.Generator.APIKey,

		RequestTimeout: cfg.Generator.RequestTimeout,
	})
	if err != nil {
		_ = a.embedder.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	a.store, err = storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		_ = a.embedder.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	lexical := bm25.NewRegistry()
	a.indexer = indexer.New(a.store, a.embedder, lexical, &indexer.Config{
		BatchSize:       cfg.RAG.BatchSize,
		MultiCollection: cfg.RAG.MultiCollection,
		Metrics:         a.metrics,
		Logger:          log.With("component", "indexer"),
	})
	if _, err := a.indexer.Rebuild(ctx); err != nil {
		log.Warn("lexical rebuild failed; keyword scores start empty", "err", err)
	}

	mode, err := searcher.ParseMode(cfg.RAG.Mode)
	if err != nil {
		mode = searcher.ModeHybridHyDE
	}
	a.searcher = searcher.New(a.store, a.embedder,
		searcher.WithGenerator(a.gen),
		searcher.WithLexical(lexical),
		searcher.WithMultiCollection(cfg.RAG.MultiCollection),
		searcher.WithLexicalWeight(cfg.RAG.LexicalWeight),
		searcher.WithDefaultMode(mode),
		searcher.WithCache(searcher.DefaultCacheSize, cfg.RAG.CacheTTL),
		searcher.WithMetrics(a.metrics),
		searcher.WithLogger(log.With("component", "searcher")),
	)
	a.indexer.OnIndexed(a.searcher.InvalidateCache)

	a.sessions, err = newSessionStore(ctx, cfg.Session)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []chat.Option{
		chat.WithMetrics(a.metrics),
		chat.WithLogger(log.With("component", "chat")),
	}
	if cfg.RAG.Rerank {
		opts = append(opts, chat.WithReranker(reranker.New(a.embedder,
			reranker.WithLogger(log.With("component", "reranker")),
		)))
	}
	a.chat = chat.New(a.sessions, a.searcher, a.gen, chat.Config{
		Scope:            cfg.RAG.Collection,
		Organization:     cfg.Chat.Organization,
		Mode:             mode,
		TopK:             cfg.RAG.TopK,
		RerankCandidates: cfg.RAG.Candidates,
		RerankTopN:       cfg.RAG.RerankTopN,
		MaxHistory:       cfg.Chat.MaxHistory,
	}, opts...)

	log.Debug("components initialized",
		"embedder", a.embedder.Provider(),
		"dimension", a.embedder.Dimension(),
		"storage", cfg.Storage.Path,
		"build_mode", storage.BuildMode,
		"mode", mode,
		"rerank", cfg.RAG.Rerank,
		"session_store", cfg.Session.Store,
	)
	return a, nil
}

// collectionAdmin lists collections from the store and drops them through
// the indexer
type collectionAdmin struct {
	*storage.SQLiteStore
	indexer *indexer.Indexer
}

func (c collectionAdmin) DeleteCollection(ctx context.Context, name string) error {
	return c.indexer.DeleteCollection(ctx, name)
}

func (a *app) collections() collectionAdmin {
	return collectionAdmin{SQLiteStore: a.store, indexer: a.indexer}
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Store {
	case "redis":
		store, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize session store: %w", err)
		}
		return store, nil
	default:
		return session.NewMemoryStore(cfg.MaxSessions, cfg.TTL), nil
	}
}

// Close releases every component that holds resources
func (a *app) Close() error {
	var errs []error
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	return errors.Join(errs...)
}

// withApp loads configuration, wires the app and runs fn with it
func withApp(ctx context.Context, cfgPath string, logOut io.Writer, fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := loadConfig(cfgPath, logOut)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown incomplete", "err", err)
		}
	}()
	return fn(ctx, a)
}
