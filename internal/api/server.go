package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/docqa/internal/chat"
	"github.com/dshills/docqa/internal/indexer"
	"github.com/dshills/docqa/internal/metrics"
	"github.com/dshills/docqa/internal/session"
	"github.com/dshills/docqa/internal/storage"
	"github.com/dshills/docqa/pkg/types"
)

// Chatter answers chat messages
type Chatter interface {
	Reply(ctx context.Context, req chat.ReplyRequest) (*chat.Reply, error)
}

// Ingester indexes chunks into a scope
type Ingester interface {
	IndexChunks(ctx context.Context, scope string, chunks []types.Chunk, documentID string) (*indexer.Statistics, error)
}

// CollectionAdmin lists and drops collections. DeleteCollection is expected
// to keep lexical indexes and response caches consistent.
type CollectionAdmin interface {
	ListCollections(ctx context.Context) ([]storage.Collection, error)
	DeleteCollection(ctx context.Context, name string) error
}

// Config holds HTTP settings
type Config struct {
	AdminToken     string
	Scope          string // default ingestion scope
	RequestTimeout time.Duration
	ChatTimeout    time.Duration
	IngestTimeout  time.Duration
	MaxBodyBytes   int64
}

const defaultMaxBodyBytes = 32 << 20

// Server is the HTTP API server for docqa.
type Server struct {
	router      chi.Router
	chat        Chatter
	ingester    Ingester
	collections CollectionAdmin
	sessions    session.Store
	metrics     *metrics.Metrics
	log         *slog.Logger
	cfg         Config
}

// Option configures a Server
type Option func(*Server)

// WithMetrics serves m on /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates and configures the HTTP server.
func NewServer(chatter Chatter, ingester Ingester, collections CollectionAdmin, sessions session.Store, cfg Config, opts ...Option) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 30 * time.Second
	}
	if cfg.IngestTimeout <= 0 {
		cfg.IngestTimeout = 5 * time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		chat:        chatter,
		ingester:    ingester,
		collections: collections,
		sessions:    sessions,
		log:         slog.Default().With("component", "api"),
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))

		r.Post("/api/chat", s.handleChat)
		r.Post("/api/chat/{sessionID}", s.handleChat)
		r.Get("/api/sessions", s.handleListSessions)
		r.Get("/api/sessions/{sessionID}", s.handleGetSession)
	})

	// Admin endpoints; ingestion carries its own, longer timeout.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.AdminToken, s.log))

		r.Post("/admin/documents", s.handleIngest)
		r.Get("/admin/collections", s.handleListCollections)
		r.Delete("/admin/collections/{name}", s.handleDeleteCollection)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
