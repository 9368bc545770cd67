package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docqa/internal/chat"
	"github.com/dshills/docqa/internal/indexer"
	"github.com/dshills/docqa/internal/searcher"
	"github.com/dshills/docqa/internal/storage"
	"github.com/dshills/docqa/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "docqa"
)

// Default per-call limits when Deps leaves them unset
const (
	DefaultChatTimeout   = 30 * time.Second
	DefaultIngestTimeout = 5 * time.Minute
)

// ServerVersion is reported to MCP clients; set from the build
var ServerVersion = "dev"

// Ingester indexes chunks into a scope
type Ingester interface {
	IndexChunks(ctx context.Context, scope string, chunks []types.Chunk, documentID string) (*indexer.Statistics, error)
	IsIndexing(scope string) bool
}

// Searcher runs retrieval
type Searcher interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// Chatter answers questions within a session
type Chatter interface {
	Reply(ctx context.Context, req chat.ReplyRequest) (*chat.Reply, error)
}

// Store reports collections and health
type Store interface {
	ListCollections(ctx context.Context) ([]storage.Collection, error)
	Status(ctx context.Context) (*storage.Status, error)
}

// Deps are the application components exposed as tools
type Deps struct {
	Ingester Ingester
	Searcher Searcher
	Chat     Chatter
	Store    Store
	Scope    string // default scope for ingestion and search
	Logger   *slog.Logger

	// ChatTimeout bounds search_documents and ask; IngestTimeout bounds ingest_chunks
	ChatTimeout   time.Duration
	IngestTimeout time.Duration
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	ingester Ingester
	searcher Searcher
	chat     Chatter
	store    Store
	scope    string
	log      *slog.Logger

	chatTimeout   time.Duration
	ingestTimeout time.Duration
}

// NewServer creates a new MCP server instance with all tools registered
func NewServer(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default().With("component", "mcp")
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		ingester: deps.Ingester,
		searcher: deps.Searcher,
		chat:     deps.Chat,
		store:    deps.Store,
		scope:    deps.Scope,
		log:      log,

		chatTimeout:   deps.ChatTimeout,
		ingestTimeout: deps.IngestTimeout,
	}
	if s.chatTimeout <= 0 {
		s.chatTimeout = DefaultChatTimeout
	}
	if s.ingestTimeout <= 0 {
		s.ingestTimeout = DefaultIngestTimeout
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("mcp server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(ingestChunksTool(), s.handleIngestChunks)
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(askTool(), s.handleAsk)
	s.mcp.AddTool(listCollectionsTool(), s.handleListCollections)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
