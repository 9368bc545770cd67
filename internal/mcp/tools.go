package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docqa/internal/chat"
	"github.com/dshills/docqa/internal/chunker"
	"github.com/dshills/docqa/internal/indexer"
	"github.com/dshills/docqa/internal/searcher"
	"github.com/dshills/docqa/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeIngestInProgress = -32002 // Another ingestion into the scope is running
	ErrorCodeEmptyQuery       = -32004 // Query or message parameter is empty
)

const (
	maxErrorMessages = 5
	maxSearchLimit   = searcher.MaxTopK
)

// handleIngestChunks handles the ingest_chunks tool invocation
func (s *Server) handleIngestChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	documentID := getStringDefault(args, "document_id", "")
	if strings.TrimSpace(documentID) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "document_id parameter is required", map[string]interface{}{
			"param":  "document_id",
			"reason": "missing or empty",
		})
	}

	chunks, err := decodeChunks(args["chunks"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunks", map[string]interface{}{
			"param":  "chunks",
			"reason": err.Error(),
		})
	}
	if text := getStringDefault(args, "text", ""); strings.TrimSpace(text) != "" {
		chunks = append(chunks, chunker.ChunkText(text, documentID, 0)...)
	}
	if len(chunks) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "no text to index", map[string]interface{}{
			"param":  "chunks",
			"reason": "neither chunks nor text carry content",
		})
	}

	scope := getStringDefault(args, "collection", s.scope)

	ctx, cancel := context.WithTimeout(ctx, s.ingestTimeout)
	defer cancel()
	stats, err := s.ingester.IndexChunks(ctx, scope, chunks, documentID)
	if errors.Is(err, indexer.ErrIngestInProgress) {
		return nil, newMCPError(ErrorCodeIngestInProgress, "ingestion already in progress", map[string]interface{}{
			"collection": scope,
		})
	}
	if err != nil {
		s.log.Error("ingestion failed", "document", documentID, "err", err)
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", nil)
	}

	response := map[string]interface{}{
		"indexed":           stats.FragmentsCreated > 0,
		"document":          documentID,
		"chunks_processed":  stats.ChunksProcessed,
		"chunks_skipped":    stats.ChunksSkipped,
		"fragments_created": stats.FragmentsCreated,
		"fragments_skipped": stats.FragmentsSkipped,
		"collections":       stats.Collections,
		"duration_ms":       stats.Duration.Milliseconds(),
	}
	if n := len(stats.ErrorMessages); n > 0 {
		if n > maxErrorMessages {
			response["errors"] = stats.ErrorMessages[:maxErrorMessages]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultTopK)
	if limit < 1 || limit > maxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	// an empty mode leaves the searcher's configured default in place
	mode := searcher.Mode(getStringDefault(args, "mode", ""))
	if mode != "" {
		if _, err := searcher.ParseMode(string(mode)); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
				"param":   "mode",
				"value":   string(mode),
				"allowed": modeEnum,
			})
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()
	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Scope:    getStringDefault(args, "collection", s.scope),
		Query:    query,
		TopK:     limit,
		Document: getStringDefault(args, "document", ""),
		Focus:    getStringDefault(args, "focus", ""),
		Mode:     mode,
		UseCache: true,
	})
	if err != nil {
		s.log.Error("search failed", "err", err)
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"reason": errorReason(err),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, resultJSON(r))
	}
	response := map[string]interface{}{
		"query":       query,
		"results":     results,
		"total":       len(results),
		"mode":        string(resp.Mode),
		"collections": resp.Collections,
		"filters":     filtersJSON(resp.Filters),
		"cache_hit":   resp.CacheHit,
		"duration_ms": resp.Duration.Milliseconds(),
	}
	if resp.Degraded() {
		response["degradations"] = resp.Degradations
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAsk handles the ask tool invocation
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	message := getStringDefault(args, "message", "")

	ctx, cancel := context.WithTimeout(ctx, s.chatTimeout)
	defer cancel()
	reply, err := s.chat.Reply(ctx, chat.ReplyRequest{
		SessionID: getStringDefault(args, "session_id", ""),
		Message:   message,
		Document:  getStringDefault(args, "document", ""),
	})
	if errors.Is(err, chat.ErrEmptyMessage) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "message parameter is required and cannot be empty", map[string]interface{}{
			"param":  "message",
			"reason": "missing or empty",
		})
	}
	if err != nil {
		s.log.Error("ask failed", "err", err)
		return nil, newMCPError(ErrorCodeInternalError, "internal error", nil)
	}

	sources := make([]map[string]interface{}, 0, len(reply.Sources))
	for _, r := range reply.Sources {
		sources = append(sources, resultJSON(r))
	}
	response := map[string]interface{}{
		"session_id":   reply.SessionID,
		"session_name": reply.SessionName,
		"answer":       reply.Answer,
		"focus":        reply.Focus,
		"intent":       string(reply.Intent),
		"sources":      sources,
	}
	if len(reply.Degradations) > 0 {
		response["degradations"] = reply.Degradations
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListCollections handles the list_collections tool invocation
func (s *Server) handleListCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.store.ListCollections(ctx)
	if err != nil {
		s.log.Error("failed to list collections", "err", err)
		return nil, newMCPError(ErrorCodeInternalError, "failed to list collections", nil)
	}

	collections := make([]map[string]interface{}, 0, len(list))
	for _, c := range list {
		collections = append(collections, map[string]interface{}{
			"name":        c.Name,
			"vector_size": c.VectorSize,
			"distance":    c.Distance,
			"created_at":  c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"collections": collections,
		"total":       len(collections),
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	scope := getStringDefault(args, "collection", s.scope)

	status, err := s.store.Status(ctx)
	if err != nil {
		s.log.Error("failed to get status", "err", err)
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", nil)
	}

	response := map[string]interface{}{
		"indexing": s.ingester.IsIndexing(scope),
		"statistics": map[string]interface{}{
			"collections":       status.Collections,
			"fragments":         status.Fragments,
			"lexical_documents": status.LexicalDocuments,
			"index_size_mb":     fmt.Sprintf("%.2f", status.SizeMB),
		},
		"schema_version": status.SchemaVersion,
		"build_mode":     status.BuildMode,
		"health": map[string]interface{}{
			"database_accessible":        status.Health.DatabaseAccessible,
			"vector_extension_available": status.Health.VectorExtensionAvailable,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// arguments returns the tool arguments; absent arguments are an empty map
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// decodeChunks converts the loosely typed chunks argument and drops blank ones
func decodeChunks(raw interface{}) ([]types.Chunk, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var chunks []types.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, err
	}

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// errorReason exposes only the sentinel part of a search error
func errorReason(err error) string {
	if errors.Is(err, searcher.ErrEmbeddingUnavailable) {
		return searcher.ErrEmbeddingUnavailable.Error()
	}
	return "internal error"
}

func resultJSON(r types.SearchResult) map[string]interface{} {
	out := map[string]interface{}{
		"rank":       r.Rank,
		"score":      r.Score,
		"document":   r.Document,
		"collection": r.Collection,
		"content":    r.Text,
	}
	if r.PageNumber > 0 {
		out["page_number"] = r.PageNumber
	}
	if r.Topic != "" {
		out["tema"] = r.Topic
	}
	if r.Subtopic != "" {
		out["subtema"] = r.Subtopic
	}
	return out
}

func filtersJSON(f types.Filters) map[string]interface{} {
	out := map[string]interface{}{}
	if f.Document != "" {
		out["document"] = f.Document
	}
	if f.Topic != "" {
		out["tema"] = f.Topic
	}
	if f.Subtopic != "" {
		out["subtema"] = f.Subtopic
	}
	return out
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}
