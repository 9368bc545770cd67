package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dshills/docqa/internal/chat"
	"github.com/dshills/docqa/internal/chunker"
	"github.com/dshills/docqa/internal/indexer"
	"github.com/dshills/docqa/internal/session"
	"github.com/dshills/docqa/internal/storage"
	"github.com/dshills/docqa/pkg/types"
)

const (
	botSender          = "Bot"
	msgEmptyMessage    = "Mensaje vacío"
	msgInternalError   = "Error interno del servidor"
	msgNoExtractedText = "No se pudo extraer texto del documento"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Sender       string           `json:"sender"`
	Message      string           `json:"message"`
	Focus        *string          `json:"focus"`
	SessionID    string           `json:"session_id,omitempty"`
	Intent       string           `json:"intent,omitempty"`
	Sources      []sourceResponse `json:"sources,omitempty"`
	Degradations []string         `json:"degradations,omitempty"`
}

type sourceResponse struct {
	Document   string  `json:"document"`
	PageNumber int     `json:"page_number,omitempty"`
	Topic      string  `json:"tema,omitempty"`
	Score      float64 `json:"score"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		botError(w, "Solicitud inválida", http.StatusBadRequest)
		return
	}
	if id := chi.URLParam(r, "sessionID"); id != "" {
		req.SessionID = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	reply, err := s.chat.Reply(ctx, chat.ReplyRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Document:  r.URL.Query().Get("document"),
	})
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		botError(w, msgEmptyMessage, http.StatusBadRequest)
		return
	case err != nil:
		s.log.Error("chat reply failed", "session", req.SessionID, "err", err)
		botError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	resp := chatResponse{
		Sender:       botSender,
		Message:      reply.Answer,
		SessionID:    reply.SessionID,
		Intent:       string(reply.Intent),
		Degradations: reply.Degradations,
	}
	if reply.Focus != "" {
		resp.Focus = &reply.Focus
	}
	for _, src := range reply.Sources {
		resp.Sources = append(resp.Sources, sourceResponse{
			Document:   src.Document,
			PageNumber: src.PageNumber,
			Topic:      src.Topic,
			Score:      src.Score,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type sessionSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CurrentFocus string    `json:"current_focus,omitempty"`
	Turns        int       `json:"turns"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.List(r.Context())
	if err != nil {
		s.log.Error("failed to list sessions", "err", err)
		jsonError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	out := make([]sessionSummary, 0, len(list))
	for _, sess := range list {
		out = append(out, sessionSummary{
			ID:           sess.ID,
			Name:         sess.Name,
			CurrentFocus: sess.CurrentFocus,
			Turns:        len(sess.History),
			UpdatedAt:    sess.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		jsonError(w, "session not found", http.StatusNotFound)
	case err != nil:
		s.log.Error("failed to load session", "err", err)
		jsonError(w, msgInternalError, http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

type ingestRequest struct {
	DocumentID string        `json:"document_id"`
	Collection string        `json:"collection,omitempty"`
	Chunks     []types.Chunk `json:"chunks,omitempty"`
	Text       string        `json:"text,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	chunks := make([]types.Chunk, 0, len(req.Chunks))
	for _, c := range req.Chunks {
		if strings.TrimSpace(c.Text) != "" {
			chunks = append(chunks, c)
		}
	}
	if strings.TrimSpace(req.Text) != "" {
		chunks = append(chunks, chunker.ChunkText(req.Text, req.DocumentID, 0)...)
	}
	if len(chunks) == 0 {
		jsonError(w, msgNoExtractedText, http.StatusBadRequest)
		return
	}

	scope := req.Collection
	if scope == "" {
		scope = s.cfg.Scope
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.IngestTimeout)
	defer cancel()

	stats, err := s.ingester.IndexChunks(ctx, scope, chunks, req.DocumentID)
	switch {
	case errors.Is(err, indexer.ErrIngestInProgress):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		s.log.Error("ingestion failed", "document", req.DocumentID, "err", err)
		jsonError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     fmt.Sprintf("Documento '%s' indexado correctamente", req.DocumentID),
		"chunks":      len(chunks),
		"fragments":   stats.FragmentsCreated,
		"skipped":     stats.FragmentsSkipped,
		"collections": stats.Collections,
	})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	list, err := s.collections.ListCollections(r.Context())
	if err != nil {
		s.log.Error("failed to list collections", "err", err)
		jsonError(w, msgInternalError, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.collections.DeleteCollection(r.Context(), name)
	switch {
	case errors.Is(err, storage.ErrCollectionNotFound):
		jsonError(w, "collection not found", http.StatusNotFound)
		return
	case errors.Is(err, indexer.ErrIngestInProgress):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		s.log.Error("failed to delete collection", "collection", name, "err", err)
		jsonError(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// botError replies in the chat message shape so clients can render it
func botError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"sender": botSender, "message": msg})
}
