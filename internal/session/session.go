package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Roles recorded in a session's history
const (
	RoleUser = "Tú"
	RoleBot  = "Bot"
)

// ErrNotFound is returned when a session does not exist
var ErrNotFound = errors.New("session not found")

// Turn is one message in a conversation
type Turn struct {
	Role    string    `json:"role"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Session is a conversation with its document focus
type Session struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	History      []Turn    `json:"history"`
	CurrentFocus string    `json:"current_focus"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Append records turns and keeps at most maxHistory of them. maxHistory <= 0
// keeps everything.
func (s *Session) Append(maxHistory int, turns ...Turn) {
	s.History = append(s.History, turns...)
	if maxHistory > 0 && len(s.History) > maxHistory {
		s.History = append([]Turn(nil), s.History[len(s.History)-maxHistory:]...)
	}
	s.UpdatedAt = time.Now()
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = append([]Turn(nil), s.History...)
	return &c
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the session or ErrNotFound
	Get(ctx context.Context, id string) (*Session, error)

	// Put creates or replaces a session
	Put(ctx context.Context, s *Session) error

	// List returns all live sessions ordered by creation time
	List(ctx context.Context) ([]*Session, error)

	Close() error
}

// GetOrCreate loads id or creates it, named "Chat N" after the number of
// existing sessions. An empty id gets a fresh UUID.
func GetOrCreate(ctx context.Context, store Store, id string) (*Session, bool, error) {
	id = strings.TrimSpace(id)
	if id != "" {
		s, err := store.Get(ctx, id)
		if err == nil {
			return s, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("failed to load session %s: %w", id, err)
		}
	} else {
		id = uuid.NewString()
	}

	existing, err := store.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := time.Now()
	s := &Session{
		ID:        id,
		Name:      fmt.Sprintf("Chat %d", len(existing)+1),
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Put(ctx, s); err != nil {
		return nil, false, fmt.Errorf("failed to create session %s: %w", id, err)
	}
	return s, true, nil
}
