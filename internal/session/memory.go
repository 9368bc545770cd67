package session

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults for the in-memory store
const (
	DefaultMaxSessions = 1000
	DefaultTTL         = 24 * time.Hour
)

// MemoryStore keeps up to a fixed number of sessions, each expiring ttl
// after its last write
type MemoryStore struct {
	lru *expirable.LRU[string, *Session]
}

// NewMemoryStore creates a bounded, expiring store. Zero values use the
// defaults.
func NewMemoryStore(maxSessions int, ttl time.Duration) *MemoryStore {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{lru: expirable.NewLRU[string, *Session](maxSessions, nil, ttl)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s, ok := m.lru.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.lru.Add(s.ID, s.Clone())
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Session, error) {
	values := m.lru.Values()
	out := make([]*Session, 0, len(values))
	for _, s := range values {
		out = append(out, s.Clone())
	}
	sortByCreation(out)
	return out, nil
}

// Len returns the number of live sessions
func (m *MemoryStore) Len() int {
	return m.lru.Len()
}

func (m *MemoryStore) Close() error {
	m.lru.Purge()
	return nil
}

func sortByCreation(sessions []*Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
