package indexer

import "sync"

// KeyedLock provides non-blocking per-key lock semantics. Ingestion into one
// scope must append BM25 slots and fragments in chunk order, while
// different scopes may proceed concurrently.
type KeyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyedLock creates an empty lock set
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{held: make(map[string]struct{})}
}

// TryAcquire attempts to take key without blocking.
// Returns true if the lock was acquired, false if another caller holds it.
func (l *KeyedLock) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// Release frees key.
// Must only be called by the goroutine that successfully acquired it.
func (l *KeyedLock) Release(key string) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}

// Held reports whether key is currently locked
func (l *KeyedLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[key]
	return busy
}
