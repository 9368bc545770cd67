package bm25

import (
	"sort"
	"sync"
)

// DocRef identifies where an indexed slot came from
type DocRef struct {
	Document   string
	PageNumber int
}

// Document is a persisted lexical entry used to rebuild an index
type Document struct {
	Ref  DocRef
	Text string
}

// Hit is a scored slot of a scope's index
type Hit struct {
	Ref   DocRef
	Score float64
}

type scopeIndex struct {
	index *Index
	refs  []DocRef
}

// Registry holds one Index per collection scope
type Registry struct {
	mu     sync.RWMutex
	scopes map[string]*scopeIndex
	opts   []Option
}

// NewRegistry creates an empty registry. Options apply to every index it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		scopes: make(map[string]*scopeIndex),
		opts:   opts,
	}
}

func (r *Registry) scope(name string) *scopeIndex {
	r.mu.RLock()
	s, ok := r.scopes[name]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.scopes[name]; ok {
		return s
	}
	s = &scopeIndex{index: New(r.opts...)}
	r.scopes[name] = s
	return s
}

// Ensure creates the scope's index if it does not exist yet
func (r *Registry) Ensure(scope string) {
	r.scope(scope)
}

// Add appends a document to the scope's index and returns its slot
func (r *Registry) Add(scope string, doc Document) int {
	s := r.scope(scope)

	// Serialise slot assignment with the ref append so both stay aligned
	r.mu.Lock()
	defer r.mu.Unlock()
	slot := s.index.AddDocument(doc.Text)
	s.refs = append(s.refs, doc.Ref)
	return slot
}

// Search scores every slot of the scope against query. It returns false
// when the scope has no index.
func (r *Registry) Search(scope, query string) ([]Hit, bool) {
	r.mu.RLock()
	s, ok := r.scopes[scope]
	if !ok {
		r.mu.RUnlock()
		return nil, false
	}
	scores := s.index.Score(query)
	refs := s.refs
	r.mu.RUnlock()

	hits := make([]Hit, 0, len(scores))
	for i, score := range scores {
		if score <= 0 || i >= len(refs) {
			continue
		}
		hits = append(hits, Hit{Ref: refs[i], Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits, true
}

// Rebuild clears the scope's index and re-adds docs in order
func (r *Registry) Rebuild(scope string, docs []Document) {
	s := r.scope(scope)

	r.mu.Lock()
	defer r.mu.Unlock()
	s.index.Clear()
	// readers may still hold the previous refs after releasing the lock
	refs := make([]DocRef, 0, len(docs))
	for _, d := range docs {
		s.index.AddDocument(d.Text)
		refs = append(refs, d.Ref)
	}
	s.refs = refs
}

// Drop discards the scope's index
func (r *Registry) Drop(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scopes, scope)
}

// Len returns the number of slots in the scope's index
func (r *Registry) Len(scope string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.scopes[scope]; ok {
		return s.index.Len()
	}
	return 0
}

// Scopes lists the scopes with an index, sorted
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scopes))
	for name := range r.scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
