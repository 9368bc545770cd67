package searcher

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/docqa/pkg/types"
)

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a copy of response
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops cached responses. The LRU cannot filter by scope,
// so the whole cache is purged.
func (s *Searcher) InvalidateCache(scope string) {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
	s.logger.Debug("search cache invalidated", "scope", scope)
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = append([]types.SearchResult(nil), src.Results...)
	dst.Collections = append([]string(nil), src.Collections...)
	dst.Degradations = append([]string(nil), src.Degradations...)
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Scope)
	data.WriteString("|")
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	data.WriteString(req.Document)
	data.WriteString("|")
	data.WriteString(req.Focus)
	data.WriteString(fmt.Sprintf("|%d|%d", req.TopK, req.Candidates))
	return sha256.Sum256([]byte(data.String()))
}
