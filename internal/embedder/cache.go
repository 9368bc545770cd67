package embedder

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when NewCache gets a non-positive size
const DefaultCacheSize = 10000

// Cache is an LRU of provider vectors keyed by model and content.
// Entries are copied in and out so callers may mutate what they get.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
}

// NewCache creates a cache holding up to size embeddings
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, _ := lru.New[string, *Embedding](size)
	return &Cache{entries: entries}
}

// Get returns a copy of the cached vector for text under model
func (c *Cache) Get(model, text string) (*Embedding, bool) {
	emb, ok := c.entries.Get(cacheKey(model, text))
	if !ok {
		return nil, false
	}
	return emb.Clone(), true
}

// Set stores emb for text under model. Fallback vectors are never cached.
func (c *Cache) Set(model, text string, emb *Embedding) {
	if !IsUsable(emb) {
		return
	}
	c.entries.Add(cacheKey(model, text), emb.Clone())
}

// Len returns the number of cached embeddings
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge empties the cache
func (c *Cache) Purge() {
	c.entries.Purge()
}

// ContentHash is the hex SHA-256 of text
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// vectors from different models never share an entry
func cacheKey(model, text string) string {
	return ContentHash(model + "\x00" + text)
}
