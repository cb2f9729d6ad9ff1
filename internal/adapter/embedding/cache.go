package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"kb/internal/port"
)

// CachedEmbedder memoizes vectors per text with LRU eviction and a TTL.
// Embedding a text is deterministic for a fixed model, so cached vectors
// never go stale; the TTL only bounds memory held for one-off queries.
type CachedEmbedder struct {
	inner port.Embedder

	mu      sync.Mutex
	entries map[string]*vectorEntry
	order   []string
	maxSize int
	ttl     time.Duration
}

type vectorEntry struct {
	vector    []float32
	timestamp time.Time
}

func NewCachedEmbedder(inner port.Embedder, maxSize int, ttl time.Duration) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedEmbedder{
		inner:   inner,
		entries: make(map[string]*vectorEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func vectorKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:16])
}

// Embed serves cached vectors where possible and forwards only the
// missing texts to the wrapped embedder, preserving input order.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int

	c.mu.Lock()
	for i, text := range texts {
		key := vectorKey(text)
		entry, ok := c.entries[key]
		if ok && time.Since(entry.timestamp) <= c.ttl {
			c.moveToEnd(key)
			out[i] = entry.vector
			continue
		}
		if ok {
			delete(c.entries, key)
			c.removeFromOrder(key)
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for j, vec := range vectors {
		out[missingIdx[j]] = vec
		c.put(vectorKey(missing[j]), vec)
	}
	c.mu.Unlock()

	return out, nil
}

func (c *CachedEmbedder) Dimension() int    { return c.inner.Dimension() }
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) put(key string, vector []float32) {
	if _, exists := c.entries[key]; exists {
		c.entries[key] = &vectorEntry{vector: vector, timestamp: time.Now()}
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &vectorEntry{vector: vector, timestamp: time.Now()}
	c.order = append(c.order, key)
}

func (c *CachedEmbedder) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *CachedEmbedder) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *CachedEmbedder) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
