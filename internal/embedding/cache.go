package embedding

import (
	"container/list"
	"context"
	"sync"
)

// lruCache is an LRU cache of embeddings keyed by namespaced input.
type lruCache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type lruEntry struct {
	key   string
	value []float32
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *lruCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*lruEntry).value, true
	}
	return nil, false
}

func (c *lruCache) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*lruEntry).value = value
		return
	}
	c.entries[key] = c.lru.PushFront(&lruEntry{key: key, value: value})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*lruEntry).key)
		}
	}
}

// CachedEmbedder wraps an Embedder with an LRU cache so repeated behavior
// values (the same clicked image, the same search text) are embedded once.
// Only cache misses are forwarded to the inner embedder, in one batch.
type CachedEmbedder struct {
	inner Embedder
	cache *lruCache
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	if capacity <= 0 {
		capacity = 1024
	}
	return &CachedEmbedder{inner: inner, cache: newLRUCache(capacity)}
}

// EncodeImages embeds paths, serving cache hits without touching the provider.
func (e *CachedEmbedder) EncodeImages(ctx context.Context, paths []string) ([][]float32, error) {
	return e.encode(ctx, "img:", paths, e.inner.EncodeImages)
}

// EncodeTexts embeds texts, serving cache hits without touching the provider.
func (e *CachedEmbedder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return e.encode(ctx, "txt:", texts, e.inner.EncodeTexts)
}

func (e *CachedEmbedder) encode(
	ctx context.Context,
	ns string,
	inputs []string,
	embed func(context.Context, []string) ([][]float32, error),
) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(inputs))
	var misses []string
	var missPos []int
	for i, input := range inputs {
		if vec, ok := e.cache.get(ns + input); ok {
			out[i] = vec
			continue
		}
		misses = append(misses, input)
		missPos = append(missPos, i)
	}
	if len(misses) > 0 {
		vecs, err := embed(ctx, misses)
		if err != nil {
			return nil, err
		}
		for i, pos := range missPos {
			out[pos] = vecs[i]
			e.cache.set(ns+inputs[pos], vecs[i])
		}
	}
	return out, nil
}

// Dimensions returns the inner embedder's dimension.
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Close closes the inner embedder.
func (e *CachedEmbedder) Close() error { return e.inner.Close() }
