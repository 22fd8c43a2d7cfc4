package astrometry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/observability"
)

// CachedDetector wraps a detector with an in-memory LRU cache keyed by the
// SHA-256 of the image bytes.
type CachedDetector struct {
	inner   domain.ConstellationDetector
	cache   *lruCache[string, []string]
	metrics *observability.Metrics
}

// NewCachedDetector creates a cache decorator around a detector.
func NewCachedDetector(inner domain.ConstellationDetector, maxEntries int, metrics *observability.Metrics) *CachedDetector {
	return &CachedDetector{
		inner:   inner,
		cache:   newLRUCache[string, []string](max(maxEntries, 1)),
		metrics: metrics,
	}
}

func (c *CachedDetector) Detect(ctx context.Context, photo domain.Photo) domain.Detection {
	sum := sha256.Sum256(photo.Data)
	key := hex.EncodeToString(sum[:])
	if names, ok := c.cache.get(key); ok {
		c.metrics.DetectionCache.WithLabelValues("hit").Inc()
		return domain.Detected(append([]string{}, names...))
	}
	c.metrics.DetectionCache.WithLabelValues("miss").Inc()
	d := c.inner.Detect(ctx, photo)
	// Only successful solves are cached so failures and timeouts can be retried.
	if d.Status == domain.DetectionDetected {
		c.cache.put(key, append([]string{}, d.Names...))
	}
	return d
}

// DetectFile runs Detect on the image at path.
func (c *CachedDetector) DetectFile(ctx context.Context, path string) domain.Detection {
	return detectFile(ctx, c, path)
}

// Len reports the number of cached solves.
func (c *CachedDetector) Len() int {
	return c.cache.len()
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[K comparable, V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[K]*entry[K, V]
	head       *entry[K, V] // most recently used
	tail       *entry[K, V] // least recently used
}

type entry[K comparable, V any] struct {
	key   K
	value V
	prev  *entry[K, V]
	next  *entry[K, V]
}

func newLRUCache[K comparable, V any](maxEntries int) *lruCache[K, V] {
	return &lruCache[K, V]{
		maxEntries: maxEntries,
		entries:    make(map[K]*entry[K, V]),
	}
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[K, V]) addToFront(e *entry[K, V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[K, V]) remove(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[K, V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
