package tool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/hupe1980/metaexpert/logging"
)

// Cache stores tool results by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type cacheEntry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

// expired reports whether the entry is past its deadline. A zero deadline
// never expires.
func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryCache is a size bounded TTL cache. When full, the oldest entry is evicted.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
}

// NewInMemoryCache creates a cache holding at most maxSize entries. ttl is
// the default lifetime used when Set receives zero; when both are zero the
// entry never expires.
func NewInMemoryCache(maxSize int, ttl time.Duration) *InMemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &InMemoryCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a live entry.
func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.expired(time.Now()) {
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores a value.
func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := time.Now()
	entry := &cacheEntry{value: value, createdAt: now}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.entries[key] = entry

	return nil
}

// Size returns the number of entries in the cache.
func (c *InMemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryCache) evictOldest() {
	var (
		oldestKey  string
		oldestTime time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}
	delete(c.entries, oldestKey)
}

// CachedInvoker memoises successful searches and fetches of an inner Invoker.
// Failures are never cached.
type CachedInvoker struct {
	inner  Invoker
	cache  Cache
	ttl    time.Duration
	logger logging.Logger
}

// NewCachedInvoker wraps inner with cache.
func NewCachedInvoker(inner Invoker, cache Cache, ttl time.Duration, logger logging.Logger) *CachedInvoker {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &CachedInvoker{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// CacheKey derives the cache key for an operation and its argument.
func CacheKey(op, arg string) string {
	sum := sha256.Sum256([]byte(op + "\x00" + arg))
	return op + ":" + hex.EncodeToString(sum[:])
}

// Search implements Invoker.
func (c *CachedInvoker) Search(ctx context.Context, query string) ([]SearchResult, error) {
	key := CacheKey("search", query)
	if raw, ok := c.lookup(ctx, key); ok {
		var results []SearchResult
		if err := json.Unmarshal(raw, &results); err == nil && len(results) > 0 {
			c.logger.Debug("tool.cache.hit", "op", "search", "query", query)
			return results, nil
		}
	}

	results, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(results); err == nil {
		c.store(ctx, key, raw)
	}

	return results, nil
}

// Fetch implements Invoker.
func (c *CachedInvoker) Fetch(ctx context.Context, url string) (string, error) {
	key := CacheKey("fetch", url)
	if raw, ok := c.lookup(ctx, key); ok && len(raw) > 0 {
		c.logger.Debug("tool.cache.hit", "op", "fetch", "url", url)
		return string(raw), nil
	}

	content, err := c.inner.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	c.store(ctx, key, []byte(content))

	return content, nil
}

// lookup and store treat cache errors as misses; the cache never fails a call.
func (c *CachedInvoker) lookup(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("tool.cache.get_failed", "key", key, "error", err.Error())
		return nil, false
	}
	return raw, ok
}

func (c *CachedInvoker) store(ctx context.Context, key string, value []byte) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("tool.cache.set_failed", "key", key, "error", err.Error())
	}
}
