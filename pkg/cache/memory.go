package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is an in-process cache backed by a TTL-aware LRU.
type MemoryCache struct {
	lru        *lru.LRU[string, []byte]
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	closed atomic.Bool
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(opts *Options) *MemoryCache {
	if opts == nil {
		opts = DefaultOptions()
	}

	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 100000
	}

	defaultTTL := opts.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	return &MemoryCache{
		lru:        lru.NewLRU[string, []byte](maxEntries, nil, defaultTTL),
		defaultTTL: defaultTTL,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	val, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, ErrKeyNotFound
	}
	c.hits.Add(1)

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	if ttl <= 0 {
		c.lru.Add(key, valueCopy)
		return nil
	}
	c.lru.AddWithTTL(key, valueCopy, ttl)
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.lru.Remove(key)
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	return c.lru.Contains(key), nil
}

func (c *MemoryCache) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if c.closed.Load() {
		return nil, 0, ErrCacheClosed
	}

	val, ttl, ok := c.lru.GetWithExpire(key)
	if !ok {
		c.misses.Add(1)
		return nil, 0, ErrKeyNotFound
	}
	c.hits.Add(1)

	result := make([]byte, len(val))
	copy(result, val)
	remaining := time.Until(ttl)
	if remaining < 0 {
		remaining = 0
	}
	return result, remaining, nil
}

func (c *MemoryCache) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if val, ok := c.lru.Get(key); ok {
			c.hits.Add(1)
			valueCopy := make([]byte, len(val))
			copy(valueCopy, val)
			result[key] = valueCopy
		} else {
			c.misses.Add(1)
		}
	}
	return result, nil
}

func (c *MemoryCache) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	for key, value := range entries {
		if err := c.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (c *MemoryCache) MDelete(ctx context.Context, keys []string) (int64, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}

	var count int64
	for _, key := range keys {
		if c.lru.Contains(key) {
			c.lru.Remove(key)
			count++
		}
	}
	return count, nil
}

func (c *MemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	var keys []string
	for _, key := range c.lru.Keys() {
		if matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (c *MemoryCache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}

	var count int64
	for _, key := range c.lru.Keys() {
		if matchPattern(pattern, key) {
			c.lru.Remove(key)
			count++
		}
	}
	return count, nil
}

func (c *MemoryCache) Stats(ctx context.Context) (*Stats, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	stats := &Stats{
		TotalKeys:    int64(c.lru.Len()),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		KeysByPrefix: make(map[string]int64),
		Backend:      "memory",
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	for _, key := range c.lru.Keys() {
		stats.KeysByPrefix[extractPrefix(key)]++
	}

	return stats, nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.lru.Purge()
	return nil
}

func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.lru.Purge()
	return nil
}

// matchPattern reports whether key matches pattern. Supports:
//   - "*" — any key
//   - "prefix*" — keys starting with prefix
//   - "*suffix" — keys ending with suffix
//   - "prefix*suffix" — both
func matchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}

	starIndex := strings.Index(pattern, "*")
	if starIndex == -1 {
		return pattern == key
	}

	prefix := pattern[:starIndex]
	suffix := pattern[starIndex+1:]

	if len(key) < len(prefix)+len(suffix) {
		return false
	}

	return strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix)
}

// extractPrefix extracts the colon-delimited prefix of a key.
func extractPrefix(key string) string {
	if idx := strings.Index(key, ":"); idx > 0 {
		return key[:idx]
	}
	return "other"
}
