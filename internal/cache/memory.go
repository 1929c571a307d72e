package cache

import (
	"context"
	"errors"
	"time"

	"github.com/coocood/freecache"
)

// MinMemorySizeMB is the smallest arena freecache accepts in practice.
const MinMemorySizeMB = 1

// MemoryCache is an in-process cache backed by freecache.
// Entries are evicted by TTL or when the arena fills.
type MemoryCache struct {
	cache *freecache.Cache
}

// NewMemoryCache creates a cache with a sizeMB arena.
func NewMemoryCache(sizeMB int) *MemoryCache {
	if sizeMB < MinMemorySizeMB {
		sizeMB = MinMemorySizeMB
	}
	return &MemoryCache{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

// Get retrieves a value by key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	val, err := c.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value. A TTL under one second is rounded up to one second.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	secs := int(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	return c.cache.Set([]byte(key), value, secs)
}

// Delete removes a value by key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Del([]byte(key))
	return nil
}

// Close drops all entries.
func (c *MemoryCache) Close() error {
	c.cache.Clear()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
