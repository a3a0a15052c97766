package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryCache is the in-process CacheRepository used without Redis and as
// the failover target.
type MemoryCache struct {
	values     sync.Map
	mu         sync.Mutex
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{rateLimits: make(map[string]*rateLimitEntry), now: time.Now}
}

func (c *MemoryCache) GetJSON(_ context.Context, key string, dst interface{}) (bool, error) {
	val, ok := c.values.Load(key)
	if !ok {
		return false, nil
	}
	entry := val.(memoryEntry)
	if entry.expired(c.now()) {
		c.values.Delete(key)
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (c *MemoryCache) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.values.Store(key, entry)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.values.Delete(k)
	}
	return nil
}

func (c *MemoryCache) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		c.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
