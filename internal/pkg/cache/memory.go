package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is an in-process Cache for tests and single-node runs.
type MemoryCache struct {
	serviceName string
	mu          sync.RWMutex
	store       map[string]entry
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache(serviceName string) *MemoryCache {
	return &MemoryCache{
		serviceName: serviceName,
		store:       make(map[string]entry),
	}
}

func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.store[key] = entry{value: fmt.Sprint(value), expiresAt: expires}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.store, key)
		c.mu.Unlock()
		return "", nil
	}
	return e.value, nil
}

func (c *MemoryCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", c.serviceName, operation, key)
}
