package cache

import (
	"context"
	"sync"
	"time"
)

// MemCache is an in-memory Cache used by unit tests.
type MemCache struct {
	mu       sync.Mutex
	values   map[string][]byte
	expiries map[string]time.Time
	counters map[string]int64
}

func NewMemCache() *MemCache {
	return &MemCache{
		values:   make(map[string][]byte),
		expiries: make(map[string]time.Time),
		counters: make(map[string]int64),
	}
}

func (c *MemCache) Ping(_ context.Context) error { return nil }

func (c *MemCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.setExpiry(key, ttl)
	return nil
}

func (c *MemCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired(key) {
		return nil, false, nil
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *MemCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	delete(c.expiries, key)
	return nil
}

func (c *MemCache) SetDedupMarker(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = []byte("1")
	c.setExpiry(key, ttl)
	return nil
}

func (c *MemCache) HasDedupMarker(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired(key) {
		return false, nil
	}
	_, ok := c.values[key]
	return ok, nil
}

func (c *MemCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	c.setExpiry(key, expiry)
	return c.counters[key], nil
}

func (c *MemCache) setExpiry(key string, ttl time.Duration) {
	if ttl > 0 {
		c.expiries[key] = time.Now().Add(ttl)
	} else {
		delete(c.expiries, key)
	}
}

func (c *MemCache) expired(key string) bool {
	exp, ok := c.expiries[key]
	if ok && time.Now().After(exp) {
		delete(c.values, key)
		delete(c.expiries, key)
		return true
	}
	return false
}
