// Package cache memoizes engine outputs keyed by a fingerprint of the input
// data, the engine name and the parameter set. Invalidation is purely
// time-based; callers are responsible for fingerprinting input content, not
// just file names.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the narrow get/put surface behind which cache storage lives, so
// it can be swapped (in-memory, Redis) without touching engine logic.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: map[string]entry{}, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.items, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

// Client wraps a Store with per-fingerprint locking so at most one
// computation per fingerprint runs to completion under concurrent access.
type Client struct {
	store    Store
	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

func NewClient(store Store) *Client {
	return &Client{store: store, inflight: map[string]*sync.Mutex{}}
}

func (c *Client) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.inflight[key]
	if !ok {
		l = &sync.Mutex{}
		c.inflight[key] = l
	}
	return l
}

// GetOrCompute returns the cached value for key, or runs compute exactly
// once per fingerprint and stores its result for ttl. The hit return
// reports whether the value came from the store.
func (c *Client) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	if v, ok, err := c.store.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}

	v, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := c.store.Set(ctx, key, v, ttl); err != nil {
		// Storage failure degrades to a cache miss, never a run failure.
		return v, false, nil
	}
	return v, false, nil
}
