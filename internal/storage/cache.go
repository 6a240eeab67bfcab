package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of values a Cached store keeps.
const DefaultCacheSize = 256

// Cached is a read-through, write-through LRU in front of another KV.
type Cached struct {
	backend KV
	cache   *lru.Cache[string, []byte]
}

func NewCached(backend KV, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Cached{backend: backend, cache: cache}, nil
}

func (c *Cached) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, ok := c.cache.Get(key); ok {
		return append([]byte(nil), val...), true, nil
	}
	val, ok, err := c.backend.Get(ctx, key)
	if err != nil || !ok {
		return val, ok, err
	}
	c.cache.Add(key, append([]byte(nil), val...))
	return val, true, nil
}

func (c *Cached) Set(ctx context.Context, key string, value []byte) error {
	return c.SetMany(ctx, []Entry{{Key: key, Value: value}})
}

func (c *Cached) SetMany(ctx context.Context, entries []Entry) error {
	if err := c.backend.SetMany(ctx, entries); err != nil {
		for _, e := range entries {
			c.cache.Remove(e.Key)
		}
		return err
	}
	for _, e := range entries {
		c.cache.Add(e.Key, append([]byte(nil), e.Value...))
	}
	return nil
}

// Len returns the number of cached values.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func (c *Cached) Close() error {
	c.cache.Purge()
	return c.backend.Close()
}
