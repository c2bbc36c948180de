// Package musiccache keeps fetched lyric payloads in a bounded
// least-recently-used store, optionally mirrored to a persistent backend.
package musiccache

import (
	"context"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

const DefaultCapacity = 100

var logger = log.With().Str("component", "music-cache").Logger()

// Backend 持久化存储，内存未命中时用于回填
type Backend[V any] interface {
	Load(ctx context.Context, key string) (V, bool, error)
	Store(ctx context.Context, key string, value V) error
	Delete(ctx context.Context, key string) error
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	items   *lru.Cache[string, V]
	backend Backend[V]
	evicted []string
}

// New 创建容量为 capacity 的缓存，capacity <= 0 时使用默认值
func New[V any](capacity int, backend Backend[V]) (*Cache[V], error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &Cache[V]{backend: backend}
	items, err := lru.NewWithEvict[string, V](capacity, func(key string, _ V) {
		// 在持有 c.mu 的情况下回调，只记录，稍后在锁外删除后端数据
		c.evicted = append(c.evicted, key)
	})
	if err != nil {
		return nil, err
	}
	c.items = items
	return c, nil
}

// Get returns the cached value and marks it most recently used. On a memory
// miss the backend, if any, is consulted and a hit is promoted into memory.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	c.mu.Lock()
	v, ok := c.items.Get(key)
	c.mu.Unlock()
	if ok || c.backend == nil {
		return v, ok
	}

	v, ok, err := c.backend.Load(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Cache backend load failed")
		return v, false
	}
	if !ok {
		return v, false
	}

	c.mu.Lock()
	c.items.Add(key, v)
	evicted := c.takeEvicted()
	c.mu.Unlock()
	c.dropFromBackend(ctx, evicted)

	return v, true
}

// Put inserts or refreshes key as the most recently used entry, evicting the
// least recently used one when the cache is full.
func (c *Cache[V]) Put(ctx context.Context, key string, value V) {
	c.mu.Lock()
	c.items.Add(key, value)
	evicted := c.takeEvicted()
	c.mu.Unlock()

	if c.backend != nil {
		if err := c.backend.Store(ctx, key, value); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Cache backend store failed")
		}
	}
	c.dropFromBackend(ctx, evicted)
}

// Contains 不影响最近使用顺序
func (c *Cache[V]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Contains(key)
}

// Keys 从最久未使用到最近使用
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Keys()
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Purge 清空内存中的条目（后端保持不变）
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.items.Purge()
	c.evicted = nil
	c.mu.Unlock()
}

func (c *Cache[V]) takeEvicted() []string {
	evicted := c.evicted
	c.evicted = nil
	return evicted
}

func (c *Cache[V]) dropFromBackend(ctx context.Context, keys []string) {
	if c.backend == nil {
		return
	}
	for _, key := range keys {
		logger.Debug().Str("key", key).Msg("Evicting least recently used entry")
		if err := c.backend.Delete(ctx, key); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Str("key", key).Msg("Cache backend delete failed")
		}
	}
}
