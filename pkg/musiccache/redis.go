package musiccache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lyricsync/pkg/redis"
)

const defaultKeyPrefix = "lyricsync:lyrics:"

// RedisBackend 把缓存条目以 JSON 形式写入 Redis
type RedisBackend[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend ttl 为 0 时条目永久有效，淘汰由内存中的 LRU 决定
func NewRedisBackend[V any](client *redis.Client, prefix string, ttl time.Duration) *RedisBackend[V] {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisBackend[V]{client: client, prefix: prefix, ttl: ttl}
}

func (b *RedisBackend[V]) Load(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := b.client.GetBytes(ctx, b.prefix+key)
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if data == nil {
		return zero, false, nil
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("decode cached entry %s: %w", key, err)
	}
	return v, true, nil
}

func (b *RedisBackend[V]) Store(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if b.ttl > 0 {
		return b.client.SetWithExpiration(ctx, b.prefix+key, data, b.ttl)
	}
	return b.client.Set(ctx, b.prefix+key, data)
}

func (b *RedisBackend[V]) Delete(ctx context.Context, key string) error {
	_, err := b.client.Del(ctx, b.prefix+key)
	return err
}
