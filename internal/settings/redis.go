package settings

import (
	"context"
	"fmt"
	"strconv"
)

const DefaultRedisKey = "lyricsync:settings"

// HashClient 是 RedisStore 需要的最小接口，pkg/redis.Client 实现了它
type HashClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// RedisStore 把设置保存在一个 hash 里
type RedisStore struct {
	client HashClient
	key    string
}

func NewRedisStore(client HashClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Load(ctx context.Context) (Settings, error) {
	fields, err := r.client.HGetAll(ctx, r.key)
	if err != nil {
		return Settings{}, fmt.Errorf("redis hgetall %s: %w", r.key, err)
	}
	if len(fields) == 0 {
		return Settings{}, ErrNotFound
	}

	s := Default()
	if v, ok := fields["enabled"]; ok {
		if s.Enabled, err = strconv.ParseBool(v); err != nil {
			return Settings{}, fmt.Errorf("invalid enabled value %q: %w", v, err)
		}
	}
	if v, ok := fields["offset_ms"]; ok {
		if s.OffsetMs, err = strconv.Atoi(v); err != nil {
			return Settings{}, fmt.Errorf("invalid offset_ms value %q: %w", v, err)
		}
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s Settings) error {
	err := r.client.HSet(ctx, r.key,
		"enabled", strconv.FormatBool(s.Enabled),
		"offset_ms", strconv.Itoa(s.OffsetMs),
	)
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", r.key, err)
	}
	return nil
}
