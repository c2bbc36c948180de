package lyrics

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lyricsync/internal/track"
	"lyricsync/pkg/music"
	"lyricsync/pkg/musiccache"
)

// ErrStale is returned when a newer request superseded the one being served.
// The caller must drop the result.
var ErrStale = errors.New("lyrics request superseded")

var logger = log.With().Str("component", "lyrics-provider").Logger()

// Token 标识一次获取请求，只有最新的 Token 的结果才会被采用
type Token uint64

// Lookup 远程查询接口，music.Manager 实现了它
type Lookup interface {
	Lookup(ctx context.Context, q music.Query) (*music.Payload, error)
}

// Provider 带缓存的歌词获取器
type Provider struct {
	lookup     Lookup
	cache      *musiccache.Cache[music.Payload]
	generation atomic.Uint64

	translit  Transliterator
	batchOpts BatchOptions
}

// NewProvider cache 为 nil 时使用默认容量的内存缓存
func NewProvider(lookup Lookup, cache *musiccache.Cache[music.Payload]) (*Provider, error) {
	if lookup == nil {
		return nil, errors.New("nil lyrics lookup")
	}
	if cache == nil {
		var err error
		cache, err = musiccache.New[music.Payload](musiccache.DefaultCapacity, nil)
		if err != nil {
			return nil, fmt.Errorf("create lyrics cache: %w", err)
		}
	}
	return &Provider{lookup: lookup, cache: cache, batchOpts: DefaultBatchOptions()}, nil
}

// Begin issues a new token; every token issued before it becomes stale.
func (p *Provider) Begin() Token {
	return Token(p.generation.Add(1))
}

// IsCurrent 该 Token 是否仍是最新的
func (p *Provider) IsCurrent(token Token) bool {
	return p.generation.Load() == uint64(token)
}

// GetLyrics returns cached or freshly fetched lyrics for info. A nil result
// with a nil error means no provider knows the song. If token was superseded
// while the request was in flight, ErrStale is returned instead of the value.
func (p *Provider) GetLyrics(ctx context.Context, token Token, info track.Info) (*Lyrics, error) {
	if !info.IsValid() || info.Artist == "" {
		return nil, fmt.Errorf("track title or artist is empty")
	}

	key := track.CacheKey(info.Artist, info.Title)
	reqLog := logger.With().Str("request_id", uuid.NewString()).Str("key", key).Uint64("token", uint64(token)).Logger()

	if payload, ok := p.cache.Get(ctx, key); ok {
		reqLog.Info().Msg("Cache HIT")
		return p.finish(token, toLyrics(&payload))
	}
	reqLog.Info().Msg("Cache MISS, fetching from providers")

	payload, err := p.lookup.Lookup(ctx, music.QueryFor(info.Title, info.Artist, info.Album, info.Duration))
	if err != nil {
		if !p.IsCurrent(token) {
			return nil, ErrStale
		}
		return nil, fmt.Errorf("failed to get lyrics for '%s': %w", info, err)
	}

	if payload != nil && payload.SyncedLyrics != "" {
		p.cache.Put(ctx, key, *payload)
	}

	return p.finish(token, toLyrics(payload))
}

func (p *Provider) finish(token Token, l *Lyrics) (*Lyrics, error) {
	if !p.IsCurrent(token) {
		return nil, ErrStale
	}
	return l, nil
}

// Cache 暴露底层缓存，供命令行工具查看
func (p *Provider) Cache() *musiccache.Cache[music.Payload] {
	return p.cache
}

func toLyrics(payload *music.Payload) *Lyrics {
	if !payload.HasLyrics() {
		return nil
	}
	return &Lyrics{
		Synced: Parse(payload.SyncedLyrics),
		Plain:  payload.PlainLyrics,
	}
}
