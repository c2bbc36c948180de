package music

import (
	"context"
	"fmt"
	"math"
	"time"

	"lyricsync/pkg/lrclib"
	"lyricsync/pkg/netease"
)

// lrclibAPI 先精确查询 /get，没有结果时退回到 /search
type lrclibAPI struct {
	client *lrclib.Client
}

func (a *lrclibAPI) GetProviderName() string {
	return "LRCLib"
}

func (a *lrclibAPI) Lookup(ctx context.Context, q Query) (*Payload, error) {
	lq := lrclib.Query{Title: q.Title, Artist: q.Artist, Album: q.Album, Duration: q.Duration}

	resp, err := a.client.Get(ctx, lq)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp, err = a.client.Search(ctx, lq)
		if err != nil {
			return nil, err
		}
	}
	if resp == nil {
		return nil, nil
	}

	return &Payload{
		Provider:     a.GetProviderName(),
		TrackName:    resp.TrackName,
		ArtistName:   resp.ArtistName,
		AlbumName:    resp.AlbumName,
		Duration:     resp.Duration,
		Instrumental: resp.Instrumental,
		PlainLyrics:  resp.PlainLyrics,
		SyncedLyrics: resp.SyncedLyrics,
	}, nil
}

// neteaseAPI 搜索 + 获取歌词两步
type neteaseAPI struct {
	client *netease.Client
}

func (a *neteaseAPI) GetProviderName() string {
	return "NetEase Cloud Music"
}

func (a *neteaseAPI) Lookup(ctx context.Context, q Query) (*Payload, error) {
	songID, err := a.client.SearchSong(ctx, q.Title, q.Artist)
	if err != nil || songID == "" {
		return nil, err
	}

	lrc, err := a.client.GetLyrics(ctx, songID)
	if err != nil {
		return nil, fmt.Errorf("get lyrics for song %s: %w", songID, err)
	}
	if lrc == "" {
		return nil, nil
	}

	return &Payload{
		Provider:     a.GetProviderName(),
		TrackName:    q.Title,
		ArtistName:   q.Artist,
		AlbumName:    q.Album,
		Duration:     float64(q.Duration),
		SyncedLyrics: lrc,
	}, nil
}

// Options 创建提供商所需的参数
type Options struct {
	LRCLibURL  string
	NetEaseURL string
	Timeout    time.Duration
}

// CreateProvider 创建音乐提供商客户端
func CreateProvider(provider Provider, opts Options) (MusicAPI, error) {
	switch provider {
	case ProviderLRCLib:
		logger.Info().Msg("Creating LRCLib client")
		return &lrclibAPI{client: lrclib.NewClient(opts.LRCLibURL, opts.Timeout)}, nil
	case ProviderNetEase:
		logger.Info().Msg("Creating NetEase music client")
		return &neteaseAPI{client: netease.NewClient(opts.NetEaseURL, opts.Timeout)}, nil
	default:
		return nil, fmt.Errorf("unknown music provider: %s", provider)
	}
}

// CreateManager 按给定顺序创建管理器，无法创建的提供商会被跳过
func CreateManager(names []string, opts Options) (*Manager, error) {
	var providers []MusicAPI

	for _, name := range names {
		providerType, err := GetProviderByName(name)
		if err != nil {
			logger.Warn().Err(err).Msg("Skipping provider")
			continue
		}
		provider, err := CreateProvider(providerType, opts)
		if err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("Failed to create provider")
			continue
		}
		providers = append(providers, provider)
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no music providers available")
	}

	return NewManager(providers), nil
}

// GetProviderByName 根据名称获取提供商
func GetProviderByName(name string) (Provider, error) {
	switch name {
	case "lrclib", "lrc":
		return ProviderLRCLib, nil
	case "netease", "网易云", "163":
		return ProviderNetEase, nil
	default:
		return "", fmt.Errorf("unknown provider name: %s", name)
	}
}

// QueryFor 由歌曲信息构造查询参数
func QueryFor(title, artist, album string, duration float64) Query {
	d := 0
	if duration > 0 {
		d = int(math.Round(duration))
	}
	return Query{Title: title, Artist: artist, Album: album, Duration: d}
}
