package music

import (
	"context"
)

// Query 一次歌词查询的参数
type Query struct {
	Title    string
	Artist   string
	Album    string
	Duration int // 四舍五入后的秒数，0 表示未知
}

// Payload 远程返回的原始歌词数据，也是缓存中保存的值
type Payload struct {
	Provider     string  `json:"provider"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// HasLyrics 是否有任何歌词内容
func (p *Payload) HasLyrics() bool {
	return p != nil && (p.SyncedLyrics != "" || p.PlainLyrics != "")
}

// MusicAPI 音乐API通用接口
type MusicAPI interface {
	// Lookup 查询歌词。找不到时返回 (nil, nil)，其他失败返回 error
	Lookup(ctx context.Context, q Query) (*Payload, error)

	// GetProviderName 获取音乐提供商名称
	GetProviderName() string
}
