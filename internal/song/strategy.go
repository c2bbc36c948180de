package song

import (
	"strings"

	"lyricsync/internal/player"
	"lyricsync/internal/track"
)

// BylineSeparator 把 "artist • album • year" 分开
const BylineSeparator = "•"

// Strategy resolves the current song from one kind of metadata. Resolve
// returns false when it cannot produce at least a title.
type Strategy interface {
	Name() string
	Resolve() (track.Info, bool)
}

// StructuredStrategy reads discrete title/artist/album fields. It declines
// when the artist field is missing or is really a combined byline, leaving
// those to BylineStrategy.
type StructuredStrategy struct {
	Metadata func() (track.Info, error)
}

func (s StructuredStrategy) Name() string { return "structured" }

func (s StructuredStrategy) Resolve() (track.Info, bool) {
	info, err := s.Metadata()
	if err != nil {
		return track.Info{}, false
	}
	info.Title = strings.TrimSpace(info.Title)
	info.Artist = strings.TrimSpace(info.Artist)
	info.Album = strings.TrimSpace(info.Album)
	if info.Title == "" || info.Artist == "" || strings.Contains(info.Artist, BylineSeparator) {
		return track.Info{}, false
	}
	return info, true
}

// BylineStrategy splits a free-form byline: first segment is the artist,
// second the album, the rest is ignored.
type BylineStrategy struct {
	Byline func() (title, byline string, err error)
}

func (s BylineStrategy) Name() string { return "byline" }

func (s BylineStrategy) Resolve() (track.Info, bool) {
	title, byline, err := s.Byline()
	if err != nil {
		return track.Info{}, false
	}
	info := track.Info{Title: strings.TrimSpace(title)}
	if info.Title == "" {
		return track.Info{}, false
	}

	parts := strings.Split(byline, BylineSeparator)
	info.Artist = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		info.Album = strings.TrimSpace(parts[1])
	}
	return info, true
}

// StrategiesFor 结构化元数据优先，其次是 byline
func StrategiesFor(src player.Source) []Strategy {
	return []Strategy{
		StructuredStrategy{Metadata: src.Metadata},
		BylineStrategy{Byline: src.Byline},
	}
}
