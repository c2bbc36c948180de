// Package player adapts desktop media players into a stream of media events
// and a metadata source.
package player

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/track"
)

// ErrUnavailable 当前没有可以连接的播放器
var ErrUnavailable = errors.New("no media player available")

var logger = log.With().Str("component", "player").Logger()

// EventType 与 HTML media element 的事件一一对应
type EventType int

const (
	EventTimeUpdate EventType = iota
	EventPlay
	EventPause
	EventSeeking
	EventDurationChange
	EventMetadata
)

func (t EventType) String() string {
	switch t {
	case EventTimeUpdate:
		return "timeupdate"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventSeeking:
		return "seeking"
	case EventDurationChange:
		return "durationchange"
	case EventMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// Event 播放器事件，Position 和 Duration 单位为秒
type Event struct {
	Type     EventType
	Position float64
	Duration float64
}

// Source is a media player the daemon can attach to. Subscribe delivers media
// events until the returned function is called; Metadata and Byline are read
// on demand by the song detector.
type Source interface {
	Name() string
	Available() bool
	Subscribe(fn func(Event)) (unsubscribe func(), err error)
	// Metadata 结构化的元数据，不含时长
	Metadata() (track.Info, error)
	// Byline 标题和播放器给出的原始艺术家文本，例如 "artist • album • year"
	Byline() (title, byline string, err error)
	// Duration 秒，未知时为 0
	Duration() float64
}

const (
	microsPerSecond = 1_000_000
	// 播放位置与预期的偏差超过该值视为跳转
	seekThreshold = 1.5
)

func microsToSeconds(us int64) float64 {
	if us <= 0 {
		return 0
	}
	return float64(us) / microsPerSecond
}

func joinArtists(artists []string) string {
	var out []string
	for _, a := range artists {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return strings.Join(out, ", ")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
