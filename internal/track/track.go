package track

import (
	"fmt"
	"strings"
)

// Info 当前歌曲的身份信息，Duration 为 0 表示时长未知
type Info struct {
	Title    string
	Artist   string
	Album    string
	Duration float64 // 秒
}

// IsValid 至少需要标题才能算作有效的歌曲
func (t Info) IsValid() bool {
	return strings.TrimSpace(t.Title) != ""
}

// HasDuration 时长是否已知
func (t Info) HasDuration() bool {
	return t.Duration > 0
}

// SameSong 只比较标题和艺术家
func (t Info) SameSong(other Info) bool {
	return t.Title == other.Title && t.Artist == other.Artist
}

// RoundedDuration 四舍五入后的整数秒，用于远程查询参数
func (t Info) RoundedDuration() int {
	if t.Duration <= 0 {
		return 0
	}
	return int(t.Duration + 0.5)
}

func (t Info) String() string {
	if t.Artist == "" {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// Changed reports whether next is a different effective identity than prev.
// A duration that becomes known for the first time counts as a change so the
// caller can recover a lookup that was waiting on it.
func Changed(prev, next Info) bool {
	if prev.Title != next.Title || prev.Artist != next.Artist {
		return true
	}
	return prev.Duration == 0 && next.Duration > 0
}

// CacheKey 归一化的缓存键：小写的 artist_title，连续空白折叠为下划线
func CacheKey(artist, title string) string {
	raw := strings.ToLower(artist + " " + title)
	return strings.Join(strings.Fields(raw), "_")
}
