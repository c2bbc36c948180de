package netease

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://music.163.com"

var logger = log.With().Str("component", "netease").Logger()

// SearchResponse 网易云搜索API响应
type SearchResponse struct {
	Result struct {
		Songs []struct {
			ID       int    `json:"id"`
			Name     string `json:"name"`
			Duration int    `json:"duration"` // 毫秒
			Artists  []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

// LyricResponse 网易云歌词API响应
type LyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	Tlyric struct {
		Lyric string `json:"lyric"`
	} `json:"tlyric"`
}

// Client 网易云音乐客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookie     string
}

// NewClient 创建新的网易云音乐客户端，Cookie 从 NETEASE_COOKIE 读取
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookie:     os.Getenv("NETEASE_COOKIE"),
	}
}

// SearchSong 搜索歌曲，返回歌曲ID；找不到匹配时返回空字符串
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	params := url.Values{}
	params.Set("s", strings.TrimSpace(title+" "+artist))
	params.Set("type", "1")
	params.Set("limit", "30")

	var searchResp SearchResponse
	if err := c.getJSON(ctx, "/api/search/get/web?"+params.Encode(), &searchResp); err != nil {
		return "", err
	}

	songID := findBestMatch(searchResp, artist, title)
	if songID == 0 {
		return "", nil
	}
	return strconv.Itoa(songID), nil
}

// GetLyrics 获取 LRC 格式歌词
func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	params := url.Values{}
	params.Set("os", "pc")
	params.Set("id", songID)
	params.Set("lv", "-1")
	params.Set("kv", "-1")
	params.Set("tv", "-1")

	var lyricResp LyricResponse
	if err := c.getJSON(ctx, "/api/song/lyric?"+params.Encode(), &lyricResp); err != nil {
		return "", err
	}
	return lyricResp.Lrc.Lyric, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	logger.Debug().Str("url", req.URL.String()).Msg("Requesting")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("netease request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("netease API request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode netease response: %w", err)
	}
	return nil
}

// findBestMatch 找到最佳匹配的歌曲
func findBestMatch(resp SearchResponse, targetArtist, targetTitle string) int {
	songs := resp.Result.Songs
	for _, song := range songs {
		if !containsIgnoreCase(song.Name, targetTitle) {
			continue
		}

		// artists 可能有多个，只要一个满足就算
		for _, artist := range song.Artists {
			if containsIgnoreCase(artist.Name, targetArtist) {
				logger.Info().Str("song", song.Name).Int("id", song.ID).Msg("Found matching song")
				return song.ID
			}
		}
	}

	if len(songs) > 0 && containsIgnoreCase(songs[0].Name, targetTitle) {
		logger.Info().Str("song", songs[0].Name).Int("id", songs[0].ID).Msg("Using first title match")
		return songs[0].ID
	}

	return 0
}

// normalizeString 标准化字符串（转小写，去空格）
func normalizeString(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// containsIgnoreCase 忽略大小写和空格的包含关系检查
func containsIgnoreCase(s1, s2 string) bool {
	norm1, norm2 := normalizeString(s1), normalizeString(s2)
	if norm1 == "" || norm2 == "" {
		return false
	}
	return strings.Contains(norm1, norm2) || strings.Contains(norm2, norm1)
}
