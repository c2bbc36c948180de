package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://lrclib.net/api"
	userAgent      = "lyricsync/1.0 (https://github.com/bighu630/lyrics)"
)

var logger = log.With().Str("component", "lrclib").Logger()

// Client LRCLib客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Query 查询参数，Album 和 Duration 可以为空
type Query struct {
	Title    string
	Artist   string
	Album    string
	Duration int // 秒，0 表示不传
}

// Response LRCLib API响应结构
type Response struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// StatusError 非 2xx 且非 404 的响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("lrclib returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("lrclib returned status %d: %s", e.StatusCode, e.Body)
}

// NewClient 创建新的LRCLib客户端，baseURL 为空时使用官方地址
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
	}
}

// Get looks up a single track by its exact signature. A 404 is reported as
// (nil, nil): the track is simply unknown to LRCLib.
func (c *Client) Get(ctx context.Context, q Query) (*Response, error) {
	if q.Title == "" || q.Artist == "" {
		return nil, fmt.Errorf("track title or artist is empty")
	}

	params := url.Values{}
	params.Set("track_name", q.Title)
	params.Set("artist_name", q.Artist)
	if q.Duration > 0 {
		params.Set("duration", strconv.Itoa(q.Duration))
	}
	if q.Album != "" {
		params.Set("album_name", q.Album)
	}

	var payload Response
	found, err := c.getJSON(ctx, "/get?"+params.Encode(), &payload)
	if err != nil || !found {
		return nil, err
	}

	logger.Info().
		Str("track", payload.TrackName).
		Str("artist", payload.ArtistName).
		Bool("synced", payload.SyncedLyrics != "").
		Msg("Found lyrics")
	return &payload, nil
}

// Search 模糊搜索，然后按标题、艺术家和时长挑选最佳结果。没有结果时返回 nil
func (c *Client) Search(ctx context.Context, q Query) (*Response, error) {
	params := url.Values{}
	params.Set("track_name", q.Title)
	params.Set("artist_name", q.Artist)

	var results []Response
	found, err := c.getJSON(ctx, "/search?"+params.Encode(), &results)
	if err != nil || !found {
		return nil, err
	}

	logger.Info().Int("results", len(results)).Str("title", q.Title).Str("artist", q.Artist).Msg("Search finished")
	if len(results) == 0 {
		return nil, nil
	}
	return findBestMatch(results, q.Title, q.Artist, q.Duration), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	logger.Debug().Str("url", req.URL.String()).Msg("Requesting")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("lrclib request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode lrclib response: %w", err)
	}
	return true, nil
}

// findBestMatch 从搜索结果中找到最佳匹配的歌词
func findBestMatch(responses []Response, targetTitle, targetArtist string, targetDuration int) *Response {
	var exactMatches []*Response
	var titleMatches []*Response

	for i := range responses {
		r := &responses[i]
		if containsIgnoreCase(r.TrackName, targetTitle) && containsIgnoreCase(r.ArtistName, targetArtist) {
			exactMatches = append(exactMatches, r)
		} else if containsIgnoreCase(r.TrackName, targetTitle) {
			titleMatches = append(titleMatches, r)
		}
	}

	// 精确匹配优先，其次只匹配标题，最后是全部结果
	matchPool := exactMatches
	if len(matchPool) == 0 {
		matchPool = titleMatches
	}
	if len(matchPool) == 0 {
		for i := range responses {
			matchPool = append(matchPool, &responses[i])
		}
	}

	if targetDuration <= 0 {
		return matchPool[0]
	}

	const maxDurationDiff = 3.0
	best := matchPool[0]
	minDiff := abs(best.Duration - float64(targetDuration))
	for _, m := range matchPool {
		diff := abs(m.Duration - float64(targetDuration))
		if diff <= maxDurationDiff {
			return m
		}
		if diff < minDiff {
			minDiff = diff
			best = m
		}
	}

	logger.Debug().Float64("diff_secs", minDiff).Msg("Using closest duration match")
	return best
}

func abs(n float64) float64 {
	if n < 0 {
		return -n
	}
	return n
}

// containsIgnoreCase 忽略大小写检查包含关系
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
