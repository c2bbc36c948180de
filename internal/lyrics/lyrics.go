package lyrics

import (
	"regexp"
	"strconv"
	"strings"
)

// Line 一行带时间戳的歌词
type Line struct {
	Time float64 // 秒
	Text string
}

// Lyrics 一次获取的结果。Synced 为空时可能只有纯文本歌词
type Lyrics struct {
	Synced []Line
	Plain  string
}

// HasSynced 是否包含同步歌词
func (l *Lyrics) HasSynced() bool {
	return l != nil && len(l.Synced) > 0
}

// [MM:SS.ff] 或 [MM:SS.fff]
var tagRegexp = regexp.MustCompile(`\[(\d{2}):(\d{2})\.(\d{2,3})\]`)

// Parse converts LRC-style caption text into timed lines, preserving input
// order. Lines without a well-formed tag, or with no text after the tag, are
// skipped.
func Parse(text string) []Line {
	if text == "" {
		return nil
	}

	var result []Line
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		match := tagRegexp.FindStringSubmatchIndex(raw)
		if match == nil {
			continue
		}

		min, _ := strconv.Atoi(raw[match[2]:match[3]])
		sec, _ := strconv.Atoi(raw[match[4]:match[5]])
		fracStr := raw[match[6]:match[7]]
		frac, _ := strconv.Atoi(fracStr)

		divisor := 100.0
		if len(fracStr) == 3 {
			divisor = 1000.0
		}

		body := strings.TrimSpace(raw[:match[0]] + raw[match[1]:])
		if body == "" {
			continue
		}

		result = append(result, Line{
			Time: float64(min*60+sec) + float64(frac)/divisor,
			Text: body,
		})
	}

	return result
}

// PlainLines 把纯文本歌词拆成非空行
func PlainLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
