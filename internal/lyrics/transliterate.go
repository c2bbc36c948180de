package lyrics

import (
	"context"
	"time"
	"unicode"
)

// Transliterator 把一行文本转写（或翻译）成另一种书写形式
type Transliterator interface {
	Name() string
	Transliterate(ctx context.Context, line string) (string, error)
}

// BatchOptions 控制逐行请求的节奏，避免触发远端限流
type BatchOptions struct {
	Size  int
	Pause time.Duration
}

func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Size: 10, Pause: 500 * time.Millisecond}
}

// SetTransliterator enables the optional transliteration pass.
func (p *Provider) SetTransliterator(t Transliterator, opts BatchOptions) {
	if opts.Size <= 0 {
		opts.Size = DefaultBatchOptions().Size
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	p.translit = t
	p.batchOpts = opts
}

// CanTransliterate 是否配置了转写后端
func (p *Provider) CanTransliterate() bool {
	return p.translit != nil
}

// NeedsTransliteration 任意一行包含非拉丁字母时返回 true
func NeedsTransliteration(lines []Line) bool {
	for _, l := range lines {
		if hasNonLatin(l.Text) {
			return true
		}
	}
	return false
}

func hasNonLatin(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

// Transliterate converts lines one by one in batches, pausing between
// batches. The result has one entry per input line; lines that are already
// Latin or that failed are "". As soon as token is superseded the pass stops
// and ErrStale is returned.
func (p *Provider) Transliterate(ctx context.Context, token Token, lines []Line) ([]string, error) {
	out := make([]string, len(lines))
	if p.translit == nil || !NeedsTransliteration(lines) {
		return out, nil
	}

	size := p.batchOpts.Size
	for start := 0; start < len(lines); start += size {
		if start > 0 && p.batchOpts.Pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.batchOpts.Pause):
			}
		}
		if !p.IsCurrent(token) {
			return nil, ErrStale
		}

		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		for i := start; i < end; i++ {
			if !hasNonLatin(lines[i].Text) {
				continue
			}
			res, err := p.translit.Transliterate(ctx, lines[i].Text)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn().Err(err).Int("line", i).Str("backend", p.translit.Name()).Msg("Transliteration failed")
				continue
			}
			out[i] = res
		}
	}

	if !p.IsCurrent(token) {
		return nil, ErrStale
	}
	return out, nil
}
