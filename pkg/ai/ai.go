package ai

import (
	"context"
	"fmt"
	"strings"
)

type AiInterface interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}

func formatTransliterate(line string) string {
	return fmt.Sprintf(`请把下面这一行歌词转写为拉丁字母（罗马音/拼音），只输出转写结果本身，不要任何解释或markdown格式。如果已经是拉丁字母，原样输出。歌词是：%s`, line)
}

// Transliterator 用大模型把一行歌词转写为拉丁字母
type Transliterator struct {
	client AiInterface
}

func NewTransliterator(client AiInterface) *Transliterator {
	return &Transliterator{client: client}
}

func (t *Transliterator) Name() string {
	return t.client.Name()
}

// Transliterate 返回单行结果，模型偶尔返回多行时只取第一行
func (t *Transliterator) Transliterate(ctx context.Context, line string) (string, error) {
	resp, err := t.client.HandleText(ctx, formatTransliterate(line))
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	if i := strings.IndexByte(resp, '\n'); i >= 0 {
		resp = strings.TrimSpace(resp[:i])
	}
	return resp, nil
}
