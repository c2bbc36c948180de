package musiccache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lyricsync/pkg/fileutil"
)

// FileBackend 每个条目保存为缓存目录下的一个 JSON 文件
type FileBackend[V any] struct {
	dir string
}

func NewFileBackend[V any](dir string) *FileBackend[V] {
	return &FileBackend[V]{dir: dir}
}

func (b *FileBackend[V]) path(key string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == os.PathSeparator || r == 0 {
			return '_'
		}
		return r
	}, key)
	return filepath.Join(b.dir, name+".json")
}

func (b *FileBackend[V]) Load(_ context.Context, key string) (V, bool, error) {
	var zero V
	data, err := os.ReadFile(b.path(key))
	if os.IsNotExist(err) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("read cached entry %s: %w", key, err)
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("decode cached entry %s: %w", key, err)
	}
	return v, true, nil
}

func (b *FileBackend[V]) Store(_ context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return fileutil.WriteFileAtomic(b.path(key), data, 0644)
}

func (b *FileBackend[V]) Delete(_ context.Context, key string) error {
	err := os.Remove(b.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
