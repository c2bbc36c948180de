package settings

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"lyricsync/pkg/fileutil"
)

// FileStore 以 TOML 文件保存设置
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(_ context.Context) (Settings, error) {
	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return Settings{}, ErrNotFound
	}

	s := Default()
	if _, err := toml.DecodeFile(f.path, &s); err != nil {
		return Settings{}, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return s, nil
}

func (f *FileStore) Save(_ context.Context, s Settings) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return fileutil.WriteFileAtomic(f.path, buf.Bytes(), 0644)
}
