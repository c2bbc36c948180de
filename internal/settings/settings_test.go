package settings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "settings.toml"))

	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := Settings{Enabled: false, OffsetMs: -250}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("Load() = %#v, want %#v", got, want)
	}
}

type memHash struct {
	data map[string]map[string]string
	err  error
}

func (m *memHash) HSet(_ context.Context, key string, values ...interface{}) error {
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = make(map[string]map[string]string)
	}
	h := m.data[key]
	if h == nil {
		h = make(map[string]string)
		m.data[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	return nil
}

func (m *memHash) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data[key], nil
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := &memHash{}
	store := NewRedisStore(client, "")

	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save(ctx, Settings{Enabled: true, OffsetMs: 300}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if client.data[DefaultRedisKey]["offset_ms"] != "300" {
		t.Errorf("unexpected hash %v", client.data)
	}
	got, err := store.Load(ctx)
	if err != nil || got != (Settings{Enabled: true, OffsetMs: 300}) {
		t.Errorf("Load() = %#v, %v", got, err)
	}

	client.data[DefaultRedisKey]["offset_ms"] = "abc"
	if _, err := store.Load(ctx); err == nil {
		t.Error("expected error for malformed offset")
	}
}

func TestManagerDefaultsAndBroadcast(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "settings.toml"))
	m := NewManager(store)

	s, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != Default() || !s.Enabled || s.OffsetMs != 0 {
		t.Fatalf("expected defaults, got %#v", s)
	}

	var seen []Settings
	m.Changes().Subscribe(func(s Settings) { seen = append(seen, s) })

	m.SetOffset(ctx, 500)
	m.Toggle(ctx)
	m.SetEnabled(ctx, true)

	if len(seen) != 3 {
		t.Fatalf("expected 3 broadcasts, got %v", seen)
	}
	if seen[1].Enabled || seen[1].OffsetMs != 500 || !seen[2].Enabled {
		t.Errorf("unexpected broadcasts %v", seen)
	}
	if got := m.Current().OffsetSeconds(); got != 0.5 {
		t.Errorf("OffsetSeconds() = %v", got)
	}

	// 新的 Manager 从同一个文件读到持久化的值
	reloaded, err := NewManager(store).Load(ctx)
	if err != nil || reloaded != (Settings{Enabled: true, OffsetMs: 500}) {
		t.Errorf("reloaded = %#v, %v", reloaded, err)
	}
}

func TestManagerSaveFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewRedisStore(&memHash{err: errors.New("connection refused")}, ""))

	called := false
	m.Changes().Subscribe(func(Settings) { called = true })

	if _, err := m.SetOffset(ctx, 100); err == nil {
		t.Fatal("expected save error")
	}
	if called || m.Current().OffsetMs != 0 {
		t.Error("failed save must not change or broadcast settings")
	}
	if _, err := m.Load(ctx); err == nil {
		t.Error("expected load error")
	}
}

func TestConcurrentUpdatesBroadcastLastValue(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewRedisStore(&memHash{}, ""))

	var (
		mu   sync.Mutex
		last Settings
	)
	m.Changes().Subscribe(func(s Settings) {
		// 慢的订阅者让两次广播有机会交错
		if s.OffsetMs%2 == 1 {
			time.Sleep(time.Millisecond)
		}
		mu.Lock()
		last = s
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(ms int) {
			defer wg.Done()
			if _, err := m.SetOffset(ctx, ms); err != nil {
				t.Errorf("SetOffset(%d): %v", ms, err)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if last != m.Current() {
		t.Errorf("last broadcast %#v, current %#v", last, m.Current())
	}
}
