package musiccache

import (
	"context"
	"reflect"
	"testing"
)

// memBackend 内存版后端，用于测试回填和淘汰同步
type memBackend struct {
	data    map[string]string
	deleted []string
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string)}
}

func (m *memBackend) Load(_ context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) Store(_ context.Context, key string, value string) error {
	m.data[key] = value
	return nil
}

func (m *memBackend) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, err := New[string](3, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, k := range []string{"a", "b", "c", "d"} {
		c.Put(ctx, k, k)
	}

	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}
	if c.Contains("a") {
		t.Error("expected oldest key 'a' to be evicted")
	}
	for _, k := range []string{"b", "c", "d"} {
		if !c.Contains(k) {
			t.Errorf("expected %q to remain", k)
		}
	}
}

func TestAccessProtectsFromEviction(t *testing.T) {
	ctx := context.Background()
	c, _ := New[string](3, nil)

	c.Put(ctx, "a", "1")
	c.Put(ctx, "b", "2")
	c.Put(ctx, "c", "3")

	if v, ok := c.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("expected hit for 'a', got %q %v", v, ok)
	}

	c.Put(ctx, "d", "4")

	if !c.Contains("a") {
		t.Error("recently read key 'a' should survive eviction")
	}
	if c.Contains("b") {
		t.Error("expected 'b' to be evicted as least recently used")
	}
	if got, want := c.Keys(), []string{"c", "a", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("recency order = %v, want %v", got, want)
	}
}

func TestReinsertMovesToFront(t *testing.T) {
	ctx := context.Background()
	c, _ := New[string](2, nil)

	c.Put(ctx, "a", "1")
	c.Put(ctx, "b", "2")
	c.Put(ctx, "a", "1b")
	c.Put(ctx, "c", "3")

	if !c.Contains("a") || c.Contains("b") {
		t.Errorf("expected a to survive and b to be evicted, keys=%v", c.Keys())
	}
}

func TestDefaultCapacity(t *testing.T) {
	ctx := context.Background()
	c, _ := New[int](0, nil)
	for i := 0; i < DefaultCapacity+1; i++ {
		c.Put(ctx, string(rune('A'+i%26))+string(rune('a'+i/26)), i)
	}
	if c.Len() != DefaultCapacity {
		t.Errorf("expected %d entries, got %d", DefaultCapacity, c.Len())
	}
}

func TestBackendHydrateAndEvict(t *testing.T) {
	ctx := context.Background()
	backend := newMemBackend()
	backend.data["warm"] = "from-backend"

	c, _ := New[string](2, backend)

	if v, ok := c.Get(ctx, "warm"); !ok || v != "from-backend" {
		t.Fatalf("expected backend hydrate, got %q %v", v, ok)
	}
	if !c.Contains("warm") {
		t.Fatal("hydrated entry should be promoted into memory")
	}

	c.Put(ctx, "x", "1")
	c.Put(ctx, "y", "2")

	if c.Contains("warm") {
		t.Error("expected 'warm' to be evicted")
	}
	if _, ok := backend.data["warm"]; ok {
		t.Error("evicted key should be removed from backend")
	}
	if backend.data["y"] != "2" {
		t.Error("Put should write through to backend")
	}
}

func TestFileBackendPersistsAcrossCaches(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, _ := New[string](2, NewFileBackend[string](dir))
	first.Put(ctx, "ac/dc_thunderstruck", "lrc")

	second, _ := New[string](2, NewFileBackend[string](dir))
	if v, ok := second.Get(ctx, "ac/dc_thunderstruck"); !ok || v != "lrc" {
		t.Fatalf("expected entry from disk, got %q %v", v, ok)
	}

	second.Put(ctx, "b", "2")
	second.Put(ctx, "c", "3")
	if _, ok, _ := NewFileBackend[string](dir).Load(ctx, "ac/dc_thunderstruck"); ok {
		t.Error("evicted entry should be deleted from disk")
	}
}
