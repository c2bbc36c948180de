package lyrics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lyricsync/internal/track"
	"lyricsync/pkg/music"
	"lyricsync/pkg/musiccache"
)

// fakeLookup 按歌名返回预设的结果，可以用 gate 阻塞某首歌的请求
type fakeLookup struct {
	mu       sync.Mutex
	payloads map[string]*music.Payload
	errs     map[string]error
	gates    map[string]chan struct{}
	calls    []music.Query
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		payloads: make(map[string]*music.Payload),
		errs:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
}

func (f *fakeLookup) Lookup(ctx context.Context, q music.Query) (*music.Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	gate := f.gates[q.Title]
	payload, err := f.payloads[q.Title], f.errs[q.Title]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if payload == nil {
		return nil, err
	}
	copied := *payload
	return &copied, err
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestProvider(t *testing.T, lookup Lookup, capacity int) *Provider {
	t.Helper()
	cache, err := musiccache.New[music.Payload](capacity, nil)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	p, err := NewProvider(lookup, cache)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestGetLyricsCachesSynced(t *testing.T) {
	lookup := newFakeLookup()
	lookup.payloads["Song"] = &music.Payload{SyncedLyrics: "[00:01.00]one\n[00:02.00]two", PlainLyrics: "one\ntwo"}
	p := newTestProvider(t, lookup, 10)
	info := track.Info{Title: "Song", Artist: "Band", Album: "LP", Duration: 180.4}

	for i := 0; i < 2; i++ {
		l, err := p.GetLyrics(context.Background(), p.Begin(), info)
		if err != nil {
			t.Fatalf("GetLyrics #%d: %v", i, err)
		}
		if len(l.Synced) != 2 || l.Synced[1].Text != "two" || l.Plain != "one\ntwo" {
			t.Fatalf("unexpected lyrics %#v", l)
		}
	}

	if lookup.callCount() != 1 {
		t.Errorf("expected a single remote lookup, got %d", lookup.callCount())
	}
	q := lookup.calls[0]
	if q.Album != "LP" || q.Duration != 180 || q.Artist != "Band" {
		t.Errorf("unexpected query %#v", q)
	}
	if !p.Cache().Contains("band_song") {
		t.Errorf("expected cache key band_song, have %v", p.Cache().Keys())
	}
}

func TestGetLyricsPlainOnlyNotCached(t *testing.T) {
	lookup := newFakeLookup()
	lookup.payloads["Plain"] = &music.Payload{PlainLyrics: "just words"}
	p := newTestProvider(t, lookup, 10)
	info := track.Info{Title: "Plain", Artist: "Band", Duration: 100}

	l, err := p.GetLyrics(context.Background(), p.Begin(), info)
	if err != nil {
		t.Fatalf("GetLyrics: %v", err)
	}
	if l == nil || l.HasSynced() || l.Plain != "just words" {
		t.Fatalf("unexpected lyrics %#v", l)
	}
	if p.Cache().Len() != 0 {
		t.Error("plain-only payloads must not be cached")
	}
}

func TestGetLyricsNotFound(t *testing.T) {
	p := newTestProvider(t, newFakeLookup(), 10)

	l, err := p.GetLyrics(context.Background(), p.Begin(), track.Info{Title: "Nope", Artist: "Nobody", Duration: 10})
	if err != nil {
		t.Fatalf("not found should not be an error: %v", err)
	}
	if l != nil {
		t.Errorf("expected nil lyrics, got %#v", l)
	}
}

func TestGetLyricsFailure(t *testing.T) {
	lookup := newFakeLookup()
	boom := errors.New("status 500")
	lookup.errs["Broken"] = boom
	p := newTestProvider(t, lookup, 10)

	_, err := p.GetLyrics(context.Background(), p.Begin(), track.Info{Title: "Broken", Artist: "Band", Duration: 10})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	if lookup.callCount() != 1 {
		t.Errorf("failures must not be retried, got %d calls", lookup.callCount())
	}
}

func TestGetLyricsRejectsEmptyIdentity(t *testing.T) {
	p := newTestProvider(t, newFakeLookup(), 10)
	if _, err := p.GetLyrics(context.Background(), p.Begin(), track.Info{Title: "Only title"}); err == nil {
		t.Error("expected error for missing artist")
	}
}

func TestSupersession(t *testing.T) {
	lookup := newFakeLookup()
	lookup.payloads["A"] = &music.Payload{SyncedLyrics: "[00:01.00]from A"}
	lookup.payloads["B"] = &music.Payload{SyncedLyrics: "[00:01.00]from B"}
	gateA := make(chan struct{})
	lookup.gates["A"] = gateA
	p := newTestProvider(t, lookup, 10)

	type result struct {
		l   *Lyrics
		err error
	}
	resA := make(chan result, 1)

	tokenA := p.Begin()
	go func() {
		l, err := p.GetLyrics(context.Background(), tokenA, track.Info{Title: "A", Artist: "X", Duration: 10})
		resA <- result{l, err}
	}()

	tokenB := p.Begin()
	lB, err := p.GetLyrics(context.Background(), tokenB, track.Info{Title: "B", Artist: "X", Duration: 10})
	if err != nil || lB == nil || lB.Synced[0].Text != "from B" {
		t.Fatalf("B should resolve normally, got %#v %v", lB, err)
	}

	close(gateA)
	ra := <-resA
	if !errors.Is(ra.err, ErrStale) || ra.l != nil {
		t.Fatalf("A resolved after B must be stale, got %#v %v", ra.l, ra.err)
	}
	if p.IsCurrent(tokenA) || !p.IsCurrent(tokenB) {
		t.Error("only token B should be current")
	}
	// the payload fetched for A is still valid for A and may be served later
	if !p.Cache().Contains("x_a") {
		t.Error("stale payload should still be cached under its own key")
	}
}

func TestCacheHitStillHonoursToken(t *testing.T) {
	lookup := newFakeLookup()
	lookup.payloads["Song"] = &music.Payload{SyncedLyrics: "[00:01.00]x"}
	p := newTestProvider(t, lookup, 10)
	info := track.Info{Title: "Song", Artist: "Band", Duration: 10}

	if _, err := p.GetLyrics(context.Background(), p.Begin(), info); err != nil {
		t.Fatal(err)
	}

	old := p.Begin()
	p.Begin()
	if _, err := p.GetLyrics(context.Background(), old, info); !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale for superseded token on cache hit, got %v", err)
	}
}
