package player

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lyricsync/internal/track"
)

// scriptedRunner 根据命令返回预设输出
type scriptedRunner struct {
	mu       sync.Mutex
	status   string
	meta     string
	artist   string
	length   string
	position string
	fail     bool
	calls    []string
}

func (r *scriptedRunner) run(_ context.Context, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, strings.Join(args, " "))
	if r.fail {
		return "", errors.New("No players found")
	}
	switch args[0] {
	case "--player":
		args = args[2:]
	}
	switch args[0] {
	case "status":
		return r.status, nil
	case "position":
		return r.position, nil
	case "metadata":
		if args[1] == "mpris:length" {
			return r.length, nil
		}
		if strings.Contains(args[2], "{{artist}}") {
			title, _, _ := strings.Cut(r.meta, "\t")
			return title + "\t" + r.artist, nil
		}
		return r.meta, nil
	}
	return "", errors.New("unexpected command")
}

func (r *scriptedRunner) set(fn func(r *scriptedRunner)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) take() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func types(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func equalTypes(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlayerctlMetadata(t *testing.T) {
	r := &scriptedRunner{status: "Playing", meta: "Song\tBand\tLP", artist: "Band • LP • 2020", length: "215000000"}
	p := newPlayerctl(r.run, "spotify", time.Second)

	info, err := p.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if info.Title != "Song" || info.Artist != "Band" || info.Album != "LP" {
		t.Errorf("unexpected metadata %#v", info)
	}

	title, byline, err := p.Byline()
	if err != nil || title != "Song" || byline != "Band • LP • 2020" {
		t.Errorf("unexpected byline %q %q %v", title, byline, err)
	}

	if d := p.Duration(); d != 215 {
		t.Errorf("Duration = %v, want 215", d)
	}
	if !strings.HasPrefix(r.calls[0], "--player spotify") {
		t.Errorf("player flag not passed: %v", r.calls[0])
	}
}

func TestPlayerctlPollEvents(t *testing.T) {
	r := &scriptedRunner{status: "Playing", meta: "Song\tBand\tLP", length: "200000000", position: "10.0"}
	p := newPlayerctl(r.run, "", time.Second)
	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	rec := &recorder{}
	p.subs.Subscribe(rec.handle)

	if err := p.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	want := []EventType{EventMetadata, EventDurationChange, EventPlay, EventTimeUpdate}
	if got := types(rec.take()); !equalTypes(got, want) {
		t.Fatalf("first poll = %v, want %v", got, want)
	}

	// 正常播放一秒，只有 timeupdate
	now = now.Add(time.Second)
	r.set(func(r *scriptedRunner) { r.position = "11.0" })
	p.Poll()
	if got := types(rec.take()); !equalTypes(got, []EventType{EventTimeUpdate}) {
		t.Fatalf("steady poll = %v", got)
	}

	// 向后跳转
	now = now.Add(time.Second)
	r.set(func(r *scriptedRunner) { r.position = "90.0" })
	p.Poll()
	got := rec.take()
	if !equalTypes(types(got), []EventType{EventSeeking, EventTimeUpdate}) || got[0].Position != 90 {
		t.Fatalf("seek poll = %v", got)
	}

	r.set(func(r *scriptedRunner) { r.status = "Paused" })
	p.Poll()
	got = rec.take()
	if !equalTypes(types(got), []EventType{EventPause}) || got[0].Position != 90 {
		t.Fatalf("pause poll = %v", got)
	}

	// 暂停时不产生事件
	now = now.Add(5 * time.Second)
	p.Poll()
	if got := rec.take(); len(got) != 0 {
		t.Fatalf("paused poll should be quiet, got %v", got)
	}
}

func TestPlayerctlUnavailable(t *testing.T) {
	r := &scriptedRunner{fail: true}
	p := newPlayerctl(r.run, "", time.Second)

	if p.Available() {
		t.Error("expected unavailable")
	}
	if _, err := p.Subscribe(func(Event) {}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if err := p.Poll(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable from Poll, got %v", err)
	}
}

type fakeSource struct {
	mu           sync.Mutex
	available    bool
	subscribed   int
	unsubscribed int
	subscribeErr error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeSource) setAvailable(v bool) {
	f.mu.Lock()
	f.available = v
	f.mu.Unlock()
}

func (f *fakeSource) Subscribe(func(Event)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscribed++
	return func() {
		f.mu.Lock()
		f.unsubscribed++
		f.mu.Unlock()
	}, nil
}

func (f *fakeSource) Metadata() (track.Info, error) { return track.Info{}, nil }

func (f *fakeSource) Byline() (string, string, error) { return "", "", nil }

func (f *fakeSource) Duration() float64 { return 0 }

func (f *fakeSource) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed, f.unsubscribed
}

func TestBinderAttachIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	b := NewBinder(src, time.Second, func(Event) {})

	var states []bool
	b.Changes().Subscribe(func(v bool) { states = append(states, v) })

	if err := b.Attach(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	src.setAvailable(true)
	for i := 0; i < 3; i++ {
		b.Check()
	}
	if sub, _ := src.counts(); sub != 1 {
		t.Fatalf("expected one subscription, got %d", sub)
	}

	// 播放器消失后重新出现
	src.setAvailable(false)
	b.Check()
	b.Check()
	src.setAvailable(true)
	b.Check()
	b.Check()

	sub, unsub := src.counts()
	if sub != 2 || unsub != 1 {
		t.Errorf("expected 2 subscribes and 1 unsubscribe, got %d/%d", sub, unsub)
	}
	if want := []bool{true, false, true}; len(states) != 3 || states[0] != want[0] || states[1] != want[1] || states[2] != want[2] {
		t.Errorf("attach states = %v, want %v", states, want)
	}

	b.Detach()
	b.Detach()
	if _, unsub := src.counts(); unsub != 2 {
		t.Errorf("double detach should unsubscribe once, got %d", unsub)
	}
}

func TestBinderRunDetachesOnCancel(t *testing.T) {
	src := &fakeSource{available: true}
	b := NewBinder(src, 5*time.Millisecond, func(Event) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for !b.Attached() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !b.Attached() {
		t.Fatal("binder never attached")
	}

	cancel()
	<-done
	if b.Attached() {
		t.Error("binder should detach on cancel")
	}
	if sub, unsub := src.counts(); sub != 1 || unsub != 1 {
		t.Errorf("unexpected subscription counts %d/%d", sub, unsub)
	}
}
