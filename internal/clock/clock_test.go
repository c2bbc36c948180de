package clock

import (
	"context"
	"sync"
	"testing"
	"time"

	"lyricsync/internal/player"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestClock() (*Clock, *fakeNow) {
	fn := &fakeNow{t: time.Unix(100, 0)}
	c := New()
	c.now = fn.now
	return c, fn
}

func TestInterpolation(t *testing.T) {
	c, fn := newTestClock()
	c.SetDuration(200)
	c.Play(10)

	fn.advance(1500 * time.Millisecond)
	got, ok := c.Sample()
	if !ok || got != 11.5 {
		t.Fatalf("Sample() = %v, %v; want 11.5, true", got, ok)
	}
}

func TestSampleSuppressed(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		play     bool
		start    float64
		advance  time.Duration
	}{
		{"paused", 200, false, 10, time.Second},
		{"unknown duration", 0, true, 10, time.Second},
		{"past the end", 200, true, 199.5, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fn := newTestClock()
			c.SetDuration(tt.duration)
			if tt.play {
				c.Play(tt.start)
			} else {
				c.Pause(tt.start)
			}
			fn.advance(tt.advance)
			if v, ok := c.Sample(); ok {
				t.Errorf("expected no sample, got %v", v)
			}
		})
	}
}

func TestPauseFreezesAndSeekResets(t *testing.T) {
	c, fn := newTestClock()
	c.SetDuration(300)
	c.Play(0)
	fn.advance(5 * time.Second)

	c.Pause(5)
	fn.advance(10 * time.Second)
	if st := c.State(); !st.Paused || st.LastKnownTime != 5 {
		t.Fatalf("unexpected state after pause %#v", st)
	}
	if got := c.Current(); got != 5 {
		t.Errorf("Current() while paused = %v, want 5", got)
	}

	c.Seek(120)
	if st := c.State(); !st.Paused || st.LastKnownTime != 120 || !st.LastSample.Equal(fn.now()) {
		t.Fatalf("seek while paused should move reference only, got %#v", st)
	}

	c.Play(120)
	fn.advance(2 * time.Second)
	c.Seek(30)
	fn.advance(time.Second)
	if got, ok := c.Sample(); !ok || got != 31 {
		t.Errorf("Sample() after seek = %v, %v; want 31", got, ok)
	}
}

func TestTimeUpdateAlwaysForwarded(t *testing.T) {
	c, _ := newTestClock()

	var got []float64
	unsubscribe := c.Ticks().Subscribe(func(v float64) { got = append(got, v) })

	// 暂停且时长未知时依然转发
	c.TimeUpdate(3)
	c.TimeUpdate(3)
	if len(got) != 2 || got[0] != 3 {
		t.Fatalf("expected both updates forwarded, got %v", got)
	}

	unsubscribe()
	c.TimeUpdate(4)
	if len(got) != 2 {
		t.Errorf("unsubscribed handler still called: %v", got)
	}
}

func TestHandleEvents(t *testing.T) {
	c, fn := newTestClock()

	c.Handle(player.Event{Type: player.EventDurationChange, Duration: 100})
	c.Handle(player.Event{Type: player.EventPlay, Position: 20})
	fn.advance(time.Second)
	if got, ok := c.Sample(); !ok || got != 21 {
		t.Fatalf("after play Sample() = %v, %v", got, ok)
	}

	c.Handle(player.Event{Type: player.EventSeeking, Position: 50})
	if st := c.State(); st.LastKnownTime != 50 || st.Paused {
		t.Fatalf("after seek state = %#v", st)
	}

	c.Handle(player.Event{Type: player.EventPause, Position: 51})
	if _, ok := c.Sample(); ok {
		t.Error("paused clock should not sample")
	}
	if c.Duration() != 100 {
		t.Errorf("Duration() = %v", c.Duration())
	}
}

func TestRunEmitsOnlyWhilePlaying(t *testing.T) {
	c := New()
	c.SetDuration(1000)

	var mu sync.Mutex
	count := 0
	c.Ticks().Subscribe(func(float64) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	read := func() int {
		mu.Lock()
		defer mu.Unlock()
		return count
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if n := read(); n != 0 {
		t.Fatalf("paused clock emitted %d ticks", n)
	}

	c.Play(0)
	deadline := time.Now().Add(time.Second)
	for read() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if read() < 3 {
		t.Fatal("playing clock did not emit ticks")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
