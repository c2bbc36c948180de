// Package clock interpolates the playback position between the sparse
// updates a media player reports.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/event"
	"lyricsync/internal/player"
)

// DefaultFrameInterval 大约一次屏幕刷新
const DefaultFrameInterval = 16 * time.Millisecond

var logger = log.With().Str("component", "clock").Logger()

// State 最近一次的参考点
type State struct {
	LastKnownTime float64
	LastSample    time.Time
	Paused        bool
}

// Clock starts paused with an unknown duration.
type Clock struct {
	now func() time.Time

	mu       sync.Mutex
	state    State
	duration float64
	wake     chan struct{}

	ticks event.Emitter[float64]
}

func New() *Clock {
	return &Clock{
		now:   time.Now,
		state: State{Paused: true},
		wake:  make(chan struct{}, 1),
	}
}

// Ticks 每个时间值（插值或播放器上报）都会发到这里
func (c *Clock) Ticks() *event.Emitter[float64] {
	return &c.ticks
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Clock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

func (c *Clock) reset(pos float64) {
	c.state.LastKnownTime = pos
	c.state.LastSample = c.now()
}

func (c *Clock) Play(pos float64) {
	c.mu.Lock()
	c.reset(pos)
	c.state.Paused = false
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Clock) Pause(pos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset(pos)
	c.state.Paused = true
}

// Seek moves the reference point whether or not the clock is playing.
func (c *Clock) Seek(pos float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset(pos)
}

// TimeUpdate resynchronizes to an authoritative position and always forwards
// it to subscribers.
func (c *Clock) TimeUpdate(pos float64) {
	c.mu.Lock()
	c.reset(pos)
	c.mu.Unlock()

	c.ticks.Emit(pos)
}

func (c *Clock) SetDuration(d float64) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duration = d
}

// Sample returns the interpolated position. No sample is produced while
// paused, while the duration is unknown, or when the interpolated value
// would pass the end of the media.
func (c *Clock) Sample() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Paused || c.duration <= 0 {
		return 0, false
	}
	t := c.state.LastKnownTime + c.now().Sub(c.state.LastSample).Seconds()
	if t > c.duration {
		return 0, false
	}
	return t, true
}

// Current 当前位置的最佳估计，用于加载歌词后立刻同步
func (c *Clock) Current() float64 {
	if t, ok := c.Sample(); ok {
		return t
	}
	return c.State().LastKnownTime
}

func (c *Clock) paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Paused
}

// Handle 把播放器事件映射到时钟操作
func (c *Clock) Handle(e player.Event) {
	switch e.Type {
	case player.EventPlay:
		c.Play(e.Position)
	case player.EventPause:
		c.Pause(e.Position)
	case player.EventSeeking:
		c.Seek(e.Position)
	case player.EventTimeUpdate:
		c.TimeUpdate(e.Position)
	case player.EventDurationChange:
		c.SetDuration(e.Duration)
	}
}

// Run emits an interpolated sample every interval while playing. While paused
// it blocks until Play wakes it. It returns when ctx is cancelled.
func (c *Clock) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	logger.Debug().Dur("interval", interval).Msg("Frame loop started")
	defer logger.Debug().Msg("Frame loop stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.paused() {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
			}
			ticker.Reset(interval)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t, ok := c.Sample(); ok {
				c.ticks.Emit(t)
			}
		}
	}
}
