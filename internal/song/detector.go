// Package song turns noisy metadata updates from a player into discrete
// song-change events.
package song

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/event"
	"lyricsync/internal/player"
	"lyricsync/internal/track"
)

// DefaultSettleDelay 合并一次更新里的多次元数据变化
const DefaultSettleDelay = 200 * time.Millisecond

var logger = log.With().Str("component", "song-detector").Logger()

type Detector struct {
	strategies []Strategy
	duration   func() float64
	settle     time.Duration

	mu    sync.Mutex
	timer *time.Timer
	last  track.Info

	changes event.Emitter[track.Info]
}

func NewDetector(strategies []Strategy, duration func() float64, settle time.Duration) *Detector {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if duration == nil {
		duration = func() float64 { return 0 }
	}
	return &Detector{strategies: strategies, duration: duration, settle: settle}
}

// ForSource 使用播放器的元数据和时长
func ForSource(src player.Source, settle time.Duration) *Detector {
	return NewDetector(StrategiesFor(src), src.Duration, settle)
}

// Changes 有效身份变化时通知
func (d *Detector) Changes() *event.Emitter[track.Info] {
	return &d.changes
}

// Notify records a raw mutation. Evaluation happens once the mutations have
// been quiet for the settle delay.
func (d *Detector) Notify() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.settle, func() {
		d.Evaluate()
	})
}

// Handle 只关心元数据和时长变化
func (d *Detector) Handle(e player.Event) {
	switch e.Type {
	case player.EventMetadata, player.EventDurationChange:
		d.Notify()
	}
}

// Stop cancels a pending evaluation.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Reset forgets the last identity so the next evaluation reports the song
// again, used after re-attaching to a player.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = track.Info{}
}

func (d *Detector) Current() track.Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *Detector) resolve() (track.Info, string, bool) {
	for _, s := range d.strategies {
		if info, ok := s.Resolve(); ok {
			return info, s.Name(), true
		}
	}
	return track.Info{}, "", false
}

// Evaluate resolves the current identity and emits it when it differs from
// the previous one.
func (d *Detector) Evaluate() (track.Info, bool) {
	info, strategy, ok := d.resolve()
	if !ok {
		return track.Info{}, false
	}
	info.Duration = d.duration()

	d.mu.Lock()
	if !track.Changed(d.last, info) {
		d.mu.Unlock()
		return info, false
	}
	d.last = info
	d.mu.Unlock()

	logger.Info().
		Str("title", info.Title).
		Str("artist", info.Artist).
		Str("album", info.Album).
		Float64("duration", info.Duration).
		Str("strategy", strategy).
		Msg("Song changed")
	d.changes.Emit(info)
	return info, true
}
