package player

import (
	"context"
	"sync"
	"time"

	"lyricsync/internal/event"
)

// DefaultAttachInterval 没有播放器时重试连接的间隔
const DefaultAttachInterval = time.Second

// Binder keeps at most one subscription to a Source. It retries attaching on
// a fixed interval and never gives up; a source that disappears is detached
// and picked up again when it comes back.
type Binder struct {
	src      Source
	interval time.Duration
	handler  func(Event)

	mu          sync.Mutex
	unsubscribe func()

	changes event.Emitter[bool]
}

func NewBinder(src Source, interval time.Duration, handler func(Event)) *Binder {
	if interval <= 0 {
		interval = DefaultAttachInterval
	}
	return &Binder{src: src, interval: interval, handler: handler}
}

// Changes 连接状态变化时通知，true 表示已连接
func (b *Binder) Changes() *event.Emitter[bool] {
	return &b.changes
}

func (b *Binder) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribe != nil
}

// Attach subscribes to the source unless already attached.
func (b *Binder) Attach() error {
	b.mu.Lock()
	if b.unsubscribe != nil {
		b.mu.Unlock()
		return nil
	}
	if !b.src.Available() {
		b.mu.Unlock()
		return ErrUnavailable
	}
	unsubscribe, err := b.src.Subscribe(b.handler)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.unsubscribe = unsubscribe
	b.mu.Unlock()

	logger.Info().Str("source", b.src.Name()).Msg("Player attached")
	b.changes.Emit(true)
	return nil
}

// Detach is a no-op when not attached.
func (b *Binder) Detach() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()

	if unsubscribe == nil {
		return
	}
	unsubscribe()
	logger.Info().Str("source", b.src.Name()).Msg("Player detached")
	b.changes.Emit(false)
}

// Check 执行一次连接检查
func (b *Binder) Check() {
	if b.Attached() {
		if !b.src.Available() {
			b.Detach()
		}
		return
	}
	if err := b.Attach(); err != nil && err != ErrUnavailable {
		logger.Debug().Err(err).Msg("Attach failed, will retry")
	}
}

// Run checks the source every interval until ctx is cancelled, then detaches.
func (b *Binder) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	defer b.Detach()

	b.Check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Check()
		}
	}
}
