// Package settings persists the user-facing toggles and broadcasts changes.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/event"
)

// ErrNotFound 存储中还没有保存过设置
var ErrNotFound = errors.New("settings not found")

var logger = log.With().Str("component", "settings").Logger()

// Settings 用户设置
type Settings struct {
	Enabled  bool `toml:"enabled"`
	OffsetMs int  `toml:"offset_ms"`
}

func Default() Settings {
	return Settings{Enabled: true}
}

// OffsetSeconds 偏移量换算成秒
func (s Settings) OffsetSeconds() float64 {
	return float64(s.OffsetMs) / 1000
}

// Store is a key-value persistence backend for Settings.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Manager holds the live settings, persists every change and broadcasts it.
type Manager struct {
	store Store

	// updateMu 覆盖保存和广播，最后一次广播总是等于 current
	updateMu sync.Mutex

	mu      sync.Mutex
	current Settings

	changes event.Emitter[Settings]
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, current: Default()}
}

// Load reads the stored settings. Missing settings keep the defaults.
func (m *Manager) Load(ctx context.Context) (Settings, error) {
	s, err := m.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		logger.Info().Msg("No stored settings, using defaults")
		s = Default()
	} else if err != nil {
		return m.Current(), fmt.Errorf("load settings: %w", err)
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

func (m *Manager) Current() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Changes 设置更新后通知
func (m *Manager) Changes() *event.Emitter[Settings] {
	return &m.changes
}

// Update applies fn to a copy of the current settings, saves the result and
// broadcasts it. Nothing changes if saving fails. Updates are serialized
// through the broadcast, so subscribers must not call Update.
func (m *Manager) Update(ctx context.Context, fn func(*Settings)) (Settings, error) {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	m.mu.Lock()
	next := m.current
	fn(&next)
	if err := m.store.Save(ctx, next); err != nil {
		m.mu.Unlock()
		return m.Current(), fmt.Errorf("save settings: %w", err)
	}
	m.current = next
	m.mu.Unlock()

	logger.Info().Bool("enabled", next.Enabled).Int("offset_ms", next.OffsetMs).Msg("Settings updated")
	m.changes.Emit(next)
	return next, nil
}

func (m *Manager) SetEnabled(ctx context.Context, enabled bool) (Settings, error) {
	return m.Update(ctx, func(s *Settings) { s.Enabled = enabled })
}

func (m *Manager) Toggle(ctx context.Context) (Settings, error) {
	return m.Update(ctx, func(s *Settings) { s.Enabled = !s.Enabled })
}

func (m *Manager) SetOffset(ctx context.Context, ms int) (Settings, error) {
	return m.Update(ctx, func(s *Settings) { s.OffsetMs = ms })
}
