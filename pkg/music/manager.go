package music

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Provider 音乐提供商类型
type Provider string

const (
	// ProviderLRCLib LRCLib歌词库
	ProviderLRCLib Provider = "lrclib"
	// ProviderNetEase 网易云音乐
	ProviderNetEase Provider = "netease"
)

var logger = log.With().Str("component", "music-manager").Logger()

// Manager 音乐API管理器，按顺序尝试各个提供商
type Manager struct {
	providers []MusicAPI
	primary   MusicAPI
}

var _ MusicAPI = (*Manager)(nil)

// NewManager 创建新的音乐API管理器
func NewManager(providers []MusicAPI) *Manager {
	if len(providers) == 0 {
		logger.Warn().Msg("No music providers configured")
		return &Manager{}
	}

	primary := providers[0]
	logger.Info().
		Int("provider_count", len(providers)).
		Str("primary_provider", primary.GetProviderName()).
		Msg("Music API Manager initialized")

	return &Manager{
		providers: providers,
		primary:   primary,
	}
}

// Lookup asks each provider in order and returns the first payload that has
// lyrics. If nobody has the song it returns (nil, nil); if nobody has it and at
// least one provider failed, the last failure is returned.
func (m *Manager) Lookup(ctx context.Context, q Query) (*Payload, error) {
	if len(m.providers) == 0 {
		return nil, fmt.Errorf("no music providers available")
	}

	var lastErr error
	for i, provider := range m.providers {
		logger.Info().
			Str("title", q.Title).
			Str("artist", q.Artist).
			Int("duration", q.Duration).
			Str("provider", provider.GetProviderName()).
			Int("attempt", i+1).
			Int("total_providers", len(m.providers)).
			Msg("Trying to get lyrics")

		payload, err := provider.Lookup(ctx, q)
		if err != nil {
			logger.Warn().
				Str("provider", provider.GetProviderName()).
				Err(err).
				Msg("Provider failed")
			lastErr = err
			continue
		}
		if !payload.HasLyrics() {
			logger.Info().Str("provider", provider.GetProviderName()).Msg("Provider has no lyrics")
			continue
		}

		if payload.Provider == "" {
			payload.Provider = provider.GetProviderName()
		}
		logger.Info().
			Str("provider", payload.Provider).
			Bool("synced", payload.SyncedLyrics != "").
			Msg("Successfully got lyrics")
		return payload, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all providers failed to get lyrics for '%s - %s', last error: %w", q.Title, q.Artist, lastErr)
	}
	return nil, nil
}

// GetProviderName 获取管理器名称（实现MusicAPI接口）
func (m *Manager) GetProviderName() string {
	if m.primary != nil {
		return fmt.Sprintf("Manager[Primary: %s]", m.primary.GetProviderName())
	}
	return "Manager[No Providers]"
}

// GetProviderNames 获取所有提供商名称
func (m *Manager) GetProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, provider := range m.providers {
		names[i] = provider.GetProviderName()
	}
	return names
}
