package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/config"
	"lyricsync/internal/i3block"
	"lyricsync/internal/ipc"
	"lyricsync/internal/lyrics"
	"lyricsync/internal/player"
	"lyricsync/internal/settings"
	"lyricsync/pkg/ai"
	"lyricsync/pkg/ai/gemini"
	"lyricsync/pkg/ai/openai"
	"lyricsync/pkg/music"
	"lyricsync/pkg/musiccache"
	"lyricsync/pkg/redis"
	"lyricsync/pkg/tencent"
)

// App 守护进程：IPC 服务、状态栏和歌词会话
type App struct {
	cfg       *config.Config
	ipcServer *ipc.Server
	i3block   *i3block.Controller
	redis     *redis.Client
	session   *Session
	closers   []func() error
}

// New builds every component from cfg. Optional backends (Redis,
// transliteration, i3blocks) that fail to start are logged and skipped.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, using in-memory cache only")
		} else {
			a.redis = client
			a.closers = append(a.closers, client.Close)
		}
	}

	provider, err := NewProvider(cfg, a.redis)
	if err != nil {
		return nil, err
	}
	if cfg.Translit.Enabled {
		if t, closer, err := NewTransliterator(ctx, cfg); err != nil {
			log.Warn().Err(err).Msg("Transliteration disabled")
		} else {
			provider.SetTransliterator(t, lyrics.BatchOptions{Size: cfg.Translit.BatchSize, Pause: cfg.Translit.BatchPause})
			if closer != nil {
				a.closers = append(a.closers, closer)
			}
			log.Info().Str("backend", t.Name()).Msg("Transliteration enabled")
		}
	}

	manager := settings.NewManager(NewSettingsStore(cfg, a.redis))
	if _, err := manager.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to load settings, using defaults")
	}

	source, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}

	a.ipcServer = ipc.NewServer(cfg.App.SocketPath)
	overlay := ipc.NewOverlay(a.ipcServer)
	if cfg.App.OutputFile != "" {
		var refresher ipc.Refresher
		if cfg.App.I3Blocks {
			a.i3block = i3block.NewController(cfg.App.I3BlocksSignal)
			refresher = a.i3block
		}
		overlay.WithStatusFile(cfg.App.OutputFile, refresher)
	}

	a.session, err = NewSession(SessionOptions{
		Source:         source,
		Provider:       provider,
		Surface:        overlay,
		Settings:       manager,
		AttachInterval: cfg.App.AttachInterval,
		FrameInterval:  cfg.Sync.FrameInterval,
		SettleDelay:    cfg.Sync.SettleDelay,
		FetchTimeout:   3 * cfg.Lyrics.Timeout,
		LatencyBias:    cfg.Sync.LatencyBias,
	})
	if err != nil {
		return nil, err
	}
	a.ipcServer.SetHandler(a.session.HandleCommand)

	return a, nil
}

// NewProvider 按配置创建歌词来源和缓存
func NewProvider(cfg *config.Config, client *redis.Client) (*lyrics.Provider, error) {
	manager, err := music.CreateManager(cfg.Lyrics.Providers, music.Options{
		LRCLibURL:  cfg.Lyrics.LRCLibURL,
		NetEaseURL: cfg.Lyrics.NetEaseURL,
		Timeout:    cfg.Lyrics.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var backend musiccache.Backend[music.Payload]
	if client != nil {
		backend = musiccache.NewRedisBackend[music.Payload](client, "", 0)
	} else if cfg.App.CacheDir != "" {
		backend = musiccache.NewFileBackend[music.Payload](filepath.Join(cfg.App.CacheDir, "lyrics"))
	}
	cache, err := musiccache.New[music.Payload](cfg.Sync.CacheCapacity, backend)
	if err != nil {
		return nil, fmt.Errorf("create lyrics cache: %w", err)
	}

	log.Info().Strs("providers", manager.GetProviderNames()).Int("cache_capacity", cfg.Sync.CacheCapacity).Msg("Lyrics provider ready")
	return lyrics.NewProvider(manager, cache)
}

// NewTransliterator returns the configured backend and an optional closer.
func NewTransliterator(ctx context.Context, cfg *config.Config) (lyrics.Transliterator, func() error, error) {
	switch cfg.Translit.Provider {
	case "tencent":
		client, err := tencent.NewClient(cfg.Tencent.SecretID, cfg.Tencent.SecretKey, cfg.Tencent.Region, cfg.Tencent.Target)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case "ai", "":
		if cfg.AI.APIKey == "" {
			return nil, nil, fmt.Errorf("ai.api_key is not configured")
		}
		switch cfg.AI.ModuleName {
		case "gemini":
			g, err := gemini.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model)
			if err != nil {
				return nil, nil, err
			}
			return ai.NewTransliterator(g), g.Close, nil
		case "openai", "deepseek":
			return ai.NewTransliterator(openai.NewOpenAi(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)), nil, nil
		default:
			return nil, nil, fmt.Errorf("unknown ai module: %s", cfg.AI.ModuleName)
		}
	default:
		return nil, nil, fmt.Errorf("unknown transliteration provider: %s", cfg.Translit.Provider)
	}
}

// NewSettingsStore 没有 Redis 时总是使用文件
func NewSettingsStore(cfg *config.Config, client *redis.Client) settings.Store {
	if cfg.Settings.Backend == "redis" {
		if client != nil {
			return settings.NewRedisStore(client, "")
		}
		log.Warn().Msg("Settings backend is redis but redis is unavailable, using file store")
	}
	return settings.NewFileStore(cfg.Settings.Path)
}

// NewSource 优先使用 MPRIS，连接不上 session bus 时退回 playerctl
func NewSource(cfg *config.Config) (player.Source, error) {
	switch cfg.Player.Backend {
	case "playerctl":
		return player.NewPlayerctl(cfg.Player.Name, cfg.Player.PollInterval), nil
	case "mpris", "":
		src, err := player.ConnectMPRIS(cfg.Player.Name, cfg.Player.PollInterval)
		if err != nil {
			log.Warn().Err(err).Msg("MPRIS unavailable, falling back to playerctl")
			return player.NewPlayerctl(cfg.Player.Name, cfg.Player.PollInterval), nil
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown player backend: %s", cfg.Player.Backend)
	}
}

func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.App.CacheDir, 0755); err != nil {
		return fmt.Errorf("create cache directory %s: %w", a.cfg.App.CacheDir, err)
	}

	if err := a.ipcServer.Start(); err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer a.ipcServer.Close()

	if a.i3block != nil {
		if err := a.i3block.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start i3block controller")
		}
		defer a.i3block.Stop()
	}

	defer a.close()

	log.Info().Str("session_id", a.session.ID()).Msg("Starting lyrics session...")
	a.session.Run(ctx)
	return nil
}

func (a *App) close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			log.Warn().Err(err).Msg("Close failed")
		}
	}
}
