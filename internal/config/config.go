package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSocketPath     = "/tmp/lyricsync.sock"
	DefaultAttachInterval = time.Second
	DefaultFrameInterval  = 16 * time.Millisecond
	DefaultSettleDelay    = 200 * time.Millisecond
	DefaultLatencyBias    = 0.2
	DefaultCacheCapacity  = 100
	DefaultLyricsTimeout  = 10 * time.Second
	DefaultPollInterval   = 250 * time.Millisecond
)

const appName = "lyricsync"

func getDefaultCacheDir() string {
	// 优先使用 XDG_CACHE_HOME 环境变量
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return appName + "_cache"
	}

	return filepath.Join(homeDir, ".cache", appName)
}

func getConfigDir() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "."
	}

	return filepath.Join(homeDir, ".config", appName)
}

// Path 配置文件路径
func Path() string {
	return filepath.Join(getConfigDir(), "config.toml")
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		SocketPath     string `toml:"socket_path"`
		AttachInterval string `toml:"attach_interval"`
		CacheDir       string `toml:"cache_dir"`
		OutputFile     string `toml:"output_file"`
		I3Blocks       bool   `toml:"i3blocks"`
		I3BlocksSignal int    `toml:"i3blocks_signal"`
	} `toml:"app"`

	Sync struct {
		FrameInterval string   `toml:"frame_interval"`
		SettleDelay   string   `toml:"settle_delay"`
		LatencyBias   *float64 `toml:"latency_bias"`
		CacheCapacity int      `toml:"cache_capacity"`
	} `toml:"sync"`

	Lyrics struct {
		Providers  []string `toml:"providers"`
		LRCLibURL  string   `toml:"lrclib_url"`
		NetEaseURL string   `toml:"netease_url"`
		Timeout    string   `toml:"timeout"`
	} `toml:"lyrics"`

	Translit struct {
		Enabled    bool   `toml:"enabled"`
		Provider   string `toml:"provider"`
		BatchSize  int    `toml:"batch_size"`
		BatchPause string `toml:"batch_pause"`
	} `toml:"translit"`

	AI struct {
		ModuleName string `toml:"module_name"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
		Model      string `toml:"model"`
	} `toml:"ai"`

	Tencent struct {
		SecretID  string `toml:"secret_id"`
		SecretKey string `toml:"secret_key"`
		Region    string `toml:"region"`
		Target    string `toml:"target"`
	} `toml:"tencent"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	Settings struct {
		Backend string `toml:"backend"`
		Path    string `toml:"path"`
	} `toml:"settings"`

	Player struct {
		Backend      string `toml:"backend"`
		Name         string `toml:"name"`
		PollInterval string `toml:"poll_interval"`
	} `toml:"player"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath     string
	AttachInterval time.Duration
	CacheDir       string
	OutputFile     string
	I3Blocks       bool
	I3BlocksSignal int
}

// SyncConfig 时间同步相关
type SyncConfig struct {
	FrameInterval time.Duration
	SettleDelay   time.Duration
	LatencyBias   float64 // 秒
	CacheCapacity int
}

// LyricsConfig 歌词来源
type LyricsConfig struct {
	Providers  []string
	LRCLibURL  string
	NetEaseURL string
	Timeout    time.Duration
}

// TranslitConfig 非拉丁文字的转写
type TranslitConfig struct {
	Enabled    bool
	Provider   string // ai 或 tencent
	BatchSize  int
	BatchPause time.Duration
}

// AIConfig AI配置
type AIConfig struct {
	ModuleName string
	APIKey     string
	BaseURL    string
	Model      string
}

// TencentConfig 腾讯云机器翻译
type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
	Target    string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// SettingsConfig 用户设置的保存位置
type SettingsConfig struct {
	Backend string // file 或 redis
	Path    string
}

// PlayerConfig 播放器来源
type PlayerConfig struct {
	Backend      string // mpris 或 playerctl
	Name         string
	PollInterval time.Duration
}

// Config 主配置结构
type Config struct {
	App      AppConfig
	Sync     SyncConfig
	Lyrics   LyricsConfig
	Translit TranslitConfig
	AI       AIConfig
	Tencent  TencentConfig
	Redis    RedisConfig
	Settings SettingsConfig
	Player   PlayerConfig
}

// Default 默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			SocketPath:     DefaultSocketPath,
			AttachInterval: DefaultAttachInterval,
			CacheDir:       getDefaultCacheDir(),
			I3BlocksSignal: 1,
		},
		Sync: SyncConfig{
			FrameInterval: DefaultFrameInterval,
			SettleDelay:   DefaultSettleDelay,
			LatencyBias:   DefaultLatencyBias,
			CacheCapacity: DefaultCacheCapacity,
		},
		Lyrics: LyricsConfig{
			Providers: []string{"lrclib", "netease"},
			Timeout:   DefaultLyricsTimeout,
		},
		Translit: TranslitConfig{
			Provider:   "ai",
			BatchSize:  10,
			BatchPause: 500 * time.Millisecond,
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Tencent: TencentConfig{
			Region: "ap-guangzhou",
			Target: "zh",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Settings: SettingsConfig{
			Backend: "file",
			Path:    filepath.Join(getConfigDir(), "settings.toml"),
		},
		Player: PlayerConfig{
			Backend:      "mpris",
			PollInterval: DefaultPollInterval,
		},
	}
}

// loadTomlConfig 加载TOML配置文件
func loadTomlConfig(configPath string) (*TomlConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Info().Str("path", configPath).Msg("Config file not found, using defaults")
		return &TomlConfig{}, nil
	}

	var config TomlConfig
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, err
	}

	log.Info().Str("path", configPath).Msg("Loaded config")
	return &config, nil
}

func Load() *Config {
	return LoadFrom(Path())
}

// LoadFrom never fails: an unreadable file or invalid values fall back to the
// defaults with a warning.
func LoadFrom(configPath string) *Config {
	tomlConfig, err := loadTomlConfig(configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config file, using default configuration")
		tomlConfig = &TomlConfig{}
	}

	config := Default()
	config.apply(tomlConfig)

	if config.Translit.Enabled && config.Translit.Provider == "ai" && config.AI.APIKey == "" {
		log.Warn().Str("path", configPath).Msg("Transliteration enabled but ai.api_key is empty, it will be skipped")
	}

	return config
}

func parseDuration(name, value string, target *time.Duration) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("key", name).Str("value", value).Msg("Invalid duration, using default")
		return
	}
	*target = d
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) apply(t *TomlConfig) {
	// app
	setString(&c.App.SocketPath, t.App.SocketPath)
	parseDuration("app.attach_interval", t.App.AttachInterval, &c.App.AttachInterval)
	setString(&c.App.CacheDir, t.App.CacheDir)
	setString(&c.App.OutputFile, t.App.OutputFile)
	c.App.I3Blocks = t.App.I3Blocks
	if t.App.I3BlocksSignal > 0 {
		c.App.I3BlocksSignal = t.App.I3BlocksSignal
	}

	// sync
	parseDuration("sync.frame_interval", t.Sync.FrameInterval, &c.Sync.FrameInterval)
	parseDuration("sync.settle_delay", t.Sync.SettleDelay, &c.Sync.SettleDelay)
	if t.Sync.LatencyBias != nil {
		c.Sync.LatencyBias = *t.Sync.LatencyBias
	}
	if t.Sync.CacheCapacity > 0 {
		c.Sync.CacheCapacity = t.Sync.CacheCapacity
	} else if t.Sync.CacheCapacity < 0 {
		log.Warn().Int("value", t.Sync.CacheCapacity).Msg("Invalid sync.cache_capacity, using default")
	}

	// lyrics
	if len(t.Lyrics.Providers) > 0 {
		c.Lyrics.Providers = nil
		for _, p := range t.Lyrics.Providers {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				c.Lyrics.Providers = append(c.Lyrics.Providers, p)
			}
		}
	}
	setString(&c.Lyrics.LRCLibURL, t.Lyrics.LRCLibURL)
	setString(&c.Lyrics.NetEaseURL, t.Lyrics.NetEaseURL)
	parseDuration("lyrics.timeout", t.Lyrics.Timeout, &c.Lyrics.Timeout)

	// translit
	c.Translit.Enabled = t.Translit.Enabled
	setString(&c.Translit.Provider, t.Translit.Provider)
	if t.Translit.BatchSize > 0 {
		c.Translit.BatchSize = t.Translit.BatchSize
	}
	parseDuration("translit.batch_pause", t.Translit.BatchPause, &c.Translit.BatchPause)

	// ai
	setString(&c.AI.ModuleName, t.AI.ModuleName)
	setString(&c.AI.APIKey, t.AI.APIKey)
	setString(&c.AI.BaseURL, t.AI.BaseURL)
	setString(&c.AI.Model, t.AI.Model)

	// tencent
	setString(&c.Tencent.SecretID, t.Tencent.SecretID)
	setString(&c.Tencent.SecretKey, t.Tencent.SecretKey)
	setString(&c.Tencent.Region, t.Tencent.Region)
	setString(&c.Tencent.Target, t.Tencent.Target)

	// redis
	c.Redis.Enabled = t.Redis.Enabled
	setString(&c.Redis.Addr, t.Redis.Addr)
	setString(&c.Redis.Password, t.Redis.Password)
	if t.Redis.DB != 0 {
		c.Redis.DB = t.Redis.DB
	}

	// settings
	setString(&c.Settings.Backend, t.Settings.Backend)
	setString(&c.Settings.Path, t.Settings.Path)

	// player
	setString(&c.Player.Backend, t.Player.Backend)
	setString(&c.Player.Name, t.Player.Name)
	parseDuration("player.poll_interval", t.Player.PollInterval, &c.Player.PollInterval)
}
