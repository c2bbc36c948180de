package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lyricsync/internal/config"
)

var (
	// global flags
	configPath string
	debug      bool
	socketPath string
	playerName string
)

var rootCmd = &cobra.Command{
	Use:   "lyricsync",
	Short: "synchronized lyrics for desktop media players",
	Long: `lyricsync follows the active MPRIS player, fetches timed lyrics and
streams the current line to overlay clients over a unix socket.

when run without a subcommand, it starts the daemon.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	RunE:          runDaemon,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyricsync/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "unix socket path for overlay clients")
	rootCmd.PersistentFlags().StringVarP(&playerName, "player", "p", "", "player name (e.g. spotify)")
}

func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// loadConfig 读取配置文件，再用命令行参数覆盖
func loadConfig() *config.Config {
	var cfg *config.Config
	if configPath != "" {
		cfg = config.LoadFrom(configPath)
	} else {
		cfg = config.Load()
	}

	if socketPath != "" {
		cfg.App.SocketPath = socketPath
	}
	if playerName != "" {
		cfg.Player.Name = playerName
	}
	return cfg
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
