package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lyricsync/internal/app"
	"lyricsync/internal/settings"
	"lyricsync/pkg/redis"
)

var (
	// flags for settings
	setEnable  bool
	setDisable bool
	setOffset  int
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "show or change the stored settings",
	Long: `reads or updates the persisted settings. a running daemon picks up
changes sent over its socket; this command edits the store directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if setEnable && setDisable {
			return fmt.Errorf("--enable and --disable are mutually exclusive")
		}

		ctx := context.Background()
		cfg := loadConfig()

		var client *redis.Client
		if cfg.Settings.Backend == "redis" && cfg.Redis.Enabled {
			c, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer c.Close()
			client = c
		}

		manager := settings.NewManager(app.NewSettingsStore(cfg, client))
		current, err := manager.Load(ctx)
		if err != nil {
			return err
		}

		changed := setEnable || setDisable || cmd.Flags().Changed("offset")
		if changed {
			current, err = manager.Update(ctx, func(s *settings.Settings) {
				if setEnable {
					s.Enabled = true
				}
				if setDisable {
					s.Enabled = false
				}
				if cmd.Flags().Changed("offset") {
					s.OffsetMs = setOffset
				}
			})
			if err != nil {
				return err
			}
		}

		fmt.Printf("enabled: %v\n", current.Enabled)
		fmt.Printf("offset:  %dms\n", current.OffsetMs)
		return nil
	},
}

func init() {
	settingsCmd.Flags().BoolVar(&setEnable, "enable", false, "enable the overlay")
	settingsCmd.Flags().BoolVar(&setDisable, "disable", false, "disable the overlay")
	settingsCmd.Flags().IntVar(&setOffset, "offset", 0, "lyrics offset in milliseconds")
	rootCmd.AddCommand(settingsCmd)
}
