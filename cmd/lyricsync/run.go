package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lyricsync/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the lyrics daemon",
	Long:  `starts following the media player and broadcasting the current lyric line until interrupted.`,
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	if err := a.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("Shutdown complete")
	return nil
}
