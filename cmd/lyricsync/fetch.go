package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lyricsync/internal/app"
	"lyricsync/internal/lyrics"
	"lyricsync/internal/track"
)

var (
	// flags for fetch
	fetchDuration float64
	fetchAlbum    string
	fetchTranslit bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <artist> <title>",
	Short: "fetch lyrics for a song and print them",
	Long:  `looks the song up through the configured providers, warming the cache, and prints the timed lines.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg := loadConfig()

		provider, err := app.NewProvider(cfg, nil)
		if err != nil {
			return err
		}

		info := track.Info{Artist: args[0], Title: args[1], Album: fetchAlbum, Duration: fetchDuration}
		token := provider.Begin()
		l, err := provider.GetLyrics(ctx, token, info)
		if err != nil {
			return fmt.Errorf("failed to fetch lyrics: %w", err)
		}
		if l == nil {
			return fmt.Errorf("no lyrics found for %s", info)
		}

		if !l.HasSynced() {
			fmt.Println("only plain lyrics available (no timing)")
			for _, line := range lyrics.PlainLines(l.Plain) {
				fmt.Println(line)
			}
			return nil
		}

		var translit []string
		if fetchTranslit {
			t, closer, err := app.NewTransliterator(ctx, cfg)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer()
			}
			provider.SetTransliterator(t, lyrics.BatchOptions{Size: cfg.Translit.BatchSize, Pause: cfg.Translit.BatchPause})
			if translit, err = provider.Transliterate(ctx, token, l.Synced); err != nil {
				return err
			}
		}

		for i, line := range l.Synced {
			fmt.Printf("%s  %s", formatTime(line.Time), line.Text)
			if i < len(translit) && translit[i] != "" {
				fmt.Printf("  (%s)", translit[i])
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().Float64VarP(&fetchDuration, "duration", "d", 0, "song duration in seconds")
	fetchCmd.Flags().StringVar(&fetchAlbum, "album", "", "album name")
	fetchCmd.Flags().BoolVar(&fetchTranslit, "translit", false, "also transliterate non-latin lines")
	rootCmd.AddCommand(fetchCmd)
}

func formatTime(seconds float64) string {
	total := int(seconds * 100)
	return fmt.Sprintf("[%02d:%02d.%02d]", total/6000, (total/100)%60, total%100)
}
