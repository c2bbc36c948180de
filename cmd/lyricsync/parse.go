package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lyricsync/internal/lyrics"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "parse an LRC file and print the timed lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		lines := lyrics.Parse(string(data))
		for _, line := range lines {
			fmt.Printf("%8.3f  %s\n", line.Time, line.Text)
		}
		fmt.Printf("\ntotal: %d lines\n", len(lines))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
