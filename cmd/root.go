// Package cmd implements the ttsc command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ttscompanion/ttsc/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "ttsc",
	Short: "Rules assistant server for Tabletop Simulator",
	Long: `ttsc answers natural-language rules questions for games running in
Tabletop Simulator. It scans installed workshop mods for rulebook PDFs,
tracks an editable text file per rulebook, indexes filled-in text for
retrieval, and serves answers to the in-game mod over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	slog.SetDefault(initLogger())
	return rootCmd.Execute()
}

// initLogger builds the process-wide logger. DEBUG in the environment
// enables debug level; TTSC_LOG_JSON switches to JSON output.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("TTSC_LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}
