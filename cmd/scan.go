package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ttscompanion/ttsc/internal/config"
	"github.com/ttscompanion/ttsc/internal/registry"
	"github.com/ttscompanion/ttsc/internal/workshop"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan installed workshop mods for rulebook references",
	Long: `Reads the Tabletop Simulator workshop manifest, registers every
rulebook PDF reference found in the installed saves, and creates
placeholder text files for the operator to fill in. Safe to run
repeatedly; rescans never duplicate entries.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.TTSDataDir == "" {
			return errors.New("tts_data_dir is not configured")
		}

		logger := slog.Default()
		files := registry.NewFiles(cfg.RulebookCacheDir(), logger)
		store, err := registry.NewStore(cfg.RegistryPath(), files, logger)
		if err != nil {
			return fmt.Errorf("opening registry: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				logger.Warn("closing registry", "error", closeErr)
			}
		}()

		scanner := workshop.New(cfg.TTSDataDir, store, logger)
		sum, err := scanner.ScanAll(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Scanned %d games, %d rulebook references registered.\n",
			sum.Games, sum.References)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
