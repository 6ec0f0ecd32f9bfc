package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ttscompanion/ttsc/internal/config"
	"github.com/ttscompanion/ttsc/internal/registry"
)

var rulebooksCmd = &cobra.Command{
	Use:   "rulebooks <game name>",
	Short: "List the rulebooks registered for a game",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
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

		game := strings.Join(args, " ")
		rulebooks := store.ListRulebooks(game)
		if len(rulebooks) == 0 {
			fmt.Printf("No rulebooks registered for %q. Run 'ttsc scan' first.\n", game)
			return nil
		}

		for _, rb := range rulebooks {
			fmt.Printf("[%s] %s (%s)\n", rb.ID, rb.Name, rb.Status)
			fmt.Printf("    file:   %s\n", rb.Path)
			if rb.OriginalSource != "" {
				fmt.Printf("    source: %s\n", rb.OriginalSource)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulebooksCmd)
}
