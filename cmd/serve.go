package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ttscompanion/ttsc/internal/api"
	"github.com/ttscompanion/ttsc/internal/app"
	"github.com/ttscompanion/ttsc/internal/config"
	"github.com/ttscompanion/ttsc/internal/workshop"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // index builds on refresh can be slow
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Scan the workshop and start the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting rules assistant server", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// A failed startup scan must not keep the server down: already
	// registered rulebooks keep working, and the operator can rescan.
	if a.Scanner != nil {
		if sum, scanErr := a.Scanner.ScanAll(ctx); scanErr != nil {
			if errors.Is(scanErr, workshop.ErrNoManifest) {
				logger.Warn("workshop manifest not found, skipping startup scan",
					"manifest", a.Scanner.ManifestPath())
			} else {
				logger.Warn("startup workshop scan failed", "error", scanErr)
			}
		} else {
			logger.Info("startup workshop scan finished",
				"games", sum.Games, "references", sum.References)
		}
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:   logger,
		Answerer: a.Answerer,
		Registry: a.Registry,
		Index:    a.Index,
		Sessions: a.Sessions,
		Files:    a.Files,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready", "addr", cfg.Addr, "health", "/health, /ready")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
