// Package app is the composition root: it builds every component from
// configuration and hands the wired application to the CLI commands.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/ttscompanion/ttsc/internal/answer"
	"github.com/ttscompanion/ttsc/internal/config"
	"github.com/ttscompanion/ttsc/internal/index"
	"github.com/ttscompanion/ttsc/internal/registry"
	"github.com/ttscompanion/ttsc/internal/session"
	"github.com/ttscompanion/ttsc/internal/workshop"
)

// App holds the wired application components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Registry *registry.Store
	Files    *registry.Files

	// Scanner is nil when no Tabletop Simulator data directory is
	// configured; scanning is then unavailable but answering still
	// works against manually registered rulebooks.
	Scanner *workshop.Scanner

	Index    *index.Manager
	Sessions *session.Manager
	Answerer *answer.Orchestrator
}

// Close releases held resources, currently the registry lock.
func (a *App) Close() error {
	if a.Registry != nil {
		return a.Registry.Close()
	}
	return nil
}
