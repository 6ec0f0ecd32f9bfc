// Package api exposes the companion service over HTTP: the /ask endpoint
// the in-game mod talks to, plus the rulebook and session management
// routes an operator uses.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ttscompanion/ttsc/internal/registry"
)

// Answerer answers one player question. Failures surface as text, never
// as errors.
type Answerer interface {
	Answer(ctx context.Context, question, game, player string) string
}

// Registry is the slice of the rulebook registry the handlers need.
type Registry interface {
	HasGame(game string) bool
	CreateDefaultEntry(game string) error
	ListRulebooks(game string) []registry.Rulebook
	ResolvePath(game, identifier string) (string, error)
	IdentifierKeyForPath(game, path string) (string, bool)
	AutoLoadCandidate(game string) (string, registry.Entry, bool)
	UpdateStatus(game, key string, status registry.Status) error
}

// Indexer is the slice of the index manager the handlers need.
type Indexer interface {
	BuildFromText(ctx context.Context, game, path string) error
	Invalidate(game string)
	Ready(game string) bool
}

// Sessions is the slice of the session manager the handlers need.
type Sessions interface {
	Reset(game, player string)
	ClearGame(game string)
}

// Unfilled reports whether a rulebook file is still the pristine
// placeholder. Implemented by registry.Files.
type Unfilled interface {
	IsUnfilled(game, path string) bool
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger   *slog.Logger
	Answerer Answerer
	Registry Registry
	Index    Indexer
	Sessions Sessions
	Files    Unfilled
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.Answerer == nil:
		return nil, errors.New("answerer is required")
	case cfg.Registry == nil:
		return nil, errors.New("registry is required")
	case cfg.Index == nil:
		return nil, errors.New("index manager is required")
	case cfg.Sessions == nil:
		return nil, errors.New("session manager is required")
	case cfg.Files == nil:
		return nil, errors.New("file store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &askHandler{logger: logger, answerer: cfg.Answerer}
	rh := &rulebookHandler{logger: logger, registry: cfg.Registry, index: cfg.Index}
	gh := &gameHandler{logger: logger, registry: cfg.Registry, index: cfg.Index, files: cfg.Files}
	sh := &sessionHandler{logger: logger, sessions: cfg.Sessions, index: cfg.Index}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", ah.ask)
	mux.HandleFunc("GET /rulebooks", rh.list)
	mux.HandleFunc("POST /rulebooks/refresh", rh.refresh)
	mux.HandleFunc("POST /game/loaded", gh.loaded)
	mux.HandleFunc("POST /session/reset", sh.reset)

	// Middleware stack, outermost first: Recovery → RequestID → Logging.
	// RequestID sits before Logging so request_id is available there.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.HandleFunc("GET /ready", ready)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
