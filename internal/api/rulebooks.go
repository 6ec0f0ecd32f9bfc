package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ttscompanion/ttsc/internal/index"
	"github.com/ttscompanion/ttsc/internal/registry"
)

type rulebookHandler struct {
	logger   *slog.Logger
	registry Registry
	index    Indexer
}

type listResponse struct {
	Rulebooks []registry.Rulebook `json:"rulebooks"`
}

// list returns the game's rulebook entries in display-id order.
func (h *rulebookHandler) list(w http.ResponseWriter, r *http.Request) {
	game := strings.TrimSpace(r.URL.Query().Get("game_name"))
	if game == "" {
		writeError(w, http.StatusBadRequest, "game_name is required")
		return
	}

	rulebooks := h.registry.ListRulebooks(game)
	if rulebooks == nil {
		rulebooks = []registry.Rulebook{}
	}
	writeJSON(w, http.StatusOK, listResponse{Rulebooks: rulebooks})
}

type refreshRequest struct {
	GameName   string `json:"game_name"`
	Identifier string `json:"identifier"`
}

type refreshResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// refresh rebuilds a game's retrieval index from an operator-edited
// rulebook file, identified by display id or filename fragment.
func (h *rulebookHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	game := strings.TrimSpace(req.GameName)
	identifier := strings.TrimSpace(req.Identifier)
	if game == "" || identifier == "" {
		writeError(w, http.StatusBadRequest, "game_name and identifier are required")
		return
	}

	path, err := h.registry.ResolvePath(game, identifier)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no rulebook matches %q", identifier))
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("rulebook file missing: %s", filepath.Base(path)))
		return
	}

	if err := h.index.BuildFromText(r.Context(), game, path); err != nil {
		if errors.Is(err, index.ErrEmptyText) {
			writeError(w, http.StatusBadRequest, "rulebook file has no text to index")
			return
		}
		h.logger.Error("index rebuild failed", "game", game, "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to rebuild index")
		return
	}

	if key, ok := h.registry.IdentifierKeyForPath(game, path); ok {
		if err := h.registry.UpdateStatus(game, key, registry.StatusProcessed); err != nil {
			h.logger.Warn("updating rulebook status", "game", game, "key", key, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Status:  "success",
		Message: fmt.Sprintf("rebuilt index from %s", filepath.Base(path)),
	})
}
