package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/ttscompanion/ttsc/internal/registry"
)

type gameHandler struct {
	logger   *slog.Logger
	registry Registry
	index    Indexer
	files    Unfilled
}

type gameLoadedRequest struct {
	GameName string `json:"game_name"`
}

type gameLoadedResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	AutoRAGLoaded bool   `json:"auto_rag_loaded"`
}

// loaded handles the mod's notification that a game was just loaded in
// the simulator. When the game has exactly one rulebook and its file has
// been filled in, the index is built right away so the table can ask
// questions without an operator round-trip.
func (h *gameHandler) loaded(w http.ResponseWriter, r *http.Request) {
	var req gameLoadedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	game := strings.TrimSpace(req.GameName)
	if game == "" {
		writeError(w, http.StatusBadRequest, "game_name is required")
		return
	}

	autoLoaded := false
	if key, entry, ok := h.registry.AutoLoadCandidate(game); ok {
		autoLoaded = h.autoLoad(r, game, key, entry)
	}

	// A game seen for the first time gets its actionable rulebook slot.
	if !h.registry.HasGame(game) {
		if err := h.registry.CreateDefaultEntry(game); err != nil {
			h.logger.Error("creating default rulebook entry", "game", game, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to register game")
			return
		}
	}

	writeJSON(w, http.StatusOK, gameLoadedResponse{
		Status:        "success",
		Message:       fmt.Sprintf("game %s loaded", game),
		AutoRAGLoaded: autoLoaded,
	})
}

// autoLoad builds the index for the game's sole rulebook when its file
// holds real content. Files still showing the placeholder template are
// skipped; indexing fill-in instructions would only produce confident
// nonsense answers.
func (h *gameHandler) autoLoad(r *http.Request, game, key string, entry registry.Entry) bool {
	fi, err := os.Stat(entry.EditableTextPath)
	if err != nil || fi.Size() == 0 {
		return false
	}
	if h.files.IsUnfilled(game, entry.EditableTextPath) {
		return false
	}
	if h.index.Ready(game) && entry.Status == registry.StatusProcessed {
		// Already indexed in an earlier load.
		return true
	}

	if err := h.index.BuildFromText(r.Context(), game, entry.EditableTextPath); err != nil {
		h.logger.Warn("auto-indexing rulebook failed",
			"game", game, "path", entry.EditableTextPath, "error", err)
		return false
	}
	if err := h.registry.UpdateStatus(game, key, registry.StatusProcessed); err != nil {
		h.logger.Warn("updating rulebook status", "game", game, "key", key, "error", err)
	}
	h.logger.Info("auto-indexed rulebook on game load", "game", game)
	return true
}
