package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

type sessionHandler struct {
	logger   *slog.Logger
	sessions Sessions
	index    Indexer
}

type resetRequest struct {
	GameName   string     `json:"game_name"`
	PlayerInfo playerInfo `json:"player_info"`
}

type resetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// reset clears conversation state. With a player id only that player's
// history goes; without one the whole game is reset, including the
// retrieval index on disk, so a full reset really starts from scratch.
func (h *sessionHandler) reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	game := strings.TrimSpace(req.GameName)
	if game == "" {
		writeError(w, http.StatusBadRequest, "game_name is required")
		return
	}

	if player := req.PlayerInfo.PlayerID; player != "" {
		h.sessions.Reset(game, player)
		writeJSON(w, http.StatusOK, resetResponse{
			Status:  "success",
			Message: fmt.Sprintf("reset conversation for player %s in %s", player, game),
		})
		return
	}

	h.sessions.ClearGame(game)
	h.index.Invalidate(game)
	writeJSON(w, http.StatusOK, resetResponse{
		Status:  "success",
		Message: fmt.Sprintf("reset all conversations and index state for %s", game),
	})
}
