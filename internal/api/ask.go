package api

import (
	"log/slog"
	"net/http"
	"strings"
)

// defaultPlayerID is used when the mod does not identify the asking
// player; all anonymous questions then share one conversation.
const defaultPlayerID = "default"

type askHandler struct {
	logger   *slog.Logger
	answerer Answerer
}

type playerInfo struct {
	PlayerID string `json:"player_id"`
}

type askRequest struct {
	Question   string     `json:"question"`
	GameName   string     `json:"game_name"`
	PlayerInfo playerInfo `json:"player_info"`
}

type askResponse struct {
	Answer   string `json:"answer"`
	PlayerID string `json:"player_id"`
}

func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	question := strings.TrimSpace(req.Question)
	game := strings.TrimSpace(req.GameName)
	if question == "" || game == "" {
		writeError(w, http.StatusBadRequest, "question and game_name are required")
		return
	}

	player := req.PlayerInfo.PlayerID
	if player == "" {
		player = defaultPlayerID
	}

	answer := h.answerer.Answer(r.Context(), question, game, player)
	writeJSON(w, http.StatusOK, askResponse{Answer: answer, PlayerID: player})
}
