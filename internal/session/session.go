// Package session keeps the short-lived conversation state of the
// players asking rules questions: one bounded history window per
// (game, player) pair, held in memory only.
package session

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// maxExchanges bounds the history window. Older exchanges fall off the
// front; the rulebook context matters more than deep conversation
// memory, and an unbounded window would eventually crowd it out of the
// model's context.
const maxExchanges = 5

// Exchange is one question and the answer it received.
type Exchange struct {
	Question string
	Answer   string
}

// History is one player's bounded conversation window for one game.
// Safe for concurrent use.
type History struct {
	mu        sync.Mutex
	exchanges []Exchange
}

// Add appends an exchange, evicting the oldest once the window is full.
func (h *History) Add(question, answer string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.exchanges = append(h.exchanges, Exchange{Question: question, Answer: answer})
	if len(h.exchanges) > maxExchanges {
		h.exchanges = h.exchanges[len(h.exchanges)-maxExchanges:]
	}
}

// Len returns the number of retained exchanges.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.exchanges)
}

// Clear empties the window.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exchanges = nil
}

// Messages renders the window as alternating user/model messages for
// generation.
func (h *History) Messages() []*ai.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := make([]*ai.Message, 0, len(h.exchanges)*2)
	for _, ex := range h.exchanges {
		msgs = append(msgs,
			ai.NewUserMessage(ai.NewTextPart(ex.Question)),
			ai.NewModelMessage(ai.NewTextPart(ex.Answer)),
		)
	}
	return msgs
}

// Transcript renders the window as plain text for question condensing.
func (h *History) Transcript() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder
	for _, ex := range h.exchanges {
		b.WriteString("Player: ")
		b.WriteString(ex.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(ex.Answer)
		b.WriteString("\n")
	}
	return b.String()
}

// Manager owns the histories of every active player, keyed by game and
// player id.
type Manager struct {
	mu     sync.Mutex
	games  map[string]map[string]*History
	logger *slog.Logger
}

// NewManager creates an empty session manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		games:  make(map[string]map[string]*History),
		logger: logger,
	}
}

// GetOrCreate returns the player's history for the game, creating it on
// first use.
func (m *Manager) GetOrCreate(game, player string) *History {
	m.mu.Lock()
	defer m.mu.Unlock()

	players, ok := m.games[game]
	if !ok {
		players = make(map[string]*History)
		m.games[game] = players
	}
	h, ok := players[player]
	if !ok {
		h = &History{}
		players[player] = h
	}
	return h
}

// Reset drops one player's history for the game. Unknown pairs are a
// no-op.
func (m *Manager) Reset(game, player string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if players, ok := m.games[game]; ok {
		delete(players, player)
		m.logger.Debug("reset conversation", "game", game, "player", player)
	}
}

// ClearGame drops every player's history for the game.
func (m *Manager) ClearGame(game string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[game]; ok {
		delete(m.games, game)
		m.logger.Debug("cleared all conversations", "game", game)
	}
}
