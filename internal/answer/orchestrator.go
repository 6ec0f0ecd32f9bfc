// Package answer turns a player's question into a rulebook-grounded
// answer: condense the follow-up, retrieve the relevant chunks, generate,
// clean up, remember the exchange.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ttscompanion/ttsc/internal/session"
)

// Retriever is the slice of the index manager the orchestrator needs.
type Retriever interface {
	Ready(game string) bool
	Query(ctx context.Context, game, question string, k int) ([]string, error)
}

const (
	// noIndexGuidance is returned when a game has no retrieval index.
	// The player gets instructions instead of an error: an unfilled
	// rulebook is the normal state right after a scan.
	noIndexGuidance = `I don't have the rulebook for "%s" loaded yet. Paste the rules text into the game's rulebook file on the server and refresh it, then ask me again.`

	// failureMessage wraps collaborator errors for the player.
	failureMessage = "Sorry, I ran into a problem while answering (%s). Please try again."

	// apologyMessage is used when the model produced nothing usable.
	apologyMessage = "I apologize, but I couldn't come up with an answer. Please try rephrasing your question."
)

// reasoningPattern matches paired thinking markers some local models
// emit before their actual answer, across line breaks. Unpaired markers
// are left alone.
var reasoningPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes paired <think> blocks and trims the result.
func StripReasoning(text string) string {
	return strings.TrimSpace(reasoningPattern.ReplaceAllString(text, ""))
}

// Orchestrator answers player questions. It never returns an error:
// every failure mode maps to a message the mod can show at the table.
type Orchestrator struct {
	retriever Retriever
	sessions  *session.Manager
	gen       Generator
	topK      int
	logger    *slog.Logger
}

// NewOrchestrator wires the answering pipeline.
func NewOrchestrator(retriever Retriever, sessions *session.Manager, gen Generator, topK int, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		sessions:  sessions,
		gen:       gen,
		topK:      topK,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one question. ctx carries the HTTP
// request's cancellation; an abandoned request stops mid-pipeline.
func (o *Orchestrator) Answer(ctx context.Context, question, game, player string) string {
	history := o.sessions.GetOrCreate(game, player)

	if !o.retriever.Ready(game) {
		return fmt.Sprintf(noIndexGuidance, game)
	}

	// A follow-up like "can it jump?" retrieves badly; rewrite it as a
	// standalone question first. The first question needs no rewrite,
	// and a failed rewrite falls back to the original wording.
	query := question
	if history.Len() > 0 {
		condensed, err := o.gen.Condense(ctx, history.Transcript(), question)
		switch {
		case err != nil:
			o.logger.Warn("question condensing failed, using original question",
				"game", game, "error", err)
		case condensed != "":
			query = condensed
		}
	}

	chunks, err := o.retriever.Query(ctx, game, query, o.topK)
	if err != nil {
		o.logger.Error("rulebook retrieval failed", "game", game, "error", err)
		return fmt.Sprintf(failureMessage, shortError(err))
	}

	raw, err := o.gen.Answer(ctx, game, question, chunks, history.Messages())
	if err != nil {
		o.logger.Error("answer generation failed", "game", game, "error", err)
		return fmt.Sprintf(failureMessage, shortError(err))
	}

	text := StripReasoning(raw)
	if text == "" {
		o.logger.Warn("model returned empty answer", "game", game)
		text = apologyMessage
	}

	history.Add(question, text)
	return text
}

// shortError keeps player-facing error text to a single readable line.
func shortError(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	const maxLen = 120
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}
	return msg
}
