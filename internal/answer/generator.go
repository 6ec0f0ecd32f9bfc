package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// Generator produces the two LLM outputs the orchestrator needs:
// condensed standalone questions and grounded answers. Defined here so
// tests can substitute a fake.
type Generator interface {
	// Condense rewrites a follow-up question into a standalone one
	// using the conversation transcript.
	Condense(ctx context.Context, transcript, question string) (string, error)

	// Answer generates an answer to the question grounded in the given
	// rulebook chunks, with the conversation history as context.
	Answer(ctx context.Context, game, question string, chunks []string, history []*ai.Message) (string, error)
}

const condensePrompt = `Given the following conversation and a follow up question,
rephrase the follow up question to be a standalone question that keeps all
the context it needs. Return only the rephrased question.

Conversation:
%s

Follow up question: %s

Standalone question:`

const answerSystemPrompt = `You are a rules assistant for the tabletop game "%s".
Answer the player's question using only the rulebook excerpts provided as
context documents. Quote or paraphrase the relevant rule. If the excerpts
do not cover the question, say so plainly instead of guessing. Keep
answers short enough to read aloud at the table.`

// GenkitGenerator implements Generator with Genkit model calls, rate
// limited so a chatty table of players cannot exhaust a provider quota.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewGenkitGenerator creates a generator using the provider-qualified
// model name. A nil limiter gets the default of 10 requests/sec with a
// burst of 30.
func NewGenkitGenerator(g *genkit.Genkit, modelName string, limiter *rate.Limiter, logger *slog.Logger) *GenkitGenerator {
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	return &GenkitGenerator{
		g:         g,
		modelName: modelName,
		limiter:   limiter,
		logger:    logger,
	}
}

// Condense implements Generator.
func (gg *GenkitGenerator) Condense(ctx context.Context, transcript, question string) (string, error) {
	if err := gg.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.modelName),
		ai.WithPrompt(condensePrompt, transcript, question),
	)
	if err != nil {
		return "", fmt.Errorf("condensing question: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Answer implements Generator. Rulebook chunks travel as context
// documents so the model sees them separately from the conversation.
func (gg *GenkitGenerator) Answer(ctx context.Context, game, question string, chunks []string, history []*ai.Message) (string, error) {
	if err := gg.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	docs := make([]*ai.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = ai.DocumentFromText(chunk, nil)
	}

	messages := make([]*ai.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(question)))

	gg.logger.Debug("generating answer",
		"game", game, "chunks", len(chunks), "history_messages", len(history))

	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.modelName),
		ai.WithSystem(fmt.Sprintf(answerSystemPrompt, game)),
		ai.WithMessages(messages...),
		ai.WithDocs(docs...),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return resp.Text(), nil
}
