// Package composer assembles retrieved document chunks and a user question
// into a bounded prompt and obtains an answer from an LLM chat model.
// Chunk order is preserved (most similar first); when the prompt would
// exceed the configured budget, chunks are dropped from the least-similar
// end — the question itself is never truncated.
package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/docforge/docq-go/internal/budget"
	"github.com/docforge/docq-go/internal/rag"
)

// systemPrompt establishes the answering persona. It instructs the model to
// stay grounded in the supplied sources and to cite them by number.
const systemPrompt = `You are docq, a precise document question-answering assistant.

Answer the user's question using ONLY the numbered sources provided in the
context. Cite every claim with the source it came from, as [Source N].
If the sources do not contain enough information to answer, say so plainly —
do not guess or use outside knowledge. Keep answers concise and factual.`

// chatModel is the narrow interface the composer needs from an LLM backend.
// model.BaseChatModel satisfies it; tests inject a fake.
type chatModel interface {
	// Generate produces a single completion for the given messages.
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config holds the composer configuration.
type Config struct {
	// MaxPromptTokens is the estimated token budget for the full prompt
	// (system + context + question). Defaults to budget.DefaultMaxPromptTokens.
	MaxPromptTokens int

	// Timeout bounds each generation call. Defaults to 2 minutes if zero.
	Timeout time.Duration
}

// Composer builds prompts from retrieved context and delegates generation to
// an LLM chat model. It carries no cross-call state and is safe for
// concurrent use.
type Composer struct {
	// model is the LLM backend invoked for generation.
	model chatModel
	// maxPromptTokens is the resolved prompt budget.
	maxPromptTokens int
	// timeout is the resolved per-call generation timeout.
	timeout time.Duration
}

// New constructs a Composer from the given chat model and config.
func New(m model.BaseChatModel, cfg *Config) (*Composer, error) {
	if m == nil {
		return nil, fmt.Errorf("composer: chat model must not be nil: %w", rag.ErrInvalidConfiguration)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	maxTokens := cfg.MaxPromptTokens
	if maxTokens <= 0 {
		maxTokens = budget.DefaultMaxPromptTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Composer{
		model:           m,
		maxPromptTokens: maxTokens,
		timeout:         timeout,
	}, nil
}

// Compose builds the prompt messages for the given question and retrieved
// documents, trimming the least-similar documents until the prompt fits the
// budget. It returns the messages and the documents actually included.
// The question is always included in full; if it alone exceeds the budget,
// generation proceeds with zero context rather than truncating it.
func (c *Composer) Compose(question string, docs []rag.Document) ([]*schema.Message, []rag.Document) {
	fixed := budget.EstimateMessages([]*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(question),
	})
	// Per-source scaffolding ("[Source N] (score: ...)") is small; reserve a
	// flat allowance so the trim never lands exactly on the boundary.
	fixed += 8 * len(docs)

	kept := budget.TrimContext(docs, fixed, c.maxPromptTokens)

	var user strings.Builder
	if len(kept) > 0 {
		user.WriteString("Context:\n")
		for i, d := range kept {
			fmt.Fprintf(&user, "[Source %d] (%s, score %.3f)\n%s\n\n", i+1, d.Source, d.Score, d.Content)
		}
	}
	user.WriteString("Question: ")
	user.WriteString(question)

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(user.String()),
	}
	return msgs, kept
}

// Answer composes the prompt and obtains a generated answer. Backend errors
// and timeouts wrap ErrGenerationFailed; the caller decides whether to retry.
// It returns the answer text and the documents that were actually included
// in the prompt, so callers can report accurate citations.
func (c *Composer) Answer(ctx context.Context, question string, docs []rag.Document) (string, []rag.Document, error) {
	if strings.TrimSpace(question) == "" {
		return "", nil, fmt.Errorf("composer: question must not be empty: %w", rag.ErrInvalidArgument)
	}

	msgs, kept := c.Compose(question, docs)

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.Generate(genCtx, msgs)
	if err != nil {
		return "", kept, fmt.Errorf("composer: model generate: %v: %w", err, rag.ErrGenerationFailed)
	}
	if resp == nil || resp.Content == "" {
		return "", kept, fmt.Errorf("composer: model returned an empty answer: %w", rag.ErrGenerationFailed)
	}

	return resp.Content, kept, nil
}
