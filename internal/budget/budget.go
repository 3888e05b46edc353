// Package budget provides token budget estimation and context trimming for
// the docq answer composer. Because docq supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/docforge/docq-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxPromptTokens is the default prompt budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving
	// room for the generated answer. Override via composer configuration.
	DefaultMaxPromptTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimContext drops retrieved documents from the least-similar end (the tail
// of docs, which is ordered most-similar first) until the estimated token
// count of fixedTokens + remaining documents fits within maxTokens.
// fixedTokens covers everything that must never be dropped: the system
// prompt, the prompt scaffolding, and the user's question.
//
// Returns the trimmed slice. If even zero documents exceed the budget the
// empty slice is returned — the fixed portion is never touched here.
func TrimContext(docs []rag.Document, fixedTokens, maxTokens int) []rag.Document {
	for len(docs) > 0 {
		total := fixedTokens
		for _, d := range docs {
			total += Estimate(d.Content)
		}
		if total <= maxTokens {
			break
		}
		// Drop the least similar document.
		docs = docs[:len(docs)-1]
	}
	return docs
}
