// Package qa ties the retrieval and answer-composition stages into a single
// question-answering engine. It retrieves the most relevant chunks for a
// question, composes a bounded prompt, obtains an answer from the LLM, and
// records the exchange in the history store for auditing.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docforge/docq-go/internal/logging"
	"github.com/docforge/docq-go/internal/rag"
	"github.com/docforge/docq-go/internal/store"
)

// DefaultTopK is the number of chunks retrieved per question when the caller
// does not specify one.
const DefaultTopK = 5

// answerer is the narrow interface the engine needs from the answer composer.
type answerer interface {
	// Answer generates an answer for the question given retrieved context,
	// returning the documents that were actually included in the prompt.
	Answer(ctx context.Context, question string, docs []rag.Document) (string, []rag.Document, error)
}

// Source is a document source cited by an answer.
type Source struct {
	// Ref is the file path or URL of the source document.
	Ref string `json:"ref"`
	// Score is the highest similarity score among the source's cited chunks.
	Score float32 `json:"score"`
}

// Answer is the result of asking a question.
type Answer struct {
	// Text is the generated answer.
	Text string `json:"text"`
	// Sources lists the distinct document sources backing the answer,
	// ordered by descending relevance.
	Sources []Source `json:"sources"`
}

// Config holds the engine configuration.
type Config struct {
	// TopK is the default number of chunks retrieved per question.
	// Defaults to DefaultTopK if zero.
	TopK int
}

// Engine answers questions over the ingested document corpus.
type Engine struct {
	// retriever finds the most relevant chunks for a question.
	retriever rag.Retriever
	// composer turns a question plus context into a generated answer.
	composer answerer
	// history records answered questions. May be nil to disable auditing.
	history store.HistoryStore
	// topK is the resolved default retrieval depth.
	topK int
}

// New constructs an Engine. The history store is optional; pass nil to skip
// audit recording.
func New(retriever rag.Retriever, composer answerer, history store.HistoryStore, cfg *Config) (*Engine, error) {
	if retriever == nil {
		return nil, fmt.Errorf("qa: retriever must not be nil: %w", rag.ErrInvalidConfiguration)
	}
	if composer == nil {
		return nil, fmt.Errorf("qa: composer must not be nil: %w", rag.ErrInvalidConfiguration)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		retriever: retriever,
		composer:  composer,
		history:   history,
		topK:      topK,
	}, nil
}

// Ask answers a question using the ingested corpus. topK overrides the
// engine default when positive; pass 0 to use the default. A negative topK
// is rejected. History recording failures are logged, not returned — the
// answer has already been produced and auditing must not discard it.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("qa: question must not be empty: %w", rag.ErrInvalidArgument)
	}
	if topK < 0 {
		return nil, fmt.Errorf("qa: topK must not be negative, got %d: %w", topK, rag.ErrInvalidArgument)
	}
	if topK == 0 {
		topK = e.topK
	}

	docs, err := e.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, fmt.Errorf("qa: retrieve: %w", err)
	}
	log.Debug("qa: retrieved context",
		slog.Int("chunks", len(docs)),
		slog.Int("top_k", topK),
	)

	text, used, err := e.composer.Answer(ctx, question, docs)
	if err != nil {
		return nil, fmt.Errorf("qa: %w", err)
	}

	answer := &Answer{
		Text:    text,
		Sources: collectSources(used),
	}

	if e.history != nil {
		refs := make([]string, len(answer.Sources))
		for i, s := range answer.Sources {
			refs[i] = s.Ref
		}
		if err := e.history.Record(ctx, question, text, refs); err != nil {
			log.Warn("qa: failed to record exchange in history",
				slog.String("error", err.Error()),
			)
		}
	}

	return answer, nil
}

// collectSources deduplicates the cited chunks by document source, keeping
// the highest score per source. Input order (descending similarity) is
// preserved, so the output is also ordered by relevance.
func collectSources(docs []rag.Document) []Source {
	seen := make(map[string]int, len(docs))
	sources := make([]Source, 0, len(docs))
	for _, d := range docs {
		if d.Source == "" {
			continue
		}
		if i, ok := seen[d.Source]; ok {
			if d.Score > sources[i].Score {
				sources[i].Score = d.Score
			}
			continue
		}
		seen[d.Source] = len(sources)
		sources = append(sources, Source{Ref: d.Source, Score: d.Score})
	}
	return sources
}
