package rag

import (
	"context"
	"fmt"
)

// DefaultRetriever implements the Retriever interface by combining an Embedder
// and a VectorStore. It embeds the query at retrieval time and delegates
// similarity search to the store.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and VectorStore.
func NewRetriever(embedder Embedder, store VectorStore) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil: %w", ErrInvalidConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil: %w", ErrInvalidConfiguration)
	}
	return &DefaultRetriever{
		embedder: embedder,
		store:    store,
	}, nil
}

// Retrieve embeds the query and returns the top-k most relevant documents.
// topK <= 0 fails with ErrInvalidArgument. An empty store yields an empty
// result and a nil error so first-run queries degrade gracefully.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("rag: topK must be positive, got %d: %w", topK, ErrInvalidArgument)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned no vector for query: %w", ErrEmbeddingFailed)
	}

	docs, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search: %w", err)
	}

	return docs, nil
}
