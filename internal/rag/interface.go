// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, document retrieval, and embedding.
// Concrete implementations (the in-memory/SQLite index, Qdrant, the HTTP
// embedders) satisfy these interfaces so the Q&A layer never depends on a
// specific backend.
package rag

import (
	"context"
)

// Document represents a unit of retrieved or stored knowledge — one chunk
// of an ingested source document together with its retrieval score.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the origin URI or file path of the document.
	Source string

	// Metadata holds arbitrary key-value pairs (document id, chunk index,
	// source kind, etc.).
	Metadata map[string]string

	// Score is the cosine similarity assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching document embeddings.
// Implementations must be safe to call from multiple goroutines, and a single
// Upsert must be atomic with respect to concurrent Search calls — a reader
// never observes a partially inserted entry.
//
// All implementations use cosine similarity and pin their dimensionality to
// the first vector inserted; later vectors of a different length fail with
// ErrDimensionMismatch. Upsert is idempotent by document ID: reinserting an
// ID replaces its vector and content without changing its rank for score ties.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs — embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the topK most similar documents for the given query
	// embedding, ordered by descending score with ties broken by insertion
	// order (earlier first). topK <= 0 fails with ErrInvalidArgument.
	// An empty store returns an empty slice and a nil error.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Delete removes documents by their IDs. Deleting an unknown ID is not
	// an error, and deletion never affects the scores of remaining entries.
	Delete(ctx context.Context, ids []string) error

	// DeleteDocument removes every chunk belonging to the given document,
	// identified by the "document_id" metadata written at ingestion.
	// Deleting an unknown document is not an error. Re-ingestion uses this
	// to drop stale chunks when a document shrinks.
	DeleteDocument(ctx context.Context, documentID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines and must
// wrap backend failures with ErrEmbeddingFailed.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the Q&A engine to fetch
// relevant context for a given query. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the topK most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
