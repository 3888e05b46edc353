// Package index provides the local vector index implementations of
// rag.VectorStore: an in-memory index with deterministic cosine ranking and
// a SQLite-backed variant that persists entries across restarts.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/docforge/docq-go/internal/rag"
)

// entry is a single indexed chunk: its document payload, its vector, and the
// rank it was first inserted at. The rank is stable across replacement so
// that score ties always break the same way.
type entry struct {
	// doc is the chunk payload returned from Search.
	doc rag.Document
	// vec is the embedding for this chunk.
	vec []float32
	// rank is the insertion order, assigned once and kept on replacement.
	rank uint64
}

// MemoryIndex is an in-process rag.VectorStore using exhaustive cosine
// similarity search. It is safe for concurrent use: each Upsert is atomic
// with respect to concurrent Search calls, so readers never observe a
// partially inserted batch.
type MemoryIndex struct {
	// mu guards all fields below.
	mu sync.RWMutex
	// entries maps chunk ID to its indexed entry.
	entries map[string]*entry
	// dim is the dimensionality pinned by the first inserted vector.
	// Zero until the first insert.
	dim int
	// nextRank is the insertion counter for deterministic tie-breaking.
	nextRank uint64
}

// NewMemoryIndex constructs an empty MemoryIndex. The dimensionality is
// established by the first vector inserted.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]*entry)}
}

// Len returns the number of entries currently in the index.
func (ix *MemoryIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dim returns the pinned dimensionality, or 0 if the index is empty and no
// vector has ever been inserted.
func (ix *MemoryIndex) Dim() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Upsert stores or updates a batch of documents with their embeddings.
// Reinserting an existing ID replaces its vector and payload but keeps the
// original insertion rank. The whole batch is validated before any entry is
// written, so a dimension mismatch never leaves a partial batch behind.
func (ix *MemoryIndex) Upsert(_ context.Context, docs []rag.Document, embeddings [][]float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim, err := checkBatch(ix.dim, docs, embeddings)
	if err != nil {
		return err
	}
	ix.dim = dim

	for i, doc := range docs {
		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])

		if existing, ok := ix.entries[doc.ID]; ok {
			existing.doc = doc
			existing.vec = vec
			continue
		}
		ix.entries[doc.ID] = &entry{doc: doc, vec: vec, rank: ix.nextRank}
		ix.nextRank++
	}

	return nil
}

// Search returns the topK most similar documents for the query embedding,
// ordered by descending cosine similarity with ties broken by insertion
// order (earlier first). An empty index returns an empty slice and a nil
// error; topK larger than the index returns every entry.
func (ix *MemoryIndex) Search(_ context.Context, queryEmbedding []float32, topK int) ([]rag.Document, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("index: topK must be positive, got %d: %w", topK, rag.ErrInvalidArgument)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return []rag.Document{}, nil
	}
	if len(queryEmbedding) != ix.dim {
		return nil, fmt.Errorf("index: query vector of length %d, index expects %d: %w",
			len(queryEmbedding), ix.dim, rag.ErrDimensionMismatch)
	}

	type scored struct {
		e     *entry
		score float32
	}
	results := make([]scored, 0, len(ix.entries))
	for _, e := range ix.entries {
		results = append(results, scored{e: e, score: cosine(queryEmbedding, e.vec)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].e.rank < results[j].e.rank
	})

	if topK > len(results) {
		topK = len(results)
	}

	docs := make([]rag.Document, 0, topK)
	for _, r := range results[:topK] {
		doc := r.e.doc
		doc.Score = r.score
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes entries by ID. Unknown IDs are ignored. Remaining entries
// keep their insertion ranks, so deletion never reorders tied results.
func (ix *MemoryIndex) Delete(_ context.Context, ids []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, id := range ids {
		delete(ix.entries, id)
	}
	return nil
}

// DeleteDocument removes every entry whose "document_id" metadata matches
// documentID. Unknown documents are a no-op.
func (ix *MemoryIndex) DeleteDocument(_ context.Context, documentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id, e := range ix.entries {
		if e.doc.Metadata["document_id"] == documentID {
			delete(ix.entries, id)
		}
	}
	return nil
}

// documentChunkIDs returns the IDs of all entries carrying the given
// "document_id" metadata, for stores that layer persistence on top of this
// index and need to mirror a document-level delete.
func (ix *MemoryIndex) documentChunkIDs(documentID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var ids []string
	for id, e := range ix.entries {
		if e.doc.Metadata["document_id"] == documentID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Close releases no resources for the in-memory index; it exists to satisfy
// rag.VectorStore.
func (ix *MemoryIndex) Close() error { return nil }

// validate checks a batch against the index's current dimensionality without
// modifying anything. Persistent wrappers call this before writing to disk so
// a batch the memory index would reject never reaches storage.
func (ix *MemoryIndex) validate(docs []rag.Document, embeddings [][]float32) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, err := checkBatch(ix.dim, docs, embeddings)
	return err
}

// checkBatch verifies batch shape and vector lengths against dim (0 means
// not yet pinned) and returns the dimensionality the batch establishes.
func checkBatch(dim int, docs []rag.Document, embeddings [][]float32) (int, error) {
	if len(docs) != len(embeddings) {
		return 0, fmt.Errorf("index: %d documents but %d embeddings: %w", len(docs), len(embeddings), rag.ErrInvalidArgument)
	}
	for i, doc := range docs {
		if len(embeddings[i]) == 0 {
			return 0, fmt.Errorf("index: document %s has an empty vector: %w", doc.ID, rag.ErrInvalidArgument)
		}
		if dim == 0 {
			dim = len(embeddings[i])
		}
		if len(embeddings[i]) != dim {
			return 0, fmt.Errorf("index: document %s has vector of length %d, index expects %d: %w",
				doc.ID, len(embeddings[i]), dim, rag.ErrDimensionMismatch)
		}
	}
	return dim, nil
}

// cosine returns the cosine similarity of a and b. Accumulation is done in
// float64 to limit rounding drift on long vectors. A zero vector yields 0.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
