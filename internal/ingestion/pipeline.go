// Package ingestion implements the document ingestion pipeline.
// It extracts plain text from document sources (PDF, text, Markdown, URLs),
// splits the content into overlapping chunks, embeds each chunk, and upserts
// the results into the vector index. This pipeline is invoked by the
// `docq ingest` CLI command and the document upload endpoint.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docforge/docq-go/internal/chunker"
	"github.com/docforge/docq-go/internal/extract"
	"github.com/docforge/docq-go/internal/rag"
)

// defaultEmbedBatchSize caps how many chunk texts are sent to the embedding
// backend in a single request. Large documents are embedded in batches so a
// single oversized request cannot blow the backend's payload limit.
const defaultEmbedBatchSize = 32

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to chunker.DefaultSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared between consecutive
	// chunks. Nil means chunker.DefaultOverlap; an explicit zero disables
	// overlap.
	ChunkOverlap *int

	// HTTPTimeout is the timeout for each URL fetch.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with URL fetches.
	UserAgent string

	// EmbedBatchSize is the maximum number of chunks embedded per backend
	// request. Defaults to 32 if zero.
	EmbedBatchSize int
}

// Result summarizes a completed ingestion run.
type Result struct {
	// Documents is the number of sources successfully ingested.
	Documents int
	// Chunks is the total number of chunks stored across all sources.
	Chunks int
}

// Pipeline orchestrates the extract → chunk → embed → upsert flow for a set
// of document sources.
type Pipeline struct {
	// extractor converts sources into plain text.
	extractor *extract.Extractor

	// splitter produces overlapping chunks from extracted text.
	splitter *chunker.Splitter

	// embedder converts chunk texts into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// batchSize is the resolved embedding batch size.
	batchSize int
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil: %w", rag.ErrInvalidConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil: %w", rag.ErrInvalidConfiguration)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = chunker.DefaultSize
	}
	overlap := chunker.DefaultOverlap
	if cfg.ChunkOverlap != nil {
		overlap = *cfg.ChunkOverlap
	}
	splitter, err := chunker.NewSplitter(size, overlap)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}

	return &Pipeline{
		extractor: extract.New(&extract.Config{
			HTTPTimeout: cfg.HTTPTimeout,
			UserAgent:   cfg.UserAgent,
		}),
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
	}, nil
}

// Ingest extracts, chunks, embeds, and stores all provided sources — file
// paths or http(s) URLs. Sources are processed sequentially and the first
// error aborts the run. Progress is reported via the optional callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []string, progress func(msg string)) (*Result, error) {
	if progress == nil {
		progress = func(string) {}
	}

	result := &Result{}
	for _, src := range sources {
		progress(fmt.Sprintf("extracting %s", src))

		ext, err := p.extractor.Extract(ctx, src)
		if err != nil {
			return result, fmt.Errorf("ingestion: extract %s: %w", src, err)
		}

		n, err := p.IngestExtracted(ctx, ext)
		if err != nil {
			return result, err
		}

		result.Documents++
		result.Chunks += n
		progress(fmt.Sprintf("ingested %d chunks from %s", n, src))
	}

	return result, nil
}

// IngestExtracted chunks, embeds, and stores a single extracted document.
// It returns the number of chunks stored. Re-ingesting the same source
// replaces its previous chunks entirely: once the new chunks are embedded,
// the old ones are deleted before the upsert, so a document that shrank does
// not leave stale trailing chunks in the index.
func (p *Pipeline) IngestExtracted(ctx context.Context, ext *extract.Extracted) (int, error) {
	docID := DocumentID(ext.Source)
	chunks := p.splitter.Split(docID, ext.Content)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("ingestion: %s contains no extractable text: %w", ext.Source, rag.ErrInvalidArgument)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := p.embedBatched(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("ingestion: embed %s: %w", ext.Source, err)
	}

	docs := make([]rag.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = rag.Document{
			ID:      ChunkID(ext.Source, c.Index),
			Content: c.Text,
			Source:  ext.Source,
			Metadata: map[string]string{
				"document_id": docID,
				"kind":        string(ext.Kind),
				"chunk_index": fmt.Sprintf("%d", c.Index),
			},
		}
	}

	// Embedding has succeeded, so the replacement is ready before anything
	// is removed. Chunk IDs are deterministic per (source, index) and would
	// only overwrite the first len(chunks) of a previously larger document.
	if err := p.store.DeleteDocument(ctx, docID); err != nil {
		return 0, fmt.Errorf("ingestion: replace %s: %w", ext.Source, err)
	}
	if err := p.store.Upsert(ctx, docs, embeddings); err != nil {
		return 0, fmt.Errorf("ingestion: upsert %s: %w", ext.Source, err)
	}

	return len(chunks), nil
}

// embedBatched embeds texts in batches of at most p.batchSize, preserving
// input order in the returned slice.
func (p *Pipeline) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

// DocumentID returns the deterministic UUID for a document source.
// The same source always maps to the same ID, so re-ingesting replaces
// rather than duplicates.
func DocumentID(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)).String()
}

// ChunkID returns the deterministic UUID for a chunk of a document source.
// UUIDs are used because the Qdrant backend only accepts UUID point IDs.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}
