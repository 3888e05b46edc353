package rag

import "errors"

// Sentinel errors for the retrieval pipeline. Components wrap these with
// fmt.Errorf("pkg: ...: %w", err) so callers can classify failures with
// errors.Is regardless of which layer produced them.
var (
	// ErrInvalidConfiguration indicates a bad construction parameter,
	// such as a chunk overlap that is not smaller than the chunk size.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidArgument indicates a bad per-call argument, such as a
	// non-positive top-k.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDimensionMismatch indicates a vector whose length disagrees with
	// the dimensionality established by the index's first entry.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingFailed indicates the embedding backend errored or timed out.
	// Transient by nature; retrying is the caller's decision.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrGenerationFailed indicates the language model backend errored or
	// timed out while producing an answer.
	ErrGenerationFailed = errors.New("generation failed")
)
