// Package chunker splits document text into bounded, overlapping chunks
// suitable for embedding. Chunks are measured in runes so multi-byte text
// never splits inside a code point. Consecutive chunks share exactly the
// configured overlap, which preserves context across chunk boundaries and
// makes the original text reconstructible from the chunk sequence.
package chunker

import (
	"fmt"

	"github.com/docforge/docq-go/internal/rag"
)

// Default chunking parameters. 1000 runes with 100 runes of overlap keeps
// chunks within the input limits of common embedding models while retaining
// enough shared context for retrieval across boundaries.
const (
	DefaultSize    = 1000
	DefaultOverlap = 100
)

// Chunk is a contiguous span of document text. Chunks are never mutated
// after creation.
type Chunk struct {
	// DocumentID identifies the source document this chunk was cut from.
	DocumentID string

	// Index is the zero-based position of this chunk within the document.
	Index int

	// Start and End are rune offsets into the document text. End is exclusive.
	Start int
	End   int

	// Text is the chunk content, exactly text[Start:End] in runes.
	Text string
}

// Splitter produces overlapping chunks of a fixed maximum size.
// A Splitter is immutable and safe to call from multiple goroutines.
type Splitter struct {
	// size is the maximum chunk length in runes.
	size int
	// overlap is the number of runes shared between consecutive chunks.
	overlap int
}

// NewSplitter constructs a Splitter with the given maximum chunk size and
// overlap, both in runes. Fails with ErrInvalidConfiguration when size is
// not positive, overlap is negative, or overlap >= size (the step would
// never advance).
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: size must be positive, got %d: %w", size, rag.ErrInvalidConfiguration)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d: %w", overlap, rag.ErrInvalidConfiguration)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than size %d: %w", overlap, size, rag.ErrInvalidConfiguration)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the overlap between consecutive chunks in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts text into chunks covering the full document with no gaps.
// Consecutive chunks share exactly the configured overlap; the step between
// chunk starts is size − overlap. A document shorter than size yields
// exactly one chunk, a trailing remainder yields a final short chunk, and
// empty text yields no chunks.
//
// Concatenating the first chunk with every later chunk stripped of its
// overlap prefix reconstructs the input exactly.
func (s *Splitter) Split(documentID, text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.size - s.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Join reconstructs the original document text from a chunk sequence
// produced by Split with the same overlap. It is the inverse of Split and
// exists mainly so tests and callers can verify lossless coverage.
func Join(chunks []Chunk, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	out := []rune(chunks[0].Text)
	for _, c := range chunks[1:] {
		r := []rune(c.Text)
		if overlap < len(r) {
			out = append(out, r[overlap:]...)
		}
	}
	return string(out)
}
