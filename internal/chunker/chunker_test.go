package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/docforge/docq-go/internal/rag"
)

func mustSplitter(t *testing.T, size, overlap int) *Splitter {
	t.Helper()
	s, err := NewSplitter(size, overlap)
	if err != nil {
		t.Fatalf("NewSplitter(%d, %d): %v", size, overlap, err)
	}
	return s
}

func TestNewSplitter_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSplitter(tc.size, tc.overlap)
			if !errors.Is(err, rag.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestSplit_OverlapExample(t *testing.T) {
	t.Parallel()

	s := mustSplitter(t, 4, 1)
	chunks := s.Split("doc", "ABCDEFGHIJ")

	want := []string{"ABCD", "DEFG", "GHIJ"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk[%d]: expected %q, got %q", i, w, chunks[i].Text)
		}
		if chunks[i].Index != i {
			t.Errorf("chunk[%d]: index %d", i, chunks[i].Index)
		}
	}

	if got := Join(chunks, 1); got != "ABCDEFGHIJ" {
		t.Errorf("Join: expected original text, got %q", got)
	}
}

func TestSplit_ShortDocumentYieldsOneChunk(t *testing.T) {
	t.Parallel()

	s := mustSplitter(t, 100, 10)
	chunks := s.Split("doc", "short text")

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short text" {
		t.Errorf("chunk text: got %q", chunks[0].Text)
	}
	if chunks[0].Start != 0 || chunks[0].End != len([]rune("short text")) {
		t.Errorf("offsets: got [%d, %d)", chunks[0].Start, chunks[0].End)
	}
}

func TestSplit_TrailingRemainderIsNotPadded(t *testing.T) {
	t.Parallel()

	s := mustSplitter(t, 4, 1)
	chunks := s.Split("doc", "ABCDEFGHIJK") // 11 runes, starts 0,3,6,9

	last := chunks[len(chunks)-1]
	if last.Text != "JK" {
		t.Errorf("last chunk: expected %q, got %q", "JK", last.Text)
	}
	if got := Join(chunks, 1); got != "ABCDEFGHIJK" {
		t.Errorf("Join: got %q", got)
	}
}

func TestSplit_EmptyTextYieldsNoChunks(t *testing.T) {
	t.Parallel()

	s := mustSplitter(t, 4, 1)
	if chunks := s.Split("doc", ""); chunks != nil {
		t.Errorf("expected nil, got %+v", chunks)
	}
}

func TestSplit_ExactMultipleHasNoEmptyTail(t *testing.T) {
	t.Parallel()

	s := mustSplitter(t, 4, 0)
	chunks := s.Split("doc", "ABCDEFGH")

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "ABCD" || chunks[1].Text != "EFGH" {
		t.Errorf("chunks: %q, %q", chunks[0].Text, chunks[1].Text)
	}
}

func TestSplit_MultibyteRunesNeverSplit(t *testing.T) {
	t.Parallel()

	s := mustSplitter(t, 3, 1)
	text := "héllø wörld"
	chunks := s.Split("doc", text)

	for i, c := range chunks {
		if !strings.Contains(text, c.Text) {
			t.Errorf("chunk[%d] %q is not a substring of the input — rune split broken", i, c.Text)
		}
	}
	if got := Join(chunks, 1); got != text {
		t.Errorf("Join: expected %q, got %q", text, got)
	}
}

// TestSplit_ReconstructionProperty verifies that for a range of sizes and
// overlaps, stripping the overlap prefix of every chunk after the first
// reconstructs the document exactly (full coverage, no gaps).
func TestSplit_ReconstructionProperty(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)

	cases := []struct{ size, overlap int }{
		{10, 0},
		{10, 3},
		{64, 16},
		{100, 99},
		{5000, 100}, // larger than the document
	}
	for _, tc := range cases {
		s := mustSplitter(t, tc.size, tc.overlap)
		chunks := s.Split("doc", text)

		if got := Join(chunks, tc.overlap); got != text {
			t.Errorf("size=%d overlap=%d: reconstruction mismatch (len %d vs %d)",
				tc.size, tc.overlap, len(got), len(text))
		}

		// Consecutive chunks must share exactly the configured overlap.
		for i := 1; i < len(chunks); i++ {
			if chunks[i].Start != chunks[i-1].End-tc.overlap && chunks[i-1].End-chunks[i-1].Start == tc.size {
				t.Errorf("size=%d overlap=%d: chunk[%d] starts at %d, expected %d",
					tc.size, tc.overlap, i, chunks[i].Start, chunks[i-1].End-tc.overlap)
			}
		}
	}
}
