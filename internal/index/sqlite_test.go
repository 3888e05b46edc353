package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/docforge/docq-go/internal/rag"
)

// openTestIndex opens a SQLiteIndex backed by a file in a per-test temp dir
// so it can be closed and reopened to exercise persistence.
func openTestIndex(t *testing.T, path string) *SQLiteIndex {
	t.Helper()
	ix, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open index at %s: %v", path, err)
	}
	return ix
}

func TestSQLiteIndex_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	ix := openTestIndex(t, path)
	docs := []rag.Document{
		{ID: "c1", Content: "alpha", Source: "doc.pdf", Metadata: map[string]string{"chunk_index": "0"}},
		{ID: "c2", Content: "beta", Source: "doc.pdf", Metadata: map[string]string{"chunk_index": "1"}},
	}
	if err := ix.Upsert(ctx, docs, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestIndex(t, path)
	defer reopened.Close()

	if reopened.Len() != 2 {
		t.Fatalf("expected 2 entries after reopen, got %d", reopened.Len())
	}
	if reopened.Dim() != 2 {
		t.Errorf("expected dim 2 after reopen, got %d", reopened.Dim())
	}

	results, err := reopened.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].ID != "c1" || results[0].Content != "alpha" {
		t.Errorf("unexpected top result: %+v", results[0])
	}
	if results[0].Metadata["chunk_index"] != "0" {
		t.Errorf("metadata lost on reload: %+v", results[0].Metadata)
	}
}

func TestSQLiteIndex_ReplacementKeepsRankAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	ix := openTestIndex(t, path)
	// Two entries with identical vectors; ties must break by insertion order.
	upsertOne(t, ix, "first", []float32{1, 1})
	upsertOne(t, ix, "second", []float32{1, 1})
	// Replace "first" — it must keep its rank, in memory and on disk.
	upsertOne(t, ix, "first", []float32{1, 1})
	if err := ix.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestIndex(t, path)
	defer reopened.Close()

	docs, err := reopened.Search(ctx, []float32{1, 1}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if docs[0].ID != "first" || docs[1].ID != "second" {
		t.Errorf("tie-break order lost across reopen: [%s %s]", docs[0].ID, docs[1].ID)
	}
}

func TestSQLiteIndex_DeletePersists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	ix := openTestIndex(t, path)
	upsertOne(t, ix, "keep", []float32{1, 0})
	upsertOne(t, ix, "drop", []float32{0, 1})
	if err := ix.Delete(ctx, []string{"drop"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestIndex(t, path)
	defer reopened.Close()

	if reopened.Len() != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", reopened.Len())
	}
	docs, err := reopened.Search(ctx, []float32{0, 1}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "keep" {
		t.Errorf("unexpected entries after delete+reopen: %+v", docs)
	}
}

func TestSQLiteIndex_DeleteDocumentPersists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	ix := openTestIndex(t, path)
	docs := []rag.Document{
		{ID: "a0", Source: "a.txt", Metadata: map[string]string{"document_id": "doc-a"}},
		{ID: "a1", Source: "a.txt", Metadata: map[string]string{"document_id": "doc-a"}},
		{ID: "b0", Source: "b.txt", Metadata: map[string]string{"document_id": "doc-b"}},
	}
	if err := ix.Upsert(ctx, docs, [][]float32{{1, 0}, {0, 1}, {1, 1}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ix.DeleteDocument(ctx, "doc-a"); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	if ix.Len() != 1 {
		t.Fatalf("expected 1 entry after document delete, got %d", ix.Len())
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestIndex(t, path)
	defer reopened.Close()

	if reopened.Len() != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", reopened.Len())
	}
	results, err := reopened.Search(ctx, []float32{1, 1}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "b0" {
		t.Errorf("unexpected survivors after delete+reopen: %+v", results)
	}
}

func TestSQLiteIndex_FailedPersistLeavesMemoryUntouched(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	ix := openTestIndex(t, path)
	upsertOne(t, ix, "c1", []float32{1, 0})

	// Closing the database makes the next persist fail. Memory must not
	// pick up the batch, or searches would serve entries that vanish on
	// the next restart.
	if err := ix.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	err := ix.Upsert(ctx,
		[]rag.Document{{ID: "c2", Content: "late"}}, [][]float32{{0, 1}})
	if err == nil {
		t.Fatal("expected upsert to fail once the database is closed")
	}
	if ix.Len() != 1 {
		t.Errorf("memory diverged from disk: Len() = %d, want 1", ix.Len())
	}

	if err := ix.Delete(ctx, []string{"c1"}); err == nil {
		t.Fatal("expected delete to fail once the database is closed")
	}
	if ix.Len() != 1 {
		t.Errorf("memory diverged from disk after failed delete: Len() = %d, want 1", ix.Len())
	}
}

func TestSQLiteIndex_VectorRoundTrip(t *testing.T) {
	t.Parallel()

	vec := []float32{0.25, -1.5, 3.14159, 0}
	got, err := decodeVector(encodeVector(vec))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(vec) {
		t.Fatalf("length: expected %d, got %d", len(vec), len(got))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("element %d: expected %f, got %f", i, vec[i], got[i])
		}
	}
}

func TestSQLiteIndex_CorruptBlobRejected(t *testing.T) {
	t.Parallel()

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for blob not divisible by 4")
	}
}
