package store

import (
	"context"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_RecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, "what is docq?", "a document Q&A tool", []string{"readme.md"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	exchanges, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(exchanges) != 1 {
		t.Fatalf("want 1 exchange, got %d", len(exchanges))
	}
	e := exchanges[0]
	if e.Question != "what is docq?" || e.Answer != "a document Q&A tool" {
		t.Errorf("unexpected exchange: %+v", e)
	}
	if len(e.Sources) != 1 || e.Sources[0] != "readme.md" {
		t.Errorf("sources round-trip failed: %v", e.Sources)
	}
	if e.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func Test_Store_NilSourcesStoredAsEmpty(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, "q", "a", nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	exchanges, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if exchanges[0].Sources == nil || len(exchanges[0].Sources) != 0 {
		t.Errorf("want empty sources slice, got %v", exchanges[0].Sources)
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for range 6 {
		if err := s.Record(ctx, "q", "a", nil); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	exchanges, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(exchanges) != 4 {
		t.Errorf("want 4 exchanges, got %d", len(exchanges))
	}
}

func Test_Store_EmptyHistoryReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	exchanges, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent empty: %v", err)
	}
	if len(exchanges) != 0 {
		t.Errorf("want 0 exchanges, got %d", len(exchanges))
	}
}

func Test_Store_OldestFirstOrdering(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	questions := []string{"first", "second", "third"}
	for _, q := range questions {
		if err := s.Record(ctx, q, "answer", nil); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	exchanges, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	for i, want := range questions {
		if exchanges[i].Question != want {
			t.Errorf("exchange[%d]: want %q, got %q", i, want, exchanges[i].Question)
		}
	}
}
