package vectorstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_QueryRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	mustUpsert(t, s, "cats.txt", "about cats", []float32{1, 0, 0})
	mustUpsert(t, s, "dogs.txt", "about dogs", []float32{0, 1, 0})
	mustUpsert(t, s, "mixed.txt", "cats and dogs", []float32{0.7, 0.7, 0})

	results, err := s.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].ID != "cats.txt" {
		t.Errorf("top hit = %q, want cats.txt", results[0].ID)
	}
	if results[1].ID != "mixed.txt" {
		t.Errorf("second hit = %q, want mixed.txt", results[1].ID)
	}
}

func TestMemoryStore_EmptyQueryReturnsSentinel(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Query(context.Background(), []float32{1, 0}, 3)
	if !errors.Is(err, ErrStoreEmpty) {
		t.Errorf("err = %v, want ErrStoreEmpty", err)
	}
}

func TestMemoryStore_ClearThenQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustUpsert(t, s, "a.txt", "a", []float32{1, 0})

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Query(ctx, []float32{1, 0}, 1); !errors.Is(err, ErrStoreEmpty) {
		t.Errorf("err after Clear = %v, want ErrStoreEmpty", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Count after Clear = %d", n)
	}
}

func TestMemoryStore_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustUpsert(t, s, "doc.txt", "old text", []float32{1, 0})
	mustUpsert(t, s, "doc.txt", "new text", []float32{0, 1})

	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
	results, err := s.Query(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if results[0].Text != "new text" {
		t.Errorf("Text = %q, want replacement", results[0].Text)
	}
}

func TestMemoryStore_EqualSimilarityKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustUpsert(t, s, "first.txt", "first", []float32{1, 0})
	mustUpsert(t, s, "second.txt", "second", []float32{1, 0})
	mustUpsert(t, s, "third.txt", "third", []float32{1, 0})

	results, err := s.Query(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"first.txt", "second.txt", "third.txt"}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("results[%d] = %q, want %q", i, results[i].ID, id)
		}
	}
}

func TestMemoryStore_TopNLargerThanStore(t *testing.T) {
	s := NewMemoryStore()
	mustUpsert(t, s, "only.txt", "only", []float32{1, 0})

	results, err := s.Query(context.Background(), []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
}

func TestChromemStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	if _, err := s.Query(ctx, []float32{1, 0, 0}, 3); !errors.Is(err, ErrStoreEmpty) {
		t.Fatalf("empty query err = %v, want ErrStoreEmpty", err)
	}

	mustUpsert(t, s, "cats.txt", "about cats", []float32{1, 0, 0})
	mustUpsert(t, s, "dogs.txt", "about dogs", []float32{0, 1, 0})

	// topN above the doc count must clamp, not error
	results, err := s.Query(ctx, []float32{0.9, 0.1, 0}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].ID != "cats.txt" {
		t.Errorf("top hit = %q, want cats.txt", results[0].ID)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Query(ctx, []float32{1, 0, 0}, 1); !errors.Is(err, ErrStoreEmpty) {
		t.Errorf("err after Clear = %v, want ErrStoreEmpty", err)
	}
}

func TestChromemStore_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	mustUpsert(t, s, "doc.txt", "old text", []float32{1, 0})
	mustUpsert(t, s, "doc.txt", "new text", []float32{1, 0})

	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func mustUpsert(t *testing.T, s Store, id, text string, embedding []float32) {
	t.Helper()
	if err := s.Upsert(context.Background(), id, text, embedding); err != nil {
		t.Fatalf("Upsert(%s): %v", id, err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("identical vectors = %v, want ~1", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors = %v, want 0", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector = %v, want 0", got)
	}
}
