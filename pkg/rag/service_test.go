package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sidlabs/docchat/pkg/vectorstore"
)

// keywordEmbedder maps text onto axes by keyword so similarity is
// predictable without a real model.
type keywordEmbedder struct{}

func (keywordEmbedder) Name() string   { return "keyword" }
func (keywordEmbedder) Dimension() int { return 2 }

func (keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vector := []float32{0.01, 0.01}
	if strings.Contains(lower, "cat") {
		vector[0] = 1
	}
	if strings.Contains(lower, "dog") {
		vector[1] = 1
	}
	return vector, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string   { return "failing" }
func (failingEmbedder) Dimension() int { return 2 }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding backend down")
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestService_IngestAndRetrieve(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pathA := writeDoc(t, dir, "cats.txt", "Cats sleep most of the day.")
	pathB := writeDoc(t, dir, "dogs.txt", "Dogs love to play fetch.")

	svc := NewService(keywordEmbedder{}, vectorstore.NewMemoryStore(), 1, 0)

	n, err := svc.Ingest(ctx, []string{pathA, pathB})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Errorf("ingested = %d, want 2", n)
	}

	results, err := svc.Retrieve(ctx, "tell me about cats")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 || results[0].ID != "cats.txt" {
		t.Errorf("results = %+v, want cats.txt", results)
	}

	results, err = svc.Retrieve(ctx, "what do dogs like?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 || results[0].ID != "dogs.txt" {
		t.Errorf("results = %+v, want dogs.txt", results)
	}
}

func TestService_IngestReplacesCorpus(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pathA := writeDoc(t, dir, "cats.txt", "cat facts")
	pathB := writeDoc(t, dir, "dogs.txt", "dog facts")

	store := vectorstore.NewMemoryStore()
	svc := NewService(keywordEmbedder{}, store, 3, 0)

	if _, err := svc.Ingest(ctx, []string{pathA}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := svc.Ingest(ctx, []string{pathB}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1 after replacement", n)
	}
	results, err := svc.Retrieve(ctx, "dog")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if results[0].ID != "dogs.txt" {
		t.Errorf("top hit = %q", results[0].ID)
	}
}

func TestService_FailedIngestKeepsOldCorpus(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pathA := writeDoc(t, dir, "cats.txt", "cat facts")

	store := vectorstore.NewMemoryStore()
	svc := NewService(keywordEmbedder{}, store, 3, 0)
	if _, err := svc.Ingest(ctx, []string{pathA}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	broken := NewService(failingEmbedder{}, store, 3, 0)
	pathB := writeDoc(t, dir, "dogs.txt", "dog facts")
	if _, err := broken.Ingest(ctx, []string{pathB}); err == nil {
		t.Fatal("expected ingest failure")
	}

	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("Count = %d, old corpus should survive a failed ingest", n)
	}
}

func TestService_RetrieveEmptyStore(t *testing.T) {
	svc := NewService(keywordEmbedder{}, vectorstore.NewMemoryStore(), 3, 0)
	_, err := svc.Retrieve(context.Background(), "anything")
	if !errors.Is(err, vectorstore.ErrStoreEmpty) {
		t.Errorf("err = %v, want ErrStoreEmpty", err)
	}
}

func TestService_IngestUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "image.png", "not text")

	svc := NewService(keywordEmbedder{}, vectorstore.NewMemoryStore(), 3, 0)
	if _, err := svc.Ingest(context.Background(), []string{path}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestService_IngestTruncatesOversizedDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeDoc(t, dir, "big.txt", "cat "+strings.Repeat("x", 500))

	store := vectorstore.NewMemoryStore()
	svc := NewService(keywordEmbedder{}, store, 3, 100)

	if _, err := svc.Ingest(ctx, []string{path}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	results, err := svc.Retrieve(ctx, "cat")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results[0].Text) != 100 {
		t.Errorf("stored text = %d bytes, want 100", len(results[0].Text))
	}
}

func TestService_TruncationKeepsValidUTF8(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// 5 ascii bytes + 40 three-byte runes; the 100-byte cut lands
	// mid-rune and must back off to a boundary
	path := writeDoc(t, dir, "cjk.txt", "cats "+strings.Repeat("日", 40))

	store := vectorstore.NewMemoryStore()
	svc := NewService(keywordEmbedder{}, store, 3, 100)

	if _, err := svc.Ingest(ctx, []string{path}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	results, err := svc.Retrieve(ctx, "cat")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	stored := results[0].Text
	if !utf8.ValidString(stored) {
		t.Error("truncated text is not valid UTF-8")
	}
	if len(stored) != 98 {
		t.Errorf("stored text = %d bytes, want 98 (backed off from 100)", len(stored))
	}
}

func TestBuildContext(t *testing.T) {
	out := BuildContext([]vectorstore.Result{
		{ID: "a.txt", Text: "alpha"},
		{ID: "b.txt", Text: "beta"},
	})
	if !strings.Contains(out, "--- a.txt ---") || !strings.Contains(out, "beta") {
		t.Errorf("context = %q", out)
	}
	if BuildContext(nil) != "" {
		t.Error("empty results should produce empty context")
	}
}
