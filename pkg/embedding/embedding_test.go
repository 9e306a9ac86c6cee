package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Name() string   { return "counting" }
func (c *countingEmbedder) Dimension() int { return 3 }

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text)), 0, 1}, nil
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var gotModel, gotInput, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, gotInput = body.Model, body.Input
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3]}]}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(server.URL, "sk-test", "text-embedding-3-small")
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}

	vector, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vector) != 3 || vector[0] != 0.1 {
		t.Errorf("vector = %v", vector)
	}
	if gotModel != "text-embedding-3-small" || gotInput != "hello" {
		t.Errorf("request: model=%q input=%q", gotModel, gotInput)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestOpenAIEmbedder_RequestFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(server.URL, "sk-test", "")
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}

	_, err = e.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	var failed *RequestFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("err = %T, want *RequestFailedError", err)
	}
	if failed.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", failed.StatusCode)
	}
	if failed.Message != "rate limit exceeded" {
		t.Errorf("Message = %q", failed.Message)
	}
}

func TestOpenAIEmbedder_EmptyTextGoesToProvider(t *testing.T) {
	// no local validation: the provider sees the input and its
	// rejection comes back typed
	var gotInput string
	served := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
		var body struct {
			Input string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotInput = body.Input
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "input must not be empty"}}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(server.URL, "sk-test", "")
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}

	_, err = e.Embed(context.Background(), "")
	if !served {
		t.Fatal("empty input should still reach the provider")
	}
	if gotInput != "" {
		t.Errorf("input = %q, want empty string passed through", gotInput)
	}
	var failed *RequestFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("err = %T, want *RequestFailedError", err)
	}
	if failed.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d", failed.StatusCode)
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder("", "", ""); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestCachedEmbedder_HitsAndMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	ctx := context.Background()
	first, err := cached.Embed(ctx, "same text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := cached.Embed(ctx, "same text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if first[0] != second[0] {
		t.Errorf("cached vector differs: %v vs %v", first, second)
	}

	if _, err := cached.Embed(ctx, "different text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 1)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	ctx := context.Background()
	_, _ = cached.Embed(ctx, "a")
	_, _ = cached.Embed(ctx, "b") // evicts "a"
	_, _ = cached.Embed(ctx, "a")
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3", inner.calls)
	}
}
