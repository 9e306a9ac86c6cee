// Package embedding produces dense vectors for text via an
// OpenAI-compatible embeddings endpoint, with an optional LRU cache in
// front.
package embedding

import "context"

// Embedder maps text to a dense vector. Implementations issue at most
// one network attempt per call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
}
