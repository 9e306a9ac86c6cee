// Package vectorstore holds embedded documents and answers
// nearest-neighbor queries by cosine similarity. Two backends exist: an
// in-memory store and a persistent chromem-go store.
package vectorstore

import (
	"context"
	"errors"
)

// ErrStoreEmpty is returned by Query when nothing has been ingested.
var ErrStoreEmpty = errors.New("vector store is empty")

// Result is one retrieval hit. Similarity is cosine, in [-1, 1].
type Result struct {
	ID         string
	Text       string
	Similarity float32
}

// Store is a collection of embedded documents keyed by ID. Upsert with
// an existing ID replaces the prior record. Equal similarities rank by
// insertion order.
type Store interface {
	Upsert(ctx context.Context, id, text string, embedding []float32) error
	Query(ctx context.Context, embedding []float32, topN int) ([]Result, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
