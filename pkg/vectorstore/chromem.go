package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

const collectionName = "documents"

// ChromemStore persists embedded documents with chromem-go. Embeddings
// are always supplied by the caller, so the collection's embedding func
// only exists to satisfy the API and never runs.
type ChromemStore struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) a persistent store at path.
func NewChromemStore(path string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector store at %s: %w", path, err)
	}

	s := &ChromemStore{db: db}
	if err := s.openCollection(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ChromemStore) openCollection() error {
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embeddings must be precomputed")
	}

	if col := s.db.GetCollection(collectionName, embeddingFunc); col != nil {
		s.collection = col
		return nil
	}

	col, err := s.db.CreateCollection(collectionName, nil, embeddingFunc)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, id, text string, embedding []float32) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is required for document %q", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// chromem treats AddDocument with an existing ID as a replacement
	return s.collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: embedding,
	})
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, topN int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.collection.Count()
	if count == 0 {
		return nil, ErrStoreEmpty
	}
	if topN <= 0 {
		return []Result{}, nil
	}
	// chromem rejects nResults larger than the collection
	if topN > count {
		topN = count
	}

	hits, err := s.collection.QueryEmbedding(ctx, embedding, topN, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ID:         h.ID,
			Text:       h.Content,
			Similarity: h.Similarity,
		}
	}
	return results, nil
}

// Clear drops the collection and recreates it empty.
func (s *ChromemStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("clear vector store: %w", err)
	}
	return s.openCollection()
}

func (s *ChromemStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection.Count(), nil
}
