package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryRecord struct {
	id        string
	text      string
	embedding []float32
	order     int
}

// MemoryStore is a brute-force in-memory store. It is the test backend
// and the fallback when no persistent path is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	nextSeq int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*memoryRecord{}}
}

func (s *MemoryStore) Upsert(_ context.Context, id, text string, embedding []float32) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is required for document %q", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[id]; ok {
		// replacement keeps the original insertion position
		existing.text = text
		existing.embedding = embedding
		return nil
	}

	s.records[id] = &memoryRecord{
		id:        id,
		text:      text,
		embedding: embedding,
		order:     s.nextSeq,
	}
	s.nextSeq++
	return nil
}

func (s *MemoryStore) Query(_ context.Context, embedding []float32, topN int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, ErrStoreEmpty
	}
	if topN <= 0 {
		return []Result{}, nil
	}

	type scored struct {
		Result
		order int
	}
	hits := make([]scored, 0, len(s.records))
	for _, rec := range s.records {
		hits = append(hits, scored{
			Result: Result{
				ID:         rec.id,
				Text:       rec.text,
				Similarity: cosineSimilarity(embedding, rec.embedding),
			},
			order: rec.order,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].order < hits[j].order
	})

	if topN > len(hits) {
		topN = len(hits)
	}
	results := make([]Result, topN)
	for i := 0; i < topN; i++ {
		results[i] = hits[i].Result
	}
	return results, nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = map[string]*memoryRecord{}
	s.nextSeq = 0
	return nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
