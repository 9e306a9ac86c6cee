// Package rag wires document loading, embedding, and vector retrieval
// into the ingest/retrieve cycle behind document-grounded chat.
package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sidlabs/docchat/pkg/docload"
	"github.com/sidlabs/docchat/pkg/embedding"
	"github.com/sidlabs/docchat/pkg/logger"
	"github.com/sidlabs/docchat/pkg/vectorstore"
)

const defaultMaxDocumentBytes = 512 * 1024

// Service owns the document corpus.
type Service struct {
	embedder         embedding.Embedder
	store            vectorstore.Store
	topN             int
	maxDocumentBytes int
}

func NewService(embedder embedding.Embedder, store vectorstore.Store, topN, maxDocumentBytes int) *Service {
	if topN <= 0 {
		topN = 3
	}
	if maxDocumentBytes <= 0 {
		maxDocumentBytes = defaultMaxDocumentBytes
	}
	return &Service{
		embedder:         embedder,
		store:            store,
		topN:             topN,
		maxDocumentBytes: maxDocumentBytes,
	}
}

// Ingest replaces the corpus with the given files. All documents are
// loaded and embedded before the store is touched, so a failure leaves
// the previous corpus intact.
func (s *Service) Ingest(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, fmt.Errorf("no documents to ingest")
	}

	type embedded struct {
		id     string
		text   string
		vector []float32
	}
	prepared := make([]embedded, 0, len(paths))

	for _, path := range paths {
		doc, err := docload.Load(path)
		if err != nil {
			return 0, err
		}

		text := doc.Text
		if len(text) > s.maxDocumentBytes {
			logger.WarnCF("rag", "Document truncated",
				map[string]interface{}{
					"id":        doc.ID,
					"bytes":     len(text),
					"max_bytes": s.maxDocumentBytes,
				})
			text = truncateAtRune(text, s.maxDocumentBytes)
		}
		if strings.TrimSpace(text) == "" {
			return 0, fmt.Errorf("document %s has no extractable text", doc.ID)
		}

		vector, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", doc.ID, err)
		}
		prepared = append(prepared, embedded{id: doc.ID, text: text, vector: vector})
	}

	if err := s.store.Clear(ctx); err != nil {
		return 0, err
	}
	for _, doc := range prepared {
		if err := s.store.Upsert(ctx, doc.id, doc.text, doc.vector); err != nil {
			return 0, fmt.Errorf("store %s: %w", doc.id, err)
		}
	}

	logger.InfoCF("rag", "Corpus ingested",
		map[string]interface{}{
			"documents": len(prepared),
			"embedder":  s.embedder.Name(),
		})
	return len(prepared), nil
}

// truncateAtRune cuts s to at most max bytes without splitting a UTF-8
// sequence, so truncated text stays valid for the embedding API.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// Retrieve returns the stored documents most similar to the query.
// vectorstore.ErrStoreEmpty passes through when nothing is ingested.
func (s *Service) Retrieve(ctx context.Context, query string) ([]vectorstore.Result, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.Query(ctx, vector, s.topN)
}

// BuildContext formats retrieval hits into the context block placed in
// the system prompt.
func BuildContext(results []vectorstore.Result) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Context documents:\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "\n--- %s ---\n%s\n", r.ID, r.Text)
	}
	return sb.String()
}
