package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

// cachedEmbedder wraps an Embedder with an LRU keyed by exact text, so
// re-ingesting an unchanged document costs nothing.
type cachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder decorates inner with an LRU cache of the given
// size. A non-positive size uses the default.
func NewCachedEmbedder(inner Embedder, size int) (Embedder, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &cachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *cachedEmbedder) Name() string { return c.inner.Name() }

func (c *cachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := c.cache.Get(text); ok {
		return vector, nil
	}
	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, vector)
	return vector, nil
}
