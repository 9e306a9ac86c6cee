package main

import (
	"fmt"
	"strings"

	"github.com/sidlabs/docchat/pkg/agent"
	"github.com/sidlabs/docchat/pkg/config"
	"github.com/sidlabs/docchat/pkg/embedding"
	"github.com/sidlabs/docchat/pkg/providers"
	"github.com/sidlabs/docchat/pkg/rag"
	"github.com/sidlabs/docchat/pkg/session"
	"github.com/sidlabs/docchat/pkg/tools"
	"github.com/sidlabs/docchat/pkg/vectorstore"
)

func newProvider(cfg *config.Config) (providers.LLMProvider, error) {
	if err := providers.ValidateProviderConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w (config: %s)", err, getConfigPath())
	}
	return providers.CreateProvider(cfg)
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	embedder, err := embedding.NewOpenAIEmbedder(cfg.Embedding.APIBase, cfg.EmbeddingAPIKey(), cfg.Embedding.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Embedding.CacheSize > 0 {
		return embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}
	return embedder, nil
}

func newVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Retrieval.Backend)) {
	case "chromem", "":
		return vectorstore.NewChromemStore(cfg.VectorStorePath())
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown retrieval backend %q (supported: chromem, memory)", cfg.Retrieval.Backend)
	}
}

func newRetriever(cfg *config.Config) (*rag.Service, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	store, err := newVectorStore(cfg)
	if err != nil {
		return nil, err
	}
	return rag.NewService(embedder, store, cfg.Retrieval.TopN, cfg.Retrieval.MaxDocumentBytes), nil
}

func newToolRegistry(cfg *config.Config) *tools.ToolRegistry {
	registry := tools.NewToolRegistry()
	registry.Register(tools.NewWeatherTool(cfg.Tools.Weather.APIKey, cfg.Tools.Weather.Unit))
	registry.Register(tools.NewWebFetchTool(cfg.Tools.Web.MaxChars))
	if cfg.Tools.Search.Enabled {
		registry.Register(tools.NewWebSearchTool(tools.NewDuckDuckGoSearchProvider(), cfg.Tools.Search.MaxResults))
	}
	return registry
}

// newChatService wires the full chat stack. The returned cleanup closes
// the session database.
func newChatService(cfg *config.Config, withRetriever bool) (*agent.ChatService, func(), error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	var retriever *rag.Service
	if withRetriever {
		retriever, err = newRetriever(cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	store, err := session.NewStore(cfg.SessionDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}

	svc := agent.NewChatService(cfg, provider, newToolRegistry(cfg), store, retriever)
	return svc, func() { _ = store.Close() }, nil
}
