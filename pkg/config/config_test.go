package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Provider(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "openai", cfg.Chat.Provider)
	assert.NotEmpty(t, cfg.Chat.Model)
}

func TestDefaultConfig_MemoryPolicy(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "count", cfg.Memory.Policy)
	assert.Equal(t, 6, cfg.Memory.WindowMessages)
	assert.Equal(t, 2000, cfg.Memory.TokenBudget)
}

func TestDefaultConfig_Retrieval(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "chromem", cfg.Retrieval.Backend)
	assert.NotZero(t, cfg.Retrieval.TopN)
	assert.NotZero(t, cfg.Retrieval.MaxDocumentBytes)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Chat.Provider)
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"chat": {"provider": "anthropic", "model": "claude-3-5-haiku-20241022"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	t.Setenv("DOCCHAT_CHAT_MODEL", "claude-sonnet-4-20250514")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Chat.Provider, "file value survives")
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Chat.Model, "env wins over file")
}

func TestFlexibleStringSlice_MixedTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"channels": {"discord": {"allow_from": ["alice", 12345]}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "12345"}, []string(cfg.Channels.Discord.AllowFrom))
}

func TestEmbeddingAPIKey_FallsBackToOpenAI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.OpenAI.APIKey = "sk-openai"
	assert.Equal(t, "sk-openai", cfg.EmbeddingAPIKey())

	cfg.Embedding.APIKey = "sk-embed"
	assert.Equal(t, "sk-embed", cfg.EmbeddingAPIKey())
}
