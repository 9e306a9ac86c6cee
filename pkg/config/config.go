package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Chat      ChatConfig      `json:"chat"`
	Providers ProvidersConfig `json:"providers"`
	Embedding EmbeddingConfig `json:"embedding"`
	Memory    MemoryConfig    `json:"memory"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Tools     ToolsConfig     `json:"tools"`
	Channels  ChannelsConfig  `json:"channels"`
	Logging   LoggingConfig   `json:"logging"`
	mu        sync.RWMutex
}

type ChatConfig struct {
	DataDir           string  `json:"data_dir" env:"DOCCHAT_CHAT_DATA_DIR"`
	Provider          string  `json:"provider" env:"DOCCHAT_CHAT_PROVIDER"`
	Model             string  `json:"model" env:"DOCCHAT_CHAT_MODEL"`
	MaxTokens         int     `json:"max_tokens" env:"DOCCHAT_CHAT_MAX_TOKENS"`
	Temperature       float64 `json:"temperature" env:"DOCCHAT_CHAT_TEMPERATURE"`
	MaxToolIterations int     `json:"max_tool_iterations" env:"DOCCHAT_CHAT_MAX_TOOL_ITERATIONS"`
	SystemPrompt      string  `json:"system_prompt" env:"DOCCHAT_CHAT_SYSTEM_PROMPT"`
}

type ProvidersConfig struct {
	OpenAI    OpenAIConfig    `json:"openai"`
	Anthropic AnthropicConfig `json:"anthropic"`
	Gemini    GeminiConfig    `json:"gemini"`
}

type OpenAIConfig struct {
	APIKey       string `json:"api_key" env:"DOCCHAT_PROVIDERS_OPENAI_API_KEY"`
	APIBase      string `json:"api_base" env:"DOCCHAT_PROVIDERS_OPENAI_API_BASE"`
	Organization string `json:"organization,omitempty" env:"DOCCHAT_PROVIDERS_OPENAI_ORGANIZATION"`
	Proxy        string `json:"proxy,omitempty" env:"DOCCHAT_PROVIDERS_OPENAI_PROXY"`
}

type AnthropicConfig struct {
	APIKey  string `json:"api_key" env:"DOCCHAT_PROVIDERS_ANTHROPIC_API_KEY"`
	APIBase string `json:"api_base" env:"DOCCHAT_PROVIDERS_ANTHROPIC_API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"DOCCHAT_PROVIDERS_ANTHROPIC_PROXY"`
}

type GeminiConfig struct {
	APIKey  string `json:"api_key" env:"DOCCHAT_PROVIDERS_GEMINI_API_KEY"`
	APIBase string `json:"api_base" env:"DOCCHAT_PROVIDERS_GEMINI_API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"DOCCHAT_PROVIDERS_GEMINI_PROXY"`
}

type EmbeddingConfig struct {
	Model     string `json:"model" env:"DOCCHAT_EMBEDDING_MODEL"`
	APIBase   string `json:"api_base" env:"DOCCHAT_EMBEDDING_API_BASE"`
	APIKey    string `json:"api_key" env:"DOCCHAT_EMBEDDING_API_KEY"`
	CacheSize int    `json:"cache_size" env:"DOCCHAT_EMBEDDING_CACHE_SIZE"`
}

type MemoryConfig struct {
	Policy         string `json:"policy" env:"DOCCHAT_MEMORY_POLICY"` // count | tokens | summary
	WindowMessages int    `json:"window_messages" env:"DOCCHAT_MEMORY_WINDOW_MESSAGES"`
	TokenBudget    int    `json:"token_budget" env:"DOCCHAT_MEMORY_TOKEN_BUDGET"`
	SummaryTail    int    `json:"summary_tail" env:"DOCCHAT_MEMORY_SUMMARY_TAIL"`
	SummaryModel   string `json:"summary_model" env:"DOCCHAT_MEMORY_SUMMARY_MODEL"`
}

type RetrievalConfig struct {
	Backend          string `json:"backend" env:"DOCCHAT_RETRIEVAL_BACKEND"` // chromem | memory
	TopN             int    `json:"top_n" env:"DOCCHAT_RETRIEVAL_TOP_N"`
	MaxDocumentBytes int    `json:"max_document_bytes" env:"DOCCHAT_RETRIEVAL_MAX_DOCUMENT_BYTES"`
}

type WeatherConfig struct {
	APIKey string `json:"api_key" env:"DOCCHAT_TOOLS_WEATHER_API_KEY"`
	Unit   string `json:"unit" env:"DOCCHAT_TOOLS_WEATHER_UNIT"` // celsius | fahrenheit
}

type WebConfig struct {
	MaxChars int `json:"max_chars" env:"DOCCHAT_TOOLS_WEB_MAX_CHARS"`
}

type SearchConfig struct {
	Enabled    bool `json:"enabled" env:"DOCCHAT_TOOLS_SEARCH_ENABLED"`
	MaxResults int  `json:"max_results" env:"DOCCHAT_TOOLS_SEARCH_MAX_RESULTS"`
}

type ToolsConfig struct {
	Weather WeatherConfig `json:"weather"`
	Web     WebConfig     `json:"web"`
	Search  SearchConfig  `json:"search"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"DOCCHAT_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"DOCCHAT_CHANNELS_DISCORD_ALLOW_FROM"`
}

type LoggingConfig struct {
	Level string `json:"level" env:"DOCCHAT_LOGGING_LEVEL"`
	File  string `json:"file,omitempty" env:"DOCCHAT_LOGGING_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			DataDir:           "~/.docchat",
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			MaxTokens:         2048,
			Temperature:       0.7,
			MaxToolIterations: 4,
			SystemPrompt: "You are a helpful assistant. Answer the user's question based on the provided " +
				"context and conversation history. If the answer is not in the context, say so.",
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			CacheSize: 256,
		},
		Memory: MemoryConfig{
			Policy:         "count",
			WindowMessages: 6,
			TokenBudget:    2000,
			SummaryTail:    4,
			SummaryModel:   "gpt-4o-mini",
		},
		Retrieval: RetrievalConfig{
			Backend:          "chromem",
			TopN:             3,
			MaxDocumentBytes: 512 * 1024,
		},
		Tools: ToolsConfig{
			Weather: WeatherConfig{Unit: "celsius"},
			Web:     WebConfig{MaxChars: 50000},
			Search:  SearchConfig{Enabled: true, MaxResults: 5},
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{AllowFrom: FlexibleStringSlice{}},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads the JSON config at path (a missing file falls back to
// defaults) and then applies DOCCHAT_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// DataDirPath returns the expanded data directory.
func (c *Config) DataDirPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Chat.DataDir)
}

// SessionDBPath is the SQLite database holding chat sessions.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.DataDirPath(), "sessions.db")
}

// VectorStorePath is the on-disk chromem collection directory.
func (c *Config) VectorStorePath() string {
	return filepath.Join(c.DataDirPath(), "vectors")
}

// EmbeddingAPIKey falls back to the OpenAI key when no dedicated
// embedding credential is configured.
func (c *Config) EmbeddingAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if k := strings.TrimSpace(c.Embedding.APIKey); k != "" {
		return k
	}
	return strings.TrimSpace(c.Providers.OpenAI.APIKey)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
