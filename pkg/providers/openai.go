package providers

import (
	"fmt"
	"strings"

	"github.com/sidlabs/docchat/pkg/config"
)

const (
	openAIDefaultAPIBase = "https://api.openai.com/v1"
	openAIDefaultModel   = "gpt-4o-mini"
)

func init() {
	RegisterFactory(ProviderOpenAI, newOpenAIProvider, validateOpenAIConfig)
}

func validateOpenAIConfig(cfg *config.Config) error {
	if cfg == nil || strings.TrimSpace(cfg.Providers.OpenAI.APIKey) == "" {
		return fmt.Errorf("OpenAI API key is not configured (set providers.openai.api_key or DOCCHAT_PROVIDERS_OPENAI_API_KEY)")
	}
	return nil
}

// newOpenAIProvider builds the OpenAI adapter. Anything exposing the
// /chat/completions surface works through an api_base override.
func newOpenAIProvider(cfg *config.Config) (LLMProvider, error) {
	if err := validateOpenAIConfig(cfg); err != nil {
		return nil, err
	}

	oc := cfg.Providers.OpenAI

	apiBase := strings.TrimSpace(oc.APIBase)
	if apiBase == "" {
		apiBase = openAIDefaultAPIBase
	}

	auth := NewBearerAuth(NewStaticTokenSource(oc.APIKey, "config.providers.openai.api_key"))

	extraHeaders := map[string]string{}
	if org := strings.TrimSpace(oc.Organization); org != "" {
		extraHeaders["OpenAI-Organization"] = org
	}

	return newChatCompletionsProvider(ProviderOpenAI, apiBase, openAIDefaultModel, oc.Proxy, auth, extraHeaders)
}
