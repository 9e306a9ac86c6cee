package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sidlabs/docchat/pkg/config"
)

const (
	geminiDefaultAPIBase = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-2.0-flash"
)

func init() {
	RegisterFactory(ProviderGemini, newGeminiProvider, validateGeminiConfig)
}

func validateGeminiConfig(cfg *config.Config) error {
	if cfg == nil || strings.TrimSpace(cfg.Providers.Gemini.APIKey) == "" {
		return fmt.Errorf("Gemini API key is not configured (set providers.gemini.api_key or DOCCHAT_PROVIDERS_GEMINI_API_KEY)")
	}
	return nil
}

// geminiProvider speaks the generateContent API: contents/parts instead
// of messages, systemInstruction for the system prompt, and tool calls
// as functionCall/functionResponse parts. Streaming is not implemented.
type geminiProvider struct {
	apiBase    string
	auth       AuthStrategy
	httpClient *http.Client
}

func newGeminiProvider(cfg *config.Config) (LLMProvider, error) {
	if err := validateGeminiConfig(cfg); err != nil {
		return nil, err
	}

	gc := cfg.Providers.Gemini

	apiBase := strings.TrimRight(strings.TrimSpace(gc.APIBase), "/")
	if apiBase == "" {
		apiBase = geminiDefaultAPIBase
	}

	client, err := newHTTPClient(ProviderGemini, gc.Proxy)
	if err != nil {
		return nil, err
	}

	return &geminiProvider{
		apiBase:    apiBase,
		auth:       NewQueryKeyAuth("key", NewStaticTokenSource(gc.APIKey, "config.providers.gemini.api_key")),
		httpClient: client,
	}, nil
}

func (p *geminiProvider) Name() string { return ProviderGemini }

func (p *geminiProvider) GetDefaultModel() string { return geminiDefaultModel }

func (p *geminiProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = geminiDefaultModel
	}

	system, contents := buildGeminiContents(messages)

	requestBody := map[string]interface{}{
		"contents": contents,
	}
	if system != "" {
		requestBody["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": system}},
		}
	}
	generationConfig := map[string]interface{}{}
	if maxTokens, ok := optionAsInt(options, "max_tokens"); ok {
		generationConfig["maxOutputTokens"] = maxTokens
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		generationConfig["temperature"] = temperature
	}
	if len(generationConfig) > 0 {
		requestBody["generationConfig"] = generationConfig
	}
	if len(tools) > 0 {
		declarations := make([]map[string]interface{}, 0, len(tools))
		for _, t := range tools {
			declarations = append(declarations, map[string]interface{}{
				"name":        t.Function.Name,
				"description": t.Function.Description,
				"parameters":  t.Function.Parameters,
			})
		}
		requestBody["tools"] = []map[string]interface{}{{"functionDeclarations": declarations}}
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.apiBase, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := p.auth.Apply(ctx, req); err != nil {
		return nil, fmt.Errorf("apply gemini auth: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("gemini API request failed: status=%d error=%s", resp.StatusCode, extractAPIError(raw))
	}

	return parseGeminiResponse(raw)
}

func buildGeminiContents(messages []Message) (string, []map[string]interface{}) {
	var systemParts []string
	contents := make([]map[string]interface{}, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case "system":
			if strings.TrimSpace(m.Content) != "" {
				systemParts = append(systemParts, m.Content)
			}
		case "assistant":
			parts := []map[string]interface{}{}
			if strings.TrimSpace(m.Content) != "" {
				parts = append(parts, map[string]interface{}{"text": m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := tc.Arguments
				if args == nil && tc.Function != nil {
					args = parseToolArguments(tc.Function.Arguments)
				}
				if args == nil {
					args = map[string]interface{}{}
				}
				name := tc.Name
				if name == "" && tc.Function != nil {
					name = tc.Function.Name
				}
				parts = append(parts, map[string]interface{}{
					"functionCall": map[string]interface{}{"name": name, "args": args},
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, map[string]interface{}{"role": "model", "parts": parts})
		case "tool":
			// Gemini matches responses by function name, not call ID
			name := m.Name
			if name == "" {
				name = m.ToolCallID
			}
			var response map[string]interface{}
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]interface{}{"result": m.Content}
			}
			contents = append(contents, map[string]interface{}{
				"role": "user",
				"parts": []map[string]interface{}{{
					"functionResponse": map[string]interface{}{
						"name":     name,
						"response": response,
					},
				}},
			})
		default:
			contents = append(contents, map[string]interface{}{
				"role":  "user",
				"parts": []map[string]interface{}{{"text": m.Content}},
			})
		}
	}

	return strings.Join(systemParts, "\n\n"), contents
}

func parseGeminiResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text         string `json:"text"`
					FunctionCall *struct {
						Name string                 `json:"name"`
						Args map[string]interface{} `json:"args"`
					} `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata *struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if len(apiResponse.Candidates) == 0 {
		return &LLMResponse{Content: "", FinishReason: "stop"}, nil
	}

	candidate := apiResponse.Candidates[0]
	var content strings.Builder
	var toolCalls []ToolCall
	for i, part := range candidate.Content.Parts {
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]interface{}{}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        fmt.Sprintf("%s-%d", part.FunctionCall.Name, i),
				Type:      "function",
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
			continue
		}
		content.WriteString(part.Text)
	}

	finishReason := "stop"
	if len(toolCalls) > 0 {
		finishReason = "tool_calls"
	} else if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
		finishReason = strings.ToLower(candidate.FinishReason)
	}

	result := &LLMResponse{
		Content:      content.String(),
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
	}
	if apiResponse.UsageMetadata != nil {
		result.Usage = &UsageInfo{
			PromptTokens:     apiResponse.UsageMetadata.PromptTokenCount,
			CompletionTokens: apiResponse.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      apiResponse.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}
