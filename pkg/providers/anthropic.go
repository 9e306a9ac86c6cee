package providers

import (
	"bufio"
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
	anthropicDefaultAPIBase = "https://api.anthropic.com"
	anthropicDefaultModel   = "claude-3-5-haiku-20241022"
	anthropicAPIVersion     = "2023-06-01"
	anthropicMaxTokens      = 2048
)

func init() {
	RegisterFactory(ProviderAnthropic, newAnthropicProvider, validateAnthropicConfig)
}

func validateAnthropicConfig(cfg *config.Config) error {
	if cfg == nil || strings.TrimSpace(cfg.Providers.Anthropic.APIKey) == "" {
		return fmt.Errorf("Anthropic API key is not configured (set providers.anthropic.api_key or DOCCHAT_PROVIDERS_ANTHROPIC_API_KEY)")
	}
	return nil
}

// anthropicProvider speaks the Messages API. System prompts go in a
// top-level field, tool results become tool_result content blocks, and
// max_tokens is mandatory.
type anthropicProvider struct {
	apiBase    string
	auth       AuthStrategy
	httpClient *http.Client
}

func newAnthropicProvider(cfg *config.Config) (LLMProvider, error) {
	if err := validateAnthropicConfig(cfg); err != nil {
		return nil, err
	}

	ac := cfg.Providers.Anthropic

	apiBase := strings.TrimRight(strings.TrimSpace(ac.APIBase), "/")
	if apiBase == "" {
		apiBase = anthropicDefaultAPIBase
	}

	client, err := newHTTPClient(ProviderAnthropic, ac.Proxy)
	if err != nil {
		return nil, err
	}

	return &anthropicProvider{
		apiBase:    apiBase,
		auth:       NewHeaderKeyAuth("x-api-key", NewStaticTokenSource(ac.APIKey, "config.providers.anthropic.api_key")),
		httpClient: client,
	}, nil
}

func (p *anthropicProvider) Name() string { return ProviderAnthropic }

func (p *anthropicProvider) GetDefaultModel() string { return anthropicDefaultModel }

func (p *anthropicProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	body, err := p.send(ctx, messages, tools, model, options, false)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read anthropic response: %w", err)
	}
	return parseAnthropicResponse(raw)
}

func (p *anthropicProvider) ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}, onDelta StreamHandler) (*LLMResponse, error) {
	body, err := p.send(ctx, messages, tools, model, options, true)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return parseAnthropicStream(body, onDelta)
}

func (p *anthropicProvider) send(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}, stream bool) (io.ReadCloser, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = anthropicDefaultModel
	}

	system, wireMessages := buildAnthropicMessages(messages)

	maxTokens := anthropicMaxTokens
	if v, ok := optionAsInt(options, "max_tokens"); ok && v > 0 {
		maxTokens = v
	}

	requestBody := map[string]interface{}{
		"model":      model,
		"max_tokens": maxTokens,
		"messages":   wireMessages,
	}
	if system != "" {
		requestBody["system"] = system
	}
	if stream {
		requestBody["stream"] = true
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		requestBody["temperature"] = temperature
	}
	if len(tools) > 0 {
		wireTools := make([]map[string]interface{}, 0, len(tools))
		for _, t := range tools {
			wireTools = append(wireTools, map[string]interface{}{
				"name":         t.Function.Name,
				"description":  t.Function.Description,
				"input_schema": t.Function.Parameters,
			})
		}
		requestBody["tools"] = wireTools
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	endpoint := p.apiBase + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create anthropic request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	if err := p.auth.Apply(ctx, req); err != nil {
		return nil, fmt.Errorf("apply anthropic auth: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send anthropic request: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("anthropic API request failed: status=%d error=%s", resp.StatusCode, extractAPIError(raw))
	}

	return resp.Body, nil
}

// buildAnthropicMessages lifts system messages into the top-level field
// and rewrites tool traffic into content blocks.
func buildAnthropicMessages(messages []Message) (string, []map[string]interface{}) {
	var systemParts []string
	wire := make([]map[string]interface{}, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case "system":
			if strings.TrimSpace(m.Content) != "" {
				systemParts = append(systemParts, m.Content)
			}
		case "assistant":
			if len(m.ToolCalls) == 0 {
				wire = append(wire, map[string]interface{}{"role": "assistant", "content": m.Content})
				continue
			}
			blocks := []map[string]interface{}{}
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, map[string]interface{}{"type": "text", "text": m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if input == nil && tc.Function != nil {
					input = parseToolArguments(tc.Function.Arguments)
				}
				if input == nil {
					input = map[string]interface{}{}
				}
				name := tc.Name
				if name == "" && tc.Function != nil {
					name = tc.Function.Name
				}
				blocks = append(blocks, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  name,
					"input": input,
				})
			}
			wire = append(wire, map[string]interface{}{"role": "assistant", "content": blocks})
		case "tool":
			wire = append(wire, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{{
					"type":        "tool_result",
					"tool_use_id": m.ToolCallID,
					"content":     m.Content,
				}},
			})
		default:
			wire = append(wire, map[string]interface{}{"role": "user", "content": m.Content})
		}
	}

	return strings.Join(systemParts, "\n\n"), wire
}

func parseAnthropicResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Content []struct {
			Type  string                 `json:"type"`
			Text  string                 `json:"text"`
			ID    string                 `json:"id"`
			Name  string                 `json:"name"`
			Input map[string]interface{} `json:"input"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("parse anthropic response: %w", err)
	}

	var content strings.Builder
	var toolCalls []ToolCall
	for _, block := range apiResponse.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			input := block.Input
			if input == nil {
				input = map[string]interface{}{}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        block.ID,
				Type:      "function",
				Name:      block.Name,
				Arguments: input,
			})
		}
	}

	result := &LLMResponse{
		Content:      content.String(),
		ToolCalls:    toolCalls,
		FinishReason: normalizeAnthropicStopReason(apiResponse.StopReason),
	}
	if apiResponse.Usage != nil {
		result.Usage = &UsageInfo{
			PromptTokens:     apiResponse.Usage.InputTokens,
			CompletionTokens: apiResponse.Usage.OutputTokens,
			TotalTokens:      apiResponse.Usage.InputTokens + apiResponse.Usage.OutputTokens,
		}
	}
	return result, nil
}

func normalizeAnthropicStopReason(reason string) string {
	switch reason {
	case "tool_use":
		return "tool_calls"
	case "end_turn", "":
		return "stop"
	default:
		return reason
	}
}

func parseAnthropicStream(body io.Reader, onDelta StreamHandler) (*LLMResponse, error) {
	type toolAccum struct {
		id   string
		name string
		json strings.Builder
	}

	var content strings.Builder
	var stopReason string
	var usage *UsageInfo
	accums := map[int]*toolAccum{}
	maxIndex := -1

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event struct {
			Type         string `json:"type"`
			Index        int    `json:"index"`
			ContentBlock *struct {
				Type string `json:"type"`
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"content_block"`
			Delta *struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				PartialJSON string `json:"partial_json"`
				StopReason  string `json:"stop_reason"`
			} `json:"delta"`
			Usage *struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				accums[event.Index] = &toolAccum{id: event.ContentBlock.ID, name: event.ContentBlock.Name}
				if event.Index > maxIndex {
					maxIndex = event.Index
				}
			}
		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				content.WriteString(event.Delta.Text)
				if onDelta != nil {
					onDelta(event.Delta.Text)
				}
			case "input_json_delta":
				if accum, ok := accums[event.Index]; ok {
					accum.json.WriteString(event.Delta.PartialJSON)
				}
			}
		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				usage = &UsageInfo{
					PromptTokens:     event.Usage.InputTokens,
					CompletionTokens: event.Usage.OutputTokens,
					TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read anthropic stream: %w", err)
	}

	var toolCalls []ToolCall
	for i := 0; i <= maxIndex; i++ {
		accum, ok := accums[i]
		if !ok {
			continue
		}
		toolCalls = append(toolCalls, ToolCall{
			ID:        accum.id,
			Type:      "function",
			Name:      accum.name,
			Arguments: parseToolArguments(accum.json.String()),
		})
	}

	return &LLMResponse{
		Content:      content.String(),
		ToolCalls:    toolCalls,
		FinishReason: normalizeAnthropicStopReason(stopReason),
		Usage:        usage,
	}, nil
}
