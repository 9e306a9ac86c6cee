package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseChatCompletionsResponse_Content(t *testing.T) {
	body := `{
		"choices": [{"message": {"content": "Hello there"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
	}`

	resp, err := parseChatCompletionsResponse([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Content != "Hello there" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 13 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestParseChatCompletionsResponse_ToolCalls(t *testing.T) {
	body := `{
		"choices": [{
			"message": {
				"content": null,
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "get_current_weather", "arguments": "{\"location\": \"Paris\"}"}
				}]
			},
			"finish_reason": "tool_calls"
		}]
	}`

	resp, err := parseChatCompletionsResponse([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "get_current_weather" {
		t.Errorf("Name = %q", tc.Name)
	}
	if tc.Arguments["location"] != "Paris" {
		t.Errorf("Arguments = %v", tc.Arguments)
	}
}

func TestParseChatCompletionsResponse_StructuredContent(t *testing.T) {
	body := `{"choices": [{"message": {"content": [{"type": "text", "text": "part one "}, {"type": "text", "text": "part two"}]}, "finish_reason": "stop"}]}`

	resp, err := parseChatCompletionsResponse([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Content != "part one part two" {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestParseChatCompletionsStream(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		``,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	var deltas []string
	resp, err := parseChatCompletionsStream(strings.NewReader(stream), func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if resp.Content != "Hello" {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(deltas) != 2 {
		t.Errorf("deltas = %v", deltas)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
}

func TestParseChatCompletionsStream_ToolCallFragments(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_9","function":{"name":"get_current_weather","arguments":""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"location\":"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Paris\"}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
	}, "\n")

	resp, err := parseChatCompletionsStream(strings.NewReader(stream), nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_9" || tc.Name != "get_current_weather" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Arguments["location"] != "Paris" {
		t.Errorf("Arguments = %v", tc.Arguments)
	}
}

func TestChatCompletionsProvider_Chat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	auth := NewBearerAuth(NewStaticTokenSource("sk-test", "test"))
	p, err := newChatCompletionsProvider("openai", server.URL, "gpt-4o-mini", "", auth, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, "", map[string]interface{}{"temperature": 0.2})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v, want default", gotBody["model"])
	}
	if gotBody["temperature"] != 0.2 {
		t.Errorf("temperature = %v", gotBody["temperature"])
	}
}

func TestChatCompletionsProvider_ChatErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided"}}`))
	}))
	defer server.Close()

	auth := NewBearerAuth(NewStaticTokenSource("sk-bad", "test"))
	p, err := newChatCompletionsProvider("openai", server.URL, "gpt-4o-mini", "", auth, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	_, err = p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status=401") || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("err = %v", err)
	}
}

func TestExtractAPIError(t *testing.T) {
	if got := extractAPIError([]byte(`{"error":{"message":"rate limited"}}`)); got != "rate limited" {
		t.Errorf("got %q", got)
	}
	if got := extractAPIError([]byte(`{"message":"not found"}`)); got != "not found" {
		t.Errorf("got %q", got)
	}
	if got := extractAPIError([]byte("   ")); got != "empty response body" {
		t.Errorf("got %q", got)
	}
	if got := extractAPIError([]byte("plain text failure")); got != "plain text failure" {
		t.Errorf("got %q", got)
	}
}
