package providers

import "testing"

func TestBuildGeminiContents_RolesAndSystem(t *testing.T) {
	system, contents := buildGeminiContents([]Message{
		{Role: "system", Content: "Answer briefly."},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})

	if system != "Answer briefly." {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 2 {
		t.Fatalf("contents = %d, want 2", len(contents))
	}
	if contents[0]["role"] != "user" || contents[1]["role"] != "model" {
		t.Errorf("roles = %v, %v", contents[0]["role"], contents[1]["role"])
	}
}

func TestBuildGeminiContents_FunctionResponse(t *testing.T) {
	_, contents := buildGeminiContents([]Message{
		{Role: "tool", Name: "get_current_weather", ToolCallID: "call_1", Content: `{"temp_c": 21}`},
	})

	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	parts := contents[0]["parts"].([]map[string]interface{})
	fr := parts[0]["functionResponse"].(map[string]interface{})
	if fr["name"] != "get_current_weather" {
		t.Errorf("name = %v", fr["name"])
	}
	response := fr["response"].(map[string]interface{})
	if response["temp_c"] != float64(21) {
		t.Errorf("response = %v", response)
	}
}

func TestParseGeminiResponse_Text(t *testing.T) {
	body := `{
		"candidates": [{"content": {"parts": [{"text": "Paris is the capital."}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 5, "totalTokenCount": 13}
	}`

	resp, err := parseGeminiResponse([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Content != "Paris is the capital." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 13 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestParseGeminiResponse_FunctionCall(t *testing.T) {
	body := `{
		"candidates": [{
			"content": {"parts": [{"functionCall": {"name": "get_current_weather", "args": {"location": "Paris"}}}]},
			"finishReason": "STOP"
		}]
	}`

	resp, err := parseGeminiResponse([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "get_current_weather" || tc.Arguments["location"] != "Paris" {
		t.Errorf("tool call = %+v", tc)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
}
