package providers

import "context"

// Message is one entry of a conversation in the normalized wire shape.
// Role is one of system, user, assistant, tool. Adapters translate this
// into their vendor's native format.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall carries a model-requested tool invocation. Name/Arguments are
// the parsed response-side view; Function is the request-side encoding.
type ToolCall struct {
	ID        string                 `json:"id,omitempty"`
	Type      string                 `json:"type,omitempty"`
	Name      string                 `json:"-"`
	Arguments map[string]interface{} `json:"-"`
	Function  *FunctionCall          `json:"function,omitempty"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a callable tool in the OpenAI function schema,
// which is the normalized shape adapters translate from.
type ToolDefinition struct {
	Type     string                 `json:"type"`
	Function ToolFunctionDefinition `json:"function"`
}

type ToolFunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMResponse is the normalized completion result.
type LLMResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        *UsageInfo
}

// LLMProvider abstracts a vendor chat-completion API. Implementations
// issue a single attempt per call; callers decide what failure means.
type LLMProvider interface {
	Name() string
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}

// StreamHandler receives incremental content deltas during streaming.
type StreamHandler func(delta string)

// StreamingLLMProvider is implemented by providers that support streamed
// output. The full response is still returned once the stream ends.
type StreamingLLMProvider interface {
	LLMProvider
	ChatStream(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}, onDelta StreamHandler) (*LLMResponse, error)
}
