package agent

import (
	"context"
	"encoding/json"

	"github.com/sidlabs/docchat/pkg/logger"
	"github.com/sidlabs/docchat/pkg/providers"
	"github.com/sidlabs/docchat/pkg/tools"
)

const defaultMaxToolIterations = 4

// TurnOptions controls a single agent turn.
type TurnOptions struct {
	Model             string
	Options           map[string]interface{}
	MaxToolIterations int
	OnDelta           providers.StreamHandler
}

// TurnResult is the outcome of one turn: the final answer plus every
// message produced along the way (tool-call records and tool results),
// in conversation order, ready to persist.
type TurnResult struct {
	Content  string
	Messages []providers.Message
	Usage    *providers.UsageInfo
}

// RunTurn drives the model until it stops asking for tools. Each tool
// round appends the assistant's call record and the tool results to the
// conversation before asking again.
func RunTurn(ctx context.Context, provider providers.LLMProvider, registry *tools.ToolRegistry, messages []providers.Message, opts TurnOptions) (*TurnResult, error) {
	maxIterations := opts.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxToolIterations
	}

	var toolDefs []providers.ToolDefinition
	if registry != nil {
		toolDefs = registry.ToProviderDefs()
	}

	result := &TurnResult{}

	for iteration := 0; ; iteration++ {
		defs := toolDefs
		if iteration >= maxIterations {
			// out of tool budget, force a plain answer
			defs = nil
		}

		response, err := chat(ctx, provider, messages, defs, opts)
		if err != nil {
			return nil, err
		}
		if response.Usage != nil {
			result.Usage = accumulateUsage(result.Usage, response.Usage)
		}

		if len(response.ToolCalls) == 0 || defs == nil {
			result.Content = response.Content
			final := providers.Message{Role: "assistant", Content: response.Content}
			result.Messages = append(result.Messages, final)
			return result, nil
		}

		record := assistantToolCallRecord(response)
		messages = append(messages, record)
		result.Messages = append(result.Messages, record)

		for _, tc := range response.ToolCalls {
			toolResult := registry.Execute(ctx, tc.Name, tc.Arguments)
			toolMsg := providers.Message{
				Role:       "tool",
				Name:       tc.Name,
				ToolCallID: tc.ID,
				Content:    toolResult.ForLLM,
			}
			messages = append(messages, toolMsg)
			result.Messages = append(result.Messages, toolMsg)
		}

		logger.DebugCF("agent", "Tool round completed",
			map[string]interface{}{
				"iteration":  iteration + 1,
				"tool_calls": len(response.ToolCalls),
			})
	}
}

func chat(ctx context.Context, provider providers.LLMProvider, messages []providers.Message, defs []providers.ToolDefinition, opts TurnOptions) (*providers.LLMResponse, error) {
	if opts.OnDelta != nil {
		if streamer, ok := provider.(providers.StreamingLLMProvider); ok {
			return streamer.ChatStream(ctx, messages, defs, opts.Model, opts.Options, opts.OnDelta)
		}
	}
	response, err := provider.Chat(ctx, messages, defs, opts.Model, opts.Options)
	if err != nil {
		return nil, err
	}
	// non-streaming providers deliver the answer in one piece
	if opts.OnDelta != nil && len(response.ToolCalls) == 0 && response.Content != "" {
		opts.OnDelta(response.Content)
	}
	return response, nil
}

// assistantToolCallRecord rebuilds the request-side encoding of the
// model's tool calls so the record replays correctly on later requests.
func assistantToolCallRecord(response *providers.LLMResponse) providers.Message {
	calls := make([]providers.ToolCall, 0, len(response.ToolCalls))
	for _, tc := range response.ToolCalls {
		arguments := "{}"
		if len(tc.Arguments) > 0 {
			if data, err := json.Marshal(tc.Arguments); err == nil {
				arguments = string(data)
			}
		}
		calls = append(calls, providers.ToolCall{
			ID:        tc.ID,
			Type:      "function",
			Name:      tc.Name,
			Arguments: tc.Arguments,
			Function: &providers.FunctionCall{
				Name:      tc.Name,
				Arguments: arguments,
			},
		})
	}
	return providers.Message{
		Role:      "assistant",
		Content:   response.Content,
		ToolCalls: calls,
	}
}

func accumulateUsage(total, delta *providers.UsageInfo) *providers.UsageInfo {
	if total == nil {
		copied := *delta
		return &copied
	}
	total.PromptTokens += delta.PromptTokens
	total.CompletionTokens += delta.CompletionTokens
	total.TotalTokens += delta.TotalTokens
	return total
}
