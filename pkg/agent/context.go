package agent

import (
	"strings"

	"github.com/sidlabs/docchat/pkg/buffer"
	"github.com/sidlabs/docchat/pkg/providers"
)

// ContextBuilder assembles the message list for one model request:
// system prompt (with any retrieved context), the policy-trimmed
// history window, then the new user message.
type ContextBuilder struct {
	SystemPrompt string
	Policy       buffer.Policy
}

func (b *ContextBuilder) Build(history []providers.Message, ragContext, userInput string) []providers.Message {
	var messages []providers.Message

	system := strings.TrimSpace(b.SystemPrompt)
	if ragContext = strings.TrimSpace(ragContext); ragContext != "" {
		if system != "" {
			system += "\n\n"
		}
		system += ragContext
	}
	if system != "" {
		messages = append(messages, providers.Message{Role: "system", Content: system})
	}

	window := history
	if b.Policy != nil {
		window = b.Policy.Trim(history)
	}
	messages = append(messages, window...)

	messages = append(messages, providers.Message{Role: "user", Content: userInput})
	return messages
}
