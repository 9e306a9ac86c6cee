package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sidlabs/docchat/pkg/buffer"
	"github.com/sidlabs/docchat/pkg/config"
	"github.com/sidlabs/docchat/pkg/logger"
	"github.com/sidlabs/docchat/pkg/providers"
	"github.com/sidlabs/docchat/pkg/rag"
	"github.com/sidlabs/docchat/pkg/session"
	"github.com/sidlabs/docchat/pkg/tools"
	"github.com/sidlabs/docchat/pkg/vectorstore"
)

const summarizePrompt = "Summarize the following conversation in a few sentences. " +
	"Keep the facts a future reply would need: names, preferences, decisions, and open questions. " +
	"Reply with the summary only."

// Reply is the outcome of one chat interaction.
type Reply struct {
	Content   string
	Retrieved []vectorstore.Result
	Usage     *providers.UsageInfo
}

// ChatService runs conversations: it loads session history, applies the
// memory policy, retrieves document context, drives the tool loop, and
// persists the turn.
type ChatService struct {
	cfg       *config.Config
	provider  providers.LLMProvider
	registry  *tools.ToolRegistry
	store     *session.Store
	retriever *rag.Service
	counter   buffer.Counter
}

// NewChatService wires a chat service. retriever may be nil for plain
// chat without document grounding.
func NewChatService(cfg *config.Config, provider providers.LLMProvider, registry *tools.ToolRegistry, store *session.Store, retriever *rag.Service) *ChatService {
	return &ChatService{
		cfg:       cfg,
		provider:  provider,
		registry:  registry,
		store:     store,
		retriever: retriever,
	}
}

// ensureCounter builds the tokenizer on first use; the tokens policy is
// the only one that needs it.
func (s *ChatService) ensureCounter() buffer.Counter {
	if s.counter == nil {
		counter, err := buffer.NewTokenCounter(s.cfg.Chat.Model)
		if err != nil {
			logger.WarnCF("agent", "Token counter unavailable, falling back to word counts",
				map[string]interface{}{"error": err.Error()})
			counter = buffer.WordCounter{}
		}
		s.counter = counter
	}
	return s.counter
}

// Respond handles one user message in the given session. onDelta, when
// non-nil, receives the answer incrementally if the provider streams.
func (s *ChatService) Respond(ctx context.Context, sessionKey, userInput string, onDelta providers.StreamHandler) (*Reply, error) {
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return nil, fmt.Errorf("message is empty")
	}

	history, err := s.store.History(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	policy, err := s.buildPolicy(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	reply := &Reply{}
	ragContext := ""
	if s.retriever != nil {
		results, err := s.retriever.Retrieve(ctx, userInput)
		switch {
		case errors.Is(err, vectorstore.ErrStoreEmpty):
			// nothing ingested yet, answer without document context
		case err != nil:
			return nil, err
		default:
			reply.Retrieved = results
			ragContext = rag.BuildContext(results)
		}
	}

	builder := &ContextBuilder{SystemPrompt: s.cfg.Chat.SystemPrompt, Policy: policy}
	messages := builder.Build(history, ragContext, userInput)

	result, err := RunTurn(ctx, s.provider, s.registry, messages, TurnOptions{
		Model:             s.cfg.Chat.Model,
		Options:           s.chatOptions(),
		MaxToolIterations: s.cfg.Chat.MaxToolIterations,
		OnDelta:           onDelta,
	})
	if err != nil {
		return nil, err
	}
	reply.Content = result.Content
	reply.Usage = result.Usage

	if err := s.persistTurn(ctx, sessionKey, userInput, result.Messages); err != nil {
		return nil, err
	}

	if s.cfg.Memory.Policy == "summary" {
		s.refreshSummary(ctx, sessionKey)
	}

	return reply, nil
}

// TokensUsed reports the token cost of the current history window under
// the token policy. Zero for other policies.
func (s *ChatService) TokensUsed(ctx context.Context, sessionKey string) (int, error) {
	if s.cfg.Memory.Policy != "tokens" {
		return 0, nil
	}
	history, err := s.store.History(ctx, sessionKey)
	if err != nil {
		return 0, err
	}
	policy := buffer.TokenPolicy{Budget: s.cfg.Memory.TokenBudget, Counter: s.ensureCounter()}
	return policy.Used(history), nil
}

// Clear wipes the session's history and summary.
func (s *ChatService) Clear(ctx context.Context, sessionKey string) error {
	return s.store.Clear(ctx, sessionKey)
}

func (s *ChatService) buildPolicy(ctx context.Context, sessionKey string) (buffer.Policy, error) {
	switch s.cfg.Memory.Policy {
	case "tokens":
		return buffer.TokenPolicy{Budget: s.cfg.Memory.TokenBudget, Counter: s.ensureCounter()}, nil
	case "summary":
		summary := ""
		sess, err := s.store.Get(ctx, sessionKey)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			summary = sess.Summary
		}
		return buffer.SummaryPolicy{Tail: s.cfg.Memory.SummaryTail, Summary: summary}, nil
	case "count", "":
		return buffer.CountPolicy{N: s.cfg.Memory.WindowMessages}, nil
	default:
		return nil, fmt.Errorf("unknown memory policy %q (supported: count, tokens, summary)", s.cfg.Memory.Policy)
	}
}

func (s *ChatService) chatOptions() map[string]interface{} {
	options := map[string]interface{}{}
	if s.cfg.Chat.MaxTokens > 0 {
		options["max_tokens"] = s.cfg.Chat.MaxTokens
	}
	if s.cfg.Chat.Temperature > 0 {
		options["temperature"] = s.cfg.Chat.Temperature
	}
	return options
}

func (s *ChatService) persistTurn(ctx context.Context, sessionKey, userInput string, produced []providers.Message) error {
	if err := s.store.Append(ctx, sessionKey, providers.Message{Role: "user", Content: userInput}); err != nil {
		return err
	}
	for _, msg := range produced {
		if err := s.store.Append(ctx, sessionKey, msg); err != nil {
			return err
		}
	}
	return nil
}

// refreshSummary regenerates the rolling summary from the full history
// after each assistant turn. Failures are logged, not fatal: the next
// turn simply reuses the previous summary.
func (s *ChatService) refreshSummary(ctx context.Context, sessionKey string) {
	history, err := s.store.History(ctx, sessionKey)
	if err != nil {
		logger.WarnCF("agent", "Summary refresh failed", map[string]interface{}{"error": err.Error()})
		return
	}

	var transcript strings.Builder
	for _, msg := range history {
		if msg.Role != "user" && msg.Role != "assistant" {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}
	if transcript.Len() == 0 {
		return
	}

	model := s.cfg.Memory.SummaryModel
	if model == "" {
		model = s.cfg.Chat.Model
	}
	response, err := s.provider.Chat(ctx, []providers.Message{
		{Role: "system", Content: summarizePrompt},
		{Role: "user", Content: transcript.String()},
	}, nil, model, nil)
	if err != nil {
		logger.WarnCF("agent", "Summary refresh failed", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := s.store.SetSummary(ctx, sessionKey, strings.TrimSpace(response.Content)); err != nil {
		logger.WarnCF("agent", "Summary refresh failed", map[string]interface{}{"error": err.Error()})
	}
}
