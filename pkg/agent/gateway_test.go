package agent

import (
	"context"
	"testing"
	"time"

	"github.com/sidlabs/docchat/pkg/bus"
	"github.com/sidlabs/docchat/pkg/providers"
)

func TestGateway_RoundTrip(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "hi from the agent", FinishReason: "stop"},
	}}
	svc, _ := newTestChatService(t, provider, nil)

	mb := bus.NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewGateway(mb, svc).Run(ctx)

	mb.PublishInbound(bus.InboundMessage{
		Channel:    "discord",
		ChatID:     "chan-1",
		Content:    "hello",
		SessionKey: "discord:chan-1",
	})

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	out, ok := mb.SubscribeOutbound(waitCtx)
	if !ok {
		t.Fatal("no outbound message")
	}
	if out.Channel != "discord" || out.ChatID != "chan-1" {
		t.Errorf("out = %+v", out)
	}
	if out.Content != "hi from the agent" {
		t.Errorf("Content = %q", out.Content)
	}

	// the turn was persisted under the bus session key
	history, err := svc.store.History(ctx, "discord:chan-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history = %d messages", len(history))
	}
}

func TestGateway_ErrorProducesApology(t *testing.T) {
	// empty input makes Respond fail
	svc, _ := newTestChatService(t, &scriptedProvider{}, nil)

	mb := bus.NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewGateway(mb, svc).Run(ctx)

	mb.PublishInbound(bus.InboundMessage{Channel: "discord", ChatID: "c", Content: "   ", SessionKey: "discord:c"})

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	out, ok := mb.SubscribeOutbound(waitCtx)
	if !ok {
		t.Fatal("no outbound message")
	}
	if out.Content == "" {
		t.Error("expected a fallback reply")
	}
}
