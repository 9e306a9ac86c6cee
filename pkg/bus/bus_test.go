package bus

import (
	"context"
	"testing"
	"time"
)

func TestMessageBus_InboundRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishInbound(InboundMessage{Channel: "discord", ChatID: "42", Content: "hi", SessionKey: "discord:42"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("ConsumeInbound returned no message")
	}
	if msg.Content != "hi" || msg.SessionKey != "discord:42" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestMessageBus_OutboundRoundTrip(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishOutbound(OutboundMessage{Channel: "discord", ChatID: "42", Content: "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.SubscribeOutbound(ctx)
	if !ok {
		t.Fatal("SubscribeOutbound returned no message")
	}
	if msg.Content != "hello" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestMessageBus_ConsumeHonorsContext(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Error("expected no message on canceled context")
	}
}

func TestMessageBus_PublishAfterClose(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	// must not panic on a closed bus
	mb.PublishInbound(InboundMessage{Content: "late"})
	mb.PublishOutbound(OutboundMessage{Content: "late"})
}

func TestMessageBus_DropsWhenFull(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	for i := 0; i < 101; i++ {
		mb.PublishInbound(InboundMessage{Content: "x"})
	}
	if mb.DroppedInbound() != 1 {
		t.Errorf("DroppedInbound = %d, want 1", mb.DroppedInbound())
	}
}
