package agent

import (
	"context"

	"github.com/sidlabs/docchat/pkg/bus"
	"github.com/sidlabs/docchat/pkg/logger"
)

// Gateway drains inbound channel messages, runs each through the chat
// service, and publishes the reply back onto the bus.
type Gateway struct {
	bus  *bus.MessageBus
	chat *ChatService
}

func NewGateway(messageBus *bus.MessageBus, chat *ChatService) *Gateway {
	return &Gateway{bus: messageBus, chat: chat}
}

// Run blocks until ctx is canceled or the bus closes. Messages are
// handled sequentially so replies within a session stay ordered.
func (g *Gateway) Run(ctx context.Context) {
	logger.InfoC("gateway", "Gateway started")
	for {
		msg, ok := g.bus.ConsumeInbound(ctx)
		if !ok {
			logger.InfoC("gateway", "Gateway stopped")
			return
		}
		g.handle(ctx, msg)
	}
}

func (g *Gateway) handle(ctx context.Context, msg bus.InboundMessage) {
	reply, err := g.chat.Respond(ctx, msg.SessionKey, msg.Content, nil)
	if err != nil {
		logger.ErrorCF("gateway", "Failed to produce reply", map[string]interface{}{
			"session": msg.SessionKey,
			"error":   err.Error(),
		})
		g.bus.PublishOutbound(bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: "Sorry, something went wrong handling that message.",
		})
		return
	}

	logger.DebugCF("gateway", "Reply produced", map[string]interface{}{
		"session": msg.SessionKey,
		"length":  len(reply.Content),
	})
	g.bus.PublishOutbound(bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply.Content,
	})
}
