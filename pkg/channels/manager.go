package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/sidlabs/docchat/pkg/bus"
	"github.com/sidlabs/docchat/pkg/config"
	"github.com/sidlabs/docchat/pkg/logger"
)

// Manager owns the enabled channels and routes outbound bus messages to
// whichever channel a reply belongs to.
type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
	mu       sync.RWMutex
}

func NewManager(cfg *config.Config, messageBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
	}
	if err := m.initChannels(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initChannels(cfg *config.Config) error {
	if cfg.Channels.Discord.Token != "" {
		discord, err := NewDiscordChannel(cfg.Channels.Discord, m.bus)
		if err != nil {
			return fmt.Errorf("init discord channel: %w", err)
		}
		m.channels["discord"] = discord
	}

	if len(m.channels) == 0 {
		return fmt.Errorf("no channels configured: set a discord token")
	}
	return nil
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		logger.InfoCF("channels", "Channel started", map[string]interface{}{
			"channel": name,
		})
	}

	go m.dispatchOutbound(ctx)
	return nil
}

func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to stop channel", map[string]interface{}{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

// dispatchOutbound drains the bus and hands each reply to its channel.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}

		m.mu.RLock()
		ch, exists := m.channels[msg.Channel]
		m.mu.RUnlock()
		if !exists {
			logger.WarnCF("channels", "Outbound message for unknown channel", map[string]interface{}{
				"channel": msg.Channel,
			})
			continue
		}

		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Failed to deliver message", map[string]interface{}{
				"channel": msg.Channel,
				"chat_id": msg.ChatID,
				"error":   err.Error(),
			})
		}
	}
}

// Running reports the names of channels that are currently connected.
func (m *Manager) Running() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name, ch := range m.channels {
		if ch.IsRunning() {
			names = append(names, name)
		}
	}
	return names
}
