package channels

import (
	"context"
	"log/slog"
	"sync"
)

// Handler turns one inbound user message into reply text. The assistant's
// router satisfies this; every channel shares the same instance.
type Handler interface {
	HandleIncoming(ctx context.Context, text string) string
}

// Manager owns the long-lived channels (Telegram, Discord), fans their
// incoming messages into the shared handler and sends replies back on the
// originating channel. The SMS webhook is request-scoped and handled by the
// web server instead.
type Manager struct {
	handler  Handler
	logger   *slog.Logger
	channels []Channel

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager dispatching to handler.
func NewManager(handler Handler, logger *slog.Logger) *Manager {
	return &Manager{handler: handler, logger: logger.With("component", "channels")}
}

// Register adds a channel. Must be called before Start.
func (m *Manager) Register(ch Channel) {
	m.channels = append(m.channels, ch)
}

// Start connects every registered channel and begins dispatching. A channel
// that fails to connect is logged and skipped; the rest keep running.
func (m *Manager) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	started := 0
	for _, ch := range m.channels {
		if err := ch.Connect(ctx); err != nil {
			m.logger.Error("channel failed to connect", "channel", ch.Name(), "error", err)
			continue
		}
		started++

		m.wg.Add(1)
		go m.dispatchLoop(ctx, ch)
	}

	m.logger.Info("channels started", "connected", started, "registered", len(m.channels))
	return nil
}

// Stop disconnects all channels and waits for dispatch loops to drain.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	for _, ch := range m.channels {
		if err := ch.Disconnect(); err != nil {
			m.logger.Warn("channel disconnect failed", "channel", ch.Name(), "error", err)
		}
	}
	m.wg.Wait()
	m.logger.Info("channels stopped")
}

// Health reports the health of every registered channel.
func (m *Manager) Health() map[string]HealthStatus {
	out := make(map[string]HealthStatus, len(m.channels))
	for _, ch := range m.channels {
		out[ch.Name()] = ch.Health()
	}
	return out
}

// dispatchLoop reads one channel's incoming messages, runs each through the
// handler and sends the reply back to the originating chat.
func (m *Manager) dispatchLoop(ctx context.Context, ch Channel) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Receive():
			if !ok {
				return
			}
			m.logger.Debug("message received",
				"channel", msg.Channel, "from", msg.From, "len", len(msg.Content))

			reply := m.handler.HandleIncoming(ctx, msg.Content)
			if err := ch.Send(ctx, msg.ChatID, &OutgoingMessage{Content: reply, ReplyTo: msg.ID}); err != nil {
				m.logger.Error("failed to send reply",
					"channel", msg.Channel, "chat", msg.ChatID, "error", err)
			}
		}
	}
}
