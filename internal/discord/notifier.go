// Package discord hosts the optional lifecycle notifier: a small bot that
// mirrors device events (connected, paired, disconnected) into a channel.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/rvald/omcli/internal/protocol"
)

// NotifierConfig holds the bot token and target channel.
type NotifierConfig struct {
	BotToken  string
	ChannelID string
}

// EventSource is the slice of the event bus the notifier consumes.
type EventSource interface {
	Subscribe() (int, <-chan protocol.ClientEvent)
	Unsubscribe(id int)
}

// Notifier relays broker lifecycle events to Discord. It is an observer
// only; it never feeds anything back into the broker.
type Notifier struct {
	config  NotifierConfig
	session *discordgo.Session
}

// NewNotifier validates config and creates a Notifier.
func NewNotifier(config NotifierConfig) (*Notifier, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	if config.ChannelID == "" {
		return nil, fmt.Errorf("discord channel id is required")
	}
	return &Notifier{config: config}, nil
}

// Start connects to Discord and begins relaying events until ctx is
// cancelled. Delivery failures are logged and skipped.
func (n *Notifier) Start(ctx context.Context, bus EventSource) error {
	session, err := discordgo.New("Bot " + n.config.BotToken)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	n.session = session

	slog.Info("discord notifier connected", "user", session.State.User.Username)

	go n.relay(ctx, bus)
	return nil
}

// Stop closes the Discord session.
func (n *Notifier) Stop() error {
	if n.session != nil {
		return n.session.Close()
	}
	return nil
}

func (n *Notifier) relay(ctx context.Context, bus EventSource) {
	id, events := bus.Subscribe()
	defer bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if msg := formatEvent(ev); msg != "" {
				if _, err := n.session.ChannelMessageSend(n.config.ChannelID, msg); err != nil {
					slog.Warn("discord send failed", "error", err)
				}
			}
		}
	}
}

// formatEvent renders the handful of lifecycle events worth announcing.
// Device-originated events pass through with their raw name.
func formatEvent(ev protocol.ClientEvent) string {
	switch ev.Event {
	case "device.connected":
		return fmt.Sprintf("🔌 device `%s` connected", ev.DeviceID)
	case "device.paired":
		return fmt.Sprintf("🔗 device `%s` paired", ev.DeviceID)
	case "device.disconnected":
		return fmt.Sprintf("💤 device `%s` disconnected", ev.DeviceID)
	default:
		return ""
	}
}
