package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rvald/omcli/internal/protocol"
	"github.com/rvald/omcli/internal/registry"
)

// commandTimeout is how long the HTTP command endpoint waits on a reply
// slot before giving up with 504.
const commandTimeout = 30 * time.Second

// Pusher is the narrow contract the broker uses to reach APNs. Nil when
// APNs is not configured.
type Pusher interface {
	SendAlarmPush(ctx context.Context, pushToken, command string, params json.RawMessage) error
}

// Broker is the command-broker core: it owns the device registry, the
// connection table, the pairing and pending-command ledgers, and the
// client event bus. HTTP handlers and device sessions all go through it.
type Broker struct {
	version  string
	apiKey   string
	registry *registry.Registry
	conns    *ConnTable
	pairings *PairingLedger
	pending  *PendingCommands
	bus      *EventBus
	push     Pusher
	start    time.Time
}

// BrokerConfig wires up a Broker.
type BrokerConfig struct {
	Version  string
	APIKey   string
	Registry *registry.Registry
	Push     Pusher // optional
}

func NewBroker(cfg BrokerConfig) *Broker {
	return &Broker{
		version:  cfg.Version,
		apiKey:   cfg.APIKey,
		registry: cfg.Registry,
		conns:    NewConnTable(),
		pairings: NewPairingLedger(),
		pending:  NewPendingCommands(),
		bus:      NewEventBus(),
		push:     cfg.Push,
		start:    time.Now(),
	}
}

// Registry exposes the device registry (CLI-side management commands).
func (b *Broker) Registry() *registry.Registry { return b.registry }

// Conns exposes the connection table.
func (b *Broker) Conns() *ConnTable { return b.conns }

// Bus exposes the event bus for additional observers (client sockets,
// the optional Discord notifier).
func (b *Broker) Bus() *EventBus { return b.bus }

// publish broadcasts a lifecycle event to all subscribed clients.
func (b *Broker) publish(event, deviceID string, data json.RawMessage) {
	b.bus.Publish(protocol.ClientEvent{Event: event, DeviceID: deviceID, Data: data})
}

func (b *Broker) uptime() int64 {
	return int64(time.Since(b.start).Seconds())
}
