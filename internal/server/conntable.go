package server

import (
	"errors"
	"sync"

	"github.com/rvald/omcli/internal/protocol"
)

// outboundQueueSize bounds each device's outbound queue. The endpoint side
// never blocks on a full queue; enqueueing fails instead.
const outboundQueueSize = 64

var (
	errQueueFull   = errors.New("outbound queue full")
	errQueueClosed = errors.New("connection closed")
)

// DeviceConn is the ephemeral record for one live device socket: identity,
// auth flag, and the single-consumer outbound queue owned by the session.
type DeviceConn struct {
	DeviceID string
	Name     string

	authenticated bool // guarded by the owning ConnTable's mutex

	queue     chan protocol.ServerMessage
	done      chan struct{}
	closeOnce sync.Once
}

// NewDeviceConn creates an unauthenticated connection record.
func NewDeviceConn(deviceID, name string) *DeviceConn {
	return &DeviceConn{
		DeviceID: deviceID,
		Name:     name,
		queue:    make(chan protocol.ServerMessage, outboundQueueSize),
		done:     make(chan struct{}),
	}
}

// Enqueue puts a message on the outbound queue without blocking.
func (c *DeviceConn) Enqueue(msg protocol.ServerMessage) error {
	select {
	case <-c.done:
		return errQueueClosed
	default:
	}
	select {
	case c.queue <- msg:
		return nil
	case <-c.done:
		return errQueueClosed
	default:
		return errQueueFull
	}
}

// Close signals the session to drain and stop. Safe to call more than once.
func (c *DeviceConn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Queue is the session-side receive end of the outbound queue.
func (c *DeviceConn) Queue() <-chan protocol.ServerMessage { return c.queue }

// Done is closed when the connection has been replaced or shut down.
func (c *DeviceConn) Done() <-chan struct{} { return c.done }

// ConnTable maps device IDs to their live connections. At most one entry
// per device id; a later Hello replaces the earlier entry.
type ConnTable struct {
	mu    sync.RWMutex
	conns map[string]*DeviceConn
}

func NewConnTable() *ConnTable {
	return &ConnTable{conns: make(map[string]*DeviceConn)}
}

// Put installs conn for its device id, returning the replaced connection
// (if any) so the caller can signal it to close.
func (t *ConnTable) Put(conn *DeviceConn) *DeviceConn {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.conns[conn.DeviceID]
	t.conns[conn.DeviceID] = conn
	return prev
}

// Get returns the live connection for a device id.
func (t *ConnTable) Get(deviceID string) (*DeviceConn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[deviceID]
	return c, ok
}

// RemoveIf deletes the entry for deviceID only if it is still conn. A
// session that was replaced must not evict its replacement.
func (t *ConnTable) RemoveIf(deviceID string, conn *DeviceConn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.conns[deviceID]
	if !ok || cur != conn {
		return false
	}
	delete(t.conns, deviceID)
	return true
}

// Remove deletes the entry for deviceID unconditionally, returning it.
func (t *ConnTable) Remove(deviceID string) *DeviceConn {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.conns[deviceID]
	delete(t.conns, deviceID)
	return c
}

// SetAuthenticated marks the device's connection authenticated and returns
// it, or nil if the device has no live connection.
func (t *ConnTable) SetAuthenticated(deviceID string) *DeviceConn {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conns[deviceID]
	if !ok {
		return nil
	}
	c.authenticated = true
	return c
}

// IsAuthenticated reports whether the device has a live authenticated
// connection.
func (t *ConnTable) IsAuthenticated(deviceID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[deviceID]
	return ok && c.authenticated
}

// AuthenticatedIDs returns a snapshot of device ids with authenticated
// connections.
func (t *ConnTable) AuthenticatedIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.conns))
	for id, c := range t.conns {
		if c.authenticated {
			out = append(out, id)
		}
	}
	return out
}
