package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvald/omcli/internal/protocol"
	"github.com/rvald/omcli/internal/registry"
)

type MockWebSocket struct {
	Incoming chan []byte // test writes here → session reads
	Outgoing chan []byte // session writes here → test reads
	closed   bool
	mu       sync.Mutex
}

func NewMockWebSocket() *MockWebSocket {
	return &MockWebSocket{
		Incoming: make(chan []byte, 16),
		Outgoing: make(chan []byte, 16),
	}
}

func (m *MockWebSocket) ReadMessage() (int, []byte, error) {
	msg, ok := <-m.Incoming
	if !ok {
		return 0, nil, fmt.Errorf("connection closed")
	}
	return textMessage, msg, nil
}

func (m *MockWebSocket) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("connection closed")
	}
	m.Outgoing <- data
	return nil
}

func (m *MockWebSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.Incoming)
	}
	return nil
}

func (m *MockWebSocket) send(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	m.Incoming <- data
}

func (m *MockWebSocket) read(t *testing.T) protocol.ServerMessage {
	t.Helper()
	select {
	case data := <-m.Outgoing:
		msg, err := protocol.ParseServerMessage(data)
		require.NoError(t, err)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server message")
		return nil
	}
}

func newTestBroker(t *testing.T, push Pusher) *Broker {
	t.Helper()
	reg, err := registry.Load(filepath.Join(t.TempDir(), "devices.json"))
	require.NoError(t, err)
	return NewBroker(BrokerConfig{
		Version:  "test",
		APIKey:   "test-api-key",
		Registry: reg,
		Push:     push,
	})
}

func helloMsg(deviceID, name string) protocol.HelloMessage {
	return protocol.HelloMessage{Type: protocol.TypeHello, DeviceID: deviceID, Name: name}
}

func TestSession_UnknownDeviceGetsPairingCode(t *testing.T) {
	broker := newTestBroker(t, nil)
	ws := NewMockWebSocket()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		newDeviceSession(ws, broker).Run(ctx)
		close(done)
	}()

	ws.send(t, helloMsg("d1", "Phone"))

	msg := ws.read(t)
	code, ok := msg.(protocol.PairingCodeMessage)
	require.True(t, ok, "expected pairing_code, got %T", msg)
	assert.Regexp(t, `^\d{6}$`, code.Code)
	assert.Equal(t, 1, broker.pairings.Len())

	ws.Close()
	<-done
	assert.Equal(t, 0, broker.pairings.Len(), "codes must vanish with the socket")
}

func TestSession_KnownDeviceAuthSuccess(t *testing.T) {
	broker := newTestBroker(t, nil)
	broker.registry.Put(protocol.Device{ID: "d1", Name: "Phone", Token: "tok", PairedAt: 1})

	_, events := broker.bus.Subscribe()

	ws := NewMockWebSocket()
	go newDeviceSession(ws, broker).Run(context.Background())

	ws.send(t, helloMsg("d1", "Phone"))
	_, ok := ws.read(t).(protocol.AuthRequiredMessage)
	require.True(t, ok, "expected auth_required")

	ws.send(t, protocol.AuthMessage{Type: protocol.TypeAuth, DeviceID: "d1", Token: "tok"})
	result, ok := ws.read(t).(protocol.AuthResultMessage)
	require.True(t, ok, "expected auth_result")
	assert.True(t, result.Success)

	require.Eventually(t, func() bool {
		return broker.conns.IsAuthenticated("d1")
	}, 2*time.Second, 10*time.Millisecond)

	ev := <-events
	assert.Equal(t, "device.connected", ev.Event)
	assert.Equal(t, "d1", ev.DeviceID)

	ws.Close()
}

func TestSession_AuthBadTokenReenterPairing(t *testing.T) {
	broker := newTestBroker(t, nil)
	broker.registry.Put(protocol.Device{ID: "d1", Name: "Phone", Token: "tok", PairedAt: 1})

	ws := NewMockWebSocket()
	go newDeviceSession(ws, broker).Run(context.Background())

	ws.send(t, helloMsg("d1", "Phone"))
	_, ok := ws.read(t).(protocol.AuthRequiredMessage)
	require.True(t, ok)

	ws.send(t, protocol.AuthMessage{Type: protocol.TypeAuth, DeviceID: "d1", Token: "wrong"})

	result, ok := ws.read(t).(protocol.AuthResultMessage)
	require.True(t, ok, "expected auth_result")
	assert.False(t, result.Success)
	assert.Equal(t, "invalid token", result.Error)

	// The stale record is evicted and pairing restarts on the same socket.
	_, ok2 := ws.read(t).(protocol.PairingCodeMessage)
	require.True(t, ok2, "expected pairing_code after failed auth")

	_, known := broker.registry.Get("d1")
	assert.False(t, known)
	assert.False(t, broker.conns.IsAuthenticated("d1"))

	ws.Close()
}

func TestSession_AuthDeviceIDMismatch(t *testing.T) {
	broker := newTestBroker(t, nil)
	broker.registry.Put(protocol.Device{ID: "d1", Name: "Phone", Token: "tok", PairedAt: 1})

	ws := NewMockWebSocket()
	go newDeviceSession(ws, broker).Run(context.Background())

	ws.send(t, helloMsg("d1", "Phone"))
	ws.read(t) // auth_required

	ws.send(t, protocol.AuthMessage{Type: protocol.TypeAuth, DeviceID: "other", Token: "tok"})
	result, ok := ws.read(t).(protocol.AuthResultMessage)
	require.True(t, ok)
	assert.False(t, result.Success)

	// The record survives; only the claim was bogus.
	_, known := broker.registry.Get("d1")
	assert.True(t, known)

	ws.Close()
}

func TestSession_ResponseFulfillsPendingCommand(t *testing.T) {
	broker := newTestBroker(t, nil)
	broker.registry.Put(protocol.Device{ID: "d1", Name: "Phone", Token: "tok", PairedAt: 1})

	ws := NewMockWebSocket()
	go newDeviceSession(ws, broker).Run(context.Background())

	ws.send(t, helloMsg("d1", "Phone"))
	ws.read(t) // auth_required
	ws.send(t, protocol.AuthMessage{Type: protocol.TypeAuth, DeviceID: "d1", Token: "tok"})
	ws.read(t) // auth_result

	slot := broker.pending.Register("c1")
	ws.send(t, protocol.ResponseMessage{
		Type:   protocol.TypeResponse,
		ID:     "c1",
		Status: "ok",
		Data:   json.RawMessage(`{"lat":1.5,"lon":2.5}`),
	})

	select {
	case resp := <-slot:
		assert.Equal(t, "ok", resp.Status)
		assert.JSONEq(t, `{"lat":1.5,"lon":2.5}`, string(resp.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("pending command never fulfilled")
	}

	ws.Close()
}

func TestSession_CommandDeliveredFromQueue(t *testing.T) {
	broker := newTestBroker(t, nil)
	broker.registry.Put(protocol.Device{ID: "d1", Name: "Phone", Token: "tok", PairedAt: 1})

	ws := NewMockWebSocket()
	go newDeviceSession(ws, broker).Run(context.Background())

	ws.send(t, helloMsg("d1", "Phone"))
	ws.read(t) // auth_required
	ws.send(t, protocol.AuthMessage{Type: protocol.TypeAuth, DeviceID: "d1", Token: "tok"})
	ws.read(t) // auth_result

	conn, ok := broker.conns.Get("d1")
	require.True(t, ok)
	require.NoError(t, conn.Enqueue(protocol.NewCommand("c1", "alarm.start", json.RawMessage(`{"sound":"default"}`))))

	msg := ws.read(t)
	cmd, ok := msg.(protocol.CommandMessage)
	require.True(t, ok, "expected command, got %T", msg)
	assert.Equal(t, "c1", cmd.ID)
	assert.Equal(t, "alarm.start", cmd.Command)

	ws.Close()
}

func TestSession_SecondHelloReplacesFirst(t *testing.T) {
	broker := newTestBroker(t, nil)

	first := NewMockWebSocket()
	firstDone := make(chan struct{})
	go func() {
		newDeviceSession(first, broker).Run(context.Background())
		close(firstDone)
	}()
	first.send(t, helloMsg("d1", "Phone"))
	first.read(t) // pairing_code

	second := NewMockWebSocket()
	go newDeviceSession(second, broker).Run(context.Background())
	second.send(t, helloMsg("d1", "Phone"))
	code := second.read(t) // pairing_code for the new session
	_, ok := code.(protocol.PairingCodeMessage)
	require.True(t, ok)

	select {
	case <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("displaced session did not shut down")
	}

	// The replacement still owns the table entry and its pairing code.
	conn, ok := broker.conns.Get("d1")
	require.True(t, ok)
	assert.Equal(t, "d1", conn.DeviceID)
	assert.Equal(t, 1, broker.pairings.Len(), "replacement's code must survive the old session's cleanup")

	second.Close()
}

func TestSession_PushTokenStored(t *testing.T) {
	broker := newTestBroker(t, nil)
	broker.registry.Put(protocol.Device{ID: "d1", Name: "Phone", Token: "tok", PairedAt: 1})

	ws := NewMockWebSocket()
	go newDeviceSession(ws, broker).Run(context.Background())

	ws.send(t, helloMsg("d1", "Phone"))
	ws.read(t) // auth_required
	ws.send(t, protocol.PushTokenMessage{Type: protocol.TypePushToken, Token: "push-tok"})
	ws.send(t, protocol.VoipTokenMessage{Type: protocol.TypeVoipToken, Token: "voip-tok"})

	require.Eventually(t, func() bool {
		d, ok := broker.registry.Get("d1")
		return ok && d.PushToken == "push-tok" && d.VoipToken == "voip-tok"
	}, 2*time.Second, 10*time.Millisecond)

	ws.Close()
}

func TestSession_FirstMessageMustBeHello(t *testing.T) {
	broker := newTestBroker(t, nil)
	ws := NewMockWebSocket()

	done := make(chan struct{})
	go func() {
		newDeviceSession(ws, broker).Run(context.Background())
		close(done)
	}()

	ws.send(t, protocol.AuthMessage{Type: protocol.TypeAuth, DeviceID: "d1", Token: "tok"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session should end on a non-hello first message")
	}
	_, ok := broker.conns.Get("d1")
	assert.False(t, ok)
}
