package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rvald/omcli/internal/protocol"
)

// WebSocket is the interface for the underlying device socket.
type WebSocket interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const textMessage = 1 // websocket.TextMessage

// deviceSession drives one device socket through its lifecycle:
// hello → pair-or-auth → serving. It multiplexes inbound frames and the
// connection's outbound queue; either side erroring ends the session.
type deviceSession struct {
	ws     WebSocket
	broker *Broker

	deviceID string
	name     string
	conn     *DeviceConn
}

func newDeviceSession(ws WebSocket, broker *Broker) *deviceSession {
	return &deviceSession{ws: ws, broker: broker}
}

// Run blocks until the socket closes, the connection is replaced, or the
// context is cancelled.
func (s *deviceSession) Run(ctx context.Context) {
	// 1. Wait for Hello.
	_, data, err := s.ws.ReadMessage()
	if err != nil {
		return
	}
	msg, err := protocol.ParseDeviceMessage(data)
	if err != nil {
		slog.Warn("device sent invalid first message", "error", err)
		return
	}
	hello, ok := msg.(*protocol.HelloMessage)
	if !ok {
		slog.Warn("expected hello, got something else")
		return
	}
	s.deviceID = hello.DeviceID
	s.name = hello.Name

	slog.Info("device connected", "device", s.deviceID, "name", s.name)

	// 2. Install the connection, displacing any prior socket for this id.
	s.conn = NewDeviceConn(s.deviceID, s.name)
	if prev := s.broker.conns.Put(s.conn); prev != nil {
		slog.Info("replacing prior connection", "device", s.deviceID)
		prev.Close()
	}
	connectedDevices.Inc()
	defer s.cleanup()

	// 3. Pair or auth.
	if _, paired := s.broker.registry.Get(s.deviceID); paired {
		if err := s.write(protocol.NewAuthRequired()); err != nil {
			return
		}
	} else {
		if err := s.enterPairing(); err != nil {
			return
		}
	}

	// 4. Serving loop. The read pump feeds inbound frames; the outbound
	// queue carries commands from the HTTP side. Single writer: this
	// goroutine.
	inbound := make(chan []byte)
	go func() {
		defer close(inbound)
		for {
			_, data, err := s.ws.ReadMessage()
			if err != nil {
				return
			}
			select {
			case inbound <- data:
			case <-s.conn.Done():
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-inbound:
			if !ok {
				return
			}
			s.handleMessage(data)
		case msg := <-s.conn.Queue():
			if err := s.write(msg); err != nil {
				return
			}
		case <-s.conn.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *deviceSession) write(msg protocol.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.ws.WriteMessage(textMessage, data)
}

// enterPairing draws a fresh 6-digit code, registers it, and shows it to
// the device.
func (s *deviceSession) enterPairing() error {
	code, err := s.broker.pairings.NewCode(s.deviceID, s.name)
	if err != nil {
		return err
	}
	slog.Info("pairing code issued", "device", s.deviceID, "code", code)
	return s.write(protocol.NewPairingCode(code))
}

func (s *deviceSession) handleMessage(data []byte) {
	msg, err := protocol.ParseDeviceMessage(data)
	if err != nil {
		slog.Warn("unparseable device message", "device", s.deviceID, "error", err)
		return
	}

	switch m := msg.(type) {
	case *protocol.AuthMessage:
		s.handleAuth(m)

	case *protocol.ResponseMessage:
		resp := protocol.CommandResponse{
			ID:     m.ID,
			Status: m.Status,
			Data:   m.Data,
		}
		if m.Error != nil {
			resp.Error = m.Error.Message
			resp.ErrorCode = m.Error.Code
		}
		if !s.broker.pending.Fulfill(m.ID, resp) {
			// Late reply after timeout, or an id we never issued.
			slog.Debug("dropping response with no pending command", "device", s.deviceID, "id", m.ID)
		}

	case *protocol.EventMessage:
		s.broker.publish(m.Event, s.deviceID, m.Data)

	case *protocol.PushTokenMessage:
		if s.broker.registry.SetPushToken(s.deviceID, m.Token) {
			slog.Info("stored push token", "device", s.deviceID)
		} else {
			slog.Warn("push token from unknown device", "device", s.deviceID)
		}

	case *protocol.VoipTokenMessage:
		if s.broker.registry.SetVoipToken(s.deviceID, m.Token) {
			slog.Info("stored voip token", "device", s.deviceID)
		} else {
			slog.Warn("voip token from unknown device", "device", s.deviceID)
		}

	case *protocol.HelloMessage:
		slog.Warn("unexpected hello on established session", "device", s.deviceID)
	}
}

// handleAuth checks the presented token against the registry. A mismatch
// evicts the stale registry entry and re-enters pairing on the same socket.
func (s *deviceSession) handleAuth(m *protocol.AuthMessage) {
	if m.DeviceID != s.deviceID {
		slog.Warn("auth device id mismatch", "device", s.deviceID, "claimed", m.DeviceID)
		s.write(protocol.NewAuthResult(false, "", "device id mismatch"))
		return
	}
	if s.broker.conns.IsAuthenticated(s.deviceID) {
		slog.Warn("auth on already-authenticated session", "device", s.deviceID)
		return
	}

	device, known := s.broker.registry.Get(s.deviceID)
	if known && device.Token == m.Token {
		s.broker.conns.SetAuthenticated(s.deviceID)
		slog.Info("device authenticated", "device", s.deviceID)
		s.write(protocol.NewAuthResult(true, "", ""))
		s.broker.publish("device.connected", s.deviceID, nil)
		return
	}

	slog.Warn("auth failed, re-pairing", "device", s.deviceID)
	s.write(protocol.NewAuthResult(false, "", "invalid token"))
	if known {
		s.broker.registry.Delete(s.deviceID)
	}
	if err := s.enterPairing(); err != nil {
		slog.Warn("re-pairing failed", "device", s.deviceID, "error", err)
	}
}

// cleanup tears down this session's table entry and pairing codes. Pending
// commands are left to time out on their own. The entry is removed only if
// it still points at this session's connection.
func (s *deviceSession) cleanup() {
	s.conn.Close()
	s.ws.Close()
	if s.broker.conns.RemoveIf(s.deviceID, s.conn) {
		// Only the current owner of the table entry may drop the
		// device's pairing codes; a replaced session must not clobber
		// its successor's code.
		s.broker.pairings.RemoveDevice(s.deviceID)
	}
	connectedDevices.Dec()
	slog.Info("device disconnected", "device", s.deviceID)
	s.broker.publish("device.disconnected", s.deviceID, nil)
}
