package server

import (
	"encoding/json"
)

// clientSession streams bus events to one subscribed client socket.
// Inbound frames are ignored; the read pump only watches for close.
type clientSession struct {
	ws  WebSocket
	bus *EventBus
}

func (s *clientSession) Run() {
	id, events := s.bus.Subscribe()
	defer s.bus.Unsubscribe(id)
	defer s.ws.Close()

	// Drain inbound frames so pings and closes are processed; anything
	// the client says is ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := s.ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := s.ws.WriteMessage(textMessage, data); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
