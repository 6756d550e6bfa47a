package server

import (
	"sync"

	"github.com/rvald/omcli/internal/protocol"
)

// PendingCommands is the ledger of in-flight commands: command id → a
// single-shot reply slot the HTTP request parks on until the device's
// response arrives. Every inserted slot is either fulfilled once or
// dropped by the waiter; late replies find no slot and are discarded.
type PendingCommands struct {
	mu    sync.Mutex
	slots map[string]chan protocol.CommandResponse
}

func NewPendingCommands() *PendingCommands {
	return &PendingCommands{slots: make(map[string]chan protocol.CommandResponse)}
}

// Register inserts a reply slot for the command id. The returned channel
// receives at most one response.
func (p *PendingCommands) Register(id string) <-chan protocol.CommandResponse {
	ch := make(chan protocol.CommandResponse, 1)
	p.mu.Lock()
	p.slots[id] = ch
	p.mu.Unlock()
	return ch
}

// Fulfill removes the slot for id and delivers the response to its waiter.
// Returns false when no slot exists (already timed out or never issued).
func (p *PendingCommands) Fulfill(id string, resp protocol.CommandResponse) bool {
	p.mu.Lock()
	ch, ok := p.slots[id]
	delete(p.slots, id)
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- resp
	return true
}

// Drop removes the slot without delivering anything. Called by the waiter
// on timeout or cancellation.
func (p *PendingCommands) Drop(id string) {
	p.mu.Lock()
	delete(p.slots, id)
	p.mu.Unlock()
}

// Len returns the number of in-flight commands.
func (p *PendingCommands) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
