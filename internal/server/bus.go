package server

import (
	"sync"

	"github.com/rvald/omcli/internal/protocol"
)

// busCapacity is each subscriber's buffer. Subscribers that fall further
// behind lose events; publishers never block.
const busCapacity = 256

// EventBus fans lifecycle events out to subscribed client sockets.
// Delivery is lossy: a full subscriber buffer drops the event.
type EventBus struct {
	mu   sync.Mutex
	subs map[int]chan protocol.ClientEvent
	next int
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan protocol.ClientEvent)}
}

// Subscribe registers a new subscriber and returns its id and channel.
func (b *EventBus) Subscribe() (int, <-chan protocol.ClientEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan protocol.ClientEvent, busCapacity)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers the event to every subscriber that has room.
func (b *EventBus) Publish(ev protocol.ClientEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default: // lagging subscriber loses the event
		}
	}
	eventsPublished.Inc()
}

// Subscribers returns the current subscriber count.
func (b *EventBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
