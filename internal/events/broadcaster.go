// Package events fans library change events out to SSE subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Vincenzoferrara/metadata-remote/internal/metrics"
	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
)

// Broadcaster manages SSE subscribers and publishes change events to them.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan protocol.ChangeEvent]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan protocol.ChangeEvent]struct{}),
	}
}

// Subscribe registers a subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan protocol.ChangeEvent {
	ch := make(chan protocol.ChangeEvent, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	metrics.AddSSEClient(1)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan protocol.ChangeEvent) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
		metrics.AddSSEClient(-1)
	}
	b.mu.Unlock()
}

// Publish sends an event to every subscriber. Non-blocking: events are
// dropped for consumers that cannot keep up.
func (b *Broadcaster) Publish(event protocol.ChangeEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Marshal serializes an event for the wire.
func Marshal(e protocol.ChangeEvent) ([]byte, error) {
	return json.Marshal(e)
}
