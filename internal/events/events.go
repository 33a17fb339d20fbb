// Package events is the outward notification surface of the gate core.
// The core publishes; the UI, API and automation layers subscribe.
package events

import (
	"sync"
	"time"
)

// Type classifies an event.
type Type string

const (
	StatusUpdate       Type = "status_update"
	AuthRequired       Type = "auth_required"
	AuthSuccess        Type = "auth_success"
	AuthFailed         Type = "auth_failed"
	ProximityTriggered Type = "proximity_triggered"
	ProximityLost      Type = "proximity_lost"
	Heartbeat          Type = "heartbeat"
	CommandStatus      Type = "command_status"
	RSSISample         Type = "rssi_sample"
)

// Event is the JSON-serialisable envelope delivered to subscribers.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Status is the payload of StatusUpdate.
type Status struct {
	Status        string `json:"status"`
	Connected     bool   `json:"connected"`
	Authenticated bool   `json:"authenticated"`
}

// Message is the payload of AuthRequired, AuthSuccess and AuthFailed.
type Message struct {
	Message string `json:"message"`
}

// Proximity is the payload of ProximityTriggered.
type Proximity struct {
	DeviceLabel string `json:"device_label"`
}

// Beat is the payload of Heartbeat.
type Beat struct {
	Connected     bool   `json:"connected"`
	Authenticated bool   `json:"authenticated"`
	DeviceLabel   string `json:"device_label"`
}

// Command is the payload of CommandStatus.
type Command struct {
	Status string `json:"status"`
}

// Signal is the payload of RSSISample.
type Signal struct {
	RSSI int `json:"rssi"`
}

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(e Event)
}

// subscriber holds a buffered channel for one consumer.
type subscriber struct {
	ch   chan Event
	once sync.Once
}

// Bus fans events out to all registered subscribers. Delivery is
// at-most-once: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	buffer int
}

// NewBus constructs a ready Bus. buffer is the per-subscriber queue depth.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: make(map[*subscriber]struct{}), buffer: buffer}
}

// Subscribe registers a consumer. The returned function unregisters it
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, b.buffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		s.once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, unsub
}

// Publish sends e to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
			// Slow consumer, drop.
		}
	}
}

// Len returns the current subscriber count.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

var _ Publisher = (*Bus)(nil)
