package events

import (
	"encoding/json"
	"testing"
	"time"

	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

func TestPublishFanOut(t *testing.T) {
	bus := NewBus(4)
	a, unsubA := bus.Subscribe()
	defer unsubA()
	b, unsubB := bus.Subscribe()
	defer unsubB()

	bus.Publish(Event{Type: AuthSuccess, Data: Message{Message: "welcome"}})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, e.Type, AuthSuccess)
			assert.Equal(t, e.Data.(Message).Message, "welcome")
			assert.Assert(t, !e.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	bus := NewBus(8)
	ch, unsub := bus.Subscribe()
	defer unsub()

	order := []Type{StatusUpdate, AuthSuccess, StatusUpdate, ProximityTriggered}
	for _, typ := range order {
		bus.Publish(Event{Type: typ})
	}
	for _, want := range order {
		e := <-ch
		assert.Equal(t, e.Type, want)
	}
}

func TestPublishDropsForSlowConsumer(t *testing.T) {
	bus := NewBus(1)
	ch, unsub := bus.Subscribe()
	defer unsub()

	bus.Publish(Event{Type: Heartbeat})
	bus.Publish(Event{Type: Heartbeat}) // buffer full, dropped without blocking

	assert.Equal(t, len(ch), 1)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(1)
	ch, unsub := bus.Subscribe()
	assert.Equal(t, bus.Len(), 1)

	unsub()
	unsub()

	_, ok := <-ch
	assert.Assert(t, !ok)
	assert.Equal(t, bus.Len(), 0)

	// Publishing with no subscribers is a no-op.
	bus.Publish(Event{Type: Heartbeat})
}

func TestEventJSON(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := json.Marshal(Event{
		Type:      StatusUpdate,
		Timestamp: ts,
		Data:      Status{Status: "connected", Connected: true},
	})
	assert.NilError(t, err)
	assert.Assert(t, is.Contains(string(data), `"type":"status_update"`))
	assert.Assert(t, is.Contains(string(data), `"status":"connected","connected":true,"authenticated":false`))
	assert.Assert(t, is.Contains(string(data), `"timestamp":"2026-01-02T03:04:05Z"`))
}
