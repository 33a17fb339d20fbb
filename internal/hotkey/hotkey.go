// Package hotkey provides a global hotkey listener using gohook. Each
// press of the combination is forwarded to the gate as a command.
package hotkey

import (
	"strings"
	"sync"
	"time"

	hook "github.com/robotn/gohook"

	"github.com/chaz8081/gatekeeper/internal/hotkey/press"
)

// Event is emitted on the channel returned by Events for every press.
type Event = press.Event

// Listener manages a global hotkey and emits press events.
type Listener struct {
	keys []string
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewListener creates a Listener for the given key combo.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "g"]).
func NewListener(keys []string) *Listener {
	return &Listener{
		keys: keys,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when the listener stops.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	combo := strings.Join(l.keys, "+")
	hook.Register(hook.KeyDown, l.keys, func(e hook.Event) {
		select {
		case l.ch <- Event{Keys: combo, At: time.Now()}:
		default: // don't block if channel is full
		}
	})

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
