// Package press turns hotkey presses into gate commands.
package press

import (
	"log/slog"
	"time"
)

// Event is one press of the hotkey combination.
type Event struct {
	Keys string
	At   time.Time
}

// Dispatch sends command through send for every event until events is
// closed. Presses closer together than debounce are ignored. Send errors
// are logged; a rejected press does nothing. A nil log uses slog.Default().
func Dispatch(events <-chan Event, command string, debounce time.Duration, send func(string) error, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	var last time.Time
	for ev := range events {
		if !last.IsZero() && ev.At.Sub(last) < debounce {
			log.Debug("[HOTKEY] debounced", "keys", ev.Keys)
			continue
		}
		last = ev.At
		if err := send(command); err != nil {
			log.Warn("[HOTKEY] command not sent", "keys", ev.Keys, "command", command, "error", err)
			continue
		}
		log.Info("[HOTKEY] command sent", "keys", ev.Keys, "command", command)
	}
}
