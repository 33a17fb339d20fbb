package protocol

import (
	"strconv"
	"strings"
)

// Command is a text command understood by the gate peripheral. The
// command gateway writes any text verbatim; these are the ones the
// firmware acts on.
type Command string

const (
	CommandOn        Command = "on"
	CommandOff       Command = "off"
	CommandToggle    Command = "toggle"
	CommandUnlock    Command = "unlock"
	CommandLock      Command = "lock"
	CommandStartRSSI Command = "start_rssi"
	CommandStopRSSI  Command = "stop_rssi"
)

// Status is the text the peripheral notifies on the command
// characteristic after handling a write.
type Status string

const (
	StatusConnected   Status = "connected"
	StatusOn          Status = "on"
	StatusOff         Status = "off"
	StatusUnlocked    Status = "unlocked"
	StatusLocked      Status = "locked"
	StatusRSSIStarted Status = "rssi_started"
	StatusRSSIStopped Status = "rssi_stopped"
	StatusRSSIError   Status = "rssi_error"
	StatusUnknown     Status = "unknown"
)

const statusRSSIUpdated = "rssi_updated:"

// NormalizeCommand folds a written command the way the firmware reads it,
// and maps the numeric aliases "1" and "0" to on and off.
func NormalizeCommand(text string) Command {
	c := strings.ToLower(strings.TrimSpace(text))
	switch c {
	case "1":
		return CommandOn
	case "0":
		return CommandOff
	}
	return Command(c)
}

// RSSIUpdated is the status acknowledging an RSSI frame.
func RSSIUpdated(rssi int) Status {
	return Status(statusRSSIUpdated + strconv.Itoa(rssi))
}

// ParseStatus decodes a command characteristic notification.
func ParseStatus(data []byte) Status {
	return Status(strings.TrimSpace(strings.TrimRight(string(data), "\x00")))
}
