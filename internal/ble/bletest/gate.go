package bletest

import (
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/gatekeeper/internal/ble/protocol"
)

// Gate simulates the gate peripheral firmware on top of a Connection:
// it answers auth requests on the auth characteristic and acts on
// commands written to the command characteristic, notifying a status
// after each one.
type Gate struct {
	Conn    *Connection
	Auth    *Characteristic
	Command *Characteristic

	mu         sync.Mutex
	password   string
	ledOn      bool
	unlocked   bool
	rssiActive bool
	lastRSSI   int
	lastLabel  string
	silent     bool
}

// NewGate builds a connection exposing the auth and command
// characteristics under the given UUIDs and wires the firmware behaviour
// to them. An empty password accepts every request.
func NewGate(authUUID, commandUUID, password string) *Gate {
	g := &Gate{
		Auth:     NewCharacteristic(),
		Command:  NewCharacteristic(),
		password: password,
		lastRSSI: -60,
	}
	g.Conn = NewConnection(map[string]*Characteristic{
		authUUID:    g.Auth,
		commandUUID: g.Command,
	})
	g.Auth.OnWrite(g.handleAuth)
	g.Command.OnWrite(g.handleCommand)
	return g
}

// SetSilent stops the gate from answering auth requests.
func (g *Gate) SetSilent(silent bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.silent = silent
}

func (g *Gate) handleAuth(data []byte) {
	g.mu.Lock()
	silent := g.silent
	want := g.password
	g.mu.Unlock()
	if silent {
		return
	}

	password, label, err := protocol.DecodeAuthRequest(data)
	if err != nil {
		go g.Auth.Notify(protocol.EncodeFailure("Malformed request"))
		return
	}
	g.mu.Lock()
	g.lastLabel = label
	g.mu.Unlock()

	// Notify asynchronously, as a real peripheral answers after the write
	// completes.
	if want == "" || password == want {
		go g.Auth.Notify(protocol.EncodeSuccess("Welcome, " + label))
		return
	}
	go g.Auth.Notify(protocol.EncodeFailure("Invalid password"))
}

func (g *Gate) handleCommand(data []byte) {
	cmd := protocol.NormalizeCommand(string(data))

	g.mu.Lock()
	var status protocol.Status
	switch cmd {
	case protocol.CommandOn:
		g.rssiActive = false
		g.ledOn = true
		status = protocol.StatusOn
	case protocol.CommandOff:
		g.rssiActive = false
		g.ledOn = false
		status = protocol.StatusOff
	case protocol.CommandToggle:
		g.rssiActive = false
		g.ledOn = !g.ledOn
		status = protocol.StatusOff
		if g.ledOn {
			status = protocol.StatusOn
		}
	case protocol.CommandUnlock:
		g.unlocked = true
		status = protocol.StatusUnlocked
	case protocol.CommandLock:
		g.unlocked = false
		status = protocol.StatusLocked
	case protocol.CommandStartRSSI:
		g.rssiActive = true
		status = protocol.StatusRSSIStarted
	case protocol.CommandStopRSSI:
		g.rssiActive = false
		status = protocol.StatusRSSIStopped
	default:
		if rssi, err := protocol.ParseRSSI(string(cmd)); err == nil {
			g.lastRSSI = rssi
			status = protocol.RSSIUpdated(rssi)
		} else if strings.HasPrefix(string(cmd), protocol.RSSIPrefix) {
			status = protocol.StatusRSSIError
		} else {
			status = protocol.StatusUnknown
		}
	}
	g.mu.Unlock()

	go g.Command.Notify([]byte(status))
}

// Unlocked reports the relay state.
func (g *Gate) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

// RSSIActive reports whether RSSI-driven blinking is on.
func (g *Gate) RSSIActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rssiActive
}

// LastRSSI returns the most recent RSSI reported by the central.
func (g *Gate) LastRSSI() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRSSI
}

// LastLabel returns the device label of the most recent auth request.
func (g *Gate) LastLabel() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastLabel
}

// BlinkInterval maps the reported RSSI to the firmware's LED blink period.
func (g *Gate) BlinkInterval() time.Duration {
	return BlinkInterval(g.LastRSSI())
}

var blinkThresholds = []struct {
	rssi     int
	interval time.Duration
}{
	{-30, 25 * time.Millisecond},
	{-35, 50 * time.Millisecond},
	{-40, 75 * time.Millisecond},
	{-45, 100 * time.Millisecond},
	{-50, 150 * time.Millisecond},
	{-60, 300 * time.Millisecond},
	{-70, 600 * time.Millisecond},
	{-80, 1000 * time.Millisecond},
	{-90, 1500 * time.Millisecond},
}

// BlinkInterval returns the blink period for the strongest threshold the
// RSSI reaches; anything below -90 dBm blinks slowest.
func BlinkInterval(rssi int) time.Duration {
	for _, th := range blinkThresholds {
		if rssi >= th.rssi {
			return th.interval
		}
	}
	return 1500 * time.Millisecond
}
