package gate

import (
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/gatekeeper/internal/ble"
)

// ConnState is the connection lifecycle state.
type ConnState int

const (
	Idle ConnState = iota
	Scanning
	Connecting
	Connected
	Disconnecting
)

func (s ConnState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AuthStatus is the authentication state of the live session.
type AuthStatus int

const (
	Unauthenticated AuthStatus = iota
	// Pending means a request was written and no response has arrived.
	Pending
	Authenticated
	Failed
)

func (s AuthStatus) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Pending:
		return "pending"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s AuthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AuthState carries the failure reason alongside the status.
type AuthState struct {
	Status AuthStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// Session is one established link with both characteristics resolved.
type Session struct {
	ID          uuid.UUID
	Peripheral  ble.Peripheral
	Conn        ble.Connection
	Command     ble.Characteristic
	Auth        ble.Characteristic
	ConnectedAt time.Time
}

// View is a read-only snapshot of the manager state. The manager
// publishes a fresh View after every transition.
type View struct {
	State       ConnState `json:"state"`
	Auth        AuthState `json:"auth"`
	Running     bool      `json:"running"`
	SessionID   string    `json:"session_id,omitempty"`
	Peripheral  string    `json:"peripheral,omitempty"`
	DeviceLabel string    `json:"device_label,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitzero"`

	session *Session
}

// Connected reports whether a session is live.
func (v View) Connected() bool {
	return v.State == Connected && v.session != nil
}

// Authenticated reports whether the live session is authenticated.
func (v View) Authenticated() bool {
	return v.Connected() && v.Auth.Status == Authenticated
}

// CommandReady reports whether the command gateway accepts writes: the
// session is live, authenticated and has a command characteristic.
func (v View) CommandReady() bool {
	return v.Authenticated() && v.session.Command != nil
}
