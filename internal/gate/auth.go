package gate

import (
	"context"
	"fmt"

	"github.com/chaz8081/gatekeeper/internal/ble/protocol"
	"github.com/chaz8081/gatekeeper/internal/credstore"
	"github.com/chaz8081/gatekeeper/internal/events"
)

// Authenticate sends password and deviceLabel over the live session. The
// outcome arrives as an auth_success or auth_failed event. It returns
// ErrAuthUnavailable when no session is live; the caller must retry after
// reconnection. An empty deviceLabel uses the configured default.
func (m *Manager) Authenticate(ctx context.Context, password, deviceLabel string) error {
	if deviceLabel == "" {
		deviceLabel = m.opts.DefaultDeviceLabel
	}
	creds := credstore.Credentials{Password: password, DeviceLabel: deviceLabel}
	return m.call(ctx, func(reply chan error) any { return authReq{creds: creds, reply: reply} })
}

func (m *Manager) authenticate(creds credstore.Credentials) error {
	return m.sendAuth(creds)
}

// autoAuthenticate runs once per session, right after both
// characteristics are resolved.
func (m *Manager) autoAuthenticate() {
	creds, ok, err := credstore.Load(m.store, m.opts.DefaultDeviceLabel)
	if err != nil {
		m.log.Warn("[AUTH] reading stored credentials", "error", err)
	}
	if !ok {
		m.log.Info("[AUTH] no stored credentials, waiting for login")
		m.publish(events.AuthRequired, events.Message{Message: "Authentication required"})
		return
	}
	m.log.Info("[AUTH] authenticating with stored credentials", "device_label", creds.DeviceLabel)
	if err := m.sendAuth(creds); err != nil {
		m.log.Warn("[AUTH] auto-authentication", "error", err)
	}
}

// sendAuth writes the request off the loop. The credentials are saved
// after every write attempt, whatever the outcome.
func (m *Manager) sendAuth(creds credstore.Credentials) error {
	s := m.session
	if m.state != Connected || s == nil || s.Auth == nil {
		m.log.Warn("[AUTH] auth characteristic unavailable", "state", m.state)
		return ErrAuthUnavailable
	}
	m.auth = AuthState{Status: Pending}
	m.label = creds.DeviceLabel
	m.authSeq++
	seq := m.authSeq

	payload := protocol.EncodeAuthRequest(creds.Password, creds.DeviceLabel)
	go func() {
		err := s.Auth.Write(payload)
		if serr := credstore.Save(m.store, creds); serr != nil {
			m.log.Warn("[AUTH] saving credentials", "error", serr)
		}
		m.send(authWriteMsg{id: s.ID, seq: seq, err: err})
	}()
	return nil
}

func (m *Manager) onAuthWrite(msg authWriteMsg) {
	if msg.err == nil {
		return
	}
	if m.session == nil || msg.id != m.session.ID {
		return
	}
	// A later attempt owns the pending state.
	if msg.seq != m.authSeq {
		m.log.Debug("[AUTH] superseded auth write failed", "error", msg.err)
		return
	}
	m.log.Warn("[AUTH] auth request not sent", "error", fmt.Errorf("%w: %w", ErrAuthTransport, msg.err))
	if m.auth.Status == Pending {
		m.auth = AuthState{}
	}
}

func (m *Manager) onAuthNotify(msg authNotifyMsg) {
	if m.session == nil || msg.id != m.session.ID {
		m.log.Debug("[AUTH] dropping notification from stale link", "session", msg.id)
		return
	}

	resp := protocol.ParseAuthResponse(msg.data)
	// Proximity stays active from the first success until a failure or
	// teardown, across re-authentication.
	active := m.stopMonitor != nil

	switch resp.Kind {
	case protocol.ResponseSuccess:
		m.auth = AuthState{Status: Authenticated}
		if m.label == "" {
			m.label = m.opts.DefaultDeviceLabel
		}
		m.log.Info("[AUTH] authenticated", "message", resp.Message)
		m.publish(events.AuthSuccess, events.Message{Message: resp.Message})
		m.status("connected")
		if !active {
			m.publish(events.ProximityTriggered, events.Proximity{DeviceLabel: m.label})
			m.startMonitor()
		}

	case protocol.ResponseFailed:
		m.auth = AuthState{Status: Failed, Reason: resp.Message}
		m.log.Warn("[AUTH] rejected", "reason", resp.Message, "error", ErrAuthRejected)
		m.publish(events.AuthFailed, events.Message{Message: resp.Message})
		if active {
			m.stopMonitoring()
			m.publish(events.ProximityLost, nil)
		}
		m.status("connected")

	default:
		m.log.Debug("[AUTH] ignoring unrecognised notification", "data", resp.Message)
	}
}
