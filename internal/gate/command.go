package gate

import (
	"fmt"

	"github.com/chaz8081/gatekeeper/internal/ble/protocol"
	"github.com/chaz8081/gatekeeper/internal/events"
)

// SendCommand writes text verbatim to the command characteristic. It
// never writes unless the session is live and authenticated; otherwise
// it returns ErrCommandRejected and changes nothing. Commands beyond the
// configured rate return ErrRateLimited.
func (m *Manager) SendCommand(text string) error {
	v := m.View()
	if !v.CommandReady() {
		m.log.Warn("[CMD] rejected", "command", text, "state", v.State, "auth", v.Auth.Status)
		return ErrCommandRejected
	}
	if text == "" {
		return nil
	}
	if !m.limiter.Allow() {
		m.log.Warn("[CMD] rate limited", "command", text)
		return ErrRateLimited
	}
	if err := v.session.Command.Write([]byte(text)); err != nil {
		m.log.Warn("[CMD] write failed", "command", text, "error", err)
		return fmt.Errorf("gate: write command %q: %w", text, err)
	}
	m.log.Info("[CMD] sent", "command", text)
	return nil
}

func (m *Manager) onCommandStatus(msg commandStatusMsg) {
	if m.session == nil || msg.id != m.session.ID {
		return
	}
	status := protocol.ParseStatus(msg.data)
	m.log.Debug("[CMD] status", "status", status)
	m.publish(events.CommandStatus, events.Command{Status: string(status)})
}
