package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/chaz8081/gatekeeper/internal/ble/protocol"
	"github.com/chaz8081/gatekeeper/internal/events"
)

// startMonitor starts RSSI sampling for the live session.
func (m *Manager) startMonitor() {
	if m.stopMonitor != nil || m.session == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopMonitor = cancel
	go m.monitor(ctx, m.session)
}

func (m *Manager) stopMonitoring() {
	if m.stopMonitor != nil {
		m.stopMonitor()
		m.stopMonitor = nil
		m.log.Debug("[PROX] monitoring stopped")
	}
}

// monitor announces itself to the peripheral, then forwards one RSSI
// sample per tick. Failures are logged and the next tick retries.
func (m *Manager) monitor(ctx context.Context, s *Session) {
	m.log.Info("[PROX] monitoring started", "interval", m.opts.RSSIInterval)

	if cmd := m.opts.AnnounceCommand; cmd != "" && s.Command != nil {
		if err := s.Command.Write([]byte(cmd)); err != nil {
			m.log.Warn("[PROX] announce", "command", cmd, "error", err)
		}
	}

	ticker := time.NewTicker(m.opts.RSSIInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			m.sample(s)
		}
	}
}

func (m *Manager) sample(s *Session) {
	// A tick that finds the session gone or unauthenticated does nothing.
	v := m.View()
	if !v.CommandReady() || v.session != s {
		return
	}

	rssi, err := s.Conn.ReadRSSI()
	if err != nil {
		m.log.Warn("[PROX] read RSSI", "error", fmt.Errorf("%w: %w", ErrTelemetry, err))
		return
	}
	if err := s.Command.Write(protocol.EncodeRSSI(rssi)); err != nil {
		m.log.Warn("[PROX] write RSSI", "rssi", rssi, "error", fmt.Errorf("%w: %w", ErrTelemetry, err))
		return
	}
	m.log.Debug("[PROX] sample", "rssi", rssi)
	m.publish(events.RSSISample, events.Signal{RSSI: rssi})
}
