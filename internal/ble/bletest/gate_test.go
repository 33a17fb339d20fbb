package bletest

import (
	"testing"
	"time"
)

const (
	testAuthUUID    = "auth"
	testCommandUUID = "command"
)

func waitNotification(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return ""
	}
}

func subscribe(t *testing.T, c *Characteristic) <-chan string {
	t.Helper()
	ch := make(chan string, 8)
	if err := c.Subscribe(func(b []byte) { ch <- string(b) }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	return ch
}

func TestGateAuth(t *testing.T) {
	tests := []struct {
		name    string
		request string
		want    string
	}{
		{"correct password", "secret123|Phone", "SUCCESS|Welcome, Phone"},
		{"wrong password", "nope|Phone", "FAILED|Invalid password"},
		{"malformed", "secret123", "FAILED|Malformed request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(testAuthUUID, testCommandUUID, "secret123")
			ch := subscribe(t, g.Auth)
			if err := g.Auth.Write([]byte(tt.request)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if got := waitNotification(t, ch); got != tt.want {
				t.Errorf("notification = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGateCommands(t *testing.T) {
	g := NewGate(testAuthUUID, testCommandUUID, "")
	ch := subscribe(t, g.Command)

	steps := []struct {
		cmd  string
		want string
	}{
		{"unlock", "unlocked"},
		{"LOCK", "locked"},
		{"1", "on"},
		{"toggle", "off"},
		{"start_rssi", "rssi_started"},
		{"rssi:-47", "rssi_updated:-47"},
		{"rssi:x", "rssi_error"},
		{"dance", "unknown"},
	}
	for _, s := range steps {
		if err := g.Command.Write([]byte(s.cmd)); err != nil {
			t.Fatalf("Write(%q) error = %v", s.cmd, err)
		}
		if got := waitNotification(t, ch); got != s.want {
			t.Errorf("command %q: status = %q, want %q", s.cmd, got, s.want)
		}
	}
	if !g.RSSIActive() {
		t.Error("RSSI blinking should be active after start_rssi")
	}
	if g.LastRSSI() != -47 {
		t.Errorf("LastRSSI() = %d, want -47", g.LastRSSI())
	}
	if g.BlinkInterval() != 150*time.Millisecond {
		t.Errorf("BlinkInterval() = %v, want 150ms", g.BlinkInterval())
	}
}

func TestBlinkInterval(t *testing.T) {
	tests := []struct {
		rssi int
		want time.Duration
	}{
		{-20, 25 * time.Millisecond},
		{-30, 25 * time.Millisecond},
		{-31, 50 * time.Millisecond},
		{-55, 300 * time.Millisecond},
		{-60, 300 * time.Millisecond},
		{-89, 1500 * time.Millisecond},
		{-120, 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := BlinkInterval(tt.rssi); got != tt.want {
			t.Errorf("BlinkInterval(%d) = %v, want %v", tt.rssi, got, tt.want)
		}
	}
}
