package gate

import (
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/gatekeeper/internal/events"
)

// quietOptions disables telemetry so command writes are the only writes.
func quietOptions() Options {
	o := testOptions()
	o.AnnounceCommand = ""
	o.RSSIInterval = time.Hour
	return o
}

func TestSendCommandRejectedUntilAuthenticated(t *testing.T) {
	commands := []string{"unlock", "on", "rssi:-40", "anything", "SUCCESS|x"}

	h := newHarness(t, quietOptions(), "")
	h.gate.SetSilent(true)

	check := func(stage string) {
		t.Helper()
		for _, c := range commands {
			if err := h.m.SendCommand(c); !errors.Is(err, ErrCommandRejected) {
				t.Errorf("%s: SendCommand(%q) error = %v, want ErrCommandRejected", stage, c, err)
			}
		}
		if w := h.gate.Command.Writes(); len(w) != 0 {
			t.Fatalf("%s: command writes = %q, want none", stage, w)
		}
	}

	check("idle")
	h.start(t)
	check("scanning")

	h.adapter.Advertise(gateAdv)
	eventually(t, "connected", func() bool { return h.m.View().State == Connected })
	check("connected")

	if err := h.m.Authenticate(t.Context(), "secret123", "Phone"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "pending", func() bool { return h.m.View().Auth.Status == Pending })
	check("pending")

	h.gate.Auth.Notify([]byte("FAILED|nope"))
	eventually(t, "failed", func() bool { return h.m.View().Auth.Status == Failed })
	check("failed")
}

func TestSendCommandWritesVerbatim(t *testing.T) {
	h := newHarness(t, quietOptions(), "")
	h.authenticate(t)

	for _, c := range []string{"unlock", "Toggle", "bogus"} {
		if err := h.m.SendCommand(c); err != nil {
			t.Fatalf("SendCommand(%q) error = %v", c, err)
		}
	}
	if err := h.m.SendCommand(""); err != nil {
		t.Errorf("SendCommand(\"\") error = %v", err)
	}

	want := []string{"unlock", "Toggle", "bogus"}
	got := h.gate.Command.Writes()
	if len(got) != len(want) {
		t.Fatalf("writes = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, got[i], want[i])
		}
	}

	if !h.gate.Unlocked() {
		t.Error("gate should be unlocked")
	}
	eventually(t, "command statuses", func() bool {
		return h.rec.has(events.CommandStatus, events.Command{Status: "unlocked"}) &&
			h.rec.has(events.CommandStatus, events.Command{Status: "on"}) &&
			h.rec.has(events.CommandStatus, events.Command{Status: "unknown"})
	})
}

func TestSendCommandWriteError(t *testing.T) {
	h := newHarness(t, quietOptions(), "")
	h.authenticate(t)

	writeErr := errors.New("gatt write failed")
	h.gate.Command.SetWriteError(writeErr)
	if err := h.m.SendCommand("lock"); !errors.Is(err, writeErr) {
		t.Errorf("SendCommand() error = %v, want wrapped write error", err)
	}
	if !h.m.View().Authenticated() {
		t.Error("a failed command write must not change state")
	}
}

func TestSendCommandRateLimited(t *testing.T) {
	opts := quietOptions()
	opts.CommandRate = 0.01
	opts.CommandBurst = 2
	h := newHarness(t, opts, "")
	h.authenticate(t)

	for i := 0; i < 2; i++ {
		if err := h.m.SendCommand("toggle"); err != nil {
			t.Fatalf("SendCommand() #%d error = %v", i, err)
		}
	}
	if err := h.m.SendCommand("toggle"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("SendCommand() over burst error = %v, want ErrRateLimited", err)
	}
	if n := len(h.gate.Command.Writes()); n != 2 {
		t.Errorf("command writes = %d, want 2", n)
	}
}
