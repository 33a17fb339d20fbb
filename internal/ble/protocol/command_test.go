package protocol

import "testing"

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"unlock", CommandUnlock},
		{"  UNLOCK \n", CommandUnlock},
		{"1", CommandOn},
		{"0", CommandOff},
		{"Toggle", CommandToggle},
		{"rssi:-50", Command("rssi:-50")},
	}
	for _, tt := range tests {
		if got := NormalizeCommand(tt.in); got != tt.want {
			t.Errorf("NormalizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRSSIUpdated(t *testing.T) {
	if got := RSSIUpdated(-61); got != "rssi_updated:-61" {
		t.Errorf("RSSIUpdated(-61) = %q", got)
	}
}

func TestParseStatus(t *testing.T) {
	if got := ParseStatus([]byte("unlocked\x00")); got != StatusUnlocked {
		t.Errorf("ParseStatus = %q, want %q", got, StatusUnlocked)
	}
}
