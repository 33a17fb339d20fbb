//go:build linux

package ble

import "testing"

func TestDevicePath(t *testing.T) {
	tests := []struct {
		adapter string
		address string
		want    string
	}{
		{"hci0", "AA:BB:CC:DD:EE:FF", "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"},
		{"hci1", "aa:bb:cc:dd:ee:0f", "/org/bluez/hci1/dev_AA_BB_CC_DD_EE_0F"},
	}
	for _, tt := range tests {
		if got := string(devicePath(tt.adapter, tt.address)); got != tt.want {
			t.Errorf("devicePath(%q, %q) = %q, want %q", tt.adapter, tt.address, got, tt.want)
		}
	}
}
