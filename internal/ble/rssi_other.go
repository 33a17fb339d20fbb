//go:build !linux

package ble

import "errors"

// CoreBluetooth does not expose a synchronous RSSI read through
// tinygo-org/bluetooth; callers fall back to the last advertisement.
func readConnectedRSSI(adapterName, address string) (int, error) {
	return 0, errors.New("ble: connected RSSI read not supported on this platform")
}
