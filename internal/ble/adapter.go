// Package ble defines the radio transport the gate core depends on and
// provides its implementation on top of tinygo-org/bluetooth.
package ble

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a service or characteristic is missing.
var ErrNotFound = errors.New("ble: not found")

// Peripheral is an opaque reference to an advertising device.
type Peripheral struct {
	// ID is the stable identifier: a MAC address on Linux, a CoreBluetooth
	// UUID on macOS.
	ID   string
	Name string

	// Handle is the transport-specific address the adapter connects with.
	Handle any
}

// Advertisement is one scan result.
type Advertisement struct {
	Peripheral Peripheral
	Name       string
	// ServiceUUIDs lists the advertised services among those the scan was
	// asked about.
	ServiceUUIDs []string
	RSSI         int
}

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	// It fails when the characteristic does not support notifications.
	Subscribe(callback func(data []byte)) error
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// ReadRSSI returns the current signal strength of the link in dBm.
	ReadRSSI() (int, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan reports advertisements to onResult until ctx is done or StopScan
	// is called. serviceUUIDs are the services whose presence should be
	// reported in Advertisement.ServiceUUIDs.
	Scan(ctx context.Context, serviceUUIDs []string, onResult func(Advertisement)) error
	// StopScan ends a running scan.
	StopScan() error
	// Connect establishes a connection to the peripheral.
	Connect(ctx context.Context, p Peripheral) (Connection, error)
}
