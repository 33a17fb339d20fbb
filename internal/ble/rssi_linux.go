//go:build linux

package ble

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBus     = "org.bluez"
	bluezDevice1 = "org.bluez.Device1"
)

// readConnectedRSSI reads the RSSI BlueZ reports for a device.
func readConnectedRSSI(adapterName, address string) (int, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return 0, fmt.Errorf("ble: system bus: %w", err)
	}

	obj := conn.Object(bluezBus, devicePath(adapterName, address))
	variant, err := obj.GetProperty(bluezDevice1 + ".RSSI")
	if err != nil {
		return 0, fmt.Errorf("ble: read RSSI property: %w", err)
	}

	rssi, ok := variant.Value().(int16)
	if !ok {
		return 0, fmt.Errorf("ble: RSSI property has unexpected type %T", variant.Value())
	}
	return int(rssi), nil
}

// devicePath converts a MAC address to a BlueZ object path.
// Example: "AA:BB:CC:DD:EE:FF" -> "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"
func devicePath(adapterName, address string) dbus.ObjectPath {
	dev := strings.ReplaceAll(strings.ToUpper(address), ":", "_")
	return dbus.ObjectPath(fmt.Sprintf("/org/bluez/%s/dev_%s", adapterName, dev))
}
