package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter wraps tinygo-org/bluetooth (BlueZ on Linux, CoreBluetooth
// on macOS).
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter
	// bluezAdapter names the HCI adapter ("hci0") used for RSSI reads on Linux.
	bluezAdapter string

	// mu protects connections, lastRSSI and scan.
	mu          sync.Mutex
	connections map[string]*tinyGoConnection // keyed by peripheral ID
	lastRSSI    map[string]int
	scan        *scanStopper // running scan, nil when idle
}

// scanStopper stops one scan exactly once. tinygo's StopScan is not safe
// for concurrent callers and panics when the scan was already stopped.
type scanStopper struct {
	once sync.Once
	stop func() error
	err  error
}

func newScanStopper(stop func() error) *scanStopper {
	return &scanStopper{stop: stop}
}

func (s *scanStopper) Stop() error {
	s.once.Do(func() { s.err = s.stop() })
	return s.err
}

// NewTinyGoAdapter creates a BLE adapter on the system default radio.
func NewTinyGoAdapter(bluezAdapter string) *TinyGoAdapter {
	if bluezAdapter == "" {
		bluezAdapter = "hci0"
	}
	return &TinyGoAdapter{
		adapter:      bluetooth.DefaultAdapter,
		bluezAdapter: bluezAdapter,
		connections:  make(map[string]*tinyGoConnection),
		lastRSSI:     make(map[string]int),
	}
}

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// tinygo/bluetooth reports disconnects at the adapter level only, so
	// route them to the matching connection.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[id]
		delete(a.connections, id)
		a.mu.Unlock()
		if ok {
			conn.fireDisconnect()
		}
	})

	return nil
}

func (a *TinyGoAdapter) Scan(ctx context.Context, serviceUUIDs []string, onResult func(Advertisement)) error {
	uuids := make([]bluetooth.UUID, len(serviceUUIDs))
	for i, s := range serviceUUIDs {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return fmt.Errorf("ble: parse service UUID %q: %w", s, err)
		}
		uuids[i] = u
	}
	if err := ctx.Err(); err != nil {
		return nil
	}

	stopper := newScanStopper(a.adapter.StopScan)
	a.mu.Lock()
	a.scan = stopper
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		if a.scan == stopper {
			a.scan = nil
		}
		a.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = stopper.Stop()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		id := result.Address.String()
		adv := Advertisement{
			Peripheral: Peripheral{ID: id, Name: result.LocalName(), Handle: result.Address},
			Name:       result.LocalName(),
			RSSI:       int(result.RSSI),
		}
		for i, u := range uuids {
			if result.HasServiceUUID(u) {
				adv.ServiceUUIDs = append(adv.ServiceUUIDs, serviceUUIDs[i])
			}
		}
		a.mu.Lock()
		a.lastRSSI[id] = adv.RSSI
		a.mu.Unlock()
		onResult(adv)
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

// StopScan stops the running scan, if any. It may race with the scan's
// own context cancellation; the underlying stop runs once.
func (a *TinyGoAdapter) StopScan() error {
	a.mu.Lock()
	stopper := a.scan
	a.mu.Unlock()
	if stopper == nil {
		return nil
	}
	return stopper.Stop()
}

func (a *TinyGoAdapter) Connect(ctx context.Context, p Peripheral) (Connection, error) {
	addr, ok := p.Handle.(bluetooth.Address)
	if !ok {
		return nil, fmt.Errorf("ble: connect to %s: peripheral was not discovered by this adapter", p.ID)
	}

	// tinygo/bluetooth's Connect blocks internally with its own timeout.
	// We wrap it to also respect our ctx cancellation.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// The underlying Connect cannot be cancelled; drop the link if it
		// completes after we gave up.
		go func() {
			if result := <-ch; result.err == nil {
				_ = result.device.Disconnect()
			}
		}()
		return nil, fmt.Errorf("ble: connect to %s: %w", p.ID, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", p.ID, result.err)
		}
		conn := &tinyGoConnection{adapter: a, id: p.ID, device: &result.device}

		a.mu.Lock()
		a.connections[p.ID] = conn
		a.mu.Unlock()

		return conn, nil
	}
}

// rssiFor returns the best available signal strength for a peripheral:
// a live read where the platform supports it, else the last advertisement.
func (a *TinyGoAdapter) rssiFor(id string) (int, error) {
	rssi, err := readConnectedRSSI(a.bluezAdapter, id)
	if err == nil {
		return rssi, nil
	}
	slog.Debug("[BLE] connected RSSI unavailable, using last advertisement", "id", id, "error", err)

	a.mu.Lock()
	defer a.mu.Unlock()
	rssi, ok := a.lastRSSI[id]
	if !ok {
		return 0, fmt.Errorf("ble: no RSSI for %s: %w", id, err)
	}
	return rssi, nil
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

type tinyGoConnection struct {
	adapter *TinyGoAdapter
	id      string
	device  *bluetooth.Device

	mu           sync.Mutex
	disconnectCb func()
}

func (c *tinyGoConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	charUUIDParsed, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("ble: service %s: %w", serviceUUID, ErrNotFound)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{charUUIDParsed})
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s: %w", charUUID, ErrNotFound)
	}

	return &tinyGoCharacteristic{char: &chars[0]}, nil
}

func (c *tinyGoConnection) ReadRSSI() (int, error) {
	return c.adapter.rssiFor(c.id)
}

func (c *tinyGoConnection) Disconnect() error {
	c.adapter.mu.Lock()
	delete(c.adapter.connections, c.id)
	c.adapter.mu.Unlock()
	return c.device.Disconnect()
}

func (c *tinyGoConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

func (c *tinyGoConnection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type tinyGoCharacteristic struct {
	char *bluetooth.DeviceCharacteristic
}

func (c *tinyGoCharacteristic) Write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *tinyGoCharacteristic) Subscribe(cb func([]byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		// The buffer is reused by the stack between notifications.
		cp := make([]byte, len(buf))
		copy(cp, buf)
		cb(cp)
	})
}
