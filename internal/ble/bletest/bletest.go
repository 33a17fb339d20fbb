// Package bletest provides an in-memory BLE transport for tests.
package bletest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chaz8081/gatekeeper/internal/ble"
)

// Characteristic records writes and allows subscribing.
type Characteristic struct {
	mu           sync.Mutex
	writes       [][]byte
	callback     func([]byte)
	writeErr     error
	subscribeErr error
	onWrite      func([]byte)
}

// NewCharacteristic returns a characteristic that accepts writes and
// subscriptions.
func NewCharacteristic() *Characteristic {
	return &Characteristic{}
}

func (c *Characteristic) Write(data []byte) error {
	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	hook := c.onWrite
	c.mu.Unlock()

	if hook != nil {
		hook(cp)
	}
	return nil
}

func (c *Characteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.callback = cb
	return nil
}

// SetWriteError makes subsequent writes fail with err (nil clears it).
func (c *Characteristic) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// SetSubscribeError makes Subscribe fail, as for a characteristic without
// the notify property.
func (c *Characteristic) SetSubscribeError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribeErr = err
}

// OnWrite installs a hook called after every successful write.
func (c *Characteristic) OnWrite(hook func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWrite = hook
}

// Writes returns a copy of every payload written so far.
func (c *Characteristic) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	for i, w := range c.writes {
		out[i] = string(w)
	}
	return out
}

// Subscribed reports whether a notification callback is registered.
func (c *Characteristic) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callback != nil
}

// Notify sends a notification to the subscriber.
func (c *Characteristic) Notify(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// Connection simulates a BLE connection.
type Connection struct {
	mu           sync.Mutex
	chars        map[string]*Characteristic // keyed by characteristic UUID
	rssi         int
	rssiErr      error
	disconnectCb func()
	disconnected bool
}

// NewConnection returns a connection exposing the given characteristics.
func NewConnection(chars map[string]*Characteristic) *Connection {
	if chars == nil {
		chars = make(map[string]*Characteristic)
	}
	return &Connection{chars: chars, rssi: -60}
}

func (c *Connection) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.chars[charUUID]
	if !ok {
		return nil, fmt.Errorf("bletest: characteristic %s: %w", charUUID, ble.ErrNotFound)
	}
	return ch, nil
}

func (c *Connection) ReadRSSI() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rssi, c.rssiErr
}

// SetRSSI sets the value and error returned by ReadRSSI.
func (c *Connection) SetRSSI(rssi int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rssi = rssi
	c.rssiErr = err
}

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

// Disconnected reports whether Disconnect was called.
func (c *Connection) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

func (c *Connection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// SimulateDisconnect triggers the disconnect callback, as when the
// peripheral walks out of range.
func (c *Connection) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Characteristic returns the characteristic registered under uuid.
func (c *Connection) Characteristic(uuid string) *Characteristic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chars[uuid]
}

// ConnectFunc produces the result of one Connect call.
type ConnectFunc func(ctx context.Context, p ble.Peripheral) (*Connection, error)

// Adapter simulates the BLE adapter. Advertisements queued with Advertise
// are delivered to the running scan, or to the next one.
type Adapter struct {
	mu        sync.Mutex
	enableErr error
	scanErr   error
	pending   []ble.Advertisement
	handler   func(ble.Advertisement)
	stop      chan struct{}
	scans     int
	connects  int
	connect   ConnectFunc
	conns     []*Connection
}

// NewAdapter returns an adapter whose Connect calls fn.
func NewAdapter(fn ConnectFunc) *Adapter {
	return &Adapter{connect: fn}
}

// SetEnableError makes Enable fail.
func (a *Adapter) SetEnableError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enableErr = err
}

// SetScanError makes Scan return err immediately.
func (a *Adapter) SetScanError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanErr = err
}

// SetConnect replaces the connect behaviour.
func (a *Adapter) SetConnect(fn ConnectFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connect = fn
}

func (a *Adapter) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enableErr
}

func (a *Adapter) Scan(ctx context.Context, _ []string, onResult func(ble.Advertisement)) error {
	a.mu.Lock()
	a.scans++
	if a.scanErr != nil {
		err := a.scanErr
		a.mu.Unlock()
		return err
	}
	stop := make(chan struct{})
	a.stop = stop
	a.handler = onResult
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, adv := range pending {
		onResult(adv)
	}

	select {
	case <-ctx.Done():
	case <-stop:
	}

	a.mu.Lock()
	if a.stop == stop {
		a.stop = nil
		a.handler = nil
	}
	a.mu.Unlock()
	return nil
}

func (a *Adapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
		a.handler = nil
	}
	return nil
}

// Advertise delivers adv to the running scan or queues it for the next.
func (a *Adapter) Advertise(adv ble.Advertisement) {
	a.mu.Lock()
	h := a.handler
	if h == nil {
		a.pending = append(a.pending, adv)
	}
	a.mu.Unlock()
	if h != nil {
		h(adv)
	}
}

// Scanning reports whether a scan is running.
func (a *Adapter) Scanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handler != nil
}

// Scans returns how many scans have been started.
func (a *Adapter) Scans() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scans
}

// Connects returns how many connect attempts have been made.
func (a *Adapter) Connects() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

func (a *Adapter) Connect(ctx context.Context, p ble.Peripheral) (ble.Connection, error) {
	a.mu.Lock()
	a.connects++
	fn := a.connect
	a.mu.Unlock()

	if fn == nil {
		return nil, errors.New("bletest: no connect behaviour configured")
	}
	conn, err := fn(ctx, p)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.conns = append(a.conns, conn)
	a.mu.Unlock()
	return conn, nil
}

// LatestConnection returns the most recently created connection.
func (a *Adapter) LatestConnection() *Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.conns) == 0 {
		return nil
	}
	return a.conns[len(a.conns)-1]
}

// Compile-time interface checks.
var (
	_ ble.Adapter        = (*Adapter)(nil)
	_ ble.Connection     = (*Connection)(nil)
	_ ble.Characteristic = (*Characteristic)(nil)
)
