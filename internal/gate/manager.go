// Package gate keeps a single authenticated link to the gate device.
//
// A Manager runs one event loop that owns all connection and auth state.
// Transport callbacks, timers and control requests are messages to that
// loop; blocking transport calls run in goroutines and report back tagged
// with the scan or link they belong to, so results from a torn-down link
// are dropped. Other components read state through View.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/chaz8081/gatekeeper/internal/ble"
	"github.com/chaz8081/gatekeeper/internal/credstore"
	"github.com/chaz8081/gatekeeper/internal/events"
)

// Manager owns the connect, authenticate and monitor lifecycle.
type Manager struct {
	adapter ble.Adapter
	store   credstore.Store
	pub     events.Publisher
	opts    Options
	log     *slog.Logger
	filter  *Filter
	limiter *rate.Limiter

	msgs chan any
	quit chan struct{} // closed when Run returns
	view atomic.Pointer[View]

	// Everything below is owned by the loop goroutine.
	running bool
	state   ConnState
	auth    AuthState
	label   string
	authSeq uint64

	scanSeq    uint64
	scanID     uint64
	cancelScan context.CancelFunc

	// linkID identifies the connect attempt and, once connected, the
	// session.
	linkID     uuid.UUID
	cancelDial context.CancelFunc
	dropped    bool
	session    *Session

	stopMonitor context.CancelFunc

	timer    *time.Timer
	timerSeq uint64
	timerID  uint64
}

// New returns a Manager. Call Run to start its loop.
func New(adapter ble.Adapter, store credstore.Store, pub events.Publisher, opts Options) *Manager {
	opts = opts.withDefaults()
	if store == nil {
		store = credstore.NewMemoryStore()
	}
	if pub == nil {
		pub = discard{}
	}
	limit := rate.Inf
	if opts.CommandRate > 0 {
		limit = rate.Limit(opts.CommandRate)
	}
	m := &Manager{
		adapter: adapter,
		store:   store,
		pub:     pub,
		opts:    opts,
		log:     opts.Logger,
		filter:  NewFilter(opts.DeviceName, opts.ServiceUUID),
		limiter: rate.NewLimiter(limit, opts.CommandBurst),
		msgs:    make(chan any, 64),
		quit:    make(chan struct{}),
	}
	m.publishView()
	return m
}

// View returns the latest state snapshot.
func (m *Manager) View() View {
	return *m.view.Load()
}

// Run enables the adapter and processes events until ctx is done. It
// must be called once. Cancelling ctx stops the manager.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.quit)

	if err := m.adapter.Enable(); err != nil {
		return fmt.Errorf("gate: enable adapter: %w", err)
	}

	heartbeat := time.NewTicker(m.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			m.stop()
			m.publishView()
			return nil
		case <-heartbeat.C:
			m.heartbeat()
		case msg := <-m.msgs:
			m.handle(msg)
			m.publishView()
		}
	}
}

type startReq struct{ reply chan error }

type stopReq struct{ reply chan error }

type authReq struct {
	creds credstore.Credentials
	reply chan error
}

type scanResultMsg struct {
	scanID uint64
	adv    ble.Advertisement
}

type scanDoneMsg struct {
	scanID uint64
	err    error
}

type timerKind int

const (
	timerScanTimeout timerKind = iota
	timerRetry
)

type timerMsg struct {
	id   uint64
	kind timerKind
}

type dialResultMsg struct {
	id      uuid.UUID
	session *Session
	err     error
}

type disconnectMsg struct{ id uuid.UUID }

type authNotifyMsg struct {
	id   uuid.UUID
	data []byte
}

type authWriteMsg struct {
	id  uuid.UUID
	seq uint64
	err error
}

type commandStatusMsg struct {
	id   uuid.UUID
	data []byte
}

func (m *Manager) handle(msg any) {
	switch msg := msg.(type) {
	// Control requests publish the view before replying so callers see
	// their own transition.
	case startReq:
		err := m.start()
		m.publishView()
		msg.reply <- err
	case stopReq:
		m.stop()
		m.publishView()
		msg.reply <- nil
	case authReq:
		err := m.authenticate(msg.creds)
		m.publishView()
		msg.reply <- err
	case scanResultMsg:
		m.onScanResult(msg)
	case scanDoneMsg:
		m.onScanDone(msg)
	case timerMsg:
		m.onTimer(msg)
	case dialResultMsg:
		m.onDialResult(msg)
	case disconnectMsg:
		m.onDisconnect(msg)
	case authNotifyMsg:
		m.onAuthNotify(msg)
	case authWriteMsg:
		m.onAuthWrite(msg)
	case commandStatusMsg:
		m.onCommandStatus(msg)
	default:
		m.log.Error("[GATE] unknown loop message", "type", fmt.Sprintf("%T", msg))
	}
}

// send delivers a message from a transport goroutine. It reports false
// once the loop has exited.
func (m *Manager) send(msg any) bool {
	select {
	case m.msgs <- msg:
		return true
	case <-m.quit:
		return false
	}
}

// call posts a control request and waits for the loop's answer.
func (m *Manager) call(ctx context.Context, build func(reply chan error) any) error {
	reply := make(chan error, 1)
	select {
	case m.msgs <- build(reply):
	case <-m.quit:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-m.quit:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins scanning for the gate device. Starting a running manager
// is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	return m.call(ctx, func(reply chan error) any { return startReq{reply: reply} })
}

// Stop cancels every timer, disconnects a live session and leaves the
// manager idle until the next Start. Stop is idempotent.
func (m *Manager) Stop(ctx context.Context) error {
	err := m.call(ctx, func(reply chan error) any { return stopReq{reply: reply} })
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	return err
}

func (m *Manager) start() error {
	if m.running {
		return nil
	}
	m.running = true
	m.log.Info("[GATE] starting", "device", m.opts.DeviceName, "service", m.opts.ServiceUUID)
	m.startScan()
	return nil
}

func (m *Manager) stop() {
	if !m.running && m.state == Idle {
		return
	}
	m.running = false
	m.disarm()

	switch m.state {
	case Scanning:
		m.stopScanning()
	case Connecting:
		if m.cancelDial != nil {
			m.cancelDial()
		}
		m.linkID = uuid.Nil
	case Connected:
		monitoring := m.stopMonitor != nil
		m.state = Disconnecting
		m.teardown(true)
		if monitoring {
			m.publish(events.ProximityLost, nil)
		}
	}
	m.cancelDial = nil
	m.state = Idle
	m.log.Info("[GATE] stopped")
	m.status("stopped")
}

func (m *Manager) startScan() {
	m.disarm()
	m.state = Scanning
	m.scanSeq++
	id := m.scanSeq
	m.scanID = id

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ScanWindow)
	m.cancelScan = cancel
	m.arm(timerScanTimeout, m.opts.ScanTimeout)

	m.log.Debug("[GATE] scanning", "scan", id, "window", m.opts.ScanWindow)
	m.status("scanning")

	services := []string{m.opts.ServiceUUID}
	go func() {
		defer cancel()
		err := m.adapter.Scan(ctx, services, func(adv ble.Advertisement) {
			m.send(scanResultMsg{scanID: id, adv: adv})
		})
		m.send(scanDoneMsg{scanID: id, err: err})
	}()
}

func (m *Manager) stopScanning() {
	m.disarm()
	m.scanID = 0
	if m.cancelScan != nil {
		m.cancelScan()
		m.cancelScan = nil
	}
	if err := m.adapter.StopScan(); err != nil {
		m.log.Debug("[GATE] stop scan", "error", err)
	}
}

func (m *Manager) onScanResult(msg scanResultMsg) {
	if m.state != Scanning || msg.scanID != m.scanID {
		return
	}
	if !m.filter.Match(msg.adv) {
		return
	}
	m.log.Info("[GATE] found gate device",
		"id", msg.adv.Peripheral.ID,
		"name", msg.adv.Name,
		"rssi", msg.adv.RSSI,
	)
	m.stopScanning()
	m.connect(msg.adv.Peripheral)
}

func (m *Manager) onScanDone(msg scanDoneMsg) {
	if m.state != Scanning || msg.scanID != m.scanID {
		return
	}
	if msg.err == nil {
		// The window closed without a match; the scan timeout restarts it.
		return
	}
	m.log.Warn("[GATE] scan failed", "error", msg.err)
	m.stopScanning()
	m.retry(m.opts.ScanRetryDelay)
}

func (m *Manager) connect(p ble.Peripheral) {
	m.state = Connecting
	m.linkID = uuid.New()
	m.dropped = false
	id := m.linkID

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ConnectTimeout)
	m.cancelDial = cancel
	m.status("connecting")

	go func() {
		defer cancel()
		s, err := m.dial(ctx, id, p)
		if !m.send(dialResultMsg{id: id, session: s, err: err}) && s != nil {
			_ = s.Conn.Disconnect()
		}
	}()
}

// dial connects and resolves both characteristics. It runs off the loop.
func (m *Manager) dial(ctx context.Context, id uuid.UUID, p ble.Peripheral) (*Session, error) {
	conn, err := m.adapter.Connect(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	conn.OnDisconnect(func() {
		m.send(disconnectMsg{id: id})
	})

	fail := func(err error) (*Session, error) {
		if derr := conn.Disconnect(); derr != nil {
			m.log.Debug("[GATE] disconnect after failed setup", "error", derr)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	command, err := conn.DiscoverCharacteristic(m.opts.ServiceUUID, m.opts.CommandCharUUID)
	if err != nil {
		return fail(fmt.Errorf("command characteristic: %w", err))
	}
	auth, err := conn.DiscoverCharacteristic(m.opts.ServiceUUID, m.opts.AuthCharUUID)
	if err != nil {
		return fail(fmt.Errorf("auth characteristic: %w", err))
	}
	if err := auth.Subscribe(func(data []byte) {
		m.send(authNotifyMsg{id: id, data: data})
	}); err != nil {
		return fail(fmt.Errorf("auth notifications: %w", err))
	}
	if err := command.Subscribe(func(data []byte) {
		m.send(commandStatusMsg{id: id, data: data})
	}); err != nil {
		m.log.Debug("[GATE] command status notifications unavailable", "error", err)
	}

	return &Session{
		ID:          id,
		Peripheral:  p,
		Conn:        conn,
		Command:     command,
		Auth:        auth,
		ConnectedAt: time.Now(),
	}, nil
}

func (m *Manager) onDialResult(msg dialResultMsg) {
	if m.state != Connecting || msg.id != m.linkID {
		if msg.session != nil {
			m.log.Debug("[GATE] dropping stale connection", "session", msg.id)
			go disconnect(m.log, msg.session.Conn)
		}
		return
	}
	m.cancelDial = nil

	err := msg.err
	if err == nil && m.dropped {
		err = fmt.Errorf("%w: link dropped during setup", ErrConnect)
		go disconnect(m.log, msg.session.Conn)
	}
	if err != nil {
		m.log.Warn("[GATE] connect failed", "error", err, "retry_in", m.opts.ConnectRetryDelay)
		m.linkID = uuid.Nil
		m.status("connect_failed")
		m.retry(m.opts.ConnectRetryDelay)
		return
	}

	m.session = msg.session
	m.state = Connected
	m.auth = AuthState{}
	m.log.Info("[GATE] connected", "peripheral", m.session.Peripheral.ID, "session", m.session.ID)
	m.status("connected")
	m.autoAuthenticate()
}

func (m *Manager) onDisconnect(msg disconnectMsg) {
	if msg.id != m.linkID {
		return
	}
	switch m.state {
	case Connecting:
		m.dropped = true
	case Connected:
		monitoring := m.stopMonitor != nil
		m.log.Warn("[GATE] link lost",
			"error", ErrUnexpectedDisconnect,
			"peripheral", m.session.Peripheral.ID,
			"retry_in", m.opts.ReconnectDelay,
		)
		m.state = Disconnecting
		m.teardown(false)
		if monitoring {
			m.publish(events.ProximityLost, nil)
		}
		m.status("disconnected")
		m.retry(m.opts.ReconnectDelay)
	}
}

// teardown destroys the session and resets auth.
func (m *Manager) teardown(disconnectLink bool) {
	m.stopMonitoring()
	s := m.session
	m.session = nil
	m.linkID = uuid.Nil
	m.auth = AuthState{}
	if disconnectLink && s != nil {
		go disconnect(m.log, s.Conn)
	}
}

func disconnect(log *slog.Logger, conn ble.Connection) {
	if err := conn.Disconnect(); err != nil {
		log.Debug("[GATE] disconnect", "error", err)
	}
}

// retry idles for d, then scans again.
func (m *Manager) retry(d time.Duration) {
	m.state = Idle
	m.arm(timerRetry, d)
}

func (m *Manager) onTimer(msg timerMsg) {
	if msg.id != m.timerID {
		return
	}
	m.timer = nil
	m.timerID = 0

	switch msg.kind {
	case timerScanTimeout:
		if m.state != Scanning {
			return
		}
		m.log.Debug("[GATE] scan timed out", "error", ErrDiscoveryTimeout, "retry_in", m.opts.ScanRetryDelay)
		m.stopScanning()
		m.retry(m.opts.ScanRetryDelay)
	case timerRetry:
		if m.running && m.state == Idle {
			m.startScan()
		}
	}
}

// arm replaces the pending timer. Only one timer is live at a time: the
// scan timeout while scanning, or a cooldown while idle.
func (m *Manager) arm(kind timerKind, d time.Duration) {
	m.disarm()
	m.timerSeq++
	id := m.timerSeq
	m.timerID = id
	m.timer = time.AfterFunc(d, func() {
		m.send(timerMsg{id: id, kind: kind})
	})
}

func (m *Manager) disarm() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = nil
	m.timerID = 0
}

func (m *Manager) heartbeat() {
	m.publish(events.Heartbeat, events.Beat{
		Connected:     m.state == Connected,
		Authenticated: m.auth.Status == Authenticated,
		DeviceLabel:   m.label,
	})
}

func (m *Manager) status(s string) {
	m.publish(events.StatusUpdate, events.Status{
		Status:        s,
		Connected:     m.state == Connected,
		Authenticated: m.auth.Status == Authenticated,
	})
}

func (m *Manager) publish(t events.Type, data any) {
	m.pub.Publish(events.Event{Type: t, Timestamp: time.Now().UTC(), Data: data})
}

func (m *Manager) publishView() {
	v := &View{
		State:       m.state,
		Auth:        m.auth,
		Running:     m.running,
		DeviceLabel: m.label,
		session:     m.session,
	}
	if s := m.session; s != nil {
		v.SessionID = s.ID.String()
		v.Peripheral = s.Peripheral.ID
		v.ConnectedAt = s.ConnectedAt
	}
	m.view.Store(v)
}

type discard struct{}

func (discard) Publish(events.Event) {}
