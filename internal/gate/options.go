package gate

import (
	"log/slog"
	"time"
)

// Defaults for the gate device and its timing.
const (
	DefaultDeviceName      = "Gate"
	DefaultServiceUUID     = "12345678-1234-5678-1234-123456789abc"
	DefaultCommandCharUUID = "87654321-1234-5678-1234-cba987654321"
	DefaultAuthCharUUID    = "87654321-1234-5678-1234-cba987654322"

	DefaultScanWindow        = 6 * time.Second
	DefaultScanTimeout       = 8 * time.Second
	DefaultConnectTimeout    = 15 * time.Second
	DefaultScanRetryDelay    = 2 * time.Second
	DefaultConnectRetryDelay = 3 * time.Second
	DefaultReconnectDelay    = 2 * time.Second
	DefaultRSSIInterval      = 1 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second

	DefaultDeviceLabel     = "Gatekeeper"
	DefaultAnnounceCommand = "start_rssi"
)

// Options configures a Manager.
type Options struct {
	DeviceName      string
	ServiceUUID     string
	CommandCharUUID string
	AuthCharUUID    string

	// ScanWindow bounds one transport scan; ScanTimeout is the hard limit
	// for finding a candidate before the scan is restarted.
	ScanWindow     time.Duration
	ScanTimeout    time.Duration
	ConnectTimeout time.Duration

	// Cooldowns before scanning again after a scan timeout, a failed
	// connect and a dropped session.
	ScanRetryDelay    time.Duration
	ConnectRetryDelay time.Duration
	ReconnectDelay    time.Duration

	RSSIInterval      time.Duration
	HeartbeatInterval time.Duration

	// DefaultDeviceLabel is used when the store holds a password without
	// a label.
	DefaultDeviceLabel string

	// AnnounceCommand is written once when proximity monitoring starts.
	// Empty disables it.
	AnnounceCommand string

	// CommandRate limits SendCommand per second; zero means unlimited.
	CommandRate  float64
	CommandBurst int

	Logger *slog.Logger
}

// DefaultOptions returns the built-in gate configuration.
func DefaultOptions() Options {
	return Options{
		DeviceName:         DefaultDeviceName,
		ServiceUUID:        DefaultServiceUUID,
		CommandCharUUID:    DefaultCommandCharUUID,
		AuthCharUUID:       DefaultAuthCharUUID,
		ScanWindow:         DefaultScanWindow,
		ScanTimeout:        DefaultScanTimeout,
		ConnectTimeout:     DefaultConnectTimeout,
		ScanRetryDelay:     DefaultScanRetryDelay,
		ConnectRetryDelay:  DefaultConnectRetryDelay,
		ReconnectDelay:     DefaultReconnectDelay,
		RSSIInterval:       DefaultRSSIInterval,
		HeartbeatInterval:  DefaultHeartbeatInterval,
		DefaultDeviceLabel: DefaultDeviceLabel,
		AnnounceCommand:    DefaultAnnounceCommand,
		CommandRate:        5,
		CommandBurst:       5,
	}
}

// withDefaults fills zero identifiers and durations. AnnounceCommand and
// the command rate are left alone since their zero values mean "off".
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	setString := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	setDuration := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	setString(&o.DeviceName, d.DeviceName)
	setString(&o.ServiceUUID, d.ServiceUUID)
	setString(&o.CommandCharUUID, d.CommandCharUUID)
	setString(&o.AuthCharUUID, d.AuthCharUUID)
	setString(&o.DefaultDeviceLabel, d.DefaultDeviceLabel)
	setDuration(&o.ScanWindow, d.ScanWindow)
	setDuration(&o.ScanTimeout, d.ScanTimeout)
	setDuration(&o.ConnectTimeout, d.ConnectTimeout)
	setDuration(&o.ScanRetryDelay, d.ScanRetryDelay)
	setDuration(&o.ConnectRetryDelay, d.ConnectRetryDelay)
	setDuration(&o.ReconnectDelay, d.ReconnectDelay)
	setDuration(&o.RSSIInterval, d.RSSIInterval)
	setDuration(&o.HeartbeatInterval, d.HeartbeatInterval)
	if o.CommandBurst <= 0 {
		o.CommandBurst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
