package gate

import "errors"

var (
	// ErrDiscoveryTimeout means no matching advertisement arrived before
	// the scan timeout. The manager retries after a cooldown.
	ErrDiscoveryTimeout = errors.New("gate: no gate device found")
	// ErrConnect covers transport connect failures and missing
	// characteristics.
	ErrConnect = errors.New("gate: connect failed")
	// ErrUnexpectedDisconnect means a live session dropped.
	ErrUnexpectedDisconnect = errors.New("gate: unexpected disconnect")
	// ErrAuthTransport means the auth request could not be written.
	ErrAuthTransport = errors.New("gate: auth write failed")
	// ErrAuthRejected means the peripheral answered FAILED.
	ErrAuthRejected = errors.New("gate: authentication rejected")
	// ErrTelemetry covers RSSI read and write failures while monitoring.
	ErrTelemetry = errors.New("gate: telemetry failed")
	// ErrCommandRejected means a command was sent without an
	// authenticated session.
	ErrCommandRejected = errors.New("gate: command rejected, not authenticated")

	ErrNotRunning      = errors.New("gate: manager not running")
	ErrRateLimited     = errors.New("gate: command rate limited")
	ErrAuthUnavailable = errors.New("gate: auth characteristic unavailable")
)
