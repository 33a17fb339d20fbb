package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Device      DeviceConfig      `yaml:"device"`
	Timing      TimingConfig      `yaml:"timing"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Commands    CommandsConfig    `yaml:"commands"`
	API         APIConfig         `yaml:"api"`
	Hotkey      HotkeyConfig      `yaml:"hotkey"`
	Transport   TransportConfig   `yaml:"transport"`
}

// DeviceConfig identifies the gate peripheral.
type DeviceConfig struct {
	Name            string `yaml:"name"`
	ServiceUUID     string `yaml:"service_uuid"`
	CommandCharUUID string `yaml:"command_char_uuid"`
	AuthCharUUID    string `yaml:"auth_char_uuid"`
}

// TimingConfig holds the scan, connect and retry timings.
type TimingConfig struct {
	ScanWindow        time.Duration `yaml:"scan_window"`
	ScanTimeout       time.Duration `yaml:"scan_timeout"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ScanRetryDelay    time.Duration `yaml:"scan_retry_delay"`
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	RSSIInterval      time.Duration `yaml:"rssi_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// CredentialsConfig selects where the password and device label live.
type CredentialsConfig struct {
	Backend     string `yaml:"backend"` // "file", "sqlite" or "memory"
	Path        string `yaml:"path"`
	KeyFile     string `yaml:"key_file"` // file backend only; empty stores plain text
	DeviceLabel string `yaml:"device_label"`
}

// CommandsConfig holds command gateway settings.
type CommandsConfig struct {
	RateLimit float64 `yaml:"rate_limit"` // per second, 0 disables
	Burst     int     `yaml:"burst"`
	Announce  string  `yaml:"announce"` // sent when monitoring starts, empty disables
}

// APIConfig holds the collaborator HTTP server settings.
type APIConfig struct {
	Listen string `yaml:"listen"` // empty disables the server
}

// HotkeyConfig binds a global hotkey to a gate command.
type HotkeyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
	Command string   `yaml:"command"`
}

// TransportConfig holds radio settings.
type TransportConfig struct {
	BlueZAdapter string `yaml:"bluez_adapter"` // Linux only
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gatekeeper")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with the built-in gate settings.
func Default() *Config {
	dir := DefaultConfigDir()
	return &Config{
		LogLevel: "info",
		Device: DeviceConfig{
			Name:            "Gate",
			ServiceUUID:     "12345678-1234-5678-1234-123456789abc",
			CommandCharUUID: "87654321-1234-5678-1234-cba987654321",
			AuthCharUUID:    "87654321-1234-5678-1234-cba987654322",
		},
		Timing: TimingConfig{
			ScanWindow:        6 * time.Second,
			ScanTimeout:       8 * time.Second,
			ConnectTimeout:    15 * time.Second,
			ScanRetryDelay:    2 * time.Second,
			ConnectRetryDelay: 3 * time.Second,
			ReconnectDelay:    2 * time.Second,
			RSSIInterval:      time.Second,
			HeartbeatInterval: 30 * time.Second,
		},
		Credentials: CredentialsConfig{
			Backend:     "file",
			Path:        filepath.Join(dir, "credentials.yaml"),
			KeyFile:     filepath.Join(dir, "master.key"),
			DeviceLabel: defaultDeviceLabel(),
		},
		Commands: CommandsConfig{
			RateLimit: 5,
			Burst:     5,
			Announce:  "start_rssi",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8474",
		},
		Hotkey: HotkeyConfig{
			Enabled: false,
			Keys:    []string{"ctrl", "shift", "g"},
			Command: "toggle",
		},
		Transport: TransportConfig{
			BlueZAdapter: "hci0",
		},
	}
}

// defaultDeviceLabel names this machine to the gate.
func defaultDeviceLabel() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "Gatekeeper"
	}
	return host
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in credential paths is expanded to the user's
// home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Credentials.Path = expandTilde(cfg.Credentials.Path)
	cfg.Credentials.KeyFile = expandTilde(cfg.Credentials.KeyFile)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	// device.name may be empty: discovery then matches on the service only.
	for field, v := range map[string]string{
		"device.service_uuid":      c.Device.ServiceUUID,
		"device.command_char_uuid": c.Device.CommandCharUUID,
		"device.auth_char_uuid":    c.Device.AuthCharUUID,
	} {
		if _, err := uuid.Parse(v); err != nil {
			return fmt.Errorf("%s: invalid UUID %q: %w", field, v, err)
		}
	}

	for field, d := range map[string]time.Duration{
		"timing.scan_window":         c.Timing.ScanWindow,
		"timing.scan_timeout":        c.Timing.ScanTimeout,
		"timing.connect_timeout":     c.Timing.ConnectTimeout,
		"timing.scan_retry_delay":    c.Timing.ScanRetryDelay,
		"timing.connect_retry_delay": c.Timing.ConnectRetryDelay,
		"timing.reconnect_delay":     c.Timing.ReconnectDelay,
		"timing.rssi_interval":       c.Timing.RSSIInterval,
		"timing.heartbeat_interval":  c.Timing.HeartbeatInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", field)
		}
	}

	switch c.Credentials.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Credentials.Path == "" {
			return fmt.Errorf("credentials.path must not be empty for the %s backend", c.Credentials.Backend)
		}
	default:
		return fmt.Errorf("credentials.backend must be \"file\", \"sqlite\" or \"memory\", got %q", c.Credentials.Backend)
	}

	if c.Commands.RateLimit < 0 {
		return fmt.Errorf("commands.rate_limit must be >= 0")
	}
	if c.Commands.RateLimit > 0 && c.Commands.Burst < 1 {
		return fmt.Errorf("commands.burst must be >= 1 when rate_limit is set")
	}

	if c.Hotkey.Enabled {
		if len(c.Hotkey.Keys) == 0 {
			return fmt.Errorf("hotkey.keys must not be empty")
		}
		if c.Hotkey.Command == "" {
			return fmt.Errorf("hotkey.command must not be empty")
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config level name to a slog level. Unknown names
// fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# gatekeeper configuration
#
# Durations use Go syntax ("6s", "1m30s"). Remove a line to use its default.
# credentials.backend is one of file, sqlite or memory; api.listen empty
# disables the HTTP/WebSocket server.

`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the path written, or "" if a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
