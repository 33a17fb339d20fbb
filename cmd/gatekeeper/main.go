// Command gatekeeper keeps an authenticated BLE link to the gate device
// and exposes it to automation over HTTP and a global hotkey.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gatekeeper/internal/config"
	"github.com/chaz8081/gatekeeper/internal/credstore"
	"github.com/chaz8081/gatekeeper/internal/gate"
)

const appName = "gatekeeper"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Proximity-aware BLE gate client",
	Long: `gatekeeper finds the gate device over Bluetooth LE, authenticates
with a shared password and streams signal strength to it while you are near.

Run "gatekeeper login" once to store the password, then "gatekeeper run".`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ~/.config/gatekeeper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults. It also installs
// the slog handler at the configured level.
func loadConfig() (*config.Config, error) {
	cfg, err := readConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))
	return cfg, nil
}

func readConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	// No config file: write a starter one and use defaults.
	if written, err := config.WriteDefault(); err == nil && written != "" {
		fmt.Fprintf(os.Stderr, "Wrote default config to %s\n", written)
	}
	return config.Default(), nil
}

func openStore(cfg *config.Config) (credstore.Store, error) {
	store, err := credstore.Open(cfg.Credentials.Backend, cfg.Credentials.Path, cfg.Credentials.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	return store, nil
}

// gateOptions maps the config onto the manager options.
func gateOptions(cfg *config.Config) gate.Options {
	return gate.Options{
		DeviceName:         cfg.Device.Name,
		ServiceUUID:        cfg.Device.ServiceUUID,
		CommandCharUUID:    cfg.Device.CommandCharUUID,
		AuthCharUUID:       cfg.Device.AuthCharUUID,
		ScanWindow:         cfg.Timing.ScanWindow,
		ScanTimeout:        cfg.Timing.ScanTimeout,
		ConnectTimeout:     cfg.Timing.ConnectTimeout,
		ScanRetryDelay:     cfg.Timing.ScanRetryDelay,
		ConnectRetryDelay:  cfg.Timing.ConnectRetryDelay,
		ReconnectDelay:     cfg.Timing.ReconnectDelay,
		RSSIInterval:       cfg.Timing.RSSIInterval,
		HeartbeatInterval:  cfg.Timing.HeartbeatInterval,
		DefaultDeviceLabel: cfg.Credentials.DeviceLabel,
		AnnounceCommand:    cfg.Commands.Announce,
		CommandRate:        cfg.Commands.RateLimit,
		CommandBurst:       cfg.Commands.Burst,
		Logger:             slog.Default(),
	}
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== gatekeeper ===")
	fmt.Printf("  Device:   %s (service %s)\n", cfg.Device.Name, cfg.Device.ServiceUUID)
	fmt.Printf("  Scan:     %s window, %s timeout\n", cfg.Timing.ScanWindow, cfg.Timing.ScanTimeout)
	fmt.Printf("  RSSI:     every %s\n", cfg.Timing.RSSIInterval.Round(time.Millisecond))
	fmt.Printf("  Creds:    %s\n", cfg.Credentials.Backend)
	if cfg.API.Listen != "" {
		fmt.Printf("  API:      http://%s/api/v1\n", cfg.API.Listen)
	}
	if cfg.Hotkey.Enabled {
		fmt.Printf("  Hotkey:   %v -> %s\n", cfg.Hotkey.Keys, cfg.Hotkey.Command)
	}
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("==================")
}
