package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gatekeeper/internal/api"
	"github.com/chaz8081/gatekeeper/internal/ble"
	"github.com/chaz8081/gatekeeper/internal/events"
	"github.com/chaz8081/gatekeeper/internal/gate"
	"github.com/chaz8081/gatekeeper/internal/hotkey"
	"github.com/chaz8081/gatekeeper/internal/hotkey/press"
)

var listenAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the gate and keep the link alive",
	RunE:  runGate,
}

func init() {
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "override api.listen (\"-\" disables the API)")
	rootCmd.AddCommand(runCmd)
}

func runGate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	switch listenAddr {
	case "":
	case "-":
		cfg.API.Listen = ""
	default:
		cfg.API.Listen = listenAddr
	}
	printBanner(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	bus := events.NewBus(256)
	adapter := ble.NewTinyGoAdapter(cfg.Transport.BlueZAdapter)
	mgr := gate.New(adapter, store, bus, gateOptions(cfg))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- mgr.Run(ctx) }()

	go logEvents(bus)

	if cfg.API.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.API.Listen,
			Handler:           api.NewRouter(mgr, bus.Subscribe, slog.Default()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("[API] server stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("[API] listening", "addr", cfg.API.Listen)
	}

	if cfg.Hotkey.Enabled {
		listener := hotkey.NewListener(cfg.Hotkey.Keys)
		go listener.Start()
		go press.Dispatch(listener.Events(), cfg.Hotkey.Command, 250*time.Millisecond, mgr.SendCommand, slog.Default())
		slog.Info("[HOTKEY] ready", "keys", strings.Join(cfg.Hotkey.Keys, "+"), "command", cfg.Hotkey.Command)
	}

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("starting gate manager: %w", err)
	}
	slog.Info("Ready! Ctrl+C to quit.")

	err = <-runErr
	if err != nil {
		return err
	}
	slog.Info("Goodbye!")
	if cfg.Hotkey.Enabled {
		// Exit directly to avoid gohook's C cleanup crash.
		// The OS reclaims the event hook on process exit.
		os.Exit(0)
	}
	return nil
}

// logEvents mirrors gate events to the log for headless runs.
func logEvents(bus *events.Bus) {
	ch, unsub := bus.Subscribe()
	defer unsub()
	for e := range ch {
		switch e.Type {
		case events.RSSISample, events.Heartbeat:
			slog.Debug("[EVENT]", "type", e.Type, "data", e.Data)
		case events.AuthRequired:
			slog.Warn("[EVENT] gate needs a password, run \"gatekeeper login\"", "type", e.Type)
		default:
			slog.Info("[EVENT]", "type", e.Type, "data", e.Data)
		}
	}
}
