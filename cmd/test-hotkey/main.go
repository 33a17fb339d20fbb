// Command test-hotkey is a manual test for the global hotkey listener.
// Run it, then press Ctrl+Shift+G to see events.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--keys ctrl+shift+g] [--command toggle]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/gatekeeper/internal/hotkey"
	"github.com/chaz8081/gatekeeper/internal/hotkey/press"
)

func main() {
	keys := flag.String("keys", "ctrl+shift+g", "key combination, joined with +")
	command := flag.String("command", "toggle", "gate command the press would send")
	flag.Parse()

	combo := strings.Split(*keys, "+")
	fmt.Printf("Listening for %s (would send %q)...\n", *keys, *command)
	fmt.Println("Press Ctrl+C to exit.")

	listener := hotkey.NewListener(combo)

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	go func() {
		press.Dispatch(listener.Events(), *command, 250*time.Millisecond, func(cmd string) error {
			fmt.Printf(">>> %s -> %q\n", time.Now().Format("15:04:05.000"), cmd)
			return nil
		}, nil)
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
