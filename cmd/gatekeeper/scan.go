package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gatekeeper/internal/ble"
	"github.com/chaz8081/gatekeeper/internal/gate"
)

var (
	scanDuration time.Duration
	scanAll      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List nearby devices the gate filter would accept",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanDuration, "duration", 10*time.Second, "scan duration")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "list every advertisement, not only gate matches")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	adapter := ble.NewTinyGoAdapter(cfg.Transport.BlueZAdapter)
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("enabling adapter: %w", err)
	}
	filter := gate.NewFilter(cfg.Device.Name, cfg.Device.ServiceUUID)

	ctx, cancel := context.WithTimeout(cmd.Context(), scanDuration)
	defer cancel()

	fmt.Printf("Scanning for %s...\n", scanDuration)
	var mu sync.Mutex
	seen := make(map[string]bool)
	var found []ble.Advertisement
	err = adapter.Scan(ctx, []string{cfg.Device.ServiceUUID}, func(adv ble.Advertisement) {
		match := filter.Match(adv)
		if !match && !scanAll {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if seen[adv.Peripheral.ID] {
			return
		}
		seen[adv.Peripheral.ID] = true
		found = append(found, adv)
		marker := " "
		if match {
			marker = "*"
		}
		fmt.Printf("%s %-17s  %4d dBm  %s\n", marker, adv.Peripheral.ID, adv.RSSI, adv.Name)
	})
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("%d device(s) found.\n", len(seen))
	if adv, ok := filter.Select(found); ok {
		fmt.Printf("Gate device: %s (%s)\n", adv.Peripheral.ID, adv.Name)
	} else {
		fmt.Println("No gate device found.")
	}
	return nil
}
