package ble

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestStopScanRunsOnce(t *testing.T) {
	// Mirrors tinygo's StopScan, which closes the scan channel and panics
	// on a second close.
	cancel := make(chan struct{})
	var calls atomic.Int32
	stopper := newScanStopper(func() error {
		calls.Add(1)
		close(cancel)
		return nil
	})
	a := &TinyGoAdapter{scan: stopper}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := a.StopScan(); err != nil {
				t.Errorf("StopScan() error = %v", err)
			}
		}()
		// The scan's context watcher.
		go func() {
			defer wg.Done()
			_ = stopper.Stop()
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("underlying StopScan called %d times, want 1", got)
	}
}

func TestStopScanWithoutScan(t *testing.T) {
	a := &TinyGoAdapter{}
	if err := a.StopScan(); err != nil {
		t.Errorf("StopScan() error = %v, want nil when idle", err)
	}
}
