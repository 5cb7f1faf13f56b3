package zfs

import (
	"context"
	"time"
)

// ProgressFunc receives scrub progress on a side channel so intermediate
// states are observable before the call completes.
type ProgressFunc func(percent float64, message string)

// Scrub starts a scrub on the named pool and blocks until the monitor
// observes a terminal scan state. Polling runs on its own goroutine so the
// rest of the process stays responsive; the initiating call joins it.
// Cancellation of an in-flight scrub is issued externally (zpool scrub -s)
// and shows up here as a Canceled transition on the next poll.
func (m *Manager) Scrub(ctx context.Context, name string, progress ProgressFunc) error {
	// Fresh pool lookup maps a missing pool to not-found before the engine
	// is asked to scrub.
	if _, err := m.GetPool(ctx, name); err != nil {
		return err
	}
	if _, err := m.runner.Run(ctx, "zpool", "scrub", name); err != nil {
		return err
	}
	m.logger.Info("scrub started", "pool", name)

	done := make(chan error, 1)
	go m.watchScrub(ctx, name, progress, done)
	return <-done
}

func (m *Manager) watchScrub(ctx context.Context, name string, progress ProgressFunc, done chan<- error) {
	ticker := time.NewTicker(m.scrubPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			done <- ctx.Err()
			return
		case <-ticker.C:
		}

		scan, err := m.scanStatus(ctx, name)
		if err != nil {
			done <- err
			return
		}
		if scan == nil || scan.Function != ScanFunctionScrub {
			// Another scan type took over (or the scan vanished); the
			// scrub is no longer ours to watch.
			done <- nil
			return
		}

		switch scan.State {
		case ScanStateFinished:
			progress(100, "Scrub finished")
			m.logger.Info("scrub finished", "pool", name)
			done <- nil
			return
		case ScanStateCanceled:
			m.logger.Info("scrub canceled", "pool", name)
			done <- nil
			return
		case ScanStateScanning:
			progress(scan.Percentage, "Scrubbing")
		}
	}
}
