package zfs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// progressLog records callback invocations for later inspection.
type progressLog struct {
	mu      sync.Mutex
	percent []float64
	message []string
}

func (p *progressLog) record(percent float64, message string) {
	p.mu.Lock()
	p.percent = append(p.percent, percent)
	p.message = append(p.message, message)
	p.mu.Unlock()
}

// scrubRunner serves the tank fixtures for the initial pool lookup and a
// scripted sequence of scan stanzas for the polls that follow the scrub
// command.
type scrubRunner struct {
	fakeRunner
	mu      sync.Mutex
	started bool
	polls   []string
	next    int
}

func newScrubRunner(polls []string) *scrubRunner {
	r := &scrubRunner{polls: polls}
	r.handle = func(name string, args []string) ([]byte, error) {
		cmd := name + " " + strings.Join(args, " ")
		r.mu.Lock()
		defer r.mu.Unlock()
		switch {
		case cmd == "zpool scrub tank":
			r.started = true
			return nil, nil
		case cmd == "zpool status -g tank":
			return []byte(tankStatusG), nil
		case cmd == "zpool status -P tank" && !r.started:
			return []byte(tankStatusP), nil
		case cmd == "zpool status -P tank":
			out := r.polls[r.next]
			if r.next < len(r.polls)-1 {
				r.next++
			}
			return []byte(out), nil
		}
		return nil, nil
	}
	return r
}

const (
	scanScrub10 = "  scan: scrub in progress since Mon Aug 25 10:00:00 2025\n\t10.00% done, 0 days 00:10:00 to go\n"
	scanScrub55 = "  scan: scrub in progress since Mon Aug 25 10:00:00 2025\n\t55.00% done, 0 days 00:04:00 to go\n"
	scanScrub30 = "  scan: scrub in progress since Mon Aug 25 10:00:00 2025\n\t30.00% done, 0 days 00:07:00 to go\n"
	scanDone    = "  scan: scrub repaired 0B in 00:10:00 with 0 errors on Mon Aug 25 10:10:00 2025\n"
	scanGone    = "  scan: scrub canceled on Mon Aug 25 10:05:00 2025\n"
	scanOther   = "  scan: resilver in progress since Mon Aug 25 10:00:00 2025\n\t5.00% done\n"
)

func TestScrubReportsProgressUntilFinished(t *testing.T) {
	r := newScrubRunner([]string{scanScrub10, scanScrub55, scanDone})
	m := testManager(r)
	m.scrubPoll = time.Millisecond

	var log progressLog
	if err := m.Scrub(context.Background(), "tank", log.record); err != nil {
		t.Fatalf("Scrub failed: %v", err)
	}

	want := []float64{10, 55, 100}
	if len(log.percent) != len(want) {
		t.Fatalf("expected %d progress reports, got %v", len(want), log.percent)
	}
	for i := range want {
		if log.percent[i] != want[i] {
			t.Errorf("report %d: expected %.0f%%, got %.0f%%", i, want[i], log.percent[i])
		}
	}
	if log.message[0] != "Scrubbing" {
		t.Errorf("expected Scrubbing message, got %q", log.message[0])
	}
	if log.message[2] != "Scrub finished" {
		t.Errorf("expected final message Scrub finished, got %q", log.message[2])
	}

	// Polling stops at the terminal state: the scripted sequence was
	// consumed exactly once per tick.
	polls := r.calledWith("zpool status -P tank") - 1 // minus the initial lookup
	if polls != 3 {
		t.Errorf("expected 3 polls, got %d", polls)
	}
}

func TestScrubCanceledStopsSilently(t *testing.T) {
	r := newScrubRunner([]string{scanScrub30, scanGone})
	m := testManager(r)
	m.scrubPoll = time.Millisecond

	var log progressLog
	if err := m.Scrub(context.Background(), "tank", log.record); err != nil {
		t.Fatalf("Scrub failed: %v", err)
	}

	// Only the in-flight report; cancellation produces no callback.
	if len(log.percent) != 1 || log.percent[0] != 30 {
		t.Fatalf("expected single 30%% report, got %v", log.percent)
	}
}

func TestScrubStopsWhenAnotherScanTakesOver(t *testing.T) {
	r := newScrubRunner([]string{scanOther})
	m := testManager(r)
	m.scrubPoll = time.Millisecond

	var log progressLog
	if err := m.Scrub(context.Background(), "tank", log.record); err != nil {
		t.Fatalf("Scrub failed: %v", err)
	}
	if len(log.percent) != 0 {
		t.Errorf("expected no progress reports for a foreign scan, got %v", log.percent)
	}
}

func TestScrubPollErrorPropagates(t *testing.T) {
	r := newScrubRunner(nil)
	r.handle = func(name string, args []string) ([]byte, error) {
		cmd := name + " " + strings.Join(args, " ")
		r.mu.Lock()
		defer r.mu.Unlock()
		switch {
		case cmd == "zpool scrub tank":
			r.started = true
			return nil, nil
		case cmd == "zpool status -g tank":
			return []byte(tankStatusG), nil
		case cmd == "zpool status -P tank" && !r.started:
			return []byte(tankStatusP), nil
		}
		return nil, engineErr(1, "cannot open 'tank': no such pool")
	}
	m := testManager(r)
	m.scrubPoll = time.Millisecond

	var log progressLog
	err := m.Scrub(context.Background(), "tank", log.record)
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected not-found from poll, got %v", err)
	}
}

func TestScrubMissingPool(t *testing.T) {
	r := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		return nil, engineErr(1, "cannot open 'missing': no such pool")
	}}
	m := testManager(r)

	var log progressLog
	err := m.Scrub(context.Background(), "missing", log.record)
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	// The scrub command itself was never issued.
	if n := r.calledWith("scrub"); n != 0 {
		t.Errorf("expected no scrub command, calls: %v", r.calls)
	}
}

func TestScrubContextCancellation(t *testing.T) {
	// Every poll reports an in-progress scrub; cancelling the context is
	// the only way out.
	r := newScrubRunner([]string{scanScrub30})
	m := testManager(r)
	m.scrubPoll = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	progress := func(percent float64, message string) {
		once.Do(cancel)
	}

	err := m.Scrub(ctx, "tank", progress)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
