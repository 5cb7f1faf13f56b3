package disk

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/fx"
)

// Package disk reads block-device geometry out of sysfs: resolving a
// pool's backing partitions to their kernel disks, and enumerating md
// mirror arrays with their member providers.

var Module = fx.Module("disk",
	fx.Provide(NewScanner),
)

// Scanner resolves block devices against a snapshot of /sys/block. The
// roots are fields so tests can point it at a fake tree.
type Scanner struct {
	logger     *slog.Logger
	sysBlock   string
	classBlock string
	mdDir      string
	run        runner

	mu    sync.Mutex
	disks map[string]struct{}
}

func NewScanner(logger *slog.Logger) *Scanner {
	logger = logger.With("component", "disk")
	return &Scanner{
		logger:     logger,
		sysBlock:   "/sys/block",
		classBlock: "/sys/class/block",
		mdDir:      "/dev/md",
		run:        &execCmd{logger: logger},
	}
}

// Rescan refreshes the cached set of whole-disk names from sysfs.
func (s *Scanner) Rescan() error {
	entries, err := os.ReadDir(s.sysBlock)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.sysBlock, err)
	}
	disks := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		disks[e.Name()] = struct{}{}
	}
	s.mu.Lock()
	s.disks = disks
	s.mu.Unlock()
	return nil
}

// DiskForDevice resolves a device name (partition, md or dm member, or a
// whole disk) to the physical kernel disk backing it.
func (s *Scanner) DiskForDevice(dev string) (string, error) {
	s.mu.Lock()
	loaded := s.disks != nil
	s.mu.Unlock()
	if !loaded {
		if err := s.Rescan(); err != nil {
			return "", err
		}
	}
	return s.resolve(dev, 0)
}

func (s *Scanner) resolve(dev string, depth int) (string, error) {
	if depth > 4 {
		return "", fmt.Errorf("device %q: geometry resolution too deep", dev)
	}

	// Stacked devices (md, dm) resolve through their slaves.
	slavesDir := filepath.Join(s.sysBlock, dev, "slaves")
	if entries, err := os.ReadDir(slavesDir); err == nil && len(entries) > 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		sort.Strings(names)
		return s.resolve(names[0], depth+1)
	}

	if s.isWholeDisk(dev) {
		if isVirtualDevice(dev) {
			return "", fmt.Errorf("device %q is virtual and has no slaves", dev)
		}
		return dev, nil
	}

	// A partition lives inside its parent disk's sysfs directory.
	for _, d := range s.diskNames() {
		if _, err := os.Stat(filepath.Join(s.sysBlock, d, dev)); err == nil {
			return s.resolve(d, depth+1)
		}
	}
	return "", fmt.Errorf("no disk found for device %q", dev)
}

func (s *Scanner) isWholeDisk(dev string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.disks[dev]
	return ok
}

func (s *Scanner) diskNames() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.disks))
	for d := range s.disks {
		names = append(names, d)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}

func isVirtualDevice(dev string) bool {
	for _, prefix := range []string{"md", "dm-", "loop", "zram", "zd"} {
		if strings.HasPrefix(dev, prefix) {
			return true
		}
	}
	return false
}
