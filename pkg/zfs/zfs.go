package zfs

import (
	"log/slog"
	"time"

	"github.com/lwelte/gozp/pkg/disk"
	"go.uber.org/fx"
)

// Package zfs is the binding to the ZFS storage engine. It shells out to
// zpool/zfs, parses their output into pool/vdev trees, and layers the
// mutation and scrub-monitoring protocol on top.

var Module = fx.Module("zfs",
	fx.Provide(func(logger *slog.Logger, scanner *disk.Scanner) *Manager {
		return NewManager(logger, nil, scanner)
	}),
)

// DiskResolver maps a pool's leaf device back to its kernel disk.
type DiskResolver interface {
	Rescan() error
	DiskForDevice(dev string) (string, error)
}

type Manager struct {
	logger    *slog.Logger
	runner    Runner
	disks     DiskResolver
	scrubPoll time.Duration
}

// NewManager builds a Manager. A nil runner selects the real zpool/zfs
// binding; tests pass a scripted one.
func NewManager(logger *slog.Logger, runner Runner, disks DiskResolver) *Manager {
	logger = logger.With("component", "zfs")
	if runner == nil {
		runner = &execRunner{logger: logger}
	}
	return &Manager{
		logger:    logger,
		runner:    runner,
		disks:     disks,
		scrubPoll: time.Second,
	}
}
