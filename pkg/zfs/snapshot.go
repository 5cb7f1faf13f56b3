package zfs

import (
	"context"
	"strings"
)

// SnapshotOptions controls snapshot creation.
type SnapshotOptions struct {
	Recursive bool
	// VMSync marks the dataset as having synced VM snapshots by setting
	// the freenas:vmsynced user property.
	VMSync bool
}

// CreateSnapshot takes a snapshot dataset@name.
func (m *Manager) CreateSnapshot(ctx context.Context, dataset, name string, opts SnapshotOptions) error {
	if dataset == "" || name == "" {
		return invalidf("dataset and snapshot name must be provided")
	}

	args := []string{"snapshot"}
	if opts.Recursive {
		args = append(args, "-r")
	}
	args = append(args, dataset+"@"+name)
	if _, err := m.runner.Run(ctx, "zfs", args...); err != nil {
		m.logger.Error("snapshot failed", "dataset", dataset, "name", name, "error", err)
		return err
	}

	if opts.VMSync {
		if _, err := m.runner.Run(ctx, "zfs", "set", "freenas:vmsynced=Y", dataset); err != nil {
			m.logger.Error("failed to set vmsynced property", "dataset", dataset, "error", err)
			return err
		}
	}

	m.logger.Info("snapshot taken", "snapshot", dataset+"@"+name)
	return nil
}

// DestroySnapshot removes dataset@name after verifying it exists, so a
// typo'd name fails as invalid-argument instead of an engine error.
func (m *Manager) DestroySnapshot(ctx context.Context, dataset, name string) error {
	if dataset == "" || name == "" {
		return invalidf("dataset and snapshot name must be provided")
	}

	snapshots, err := m.ListSnapshots(ctx, dataset)
	if err != nil {
		return err
	}
	full := dataset + "@" + name
	found := false
	for _, s := range snapshots {
		if s == full {
			found = true
			break
		}
	}
	if !found {
		return invalidf("there is no snapshot %q on dataset %q", name, dataset)
	}

	if _, err := m.runner.Run(ctx, "zfs", "destroy", full); err != nil {
		return err
	}
	m.logger.Info("destroyed snapshot", "snapshot", full)
	return nil
}

// CloneSnapshot clones a snapshot into a new dataset.
func (m *Manager) CloneSnapshot(ctx context.Context, snapshot, target string) error {
	if snapshot == "" || target == "" {
		return invalidf("snapshot and target dataset must be provided")
	}
	if _, err := m.runner.Run(ctx, "zfs", "clone", snapshot, target); err != nil {
		m.logger.Error("clone failed", "snapshot", snapshot, "target", target, "error", err)
		return err
	}
	m.logger.Info("cloned snapshot", "snapshot", snapshot, "target", target)
	return nil
}

// ListSnapshots returns the full names of the dataset's direct snapshots.
func (m *Manager) ListSnapshots(ctx context.Context, dataset string) ([]string, error) {
	if dataset == "" {
		return nil, invalidf("dataset must be provided")
	}
	out, err := m.runner.Run(ctx, "zfs", "list", "-H", "-t", "snapshot", "-o", "name", "-d", "1", dataset)
	if err != nil {
		if e, ok := AsError(err); ok && strings.Contains(e.Message, "does not exist") {
			return nil, notFoundf("dataset %q does not exist", dataset)
		}
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}
