package zfs

import (
	"context"
)

// Disks resolves each physical disk backing the pool to its kernel disk
// name. Enumeration is best-effort: a device whose geometry cannot be
// resolved is skipped with a warning rather than failing the call.
func (m *Manager) Disks(ctx context.Context, name string) ([]string, error) {
	pool, err := m.GetPool(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := m.disks.Rescan(); err != nil {
		m.logger.Warn("disk rescan failed", "error", err)
	}

	var disks []string
	for _, leaf := range pool.LeafDisks() {
		dev := NormalizeDevice(leaf.Path)
		disk, err := m.disks.DiskForDevice(dev)
		if err != nil {
			m.logger.Warn("could not find disk for device", "device", dev, "error", err)
			continue
		}
		disks = append(disks, disk)
	}
	return disks, nil
}
