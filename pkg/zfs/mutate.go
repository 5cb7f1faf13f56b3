package zfs

import (
	"context"
	"strconv"
	"strings"
)

// AttachVdev describes one attachment to an existing vdev: the target to
// attach to (guid or device name) and the new leaf device.
type AttachVdev struct {
	Target string `json:"target"`
	Type   string `json:"type"`
	Path   string `json:"path"`
}

// Extend grows the pool by attaching new leaf devices to existing vdevs.
// Adding brand-new top-level vdevs is not implemented. Every target is
// resolved before any attachment happens, so a single bad identifier
// aborts the whole request without touching the pool.
func (m *Manager) Extend(ctx context.Context, name string, newVdevs []string, existing []AttachVdev) error {
	if len(newVdevs) == 0 && len(existing) == 0 {
		return invalidf("new or existing vdevs must be provided")
	}
	if len(newVdevs) > 0 {
		return notImplementedf("adding new top-level vdevs is not implemented yet")
	}

	pool, err := m.GetPool(ctx, name)
	if err != nil {
		return err
	}

	targets := make([]*Vdev, len(existing))
	for i, att := range existing {
		if !strings.EqualFold(att.Type, VdevTypeDisk) {
			return invalidf("unsupported vdev type %q for %q", att.Type, att.Target)
		}
		if att.Path == "" {
			return invalidf("missing device path for target %q", att.Target)
		}
		target := FindVdev(pool, att.Target)
		if target == nil {
			return invalidf("failed to find vdev for %q", att.Target)
		}
		targets[i] = target
	}

	for i, att := range existing {
		if err := m.attach(ctx, name, targets[i], att.Path); err != nil {
			return err
		}
		m.logger.Info("attached device", "pool", name, "target", att.Target, "path", att.Path)
	}
	return nil
}

// Detach removes the vdev identified by label from the pool.
func (m *Manager) Detach(ctx context.Context, name, label string) error {
	pool, err := m.GetPool(ctx, name)
	if err != nil {
		return err
	}
	target := FindVdev(pool, label)
	if target == nil {
		return invalidf("failed to find vdev for %q", label)
	}
	if _, err := m.runner.Run(ctx, "zpool", "detach", name, vdevArg(target)); err != nil {
		return err
	}
	m.logger.Info("detached device", "pool", name, "label", label)
	return nil
}

// Replace swaps the vdev identified by label for a new disk device.
func (m *Manager) Replace(ctx context.Context, name, label, dev string) error {
	pool, err := m.GetPool(ctx, name)
	if err != nil {
		return err
	}
	target := FindVdev(pool, label)
	if target == nil {
		return invalidf("failed to find vdev for %q", label)
	}
	if _, err := m.runner.Run(ctx, "zpool", "replace", name, vdevArg(target), devDir+dev); err != nil {
		return err
	}
	m.logger.Info("replaced device", "pool", name, "label", label, "dev", dev)
	return nil
}

func (m *Manager) attach(ctx context.Context, pool string, target *Vdev, path string) error {
	_, err := m.runner.Run(ctx, "zpool", "attach", pool, vdevArg(target), path)
	return err
}

// vdevArg renders a resolved vdev as a zpool command argument. The guid is
// unambiguous; a disk path works as a fallback when no guid was reported.
func vdevArg(v *Vdev) string {
	if v.GUID != 0 {
		return strconv.FormatUint(v.GUID, 10)
	}
	return v.Path
}
