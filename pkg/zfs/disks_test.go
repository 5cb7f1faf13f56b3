package zfs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

// fakeResolver maps device names to disks and records rescans.
type fakeResolver struct {
	disks    map[string]string
	rescans  int
	rescanEr error
}

func (f *fakeResolver) Rescan() error {
	f.rescans++
	return f.rescanEr
}

func (f *fakeResolver) DiskForDevice(dev string) (string, error) {
	d, ok := f.disks[dev]
	if !ok {
		return "", errors.New("no disk found for device " + dev)
	}
	return d, nil
}

func TestDisksBestEffort(t *testing.T) {
	r := &fakeRunner{handle: tankHandler}
	resolver := &fakeResolver{disks: map[string]string{
		"sda1": "sda",
		"sdb1": "sdb", // resolved after the .eli suffix is stripped
		"sdc1": "sdc",
		"sdd1": "sdd",
		// sde1 missing: skipped with a warning
		"sdf1": "sdf",
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(logger, r, resolver)

	disks, err := m.Disks(context.Background(), "tank")
	if err != nil {
		t.Fatalf("Disks failed: %v", err)
	}

	want := []string{"sda", "sdb", "sdc", "sdd", "sdf"}
	if len(disks) != len(want) {
		t.Fatalf("expected %d disks, got %v", len(want), disks)
	}
	for i := range want {
		if disks[i] != want[i] {
			t.Errorf("disk %d: expected %s, got %s", i, want[i], disks[i])
		}
	}
	if resolver.rescans != 1 {
		t.Errorf("expected one rescan, got %d", resolver.rescans)
	}
}

func TestDisksRescanFailureIsNonFatal(t *testing.T) {
	r := &fakeRunner{handle: tankHandler}
	resolver := &fakeResolver{
		rescanEr: errors.New("sysfs unavailable"),
		disks:    map[string]string{"sda1": "sda"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(logger, r, resolver)

	disks, err := m.Disks(context.Background(), "tank")
	if err != nil {
		t.Fatalf("Disks failed: %v", err)
	}
	if len(disks) != 1 || disks[0] != "sda" {
		t.Errorf("expected [sda], got %v", disks)
	}
}

func TestDisksPoolNotFound(t *testing.T) {
	r := &fakeRunner{handle: func(name string, args []string) ([]byte, error) {
		return nil, engineErr(1, "cannot open 'missing': no such pool")
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(logger, r, &fakeResolver{})

	_, err := m.Disks(context.Background(), "missing")
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
