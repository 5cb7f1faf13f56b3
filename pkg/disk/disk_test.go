package disk

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type fakeCmd struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeCmd) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.mu.Unlock()
	return nil, f.err
}

func testScanner(t *testing.T) (*Scanner, *fakeCmd) {
	t.Helper()
	tmp := t.TempDir()
	cmd := &fakeCmd{}
	s := &Scanner{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		sysBlock:   filepath.Join(tmp, "sys", "block"),
		classBlock: filepath.Join(tmp, "sys", "class", "block"),
		mdDir:      filepath.Join(tmp, "dev", "md"),
		run:        cmd,
	}
	mustMkdir(t, s.sysBlock)
	mustMkdir(t, s.classBlock)
	return s, cmd
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiskForDeviceWholeDisk(t *testing.T) {
	s, _ := testScanner(t)
	mustMkdir(t, filepath.Join(s.sysBlock, "sda"))

	disk, err := s.DiskForDevice("sda")
	if err != nil {
		t.Fatalf("DiskForDevice failed: %v", err)
	}
	if disk != "sda" {
		t.Errorf("expected sda, got %s", disk)
	}
}

func TestDiskForDevicePartition(t *testing.T) {
	s, _ := testScanner(t)
	// A partition shows up as a subdirectory of its parent disk.
	mustMkdir(t, filepath.Join(s.sysBlock, "sda", "sda1"))
	mustMkdir(t, filepath.Join(s.sysBlock, "sdb", "sdb1"))

	disk, err := s.DiskForDevice("sdb1")
	if err != nil {
		t.Fatalf("DiskForDevice failed: %v", err)
	}
	if disk != "sdb" {
		t.Errorf("expected sdb, got %s", disk)
	}
}

func TestDiskForDeviceStacked(t *testing.T) {
	s, _ := testScanner(t)
	// md127 is backed by sda1, which lives inside sda.
	mustMkdir(t, filepath.Join(s.sysBlock, "sda", "sda1"))
	mustMkdir(t, filepath.Join(s.sysBlock, "md127"))
	mustWrite(t, filepath.Join(s.sysBlock, "md127", "slaves", "sda1"), "")

	disk, err := s.DiskForDevice("md127")
	if err != nil {
		t.Fatalf("DiskForDevice failed: %v", err)
	}
	if disk != "sda" {
		t.Errorf("expected sda, got %s", disk)
	}
}

func TestDiskForDeviceVirtualWithoutSlaves(t *testing.T) {
	s, _ := testScanner(t)
	mustMkdir(t, filepath.Join(s.sysBlock, "zram0"))

	if _, err := s.DiskForDevice("zram0"); err == nil {
		t.Fatal("expected error for slave-less virtual device")
	}
}

func TestDiskForDeviceUnknown(t *testing.T) {
	s, _ := testScanner(t)
	mustMkdir(t, filepath.Join(s.sysBlock, "sda"))

	if _, err := s.DiskForDevice("sdq9"); err == nil {
		t.Fatal("expected error for unknown device")
	}
}

func TestRescanRefreshes(t *testing.T) {
	s, _ := testScanner(t)
	mustMkdir(t, filepath.Join(s.sysBlock, "sda"))

	if err := s.Rescan(); err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	if !s.isWholeDisk("sda") {
		t.Error("expected sda after rescan")
	}

	mustMkdir(t, filepath.Join(s.sysBlock, "sdb"))
	if s.isWholeDisk("sdb") {
		t.Error("sdb should not be visible before rescan")
	}
	if err := s.Rescan(); err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	if !s.isWholeDisk("sdb") {
		t.Error("expected sdb after rescan")
	}
}

func TestIsVirtualDevice(t *testing.T) {
	cases := []struct {
		dev  string
		want bool
	}{
		{"md127", true},
		{"dm-0", true},
		{"loop3", true},
		{"zram0", true},
		{"zd16", true},
		{"sda", false},
		{"nvme0n1", false},
	}
	for _, c := range cases {
		if got := isVirtualDevice(c.dev); got != c.want {
			t.Errorf("isVirtualDevice(%q) = %v, want %v", c.dev, got, c.want)
		}
	}
}
