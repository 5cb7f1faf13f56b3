package disk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

type runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCmd struct {
	logger *slog.Logger
}

func (r *execCmd) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return out.Bytes(), fmt.Errorf("%s: %s", name, msg)
		}
		return out.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return out.Bytes(), nil
}

// Provider is one member device of a mirror array.
type Provider struct {
	Name string `json:"name"`
	Disk string `json:"disk"`
}

// Mirror is a software RAID array assembled under /dev/md.
type Mirror struct {
	Name              string     `json:"name"`
	Path              string     `json:"path"`
	RealPath          string     `json:"real_path"`
	EncryptedProvider string     `json:"encrypted_provider,omitempty"`
	Providers         []Provider `json:"providers"`
}

// CreateMirror builds a new md array over the given device paths.
func (s *Scanner) CreateMirror(ctx context.Context, name string, level int, paths []string) error {
	if name == "" || len(paths) == 0 {
		return fmt.Errorf("mirror name and member paths must be provided")
	}
	args := []string{
		"--build", filepath.Join(s.mdDir, name),
		fmt.Sprintf("--level=%d", level),
		fmt.Sprintf("--raid-devices=%d", len(paths)),
	}
	args = append(args, paths...)
	if _, err := s.run.Run(ctx, "mdadm", args...); err != nil {
		return fmt.Errorf("failed to create mirror %s: %w", name, err)
	}
	s.logger.Info("mirror created", "name", name, "members", len(paths))
	return nil
}

// StopMirror stops the array at the given path.
func (s *Scanner) StopMirror(ctx context.Context, path string) error {
	if _, err := s.run.Run(ctx, "mdadm", "--stop", path); err != nil {
		return fmt.Errorf("failed to stop mirror %s: %w", path, err)
	}
	s.logger.Info("mirror stopped", "path", path)
	return nil
}

// ListMirrors enumerates the md arrays under /dev/md along with their
// member providers and the parent disk of each provider. An absent
// /dev/md directory means no mirrors.
func (s *Scanner) ListMirrors() ([]*Mirror, error) {
	entries, err := os.ReadDir(s.mdDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.mdDir, err)
	}

	var mirrors []*Mirror
	for _, e := range entries {
		path := filepath.Join(s.mdDir, e.Name())
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			s.logger.Warn("could not resolve array path", "path", path, "error", err)
			continue
		}
		m := &Mirror{
			Name:     e.Name(),
			Path:     path,
			RealPath: real,
		}
		md := filepath.Base(real)

		if enc := s.encryptedProvider(md); enc != "" {
			m.EncryptedProvider = enc
		}

		slaves, err := os.ReadDir(filepath.Join(s.sysBlock, md, "slaves"))
		if err != nil {
			s.logger.Warn("could not read array slaves", "array", md, "error", err)
		}
		for _, sl := range slaves {
			p := Provider{Name: sl.Name()}
			p.Disk = s.providerDisk(sl.Name())
			m.Providers = append(m.Providers, p)
		}
		mirrors = append(mirrors, m)
	}
	return mirrors, nil
}

// encryptedProvider finds a dm device layered on top of the array, which
// marks the array as an encrypted provider's backing store.
func (s *Scanner) encryptedProvider(md string) string {
	matches, _ := filepath.Glob(filepath.Join(s.sysBlock, "dm-*", "slaves", md))
	if len(matches) == 0 {
		return ""
	}
	// .../sys/block/dm-X/slaves/mdN -> /dev/dm-X
	dm := filepath.Base(filepath.Dir(filepath.Dir(matches[0])))
	return "/dev/" + dm
}

// providerDisk derives the parent disk name of a partition provider by
// stripping the partition number recorded in sysfs (sda1 -> sda,
// nvme0n1p2 -> nvme0n1).
func (s *Scanner) providerDisk(provider string) string {
	data, err := os.ReadFile(filepath.Join(s.classBlock, provider, "partition"))
	if err != nil {
		return provider
	}
	num := strings.TrimSpace(string(data))
	if _, err := strconv.Atoi(num); err != nil {
		return provider
	}
	base := strings.TrimSuffix(provider, num)
	if strings.HasSuffix(base, "p") && len(base) > 1 && unicode.IsDigit(rune(base[len(base)-2])) {
		base = strings.TrimSuffix(base, "p")
	}
	return base
}
