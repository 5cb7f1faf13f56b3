package zfs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner executes a storage-engine command and returns its combined output.
// Engine rejections come back as *Error with KindEngine and the exit status.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			msg = err.Error()
		}
		r.logger.Debug("engine command failed", "cmd", name, "args", args, "error", msg)

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out.Bytes(), engineErr(exitErr.ExitCode(), msg)
		}
		return out.Bytes(), engineErr(-1, msg)
	}
	return out.Bytes(), nil
}
