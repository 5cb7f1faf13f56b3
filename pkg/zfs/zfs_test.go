package zfs

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// fakeRunner scripts engine responses and records every command issued.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []string
	handle func(name string, args []string) ([]byte, error)
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	r.mu.Unlock()
	return r.handle(name, args)
}

func (r *fakeRunner) calledWith(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testManager(r Runner) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(logger, r, nil)
}

// tankStatusP is zpool status -P output for a mirror+raidz pool with a
// log device. The encrypted provider suffix on sdb1 exercises device
// normalization.
const tankStatusP = `  pool: tank
 state: ONLINE
  scan: none requested
config:

	NAME              STATE     READ WRITE CKSUM
	tank              ONLINE       0     0     0
	  mirror-0        ONLINE       0     0     0
	    /dev/sda1     ONLINE       0     0     0
	    /dev/sdb1.eli ONLINE       0     0     0
	  raidz1-1        ONLINE       0     0     0
	    /dev/sdc1     ONLINE       0     0     0
	    /dev/sdd1     ONLINE       0     0     0
	    /dev/sde1     ONLINE       0     0     0
	logs
	  /dev/sdf1       ONLINE       0     0     0

errors: No known data errors
`

// tankStatusG is the -g rendition of the same tree, names replaced by
// guids.
const tankStatusG = `  pool: tank
 state: ONLINE
  scan: none requested
config:

	NAME              STATE     READ WRITE CKSUM
	tank              ONLINE       0     0     0
	  111             ONLINE       0     0     0
	    1111          ONLINE       0     0     0
	    1112          ONLINE       0     0     0
	  222             ONLINE       0     0     0
	    2221          ONLINE       0     0     0
	    2222          ONLINE       0     0     0
	    2223          ONLINE       0     0     0
	logs
	  3331            ONLINE       0     0     0

errors: No known data errors
`

// tankHandler serves the tank fixtures for status calls and succeeds on
// everything else.
func tankHandler(name string, args []string) ([]byte, error) {
	cmd := name + " " + strings.Join(args, " ")
	switch cmd {
	case "zpool status -P tank":
		return []byte(tankStatusP), nil
	case "zpool status -g tank":
		return []byte(tankStatusG), nil
	}
	return nil, nil
}
