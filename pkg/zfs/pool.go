package zfs

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Vdev is one node in a pool's redundancy tree. Leaves of type "disk"
// carry the backing device path; interior nodes (mirror, raidz, ...) own
// an ordered list of children.
type Vdev struct {
	Name     string
	GUID     uint64
	Type     string
	Path     string
	State    string
	Children []*Vdev
}

const VdevTypeDisk = "disk"

// Pool is a snapshot of a pool's configuration as reported by the engine.
// The tree is immutable once parsed; mutations go back through the engine.
type Pool struct {
	Name  string
	State string
	Root  *Vdev
	Scan  *ScanStatus
}

// LeafDisks returns every disk-type leaf reachable from the root, in
// config order.
func (p *Pool) LeafDisks() []*Vdev {
	var disks []*Vdev
	var walk func(v *Vdev)
	walk = func(v *Vdev) {
		if v.Type == VdevTypeDisk {
			disks = append(disks, v)
			return
		}
		for _, c := range v.Children {
			walk(c)
		}
	}
	for _, c := range p.Root.Children {
		walk(c)
	}
	return disks
}

// ScanFunction identifies which scan type (if any) the pool is running.
type ScanFunction int

const (
	ScanFunctionNone ScanFunction = iota
	ScanFunctionScrub
	ScanFunctionResilver
)

// ScanState is the lifecycle state of the current scan.
type ScanState int

const (
	ScanStateNone ScanState = iota
	ScanStateScanning
	ScanStateFinished
	ScanStateCanceled
)

// ScanStatus is the engine's view of the pool's scan subsystem.
type ScanStatus struct {
	Function   ScanFunction
	State      ScanState
	Percentage float64
}

// GetPool loads a fresh snapshot of the named pool. The status output is
// read twice, once with device paths and once with guids, and the two
// identically-shaped trees are merged positionally.
func (m *Manager) GetPool(ctx context.Context, name string) (*Pool, error) {
	out, err := m.runner.Run(ctx, "zpool", "status", "-P", name)
	if err != nil {
		return nil, mapPoolOpenError(err, name)
	}
	pool, err := parsePoolStatus(name, string(out))
	if err != nil {
		return nil, err
	}

	outG, err := m.runner.Run(ctx, "zpool", "status", "-g", name)
	if err != nil {
		return nil, mapPoolOpenError(err, name)
	}
	guidPool, err := parsePoolStatus(name, string(outG))
	if err != nil {
		return nil, err
	}
	if err := mergeGUIDs(pool.Root, guidPool.Root); err != nil {
		return nil, err
	}
	return pool, nil
}

func mapPoolOpenError(err error, name string) error {
	if e, ok := AsError(err); ok && strings.Contains(e.Message, "no such pool") {
		return notFoundf("cannot open pool %q: no such pool", name)
	}
	return err
}

var (
	stateRe = regexp.MustCompile(`(?m)^\s*state:\s+(\S+)`)
	doneRe  = regexp.MustCompile(`([0-9.]+)% done`)
)

// parsePoolStatus parses the output of `zpool status` for a single pool.
func parsePoolStatus(name, out string) (*Pool, error) {
	pool := &Pool{Name: name, Root: &Vdev{Name: name, Type: "root"}}

	if matches := stateRe.FindStringSubmatch(out); len(matches) == 2 {
		pool.State = matches[1]
	}
	pool.Scan = parseScan(out)

	lines := strings.Split(out, "\n")
	inConfig := false
	seenPoolRow := false
	// nodeAt[d] holds the most recent node seen at depth d; a row at depth
	// d attaches to nodeAt[d-1].
	var nodeAt []*Vdev

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "config:") {
			inConfig = true
			continue
		}
		if !inConfig {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "errors:") {
			break
		}
		if !strings.HasPrefix(line, "\t") {
			continue
		}
		row := strings.TrimPrefix(line, "\t")
		if strings.TrimSpace(row) == "" {
			continue
		}
		indent := len(row) - len(strings.TrimLeft(row, " "))
		fields := strings.Fields(row)
		if fields[0] == "NAME" {
			continue
		}
		depth := indent / 2

		if depth == 0 && !seenPoolRow {
			// The pool's own row; the root vdev stands in for it.
			seenPoolRow = true
			nodeAt = []*Vdev{pool.Root}
			continue
		}

		v := &Vdev{Name: fields[0], Type: vdevType(fields[0])}
		if len(fields) > 1 {
			v.State = fields[1]
		}
		if strings.HasPrefix(fields[0], "/") {
			v.Path = fields[0]
		}

		if depth == 0 {
			// Special top-level groups (logs, cache, spares, ...) hang
			// off the root like any other top-level vdev.
			pool.Root.Children = append(pool.Root.Children, v)
			nodeAt = []*Vdev{v}
			continue
		}
		if depth > len(nodeAt) {
			return nil, fmt.Errorf("malformed zpool status config row %q", row)
		}
		parent := nodeAt[depth-1]
		parent.Children = append(parent.Children, v)
		nodeAt = append(nodeAt[:depth], v)
	}

	return pool, nil
}

// vdevType derives a vdev's type from its config name. Full device paths
// (or bare device names without -P) are disks; grouped vdevs encode their
// type in the name ("mirror-0", "raidz2-1").
func vdevType(name string) string {
	if strings.HasPrefix(name, "/") {
		return VdevTypeDisk
	}
	switch name {
	case "logs", "cache", "spares", "special", "dedup":
		return name
	}
	if i := strings.LastIndex(name, "-"); i > 0 {
		prefix := name[:i]
		switch {
		case prefix == "mirror", prefix == "replacing", prefix == "spare",
			prefix == "indirect":
			return prefix
		case strings.HasPrefix(prefix, "raidz"), strings.HasPrefix(prefix, "draid"):
			return prefix
		}
	}
	return VdevTypeDisk
}

// mergeGUIDs copies guids from an identically-shaped tree produced by
// `zpool status -g`, where the name column holds each vdev's guid.
func mergeGUIDs(dst, src *Vdev) error {
	if len(dst.Children) != len(src.Children) {
		return fmt.Errorf("zpool status trees disagree: %d children vs %d under %q",
			len(dst.Children), len(src.Children), dst.Name)
	}
	if guid, err := strconv.ParseUint(src.Name, 10, 64); err == nil {
		dst.GUID = guid
	}
	for i := range dst.Children {
		if err := mergeGUIDs(dst.Children[i], src.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

// parseScan interprets the scan stanza of zpool status output. Returns nil
// when no scan has ever run.
func parseScan(out string) *ScanStatus {
	switch {
	case strings.Contains(out, "scrub in progress"):
		return &ScanStatus{Function: ScanFunctionScrub, State: ScanStateScanning, Percentage: parseDone(out)}
	case strings.Contains(out, "resilver in progress"):
		return &ScanStatus{Function: ScanFunctionResilver, State: ScanStateScanning, Percentage: parseDone(out)}
	case strings.Contains(out, "scrub repaired"), strings.Contains(out, "scrub completed"):
		return &ScanStatus{Function: ScanFunctionScrub, State: ScanStateFinished, Percentage: 100}
	case strings.Contains(out, "scrub canceled"):
		return &ScanStatus{Function: ScanFunctionScrub, State: ScanStateCanceled}
	case strings.Contains(out, "resilvered"):
		return &ScanStatus{Function: ScanFunctionResilver, State: ScanStateFinished, Percentage: 100}
	}
	return nil
}

func parseDone(out string) float64 {
	if matches := doneRe.FindStringSubmatch(out); len(matches) == 2 {
		pct, _ := strconv.ParseFloat(matches[1], 64)
		return pct
	}
	return 0
}

// scanStatus samples the pool's current scan state.
func (m *Manager) scanStatus(ctx context.Context, name string) (*ScanStatus, error) {
	out, err := m.runner.Run(ctx, "zpool", "status", "-P", name)
	if err != nil {
		return nil, mapPoolOpenError(err, name)
	}
	return parseScan(string(out)), nil
}

// Usage is the pool-level space accounting reported by zpool list.
type Usage struct {
	Size      uint64
	Allocated uint64
	Free      uint64
	Capacity  int
	Health    string
}

// GetUsage reads space usage for the named pool.
func (m *Manager) GetUsage(ctx context.Context, name string) (*Usage, error) {
	out, err := m.runner.Run(ctx, "zpool", "list", "-Hpo", "size,alloc,free,cap,health", name)
	if err != nil {
		return nil, mapPoolOpenError(err, name)
	}
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 5 {
		return nil, fmt.Errorf("unexpected zpool list output %q", strings.TrimSpace(string(out)))
	}
	u := &Usage{Health: fields[4]}
	u.Size, _ = strconv.ParseUint(fields[0], 10, 64)
	u.Allocated, _ = strconv.ParseUint(fields[1], 10, 64)
	u.Free, _ = strconv.ParseUint(fields[2], 10, 64)
	u.Capacity, _ = strconv.Atoi(strings.TrimSuffix(fields[3], "%"))
	return u, nil
}
