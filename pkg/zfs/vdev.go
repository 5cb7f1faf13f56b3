package zfs

import (
	"strconv"
	"strings"
)

const (
	// devDir is the device directory prefix stripped before comparing a
	// disk path against a bare target name.
	devDir = "/dev/"
	// encSuffix is the trailing marker carried by encrypted providers.
	encSuffix = ".eli"
)

// NormalizeDevice strips the device directory prefix and any encryption
// suffix from a disk path. Normalizing an already-normalized name returns
// it unchanged.
func NormalizeDevice(path string) string {
	path = strings.TrimPrefix(path, devDir)
	return strings.TrimSuffix(path, encSuffix)
}

// FindVdev locates a vdev in the pool's tree by guid or device name. The
// whole tree reachable from the root's children is searched; at each node
// an exact guid match wins over a normalized-path match. Returns nil when
// nothing matches; it is the caller's job to turn that into an error.
func FindVdev(pool *Pool, target string) *Vdev {
	guid, guidErr := strconv.ParseUint(target, 10, 64)
	byGUID := guidErr == nil

	children := make([]*Vdev, len(pool.Root.Children))
	copy(children, pool.Root.Children)

	for len(children) > 0 {
		child := children[len(children)-1]
		children = children[:len(children)-1]

		if byGUID && child.GUID == guid {
			return child
		}
		if child.Type == VdevTypeDisk && NormalizeDevice(child.Path) == target {
			return child
		}
		children = append(children, child.Children...)
	}
	return nil
}
