package ports

import (
	"sort"

	"github.com/danielnorberg/helios/pkg/types"
)

// Allocator assigns host ports to a job's named logical ports. Dynamic
// assignments come from the inclusive range [Lo, Hi].
type Allocator struct {
	lo int
	hi int
}

// NewAllocator creates an allocator picking dynamic ports from [lo, hi].
func NewAllocator(lo, hi int) *Allocator {
	return &Allocator{lo: lo, hi: hi}
}

// Allocate returns a full host-port assignment for the given port specs, or
// nil if any single port cannot be satisfied. Partial assignments are never
// returned.
//
// Explicitly requested ports are assigned first; remaining ports get the
// lowest free port from the dynamic range. Iteration is in sorted port-name
// order so identical inputs always produce identical outputs.
func (a *Allocator) Allocate(specs map[string]types.PortSpec, used map[int]bool) map[string]int {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	assigned := make(map[string]int, len(specs))
	taken := make(map[int]bool, len(used)+len(specs))
	for port := range used {
		taken[port] = true
	}

	// Explicit pass: requested host ports are all-or-nothing.
	for _, name := range names {
		spec := specs[name]
		if spec.ExternalPort == nil {
			continue
		}
		port := *spec.ExternalPort
		if taken[port] {
			return nil
		}
		assigned[name] = port
		taken[port] = true
	}

	// Dynamic pass: lowest free port in the configured range.
	next := a.lo
	for _, name := range names {
		if specs[name].ExternalPort != nil {
			continue
		}
		for next <= a.hi && taken[next] {
			next++
		}
		if next > a.hi {
			return nil
		}
		assigned[name] = next
		taken[next] = true
	}

	return assigned
}
