package vm

import "sync/atomic"

// InvalidationRegistry is the global version counter call-site caches
// compare against. Every mutation of a method table or a mixin list bumps
// Version exactly once; mutations that change the shape of the hierarchy
// additionally advance the hierarchy epoch so that cached ancestor lists
// are recomputed.
//
// Both counters are monotonically non-decreasing and never reset.
type InvalidationRegistry struct {
	version   atomic.Uint64
	hierarchy atomic.Uint64
}

// NewInvalidationRegistry creates a registry starting at version 0.
func NewInvalidationRegistry() *InvalidationRegistry {
	return &InvalidationRegistry{}
}

// Version returns the current global method version.
func (r *InvalidationRegistry) Version() uint64 {
	return r.version.Load()
}

// HierarchyEpoch returns the current hierarchy epoch.
func (r *InvalidationRegistry) HierarchyEpoch() uint64 {
	return r.hierarchy.Load()
}

// bump records one method-table mutation and returns the new version.
// Callers must already have published the mutation.
func (r *InvalidationRegistry) bump(reason string, mod *Module, name string) uint64 {
	v := r.version.Add(1)
	if log.AllowLevel(debugLevel) {
		log.Debug("invalidate", "reason", reason, "module", mod.String(), "method", name, "version", v)
	}
	return v
}

// bumpHierarchy records a hierarchy mutation: the hierarchy epoch moves and
// the global version is bumped once.
func (r *InvalidationRegistry) bumpHierarchy(reason string, mod *Module, other *Module) uint64 {
	r.hierarchy.Add(1)
	v := r.version.Add(1)
	if log.AllowLevel(debugLevel) {
		log.Debug("invalidate", "reason", reason, "module", mod.String(), "other", other.String(), "version", v)
	}
	return v
}
