package vm

import (
	"sync"
	"sync/atomic"
)

// SiteFlags describe the syntactic shape of a send.
type SiteFlags uint8

const (
	// SiteImplicitSelf marks a send without an explicit receiver (`foo`).
	SiteImplicitSelf SiteFlags = 1 << iota
	// SiteSelfReceiver marks a send whose receiver is literally `self`.
	SiteSelfReceiver
	// SiteSuper marks a `super` send.
	SiteSuper
)

// CallSite is the per-send state the evaluator keeps for one syntactic
// message send. It is safe for concurrent use.
type CallSite struct {
	name  string
	flags SiteFlags
	cache *InlineCache

	// superOwner pins the definer a super site was first used from. Sends
	// from a different definer bypass the cache.
	superOwner atomic.Pointer[Module]
}

// NewCallSite creates a call site for name using the runtime's cache
// configuration.
func (rt *Runtime) NewCallSite(name string, flags SiteFlags) *CallSite {
	return &CallSite{
		name:  name,
		flags: flags,
		cache: NewInlineCache(rt.config.PICSize, rt.config.Overflow),
	}
}

// Name returns the selector sent from this site.
func (cs *CallSite) Name() string { return cs.name }

// Flags returns the site's flags.
func (cs *CallSite) Flags() SiteFlags { return cs.flags }

// Cache returns the site's inline cache.
func (cs *CallSite) Cache() *InlineCache { return cs.cache }

// Kind returns CallSuper for super sites and CallNormal otherwise.
func (cs *CallSite) Kind() CallKind {
	if cs.flags&SiteSuper != 0 {
		return CallSuper
	}
	return CallNormal
}

// Qualified reports whether visibility checks treat the send as having an
// explicit receiver. `self.foo` is not qualified.
func (cs *CallSite) Qualified() bool {
	return cs.flags&(SiteImplicitSelf|SiteSelfReceiver|SiteSuper) == 0
}

// ---------------------------------------------------------------------------
// CallSiteTable: call sites of one code unit
// ---------------------------------------------------------------------------

// CallSiteTable manages the call sites of a compiled method or block,
// keyed by instruction offset.
type CallSiteTable struct {
	rt    *Runtime
	mu    sync.RWMutex
	sites map[int]*CallSite
}

// NewCallSiteTable creates a table whose sites are included in the
// runtime's cache statistics.
func (rt *Runtime) NewCallSiteTable() *CallSiteTable {
	t := &CallSiteTable{rt: rt, sites: make(map[int]*CallSite)}
	rt.tablesMu.Lock()
	rt.tables = append(rt.tables, t)
	rt.tablesMu.Unlock()
	return t
}

// GetOrCreate returns the site at pc, creating it with name and flags when
// absent.
func (t *CallSiteTable) GetOrCreate(pc int, name string, flags SiteFlags) *CallSite {
	t.mu.RLock()
	cs := t.sites[pc]
	t.mu.RUnlock()
	if cs != nil {
		return cs
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if cs := t.sites[pc]; cs != nil {
		return cs
	}
	cs = t.rt.NewCallSite(name, flags)
	t.sites[pc] = cs
	return cs
}

// Get returns the site at pc, or nil if none exists.
func (t *CallSiteTable) Get(pc int) *CallSite {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sites[pc]
}

// Len returns the number of sites in the table.
func (t *CallSiteTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sites)
}

// Reset clears every cache in the table.
func (t *CallSiteTable) Reset() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, cs := range t.sites {
		cs.cache.Reset()
		cs.superOwner.Store(nil)
	}
}

// Stats returns aggregate statistics for all caches in the table.
func (t *CallSiteTable) Stats() (mono, poly, mega, empty int, totalHits, totalMisses uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, cs := range t.sites {
		switch cs.cache.State() {
		case CacheMonomorphic:
			mono++
		case CachePolymorphic:
			poly++
		case CacheMegamorphic:
			mega++
		case CacheEmpty:
			empty++
		}
		totalHits += cs.cache.Hits()
		totalMisses += cs.cache.Misses()
	}
	return
}

// ICStats holds aggregate inline cache statistics.
type ICStats struct {
	TotalCallSites  int     // Total number of call sites with caches
	Monomorphic     int     // Call sites in monomorphic state
	Polymorphic     int     // Call sites in polymorphic state
	Megamorphic     int     // Call sites in megamorphic state
	Empty           int     // Call sites never used
	TotalHits       uint64  // Total cache hits
	TotalMisses     uint64  // Total cache misses
	HitRate         float64 // Overall hit rate percentage
	MonomorphicRate float64 // Percentage of used call sites that are monomorphic
}

// ICStats gathers inline cache statistics from every table created through
// NewCallSiteTable.
func (rt *Runtime) ICStats() ICStats {
	var stats ICStats

	rt.tablesMu.Lock()
	tables := append([]*CallSiteTable(nil), rt.tables...)
	rt.tablesMu.Unlock()

	for _, t := range tables {
		mono, poly, mega, empty, hits, misses := t.Stats()
		stats.Monomorphic += mono
		stats.Polymorphic += poly
		stats.Megamorphic += mega
		stats.Empty += empty
		stats.TotalHits += hits
		stats.TotalMisses += misses
		stats.TotalCallSites += mono + poly + mega + empty
	}

	total := stats.TotalHits + stats.TotalMisses
	if total > 0 {
		stats.HitRate = float64(stats.TotalHits) * 100 / float64(total)
	}
	nonEmpty := stats.TotalCallSites - stats.Empty
	if nonEmpty > 0 {
		stats.MonomorphicRate = float64(stats.Monomorphic) * 100 / float64(nonEmpty)
	}
	return stats
}
