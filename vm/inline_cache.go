package vm

import "sync/atomic"

// Inline Caching for Method Dispatch
//
// Most call sites only ever see one receiver class, a few see a handful and
// a small minority see many. Each call site owns an InlineCache holding up
// to Capacity (class, entry, version) tuples in most-recently-used order.
//
// The tuple list is an immutable snapshot published through an atomic
// pointer. Concurrent updates may overwrite one another; a lost update
// only costs a later miss because class, entry and version always travel
// together in one snapshot.

// CacheState represents the current state of an inline cache. States only
// move forward; Reset is the only way back to CacheEmpty.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single (class, method) cached
	CachePolymorphic                   // 2..Capacity entries
	CacheMegamorphic                   // Too many classes, use full lookup
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheMonomorphic:
		return "monomorphic"
	case CachePolymorphic:
		return "polymorphic"
	case CacheMegamorphic:
		return "megamorphic"
	}
	return "unknown"
}

// DefaultPICEntries is the default polymorphic inline cache capacity.
const DefaultPICEntries = 4

// MaxPICEntries is the largest capacity a cache may be configured with.
const MaxPICEntries = 8

// InlineCacheEntry holds a single cached resolution.
type InlineCacheEntry struct {
	Class   *Module      // Receiver class
	Method  *MethodEntry // Resolved entry
	Version uint64       // Registry version at capture
}

type cacheSnapshot struct {
	state   CacheState
	entries []InlineCacheEntry
}

var emptyCache = &cacheSnapshot{state: CacheEmpty}

// InlineCache represents the cache state for a single call site.
type InlineCache struct {
	snap     atomic.Pointer[cacheSnapshot]
	capacity int
	policy   OverflowPolicy

	// Statistics for profiling
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewInlineCache creates an empty cache. Capacities outside
// 1..MaxPICEntries are clamped.
func NewInlineCache(capacity int, policy OverflowPolicy) *InlineCache {
	if capacity < 1 {
		capacity = 1
	}
	if capacity > MaxPICEntries {
		capacity = MaxPICEntries
	}
	ic := &InlineCache{capacity: capacity, policy: policy}
	ic.snap.Store(emptyCache)
	return ic
}

// State returns the cache's current state.
func (ic *InlineCache) State() CacheState {
	return ic.snap.Load().state
}

// Count returns the number of tuples currently held, stale ones included.
func (ic *InlineCache) Count() int {
	return len(ic.snap.Load().entries)
}

// Entries returns a copy of the cached tuples in MRU order.
func (ic *InlineCache) Entries() []InlineCacheEntry {
	s := ic.snap.Load()
	out := make([]InlineCacheEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Lookup returns the cached entry for class if it was captured at version.
// It returns nil on a miss. Tuples captured at other versions are treated
// as absent and pruned.
func (ic *InlineCache) Lookup(class *Module, version uint64) *MethodEntry {
	s := ic.snap.Load()
	stale := false
	for i, e := range s.entries {
		if e.Version != version {
			stale = true
			continue
		}
		if e.Class == class {
			ic.hits.Add(1)
			if i > 0 || stale {
				ic.rebuild(s, version, i)
			}
			return e.Method
		}
	}

	if stale {
		ic.rebuild(s, version, -1)
	}
	ic.misses.Add(1)
	return nil
}

// rebuild publishes s without stale tuples, moving index front (if >= 0)
// to the head. A failed CAS means another goroutine already replaced s.
func (ic *InlineCache) rebuild(s *cacheSnapshot, version uint64, front int) {
	next := &cacheSnapshot{state: s.state, entries: make([]InlineCacheEntry, 0, len(s.entries))}
	if front >= 0 {
		next.entries = append(next.entries, s.entries[front])
	}
	for i, e := range s.entries {
		if i != front && e.Version == version {
			next.entries = append(next.entries, e)
		}
	}
	ic.snap.CompareAndSwap(s, next)
}

// Update records a resolution for class at version, potentially upgrading
// the cache state.
func (ic *InlineCache) Update(class *Module, method *MethodEntry, version uint64) {
	if method == nil {
		return // Don't cache failed lookups
	}

	for {
		s := ic.snap.Load()
		if s.state == CacheMegamorphic {
			return
		}

		entries := make([]InlineCacheEntry, 1, len(s.entries)+1)
		entries[0] = InlineCacheEntry{Class: class, Method: method, Version: version}
		for _, e := range s.entries {
			if e.Class != class && e.Version == version {
				entries = append(entries, e)
			}
		}

		next := &cacheSnapshot{state: s.state, entries: entries}
		if len(entries) > ic.capacity {
			if ic.policy == OverflowMegamorphic {
				next = &cacheSnapshot{state: CacheMegamorphic}
			} else {
				next.entries = entries[:ic.capacity]
			}
		}
		switch {
		case next.state == CacheMegamorphic:
		case len(next.entries) > 1:
			next.state = CachePolymorphic
		case next.state == CacheEmpty:
			next.state = CacheMonomorphic
		}

		if ic.snap.CompareAndSwap(s, next) {
			if next.state == CacheMegamorphic && log.AllowLevel(debugLevel) {
				log.Debug("call site went megamorphic", "class", class.String(), "method", method.name)
			}
			return
		}
	}
}

// Hits returns the number of cache hits.
func (ic *InlineCache) Hits() uint64 { return ic.hits.Load() }

// Misses returns the number of cache misses.
func (ic *InlineCache) Misses() uint64 { return ic.misses.Load() }

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *InlineCache) HitRate() float64 {
	hits, misses := ic.hits.Load(), ic.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) * 100 / float64(total)
}

// Reset clears the cache back to empty state.
func (ic *InlineCache) Reset() {
	ic.snap.Store(emptyCache)
	ic.hits.Store(0)
	ic.misses.Store(0)
}
