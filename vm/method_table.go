package vm

import (
	"sync"
	"sync/atomic"
)

// MethodTable holds the methods a single module defines itself.
//
// Readers never lock: they load the current snapshot, which is immutable.
// Writers serialise on mu, build a new snapshot, publish it and only then
// bump the invalidation registry, all inside the critical section. A cache
// that captured the previous version can therefore never be mistaken for
// current once the mutation has completed.
type MethodTable struct {
	owner *Module
	reg   *InvalidationRegistry

	mu   sync.Mutex
	snap atomic.Pointer[methodSnapshot]
}

type methodSnapshot struct {
	entries map[string]*MethodEntry
	order   []string // definition order, for introspection only
}

var emptySnapshot = &methodSnapshot{entries: map[string]*MethodEntry{}}

// NewMethodTable creates an empty table owned by owner.
func NewMethodTable(owner *Module, reg *InvalidationRegistry) *MethodTable {
	mt := &MethodTable{owner: owner, reg: reg}
	mt.snap.Store(emptySnapshot)
	return mt
}

// Lookup returns the entry for name, including undef markers.
func (mt *MethodTable) Lookup(name string) (*MethodEntry, bool) {
	e, ok := mt.snap.Load().entries[name]
	return e, ok
}

// Has reports whether name is defined here and is not an undef marker.
func (mt *MethodTable) Has(name string) bool {
	e, ok := mt.Lookup(name)
	return ok && !e.undefined
}

// Define inserts or replaces the entry for e.Name().
func (mt *MethodTable) Define(e *MethodEntry) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	// Publish before bump: Dispatch reads the version first, so bumping
	// first could cache the old entry under the new version (DESIGN.md,
	// "Publish then bump").
	mt.publish(mt.snap.Load().with(e))
	mt.reg.bump("define", mt.owner, e.name)
}

// DefineBatch installs several entries with a single publish and a single
// version bump. Later entries win when names repeat.
func (mt *MethodTable) DefineBatch(entries []*MethodEntry) {
	if len(entries) == 0 {
		return
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()

	s := mt.snap.Load()
	next := s.clone(len(entries))
	for _, e := range entries {
		next.put(e)
	}
	mt.publish(next)
	mt.reg.bump("define-batch", mt.owner, entries[len(entries)-1].name)
}

// Remove deletes name from the table. It returns false, without bumping the
// registry, when name is absent or only an undef marker.
func (mt *MethodTable) Remove(name string) bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	s := mt.snap.Load()
	e, ok := s.entries[name]
	if !ok || e.undefined {
		return false
	}
	mt.publish(s.without(name))
	mt.reg.bump("remove", mt.owner, name)
	return true
}

// Undefine installs an undef marker for name. Resolution stops at the
// marker instead of continuing into ancestors.
func (mt *MethodTable) Undefine(name string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.publish(mt.snap.Load().with(newUndefinedEntry(mt.owner, name)))
	mt.reg.bump("undefine", mt.owner, name)
}

// replace swaps the entry for name only if it is still old. It reports
// whether the swap happened.
func (mt *MethodTable) replace(old, e *MethodEntry) bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	s := mt.snap.Load()
	if cur, ok := s.entries[e.name]; ok && cur != old {
		return false
	}
	mt.publish(s.with(e))
	mt.reg.bump("replace", mt.owner, e.name)
	return true
}

// Names returns defined (non-undef) method names in definition order.
func (mt *MethodTable) Names() []string {
	s := mt.snap.Load()
	names := make([]string, 0, len(s.order))
	for _, n := range s.order {
		if !s.entries[n].undefined {
			names = append(names, n)
		}
	}
	return names
}

// Entries returns all entries, undef markers included, in definition order.
func (mt *MethodTable) Entries() []*MethodEntry {
	s := mt.snap.Load()
	out := make([]*MethodEntry, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.entries[n])
	}
	return out
}

// Len returns the number of entries, undef markers included.
func (mt *MethodTable) Len() int {
	return len(mt.snap.Load().entries)
}

func (mt *MethodTable) publish(s *methodSnapshot) {
	mt.snap.Store(s)
}

// ---------------------------------------------------------------------------
// Snapshot copy-on-write helpers
// ---------------------------------------------------------------------------

func (s *methodSnapshot) clone(extra int) *methodSnapshot {
	next := &methodSnapshot{
		entries: make(map[string]*MethodEntry, len(s.entries)+extra),
		order:   make([]string, len(s.order), len(s.order)+extra),
	}
	for k, v := range s.entries {
		next.entries[k] = v
	}
	copy(next.order, s.order)
	return next
}

func (s *methodSnapshot) put(e *MethodEntry) {
	if _, ok := s.entries[e.name]; !ok {
		s.order = append(s.order, e.name)
	}
	s.entries[e.name] = e
}

func (s *methodSnapshot) with(e *MethodEntry) *methodSnapshot {
	next := s.clone(1)
	next.put(e)
	return next
}

func (s *methodSnapshot) without(name string) *methodSnapshot {
	next := &methodSnapshot{
		entries: make(map[string]*MethodEntry, len(s.entries)),
		order:   make([]string, 0, len(s.order)),
	}
	for _, n := range s.order {
		if n == name {
			continue
		}
		next.entries[n] = s.entries[n]
		next.order = append(next.order, n)
	}
	return next
}
