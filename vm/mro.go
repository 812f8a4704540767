package vm

// ---------------------------------------------------------------------------
// Method resolution order
// ---------------------------------------------------------------------------

// maxHierarchyDepth bounds linearization recursion. Hierarchies are acyclic
// by construction; exceeding the bound means that invariant was broken.
const maxHierarchyDepth = 4096

// mroSnapshot is an immutable ancestor list stamped with the hierarchy
// epoch it was computed at.
type mroSnapshot struct {
	epoch   uint64
	modules []*Module
}

// Ancestors returns m's method resolution order: prepended modules (most
// recent first), m itself, included modules (most recent first), then the
// superclass's ancestors. Each module appears once, at its first position.
// The returned slice is a copy.
func (m *Module) Ancestors() []*Module {
	a := m.ancestors()
	out := make([]*Module, len(a))
	copy(out, a)
	return out
}

// ancestors returns the cached MRO. Callers must not modify the slice.
func (m *Module) ancestors() []*Module {
	// Read the epoch before looking at any mixin list; a concurrent
	// mutation then either shows up in the lists or stales the snapshot.
	epoch := m.rt.registry.HierarchyEpoch()
	if s := m.mro.Load(); s != nil && s.epoch == epoch {
		return s.modules
	}

	mods := m.computeMRO()
	m.mro.Store(&mroSnapshot{epoch: epoch, modules: mods})
	return mods
}

func (m *Module) computeMRO() []*Module {
	l := linearizer{seen: make(map[*Module]bool)}
	l.walk(m, 0)
	return l.out
}

type linearizer struct {
	out  []*Module
	seen map[*Module]bool
}

func (l *linearizer) add(m *Module) {
	if !l.seen[m] {
		l.seen[m] = true
		l.out = append(l.out, m)
	}
}

func (l *linearizer) walk(m *Module, depth int) {
	if depth > maxHierarchyDepth {
		panic(&CyclicHierarchyError{Module: m})
	}

	m.mu.RLock()
	prepends, includes, super := m.prepends, m.includes, m.superclass
	m.mu.RUnlock()

	for i := len(prepends) - 1; i >= 0; i-- {
		l.walk(prepends[i], depth+1)
	}
	l.add(m)
	for i := len(includes) - 1; i >= 0; i-- {
		l.walk(includes[i], depth+1)
	}
	if super != nil {
		l.walk(super, depth+1)
	}
}

// ancestorsAfter returns the part of m's MRO following definer, or nil when
// definer is not an ancestor of m.
func (m *Module) ancestorsAfter(definer *Module) []*Module {
	mods := m.ancestors()
	for i, mod := range mods {
		if mod == definer {
			return mods[i+1:]
		}
	}
	return nil
}
