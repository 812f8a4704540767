package vm

import (
	"sort"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// ClassTable: constant registry for classes and modules
// ---------------------------------------------------------------------------

// ClassTable maps constant paths ("Object", "Net::HTTP") to modules.
// It's thread-safe for concurrent access.
type ClassTable struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		modules: make(map[string]*Module),
	}
}

// Register binds path to m and names m if it is still anonymous.
// Returns the module previously bound to path, or nil.
func (ct *ClassTable) Register(path string, m *Module) *Module {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	old := ct.modules[path]
	ct.modules[path] = m
	m.setName(path)
	return old
}

// Lookup finds a module by constant path.
func (ct *ClassTable) Lookup(path string) *Module {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.modules[path]
}

// LookupInNamespace finds name inside namespace, walking outwards to the
// top level the way constant lookup does.
func (ct *ClassTable) LookupInNamespace(namespace, name string) *Module {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	for ns := namespace; ns != ""; ns = parentNamespace(ns) {
		if m := ct.modules[ns+"::"+name]; m != nil {
			return m
		}
	}
	return ct.modules[name]
}

// Has returns true if a module is bound to path.
func (ct *ClassTable) Has(path string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.modules[path]
	return ok
}

// Paths returns all registered constant paths, sorted.
func (ct *ClassTable) Paths() []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	paths := make([]string, 0, len(ct.modules))
	for p := range ct.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// All returns all registered modules ordered by path.
func (ct *ClassTable) All() []*Module {
	paths := ct.Paths()

	ct.mu.RLock()
	defer ct.mu.RUnlock()
	result := make([]*Module, 0, len(paths))
	for _, p := range paths {
		result = append(result, ct.modules[p])
	}
	return result
}

// Len returns the number of registered modules.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.modules)
}

func parentNamespace(ns string) string {
	i := strings.LastIndex(ns, "::")
	if i < 0 {
		return ""
	}
	return ns[:i]
}

// ValidConstantName reports whether every "::"-separated segment of path
// starts with an uppercase ASCII letter and contains only letters, digits
// and underscores.
func ValidConstantName(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, "::") {
		if seg == "" || seg[0] < 'A' || seg[0] > 'Z' {
			return false
		}
		for i := 1; i < len(seg); i++ {
			c := seg[i]
			if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
				return false
			}
		}
	}
	return true
}
