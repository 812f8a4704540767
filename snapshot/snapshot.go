// Package snapshot captures a runtime's class graph and method tables in a
// serializable form. Snapshots are encoded as canonical CBOR for digests
// and tooling, or as msgpack for compact on-disk caches.
package snapshot

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/google/uuid"

	"github.com/chazu/garnet/vm"
)

// namespaceID seeds the name-derived module IDs, so the same named graph
// gets the same IDs in every process.
var namespaceID = uuid.MustParse("0b7f6c1e-3d0a-5f61-9a7e-6a3b1f2c9d40")

// Snapshot is a point-in-time copy of a runtime's modules.
type Snapshot struct {
	Runtime        string   `cbor:"1,keyasint" msgpack:"runtime"`
	Version        uint64   `cbor:"2,keyasint" msgpack:"version"`
	HierarchyEpoch uint64   `cbor:"3,keyasint" msgpack:"epoch"`
	Modules        []Module `cbor:"4,keyasint" msgpack:"modules"`
}

// Module describes one class, module or singleton class.
type Module struct {
	ID         string   `cbor:"1,keyasint" msgpack:"id"`
	Name       string   `cbor:"2,keyasint" msgpack:"name"` // display name
	Kind       string   `cbor:"3,keyasint" msgpack:"kind"`
	Superclass string   `cbor:"4,keyasint,omitempty" msgpack:"superclass,omitempty"`
	Includes   []string `cbor:"5,keyasint,omitempty" msgpack:"includes,omitempty"`
	Prepends   []string `cbor:"6,keyasint,omitempty" msgpack:"prepends,omitempty"`
	Ancestors  []string `cbor:"7,keyasint" msgpack:"ancestors"`
	Frozen     bool     `cbor:"8,keyasint,omitempty" msgpack:"frozen,omitempty"`
	Methods    []Method `cbor:"9,keyasint,omitempty" msgpack:"methods,omitempty"`
}

// Method describes one method table entry. Owner differs from the
// containing module for aliases and visibility copies of inherited methods.
type Method struct {
	Name       string `cbor:"1,keyasint" msgpack:"name"`
	Original   string `cbor:"2,keyasint,omitempty" msgpack:"original,omitempty"`
	Owner      string `cbor:"3,keyasint" msgpack:"owner"`
	Visibility string `cbor:"4,keyasint" msgpack:"visibility"`
	Required   uint32 `cbor:"5,keyasint" msgpack:"required"`
	Optional   uint32 `cbor:"6,keyasint" msgpack:"optional"`
	Rest       bool   `cbor:"7,keyasint,omitempty" msgpack:"rest,omitempty"`
	Undefined  bool   `cbor:"8,keyasint,omitempty" msgpack:"undefined,omitempty"`
}

// Capture walks every registered constant and the modules reachable from
// it through superclass, mixin and singleton links. Constants are visited
// in path order, so two runtimes with the same graph capture the same
// module order.
func Capture(rt *vm.Runtime) (*Snapshot, error) {
	s := &Snapshot{
		Runtime:        rt.Config().Name,
		Version:        rt.Registry().Version(),
		HierarchyEpoch: rt.Registry().HierarchyEpoch(),
	}

	seen := make(map[*vm.Module]bool)
	queue := rt.Constants.All()
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		if m == nil || seen[m] {
			continue
		}
		seen[m] = true

		mod, err := capture(m)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %s: %w", m, err)
		}
		s.Modules = append(s.Modules, mod)

		queue = append(queue, m.Superclass())
		queue = append(queue, m.PrependedModules()...)
		queue = append(queue, m.IncludedModules()...)
		queue = append(queue, m.LoadedSingletonClass())
	}
	return s, nil
}

func capture(m *vm.Module) (Module, error) {
	mod := Module{
		ID:        ID(m),
		Name:      m.String(),
		Kind:      m.Kind().String(),
		Includes:  names(m.IncludedModules()),
		Prepends:  names(m.PrependedModules()),
		Ancestors: names(m.Ancestors()),
		Frozen:    m.IsFrozen(),
	}
	if sup := m.Superclass(); sup != nil {
		mod.Superclass = sup.String()
	}
	for _, e := range m.Methods().Entries() {
		me, err := captureMethod(e)
		if err != nil {
			return mod, err
		}
		mod.Methods = append(mod.Methods, me)
	}
	return mod, nil
}

func captureMethod(e *vm.MethodEntry) (Method, error) {
	me := Method{
		Name:      e.Name(),
		Owner:     e.Owner().String(),
		Undefined: e.IsUndefined(),
	}
	if e.OriginalName() != e.Name() {
		me.Original = e.OriginalName()
	}
	if e.IsUndefined() {
		return me, nil
	}
	me.Visibility = e.Visibility().String()
	a := e.Arity()
	var err error
	if me.Required, err = safecast.Conv[uint32](a.Required); err != nil {
		return me, fmt.Errorf("%s: required arity: %w", e, err)
	}
	if me.Optional, err = safecast.Conv[uint32](a.Optional); err != nil {
		return me, fmt.Errorf("%s: optional arity: %w", e, err)
	}
	me.Rest = a.Rest
	return me, nil
}

// ID returns a stable identifier for m. Named modules and singleton
// classes of named objects derive it from their display name; anonymous
// modules use their creation identity.
func ID(m *vm.Module) string {
	if m.Name() != "" || m.IsSingleton() && m.Attached() != nil && isNamed(m.Attached()) {
		return uuid.NewSHA1(namespaceID, []byte(m.String())).String()
	}
	return m.ID().String()
}

func isNamed(v vm.Value) bool {
	m, ok := v.(*vm.Module)
	return ok && m.Name() != ""
}

func names(mods []*vm.Module) []string {
	if len(mods) == 0 {
		return nil
	}
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.String()
	}
	return out
}

// Find returns the module with the given display name.
func (s *Snapshot) Find(name string) (*Module, bool) {
	for i := range s.Modules {
		if s.Modules[i].Name == name {
			return &s.Modules[i], true
		}
	}
	return nil, false
}

// MethodCount returns the number of captured entries, undef markers
// included.
func (s *Snapshot) MethodCount() int {
	n := 0
	for _, m := range s.Modules {
		n += len(m.Methods)
	}
	return n
}
