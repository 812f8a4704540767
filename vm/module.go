package vm

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Module: classes, modules and singleton classes
// ---------------------------------------------------------------------------

// ModuleKind distinguishes the three flavours of method container.
type ModuleKind uint8

const (
	KindModule    ModuleKind = iota // mixin, no superclass, no instances
	KindClass                       // ordinary class
	KindSingleton                   // per-object or per-class singleton class
)

func (k ModuleKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindClass:
		return "class"
	case KindSingleton:
		return "singleton"
	}
	return "unknown"
}

// Module is a Ruby module or class. Classes are modules with a superclass
// link and the ability to create instances; singleton classes are classes
// attached to exactly one object.
//
// The method table is owned by the module. Include and prepend lists are
// ordered by insertion and may share modules with other classes.
type Module struct {
	rt      *Runtime
	id      uuid.UUID
	kind    ModuleKind
	methods *MethodTable

	mu         sync.RWMutex
	name       string
	superclass *Module
	includes   []*Module
	prepends   []*Module
	attached   Value
	frozen     bool

	singleton atomic.Pointer[Module]
	mro       atomic.Pointer[mroSnapshot]
}

func newModule(rt *Runtime, kind ModuleKind, name string, superclass *Module) *Module {
	m := &Module{
		rt:         rt,
		id:         uuid.New(),
		kind:       kind,
		name:       name,
		superclass: superclass,
	}
	m.methods = NewMethodTable(m, rt.registry)
	return m
}

// Runtime returns the runtime the module belongs to.
func (m *Module) Runtime() *Runtime { return m.rt }

// ID returns the identity assigned at creation. Anonymous modules are
// displayed by it.
func (m *Module) ID() uuid.UUID { return m.id }

// Kind returns whether m is a module, a class or a singleton class.
func (m *Module) Kind() ModuleKind { return m.kind }

// IsClass reports whether m is a class (singleton classes included).
func (m *Module) IsClass() bool { return m.kind != KindModule }

// IsSingleton reports whether m is a singleton class.
func (m *Module) IsSingleton() bool { return m.kind == KindSingleton }

// Methods returns the module's own method table.
func (m *Module) Methods() *MethodTable { return m.methods }

// Name returns the module's name, or "" while it is anonymous.
func (m *Module) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// setName names an anonymous module. Named modules keep their first name.
func (m *Module) setName(name string) {
	m.mu.Lock()
	if m.name == "" {
		m.name = name
	}
	m.mu.Unlock()
}

// Superclass returns the direct superclass, or nil for roots and modules.
func (m *Module) Superclass() *Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.superclass
}

// Attached returns the object a singleton class is attached to.
func (m *Module) Attached() Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attached
}

// IncludedModules returns the modules included directly into m, most
// recently included first.
func (m *Module) IncludedModules() []*Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return reversed(m.includes)
}

// PrependedModules returns the modules prepended directly to m, most
// recently prepended first.
func (m *Module) PrependedModules() []*Module {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return reversed(m.prepends)
}

// String returns the name, or an inspect-style placeholder when anonymous.
func (m *Module) String() string {
	if m == nil {
		return "<nil>"
	}
	m.mu.RLock()
	name, kind, attached := m.name, m.kind, m.attached
	m.mu.RUnlock()

	if name != "" {
		return name
	}
	if kind == KindSingleton {
		return "#<Class:" + m.rt.Inspect(attached) + ">"
	}
	prefix := "#<Class:0x"
	if kind == KindModule {
		prefix = "#<Module:0x"
	}
	return prefix + strings.ReplaceAll(m.id.String(), "-", "")[:16] + ">"
}

// ---------------------------------------------------------------------------
// Freezing
// ---------------------------------------------------------------------------

// Freeze prevents further method-table and mixin changes.
func (m *Module) Freeze() {
	m.mu.Lock()
	m.frozen = true
	m.mu.Unlock()
}

// IsFrozen reports whether Freeze has been called.
func (m *Module) IsFrozen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frozen
}

func (m *Module) checkFrozen() error {
	if m.IsFrozen() {
		return &FrozenError{Module: m}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Method definition
// ---------------------------------------------------------------------------

// DefineMethod publishes a method named name. The arity is taken from
// body when it implements ArityBody, otherwise any argument count is
// accepted.
func (m *Module) DefineMethod(name string, body Body) (*MethodEntry, error) {
	return m.DefineMethodWith(name, Public, BodyArity(body, VariadicArity(0)), body)
}

// DefineMethodWith publishes a method with explicit visibility and arity.
func (m *Module) DefineMethodWith(name string, vis Visibility, arity Arity, body Body) (*MethodEntry, error) {
	if err := m.checkFrozen(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &NameError{Name: name, Module: m, Message: "empty method name"}
	}
	if body == nil {
		return nil, &TypeError{Message: "method '" + name + "' has no body"}
	}
	e := NewMethodEntry(m, name, vis, arity, body)
	m.methods.Define(e)
	return e, nil
}

// DefineMethods publishes several entries with one registry bump. Entries
// must be owned by m.
func (m *Module) DefineMethods(entries []*MethodEntry) error {
	if err := m.checkFrozen(); err != nil {
		return err
	}
	for _, e := range entries {
		if e.owner != m {
			return &TypeError{Message: "method " + e.String() + " is not owned by " + m.String()}
		}
	}
	m.methods.DefineBatch(entries)
	return nil
}

// RemoveMethod removes a method defined directly in m. Inherited
// definitions become visible again.
func (m *Module) RemoveMethod(name string) error {
	if err := m.checkFrozen(); err != nil {
		return err
	}
	if !m.methods.Remove(name) {
		return &NameError{Name: name, Module: m, Message: "method '" + name + "' not defined in " + m.String()}
	}
	return nil
}

// UndefineMethod blocks name for instances of m, including definitions
// inherited from ancestors.
func (m *Module) UndefineMethod(name string) error {
	if err := m.checkFrozen(); err != nil {
		return err
	}
	if res := m.rt.resolver.Resolve(m, name, CallNormal, nil); res.Status != Resolved {
		return &NameError{Name: name, Module: m, Message: "undefined method '" + name + "' for " + m.describe()}
	}
	m.methods.Undefine(name)
	return nil
}

// AliasMethod makes newName refer to the method currently resolved for
// oldName. Later redefinitions of oldName do not affect the alias.
func (m *Module) AliasMethod(newName, oldName string) (*MethodEntry, error) {
	if err := m.checkFrozen(); err != nil {
		return nil, err
	}
	res := m.rt.resolver.Resolve(m, oldName, CallNormal, nil)
	if res.Status != Resolved {
		return nil, &NameError{Name: oldName, Module: m, Message: "undefined method '" + oldName + "' for " + m.describe()}
	}
	e := res.Entry.renamed(newName)
	m.methods.Define(e)
	return e, nil
}

// SetVisibility changes the visibility of the named methods as seen through
// m. Methods inherited from ancestors get a copy in m's table.
func (m *Module) SetVisibility(vis Visibility, names ...string) error {
	if err := m.checkFrozen(); err != nil {
		return err
	}
	for _, name := range names {
		for {
			res := m.rt.resolver.Resolve(m, name, CallNormal, nil)
			if res.Status != Resolved {
				return &NameError{Name: name, Module: m, Message: "undefined method '" + name + "' for " + m.describe()}
			}
			if res.Entry.visibility == vis {
				break
			}
			local, _ := m.methods.Lookup(name)
			if m.methods.replace(local, res.Entry.withVisibility(vis)) {
				break
			}
		}
	}
	return nil
}

// InstanceMethods lists public and protected method names visible on
// instances of m. With inherit false only m's own table is consulted.
func (m *Module) InstanceMethods(inherit bool) []string {
	return m.methodNames(inherit, func(v Visibility) bool { return v != Private })
}

// PrivateInstanceMethods lists private method names visible on instances.
func (m *Module) PrivateInstanceMethods(inherit bool) []string {
	return m.methodNames(inherit, func(v Visibility) bool { return v == Private })
}

func (m *Module) methodNames(inherit bool, keep func(Visibility) bool) []string {
	mods := []*Module{m}
	if inherit {
		mods = m.ancestors()
	}
	seen := make(map[string]bool)
	var names []string
	for _, mod := range mods {
		for _, e := range mod.methods.Entries() {
			if seen[e.name] {
				continue
			}
			seen[e.name] = true
			if !e.undefined && keep(e.visibility) {
				names = append(names, e.name)
			}
		}
	}
	return names
}

// ---------------------------------------------------------------------------
// Mixins
// ---------------------------------------------------------------------------

// Include inserts mod above m in m's ancestors. Including a module that m
// already includes directly is a no-op.
func (m *Module) Include(mod *Module) error {
	return m.addMixin(mod, false)
}

// Prepend inserts mod before m itself in m's ancestors.
func (m *Module) Prepend(mod *Module) error {
	return m.addMixin(mod, true)
}

func (m *Module) addMixin(mod *Module, prepend bool) error {
	if mod == nil || mod.kind != KindModule {
		return &TypeError{Message: "wrong argument type " + mod.kindName() + " (expected Module)"}
	}
	if mod.rt != m.rt {
		return &TypeError{Message: "module " + mod.String() + " belongs to another runtime"}
	}

	m.rt.hierarchyMu.Lock()
	defer m.rt.hierarchyMu.Unlock()

	if err := m.checkFrozen(); err != nil {
		return err
	}
	if mod == m || mod.hasAncestor(m) {
		return &CyclicHierarchyError{Module: m, Mixin: mod}
	}

	m.mu.Lock()
	list := &m.includes
	reason := "include"
	if prepend {
		list = &m.prepends
		reason = "prepend"
	}
	for _, existing := range *list {
		if existing == mod {
			m.mu.Unlock()
			return nil
		}
	}
	*list = append(*list, mod)
	m.mu.Unlock()

	m.rt.registry.bumpHierarchy(reason, m, mod)
	return nil
}

// hasAncestor reports whether target appears in m's ancestors.
func (m *Module) hasAncestor(target *Module) bool {
	for _, a := range m.ancestors() {
		if a == target {
			return true
		}
	}
	return false
}

// IsKindOf reports whether mod is m or one of m's ancestors.
func (m *Module) IsKindOf(mod *Module) bool {
	return m == mod || m.hasAncestor(mod)
}

// ---------------------------------------------------------------------------
// Singleton classes
// ---------------------------------------------------------------------------

// SingletonClass returns m's singleton class, creating it on first use.
// The singleton class of a class inherits from the singleton class of its
// superclass; roots inherit from Class and modules from Module.
func (m *Module) SingletonClass() *Module {
	if s := m.singleton.Load(); s != nil {
		return s
	}

	var super *Module
	switch {
	case m.kind == KindModule:
		super = m.rt.ModuleClass
	case m.Superclass() != nil:
		super = m.Superclass().SingletonClass()
	default:
		super = m.rt.ClassClass
	}

	s := newModule(m.rt, KindSingleton, "", super)
	s.attached = m
	if m.singleton.CompareAndSwap(nil, s) {
		return s
	}
	return m.singleton.Load()
}

// LoadedSingletonClass returns m's singleton class if one has been
// created, without creating it.
func (m *Module) LoadedSingletonClass() *Module { return m.singleton.Load() }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (m *Module) kindName() string {
	if m == nil {
		return "NilClass"
	}
	if m.kind == KindModule {
		return "Module"
	}
	return "Class"
}

// describe renders the receiver part of a NameError message.
func (m *Module) describe() string {
	if m.kind == KindModule {
		return "module '" + m.String() + "'"
	}
	return "class '" + m.String() + "'"
}

func reversed(mods []*Module) []*Module {
	out := make([]*Module, len(mods))
	for i, mod := range mods {
		out[len(mods)-1-i] = mod
	}
	return out
}
