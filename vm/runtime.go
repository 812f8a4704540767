package vm

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Runtime: the method dispatch core
// ---------------------------------------------------------------------------

// Runtime owns the class hierarchy, the invalidation registry and the
// dispatcher. All methods are safe for concurrent use.
type Runtime struct {
	// Global tables
	Symbols   *SymbolTable // symbol name -> ID
	Constants *ClassTable  // constant path -> class or module

	// Well-known classes and modules
	BasicObjectClass *Module
	ObjectClass      *Module
	ModuleClass      *Module
	ClassClass       *Module
	KernelModule     *Module
	ComparableModule *Module
	NilClass         *Module
	TrueClass        *Module
	FalseClass       *Module
	NumericClass     *Module
	IntegerClass     *Module
	FloatClass       *Module
	StringClass      *Module
	SymbolClass      *Module

	config      Config
	registry    *InvalidationRegistry
	resolver    *Resolver
	dispatcher  *Dispatcher
	model       ObjectModel
	methodCache *MethodCache

	// hierarchyMu serializes superclass, include and prepend changes and
	// constant definition so cycle checks see a stable graph.
	hierarchyMu sync.Mutex

	// sites holds the call sites used by Send and Frame helpers, keyed by
	// selector and flags.
	sites sync.Map // siteKey -> *CallSite

	tablesMu sync.Mutex
	tables   []*CallSiteTable
}

type siteKey struct {
	name  string
	flags SiteFlags
}

// Option customizes a Runtime.
type Option func(*Runtime)

// WithObjectModel replaces the default object model. The factory runs
// before bootstrap and receives the runtime being built.
func WithObjectModel(factory func(rt *Runtime) ObjectModel) Option {
	return func(rt *Runtime) { rt.model = factory(rt) }
}

// WithHooks installs method_missing and error translation hooks.
func WithHooks(h Hooks) Option {
	return func(rt *Runtime) { rt.dispatcher.hooks = h }
}

// NewRuntime creates and bootstraps a runtime with the core classes
// installed.
func NewRuntime(cfg Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vm: invalid config: %w", err)
	}

	rt := &Runtime{
		Symbols:   NewSymbolTable(),
		Constants: NewClassTable(),
		config:    cfg,
		registry:  NewInvalidationRegistry(),
	}
	rt.resolver = &Resolver{rt: rt}
	if cfg.GlobalCache {
		rt.methodCache = &MethodCache{}
	}
	rt.dispatcher = &Dispatcher{rt: rt, resolver: rt.resolver, global: rt.methodCache}
	rt.model = defaultObjectModel{rt: rt}

	for _, opt := range opts {
		opt(rt)
	}

	if err := rt.bootstrap(); err != nil {
		return nil, err
	}
	log.Infof("%s: runtime ready, %d constants, registry version %d",
		cfg.Name, rt.Constants.Len(), rt.registry.Version())
	return rt, nil
}

// MustNewRuntime is NewRuntime for configurations known to be valid.
func MustNewRuntime(cfg Config, opts ...Option) *Runtime {
	rt, err := NewRuntime(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return rt
}

// ---------------------------------------------------------------------------
// Bootstrap: Create core classes
// ---------------------------------------------------------------------------

func (rt *Runtime) bootstrap() error {
	// Phase 1: the root of the metaclass chain. Singleton classes are
	// created lazily, so Module and Class only need to exist before the
	// first one is requested.
	rt.BasicObjectClass = rt.createBootstrapClass("BasicObject", nil)
	rt.ObjectClass = rt.createBootstrapClass("Object", rt.BasicObjectClass)
	rt.ModuleClass = rt.createBootstrapClass("Module", rt.ObjectClass)
	rt.ClassClass = rt.createBootstrapClass("Class", rt.ModuleClass)

	// Phase 2: core mixins
	rt.KernelModule = rt.createBootstrapModule("Kernel")
	rt.ComparableModule = rt.createBootstrapModule("Comparable")

	// Phase 3: value classes
	rt.NilClass = rt.createBootstrapClass("NilClass", rt.ObjectClass)
	rt.TrueClass = rt.createBootstrapClass("TrueClass", rt.ObjectClass)
	rt.FalseClass = rt.createBootstrapClass("FalseClass", rt.ObjectClass)
	rt.NumericClass = rt.createBootstrapClass("Numeric", rt.ObjectClass)
	rt.IntegerClass = rt.createBootstrapClass("Integer", rt.NumericClass)
	rt.FloatClass = rt.createBootstrapClass("Float", rt.NumericClass)
	rt.StringClass = rt.createBootstrapClass("String", rt.ObjectClass)
	rt.SymbolClass = rt.createBootstrapClass("Symbol", rt.ObjectClass)

	// Phase 4: mixin wiring
	for _, inc := range []struct{ into, mod *Module }{
		{rt.ObjectClass, rt.KernelModule},
		{rt.NumericClass, rt.ComparableModule},
		{rt.StringClass, rt.ComparableModule},
	} {
		if err := inc.into.Include(inc.mod); err != nil {
			return fmt.Errorf("vm: bootstrap: %w", err)
		}
	}

	// Phase 5: core methods
	return rt.installCore()
}

func (rt *Runtime) createBootstrapClass(name string, super *Module) *Module {
	m := newModule(rt, KindClass, name, super)
	rt.Constants.Register(name, m)
	return m
}

func (rt *Runtime) createBootstrapModule(name string) *Module {
	m := newModule(rt, KindModule, name, nil)
	rt.Constants.Register(name, m)
	return m
}

// ---------------------------------------------------------------------------
// Class and module definition
// ---------------------------------------------------------------------------

// DefineClass opens the class bound to name, creating it under superclass
// when absent. A nil superclass means Object for new classes and "any" for
// reopened ones.
func (rt *Runtime) DefineClass(name string, superclass *Module) (*Module, error) {
	if !ValidConstantName(name) {
		return nil, &NameError{Name: name, Message: "wrong constant name " + name}
	}

	rt.hierarchyMu.Lock()
	defer rt.hierarchyMu.Unlock()

	if existing := rt.Constants.Lookup(name); existing != nil {
		if existing.kind != KindClass {
			return nil, &TypeError{Message: name + " is not a class"}
		}
		if superclass != nil && existing.Superclass() != superclass {
			return nil, &TypeError{Message: "superclass mismatch for class " + name}
		}
		return existing, nil
	}

	if superclass == nil {
		superclass = rt.ObjectClass
	}
	if err := rt.checkSuperclass(superclass); err != nil {
		return nil, err
	}
	c := newModule(rt, KindClass, "", superclass)
	rt.Constants.Register(name, c)
	log.Debugf("define class %s < %s", name, superclass)
	return c, nil
}

// DefineModule opens the module bound to name, creating it when absent.
func (rt *Runtime) DefineModule(name string) (*Module, error) {
	if !ValidConstantName(name) {
		return nil, &NameError{Name: name, Message: "wrong constant name " + name}
	}

	rt.hierarchyMu.Lock()
	defer rt.hierarchyMu.Unlock()

	if existing := rt.Constants.Lookup(name); existing != nil {
		if existing.kind != KindModule {
			return nil, &TypeError{Message: name + " is not a module"}
		}
		return existing, nil
	}
	m := newModule(rt, KindModule, "", nil)
	rt.Constants.Register(name, m)
	log.Debugf("define module %s", name)
	return m, nil
}

// NewClass creates an anonymous class. It is named by the first constant
// it is registered under.
func (rt *Runtime) NewClass(superclass *Module) (*Module, error) {
	if superclass == nil {
		superclass = rt.ObjectClass
	}
	if err := rt.checkSuperclass(superclass); err != nil {
		return nil, err
	}
	return newModule(rt, KindClass, "", superclass), nil
}

// NewModule creates an anonymous module.
func (rt *Runtime) NewModule() *Module {
	return newModule(rt, KindModule, "", nil)
}

func (rt *Runtime) checkSuperclass(super *Module) error {
	switch {
	case super.rt != rt:
		return &TypeError{Message: "superclass " + super.String() + " belongs to another runtime"}
	case super.kind == KindModule:
		return &TypeError{Message: "superclass must be an instance of Class (given an instance of Module)"}
	case super.kind == KindSingleton:
		return &TypeError{Message: "can't make subclass of singleton class"}
	case super == rt.ClassClass:
		return &TypeError{Message: "can't make subclass of Class"}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sending
// ---------------------------------------------------------------------------

// Send sends name to receiver from outside any method, as `recv.name(args)`.
func (rt *Runtime) Send(receiver Value, name string, args ...Value) (Value, error) {
	return rt.dispatcher.Dispatch(nil, rt.sharedSite(name, 0), receiver, args)
}

// Dispatch sends through an evaluator-owned call site.
func (rt *Runtime) Dispatch(caller *Frame, site *CallSite, receiver Value, args ...Value) (Value, error) {
	return rt.dispatcher.Dispatch(caller, site, receiver, args)
}

func (rt *Runtime) sharedSite(name string, flags SiteFlags) *CallSite {
	key := siteKey{name: name, flags: flags}
	if cs, ok := rt.sites.Load(key); ok {
		return cs.(*CallSite)
	}
	cs, _ := rt.sites.LoadOrStore(key, rt.NewCallSite(name, flags))
	return cs.(*CallSite)
}

// Intern returns the symbol for name.
func (rt *Runtime) Intern(name string) Symbol {
	return rt.Symbols.Intern(name)
}

// Config returns the runtime's configuration.
func (rt *Runtime) Config() Config { return rt.config }

// Registry returns the invalidation registry.
func (rt *Runtime) Registry() *InvalidationRegistry { return rt.registry }

// Resolver returns the method resolver.
func (rt *Runtime) Resolver() *Resolver { return rt.resolver }

// Dispatcher returns the dispatcher.
func (rt *Runtime) Dispatcher() *Dispatcher { return rt.dispatcher }

// MethodCache returns the runtime-wide method cache, nil when disabled.
func (rt *Runtime) MethodCache() *MethodCache { return rt.methodCache }

// ---------------------------------------------------------------------------
// Inspect
// ---------------------------------------------------------------------------

// Inspect renders v the way Kernel#inspect does for core values.
func (rt *Runtime) Inspect(v Value) string {
	switch o := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(o)
	case int:
		return strconv.Itoa(o)
	case int64:
		return strconv.FormatInt(o, 10)
	case float64:
		return formatFloat(o)
	case string:
		return strconv.Quote(o)
	case Symbol:
		return ":" + rt.Symbols.Name(o)
	case *Module:
		return o.String()
	case *Instance:
		return "#<" + o.class.String() + ">"
	case []Value:
		parts := make([]string, len(o))
		for i, e := range o {
			parts[i] = rt.Inspect(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *MethodEntry:
		return "#<UnboundMethod: " + o.String() + ">"
	}
	return fmt.Sprintf("#<%s>", rt.ClassOf(v).nonSingleton())
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}
