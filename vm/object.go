package vm

import (
	"sync"
	"sync/atomic"
)

// Value is any object the core dispatches on. The core never looks inside
// values; it asks the ObjectModel for their classes.
type Value = any

// ObjectModel maps values to classes. The evaluator supplies one; the
// default model understands Go scalars, *Instance and *Module.
type ObjectModel interface {
	// ClassOf returns the value's class, ignoring any singleton class.
	ClassOf(v Value) *Module
	// SingletonClassOf returns the value's singleton class, or nil when it
	// has none.
	SingletonClassOf(v Value) *Module
}

// Instance is an ordinary object created by Class#new.
type Instance struct {
	class     *Module
	singleton atomic.Pointer[Module]
	frozen    atomic.Bool

	mu    sync.RWMutex
	ivars map[string]Value
}

// NewInstance creates an instance of class without running initialize.
func NewInstance(class *Module) *Instance {
	return &Instance{class: class}
}

// Class returns the instance's class.
func (o *Instance) Class() *Module { return o.class }

// IVar returns an instance variable, nil when unset.
func (o *Instance) IVar(name string) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ivars[name]
}

// SetIVar sets an instance variable.
func (o *Instance) SetIVar(name string, v Value) error {
	if o.frozen.Load() {
		return &FrozenError{Class: o.class.String()}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ivars == nil {
		o.ivars = make(map[string]Value)
	}
	o.ivars[name] = v
	return nil
}

// Freeze prevents further instance variable changes.
func (o *Instance) Freeze() { o.frozen.Store(true) }

// IsFrozen reports whether the instance is frozen.
func (o *Instance) IsFrozen() bool { return o.frozen.Load() }

// ---------------------------------------------------------------------------
// Default object model
// ---------------------------------------------------------------------------

type defaultObjectModel struct {
	rt *Runtime
}

func (m defaultObjectModel) ClassOf(v Value) *Module {
	rt := m.rt
	switch o := v.(type) {
	case nil:
		return rt.NilClass
	case bool:
		if o {
			return rt.TrueClass
		}
		return rt.FalseClass
	case int, int64:
		return rt.IntegerClass
	case float64:
		return rt.FloatClass
	case string:
		return rt.StringClass
	case Symbol:
		return rt.SymbolClass
	case *Instance:
		return o.class
	case *Module:
		if o.kind == KindModule {
			return rt.ModuleClass
		}
		return rt.ClassClass
	}
	return rt.ObjectClass
}

func (m defaultObjectModel) SingletonClassOf(v Value) *Module {
	switch o := v.(type) {
	case *Instance:
		return o.singleton.Load()
	case *Module:
		// Class-level methods must always see the metaclass chain.
		return o.SingletonClass()
	}
	return nil
}

// ClassOf returns the class dispatch starts from: the singleton class
// when v has one, its ordinary class otherwise.
func (rt *Runtime) ClassOf(v Value) *Module {
	if s := rt.model.SingletonClassOf(v); s != nil {
		return s
	}
	return rt.model.ClassOf(v)
}

// RealClassOf returns v's class ignoring singleton classes.
func (rt *Runtime) RealClassOf(v Value) *Module {
	return rt.model.ClassOf(v)
}

// SingletonClassOf returns v's singleton class, creating it when v can
// have one. Immediate values cannot.
func (rt *Runtime) SingletonClassOf(v Value) (*Module, error) {
	switch o := v.(type) {
	case *Module:
		return o.SingletonClass(), nil
	case *Instance:
		if s := o.singleton.Load(); s != nil {
			return s, nil
		}
		s := newModule(rt, KindSingleton, "", o.class)
		s.attached = o
		if o.singleton.CompareAndSwap(nil, s) {
			return s, nil
		}
		return o.singleton.Load(), nil
	}
	if s := rt.model.SingletonClassOf(v); s != nil {
		return s, nil
	}
	return nil, &TypeError{Message: "can't define singleton"}
}

// Extend includes mods into v's singleton class, last argument first.
func (rt *Runtime) Extend(v Value, mods ...*Module) error {
	s, err := rt.SingletonClassOf(v)
	if err != nil {
		return err
	}
	for i := len(mods) - 1; i >= 0; i-- {
		if err := s.Include(mods[i]); err != nil {
			return err
		}
	}
	return nil
}
