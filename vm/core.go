package vm

import "fmt"

// ---------------------------------------------------------------------------
// Core-method registration
// ---------------------------------------------------------------------------

// CoreMethod is one row of a registration table: a built-in method and the
// constant it is installed on. Singleton rows go to the module's singleton
// class. The arity is taken from Body (see ArityBody).
type CoreMethod struct {
	Module     string
	Name       string
	Visibility Visibility
	Singleton  bool
	Body       Body
}

// InstallCore defines every row of table through the ordinary method table
// API. Rows are grouped by target so each module is published with a
// single registry bump.
func (rt *Runtime) InstallCore(table []CoreMethod) error {
	type target struct {
		mod     *Module
		entries []*MethodEntry
	}
	var order []*target
	byMod := make(map[*Module]*target)

	for _, cm := range table {
		mod := rt.Constants.Lookup(cm.Module)
		if mod == nil {
			return fmt.Errorf("vm: core method %s#%s: uninitialized constant %s", cm.Module, cm.Name, cm.Module)
		}
		if cm.Singleton {
			mod = mod.SingletonClass()
		}
		if cm.Body == nil {
			return fmt.Errorf("vm: core method %s#%s has no body", cm.Module, cm.Name)
		}

		t := byMod[mod]
		if t == nil {
			t = &target{mod: mod}
			byMod[mod] = t
			order = append(order, t)
		}
		arity := BodyArity(cm.Body, VariadicArity(0))
		t.entries = append(t.entries, NewMethodEntry(mod, cm.Name, cm.Visibility, arity, cm.Body))
	}

	for _, t := range order {
		if err := t.mod.DefineMethods(t.entries); err != nil {
			return fmt.Errorf("vm: install core methods on %s: %w", t.mod, err)
		}
		log.Debugf("installed %d core methods on %s", len(t.entries), t.mod)
	}
	return nil
}

func (rt *Runtime) installCore() error {
	var table []CoreMethod
	for _, part := range [][]CoreMethod{
		basicObjectMethods,
		kernelMethods,
		moduleMethods,
		classMethods,
		comparableMethods,
		nilMethods,
		booleanMethods,
		integerMethods,
		floatMethods,
		stringMethods,
		symbolMethods,
	} {
		table = append(table, part...)
	}
	if err := rt.InstallCore(table); err != nil {
		return err
	}

	// Immediate values have no allocator.
	for _, c := range []*Module{rt.NilClass, rt.TrueClass, rt.FalseClass, rt.IntegerClass, rt.FloatClass, rt.SymbolClass} {
		meta := c.SingletonClass()
		for _, name := range []string{"new", "allocate"} {
			if err := meta.UndefineMethod(name); err != nil {
				return fmt.Errorf("vm: bootstrap: %w", err)
			}
		}
	}

	log.Infof("%s: installed %d core methods", rt.config.Name, len(table))
	return nil
}

// ---------------------------------------------------------------------------
// Table helpers
// ---------------------------------------------------------------------------

func def0(mod, name string, fn Method0Func) CoreMethod {
	return CoreMethod{Module: mod, Name: name, Body: NewMethod0(fn)}
}

func def1(mod, name string, fn Method1Func) CoreMethod {
	return CoreMethod{Module: mod, Name: name, Body: NewMethod1(fn)}
}

func def2(mod, name string, fn Method2Func) CoreMethod {
	return CoreMethod{Module: mod, Name: name, Body: NewMethod2(fn)}
}

func defN(mod, name string, arity Arity, fn PrimitiveFunc) CoreMethod {
	return CoreMethod{Module: mod, Name: name, Body: NewPrimitiveMethod(arity, fn)}
}

func private(cm CoreMethod) CoreMethod {
	cm.Visibility = Private
	return cm
}

func singleton(cm CoreMethod) CoreMethod {
	cm.Singleton = true
	return cm
}

// aliases returns a copy of cm under each extra name.
func aliases(cm CoreMethod, names ...string) []CoreMethod {
	out := []CoreMethod{cm}
	for _, n := range names {
		c := cm
		c.Name = n
		out = append(out, c)
	}
	return out
}

func join(parts ...[]CoreMethod) []CoreMethod {
	var out []CoreMethod
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ---------------------------------------------------------------------------
// Value helpers shared by primitives
// ---------------------------------------------------------------------------

// Truthy reports Ruby truthiness: everything except nil and false.
func Truthy(v Value) bool {
	switch o := v.(type) {
	case nil:
		return false
	case bool:
		return o
	}
	return true
}

// sameObject compares by identity. Values of incomparable dynamic types
// are never identical.
func sameObject(a, b Value) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

func toInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// methodName accepts a Symbol or String argument naming a method.
func (rt *Runtime) methodName(v Value) (string, error) {
	switch n := v.(type) {
	case Symbol:
		return rt.Symbols.Name(n), nil
	case string:
		return n, nil
	}
	return "", &TypeError{Message: rt.Inspect(v) + " is not a symbol nor a string"}
}

func (rt *Runtime) moduleArg(v Value) (*Module, error) {
	if m, ok := v.(*Module); ok {
		return m, nil
	}
	return nil, &TypeError{Message: "wrong argument type " + rt.ClassOf(v).nonSingleton().String() + " (expected Module)"}
}

func (rt *Runtime) symbols(names []string) []Value {
	out := make([]Value, len(names))
	for i, n := range names {
		out[i] = rt.Intern(n)
	}
	return out
}

func (rt *Runtime) className(v Value) string {
	return rt.ClassOf(v).nonSingleton().String()
}
