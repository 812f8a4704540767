package vm

// ---------------------------------------------------------------------------
// Module
// ---------------------------------------------------------------------------

func selfModule(f *Frame) (*Module, error) {
	if m, ok := f.Self.(*Module); ok {
		return m, nil
	}
	return nil, &TypeError{Message: f.rt.Inspect(f.Self) + " is not a class/module"}
}

// moduleFn adapts a primitive that operates on a module receiver.
func moduleFn(fn func(f *Frame, m *Module, args []Value) (Value, error)) PrimitiveFunc {
	return func(f *Frame, args []Value) (Value, error) {
		m, err := selfModule(f)
		if err != nil {
			return nil, err
		}
		return fn(f, m, args)
	}
}

func defModule(name string, arity Arity, fn func(f *Frame, m *Module, args []Value) (Value, error)) CoreMethod {
	return defN("Module", name, arity, moduleFn(fn))
}

// mixin implements include and prepend. Arguments are applied last first
// so that the first argument ends up nearest the receiver.
func mixin(prepend bool) func(f *Frame, m *Module, args []Value) (Value, error) {
	return func(f *Frame, m *Module, args []Value) (Value, error) {
		for i := len(args) - 1; i >= 0; i-- {
			mod, err := f.rt.moduleArg(args[i])
			if err != nil {
				return nil, err
			}
			if prepend {
				err = m.Prepend(mod)
			} else {
				err = m.Include(mod)
			}
			if err != nil {
				return nil, err
			}
		}
		return m, nil
	}
}

func setVisibility(vis Visibility) func(f *Frame, m *Module, args []Value) (Value, error) {
	return func(f *Frame, m *Module, args []Value) (Value, error) {
		names := make([]string, len(args))
		for i, a := range args {
			n, err := f.rt.methodName(a)
			if err != nil {
				return nil, err
			}
			names[i] = n
		}
		if err := m.SetVisibility(vis, names...); err != nil {
			return nil, err
		}
		switch len(args) {
		case 0:
			return nil, nil
		case 1:
			return args[0], nil
		}
		return append([]Value(nil), args...), nil
	}
}

// methodDefined implements the *_method_defined? family. keep selects the
// visibilities that count.
func methodDefined(keep func(Visibility) bool) func(f *Frame, m *Module, args []Value) (Value, error) {
	return func(f *Frame, m *Module, args []Value) (Value, error) {
		name, err := f.rt.methodName(args[0])
		if err != nil {
			return nil, err
		}
		mods := []*Module{m}
		if len(args) < 2 || Truthy(args[1]) {
			mods = m.ancestors()
		}
		e, err := lookupIn(mods, name)
		if err != nil || e == nil {
			return false, nil
		}
		return keep(e.visibility), nil
	}
}

// defineFromValue implements define_method. body may be a Body or an
// entry obtained from instance_method.
func defineFromValue(f *Frame, m *Module, name, body Value) (Value, error) {
	n, err := f.rt.methodName(name)
	if err != nil {
		return nil, err
	}
	switch b := body.(type) {
	case *MethodEntry:
		if b.undefined {
			return nil, &TypeError{Message: "undefined method " + b.String()}
		}
		_, err = m.DefineMethodWith(n, Public, b.arity, b.body)
	case Body:
		_, err = m.DefineMethod(n, b)
	default:
		return nil, &TypeError{Message: "wrong argument type " + f.rt.className(body) + " (expected Proc/Method/UnboundMethod)"}
	}
	if err != nil {
		return nil, err
	}
	return f.rt.Intern(n), nil
}

func attrReader(ivar string) Body {
	return NewMethod0(func(f *Frame) (Value, error) {
		if o, ok := f.Self.(*Instance); ok {
			return o.IVar(ivar), nil
		}
		return nil, nil
	})
}

func attrWriter(ivar string) Body {
	return NewMethod1(func(f *Frame, v Value) (Value, error) {
		o, ok := f.Self.(*Instance)
		if !ok {
			return nil, &TypeError{Message: "can't set instance variables on " + f.rt.className(f.Self)}
		}
		if err := o.SetIVar(ivar, v); err != nil {
			return nil, err
		}
		return v, nil
	})
}

func defineAttrs(reader, writer bool) func(f *Frame, m *Module, args []Value) (Value, error) {
	return func(f *Frame, m *Module, args []Value) (Value, error) {
		var defined []Value
		for _, a := range args {
			n, err := f.rt.methodName(a)
			if err != nil {
				return nil, err
			}
			if !ValidAttrName(n) {
				return nil, &NameError{Name: n, Module: m, Message: "invalid attribute name '" + n + "'"}
			}
			ivar := "@" + n
			if reader {
				if _, err := m.DefineMethod(n, attrReader(ivar)); err != nil {
					return nil, err
				}
				defined = append(defined, f.rt.Intern(n))
			}
			if writer {
				if _, err := m.DefineMethod(n+"=", attrWriter(ivar)); err != nil {
					return nil, err
				}
				defined = append(defined, f.rt.Intern(n+"="))
			}
		}
		return defined, nil
	}
}

// ValidAttrName reports whether name is a plain identifier.
func ValidAttrName(name string) bool {
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

var moduleMethods = join(
	[]CoreMethod{
		defModule("name", FixedArity(0), func(f *Frame, m *Module, args []Value) (Value, error) {
			if n := m.Name(); n != "" {
				return n, nil
			}
			return nil, nil
		}),
		defModule("ancestors", FixedArity(0), func(f *Frame, m *Module, args []Value) (Value, error) {
			anc := m.Ancestors()
			out := make([]Value, len(anc))
			for i, a := range anc {
				out[i] = a
			}
			return out, nil
		}),
		defModule("include", VariadicArity(1), mixin(false)),
		defModule("prepend", VariadicArity(1), mixin(true)),
		defModule("include?", FixedArity(1), func(f *Frame, m *Module, args []Value) (Value, error) {
			mod, err := f.rt.moduleArg(args[0])
			if err != nil {
				return nil, err
			}
			return mod != m && mod.kind == KindModule && m.hasAncestor(mod), nil
		}),
		defModule("included_modules", FixedArity(0), func(f *Frame, m *Module, args []Value) (Value, error) {
			var out []Value
			for _, a := range m.ancestors() {
				if a.kind == KindModule {
					out = append(out, a)
				}
			}
			return out, nil
		}),
		defModule("instance_methods", Arity{Optional: 1}, func(f *Frame, m *Module, args []Value) (Value, error) {
			return f.rt.symbols(m.InstanceMethods(len(args) == 0 || Truthy(args[0]))), nil
		}),
		defModule("private_instance_methods", Arity{Optional: 1}, func(f *Frame, m *Module, args []Value) (Value, error) {
			return f.rt.symbols(m.PrivateInstanceMethods(len(args) == 0 || Truthy(args[0]))), nil
		}),
		defModule("method_defined?", Arity{Required: 1, Optional: 1}, methodDefined(func(v Visibility) bool { return v != Private })),
		defModule("public_method_defined?", Arity{Required: 1, Optional: 1}, methodDefined(func(v Visibility) bool { return v == Public })),
		defModule("private_method_defined?", Arity{Required: 1, Optional: 1}, methodDefined(func(v Visibility) bool { return v == Private })),
		defModule("protected_method_defined?", Arity{Required: 1, Optional: 1}, methodDefined(func(v Visibility) bool { return v == Protected })),
		defModule("instance_method", FixedArity(1), func(f *Frame, m *Module, args []Value) (Value, error) {
			name, err := f.rt.methodName(args[0])
			if err != nil {
				return nil, err
			}
			res := f.rt.resolver.Resolve(m, name, CallNormal, nil)
			if res.Status != Resolved {
				return nil, &NameError{Name: name, Module: m, Message: "undefined method '" + name + "' for " + m.describe()}
			}
			return res.Entry, nil
		}),
		defModule("remove_method", VariadicArity(0), func(f *Frame, m *Module, args []Value) (Value, error) {
			for _, a := range args {
				name, err := f.rt.methodName(a)
				if err != nil {
					return nil, err
				}
				if err := m.RemoveMethod(name); err != nil {
					return nil, err
				}
			}
			return m, nil
		}),
		defModule("undef_method", VariadicArity(0), func(f *Frame, m *Module, args []Value) (Value, error) {
			for _, a := range args {
				name, err := f.rt.methodName(a)
				if err != nil {
					return nil, err
				}
				if err := m.UndefineMethod(name); err != nil {
					return nil, err
				}
			}
			return m, nil
		}),
		defModule("alias_method", FixedArity(2), func(f *Frame, m *Module, args []Value) (Value, error) {
			newName, err := f.rt.methodName(args[0])
			if err != nil {
				return nil, err
			}
			oldName, err := f.rt.methodName(args[1])
			if err != nil {
				return nil, err
			}
			if _, err := m.AliasMethod(newName, oldName); err != nil {
				return nil, err
			}
			return f.rt.Intern(newName), nil
		}),
		defModule("public", VariadicArity(0), setVisibility(Public)),
		defModule("private", VariadicArity(0), setVisibility(Private)),
		defModule("protected", VariadicArity(0), setVisibility(Protected)),
		defModule("define_method", FixedArity(2), func(f *Frame, m *Module, args []Value) (Value, error) {
			return defineFromValue(f, m, args[0], args[1])
		}),
		defModule("attr_reader", VariadicArity(0), defineAttrs(true, false)),
		defModule("attr_writer", VariadicArity(0), defineAttrs(false, true)),
		defModule("attr_accessor", VariadicArity(0), defineAttrs(true, true)),
		defModule("===", FixedArity(1), func(f *Frame, m *Module, args []Value) (Value, error) {
			return f.rt.ClassOf(args[0]).IsKindOf(m), nil
		}),
		defModule("const_get", FixedArity(1), func(f *Frame, m *Module, args []Value) (Value, error) {
			name, err := f.rt.methodName(args[0])
			if err != nil {
				return nil, err
			}
			if c := f.rt.Constants.LookupInNamespace(m.Name(), name); c != nil {
				return c, nil
			}
			return nil, &NameError{Name: name, Module: m, Message: "uninitialized constant " + name}
		}),
	},
	aliases(defModule("to_s", FixedArity(0), func(f *Frame, m *Module, args []Value) (Value, error) {
		return m.String(), nil
	}), "inspect"),
	[]CoreMethod{
		singleton(defN("Module", "new", FixedArity(0), func(f *Frame, args []Value) (Value, error) {
			return f.rt.NewModule(), nil
		})),
	},
)

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

var classMethods = []CoreMethod{
	defN("Class", "new", VariadicArity(0), func(f *Frame, args []Value) (Value, error) {
		obj, err := allocate(f)
		if err != nil {
			return nil, err
		}
		if _, err := f.rt.dispatcher.Dispatch(f, f.rt.sharedSite("initialize", SiteImplicitSelf), obj, args); err != nil {
			return nil, err
		}
		return obj, nil
	}),
	def0("Class", "allocate", func(f *Frame) (Value, error) {
		return allocate(f)
	}),
	def0("Class", "superclass", func(f *Frame) (Value, error) {
		m, err := selfModule(f)
		if err != nil {
			return nil, err
		}
		if s := m.Superclass(); s != nil {
			return s, nil
		}
		return nil, nil
	}),
	singleton(defN("Class", "new", Arity{Optional: 1}, func(f *Frame, args []Value) (Value, error) {
		var super *Module
		if len(args) > 0 {
			m, err := f.rt.moduleArg(args[0])
			if err != nil {
				return nil, err
			}
			super = m
		}
		return f.rt.NewClass(super)
	})),
}

func allocate(f *Frame) (*Instance, error) {
	c, err := selfModule(f)
	if err != nil {
		return nil, err
	}
	if c.kind == KindSingleton {
		return nil, &TypeError{Message: "can't create instance of singleton class"}
	}
	if c.kind != KindClass {
		return nil, &TypeError{Message: "undefined method 'new' for module " + c.String()}
	}
	return NewInstance(c), nil
}
