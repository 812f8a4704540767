package vm

// ---------------------------------------------------------------------------
// BasicObject
// ---------------------------------------------------------------------------

var basicObjectMethods = join(
	[]CoreMethod{
		private(defN("BasicObject", "initialize", FixedArity(0), func(f *Frame, args []Value) (Value, error) {
			return nil, nil
		})),
		def1("BasicObject", "==", func(f *Frame, other Value) (Value, error) {
			return sameObject(f.Self, other), nil
		}),
		def1("BasicObject", "equal?", func(f *Frame, other Value) (Value, error) {
			return sameObject(f.Self, other), nil
		}),
		def1("BasicObject", "!=", func(f *Frame, other Value) (Value, error) {
			eq, err := f.SendTo(f.Self, "==", other)
			if err != nil {
				return nil, err
			}
			return !Truthy(eq), nil
		}),
		def0("BasicObject", "!", func(f *Frame) (Value, error) {
			return !Truthy(f.Self), nil
		}),
		defN("BasicObject", "__send__", VariadicArity(1), sendAnyVisibility),
		private(defN("BasicObject", "method_missing", VariadicArity(1), func(f *Frame, args []Value) (Value, error) {
			name, err := f.rt.methodName(args[0])
			if err != nil {
				return nil, err
			}
			return nil, f.rt.dispatcher.fail(f.rt.noMethodError(f.Self, name, args[1:], ReasonUndefined))
		})),
	},
)

// sendAnyVisibility implements send and __send__: the named method is
// called as if from inside the receiver, so private methods are reachable.
func sendAnyVisibility(f *Frame, args []Value) (Value, error) {
	name, err := f.rt.methodName(args[0])
	if err != nil {
		return nil, err
	}
	return f.rt.dispatcher.Dispatch(f, f.rt.sharedSite(name, SiteImplicitSelf), f.Self, args[1:])
}

// ---------------------------------------------------------------------------
// Kernel
// ---------------------------------------------------------------------------

var kernelMethods = join(
	[]CoreMethod{
		def0("Kernel", "class", func(f *Frame) (Value, error) {
			return f.rt.RealClassOf(f.Self), nil
		}),
		def0("Kernel", "singleton_class", func(f *Frame) (Value, error) {
			s, err := f.rt.SingletonClassOf(f.Self)
			if err != nil {
				return nil, err
			}
			return s, nil
		}),
		defN("Kernel", "respond_to?", Arity{Required: 1, Optional: 1}, func(f *Frame, args []Value) (Value, error) {
			name, err := f.rt.methodName(args[0])
			if err != nil {
				return nil, err
			}
			includeAll := len(args) > 1 && Truthy(args[1])
			if f.rt.resolver.RespondTo(f.rt.ClassOf(f.Self), name, includeAll) {
				return true, nil
			}
			v, err := f.Send("respond_to_missing?", f.rt.Intern(name), includeAll)
			if err != nil {
				return nil, err
			}
			return Truthy(v), nil
		}),
		private(def2("Kernel", "respond_to_missing?", func(f *Frame, name, includeAll Value) (Value, error) {
			return false, nil
		})),
		defN("Kernel", "send", VariadicArity(1), sendAnyVisibility),
		defN("Kernel", "public_send", VariadicArity(1), func(f *Frame, args []Value) (Value, error) {
			name, err := f.rt.methodName(args[0])
			if err != nil {
				return nil, err
			}
			return f.rt.dispatcher.Dispatch(f, f.rt.sharedSite(name, 0), f.Self, args[1:])
		}),
		def1("Kernel", "instance_of?", func(f *Frame, arg Value) (Value, error) {
			mod, err := f.rt.moduleArg(arg)
			if err != nil {
				return nil, err
			}
			return f.rt.RealClassOf(f.Self) == mod, nil
		}),
		defN("Kernel", "extend", VariadicArity(1), func(f *Frame, args []Value) (Value, error) {
			mods := make([]*Module, len(args))
			for i, a := range args {
				m, err := f.rt.moduleArg(a)
				if err != nil {
					return nil, err
				}
				mods[i] = m
			}
			if err := f.rt.Extend(f.Self, mods...); err != nil {
				return nil, err
			}
			return f.Self, nil
		}),
		def0("Kernel", "nil?", func(f *Frame) (Value, error) {
			return false, nil
		}),
		def0("Kernel", "frozen?", func(f *Frame) (Value, error) {
			switch o := f.Self.(type) {
			case *Instance:
				return o.IsFrozen(), nil
			case *Module:
				return o.IsFrozen(), nil
			}
			return true, nil
		}),
		def0("Kernel", "freeze", func(f *Frame) (Value, error) {
			switch o := f.Self.(type) {
			case *Instance:
				o.Freeze()
			case *Module:
				o.Freeze()
			}
			return f.Self, nil
		}),
		def0("Kernel", "inspect", func(f *Frame) (Value, error) {
			return f.rt.Inspect(f.Self), nil
		}),
		def0("Kernel", "to_s", func(f *Frame) (Value, error) {
			return "#<" + f.rt.className(f.Self) + ">", nil
		}),
		def1("Kernel", "===", func(f *Frame, other Value) (Value, error) {
			if sameObject(f.Self, other) {
				return true, nil
			}
			eq, err := f.SendTo(f.Self, "==", other)
			if err != nil {
				return nil, err
			}
			return Truthy(eq), nil
		}),
		def0("Kernel", "methods", func(f *Frame) (Value, error) {
			return f.rt.symbols(f.rt.ClassOf(f.Self).InstanceMethods(true)), nil
		}),
		def1("Kernel", "instance_variable_get", func(f *Frame, name Value) (Value, error) {
			n, err := f.rt.methodName(name)
			if err != nil {
				return nil, err
			}
			if o, ok := f.Self.(*Instance); ok {
				return o.IVar(n), nil
			}
			return nil, nil
		}),
		def2("Kernel", "instance_variable_set", func(f *Frame, name, v Value) (Value, error) {
			n, err := f.rt.methodName(name)
			if err != nil {
				return nil, err
			}
			o, ok := f.Self.(*Instance)
			if !ok {
				return nil, &TypeError{Message: "can't set instance variables on " + f.rt.className(f.Self)}
			}
			if err := o.SetIVar(n, v); err != nil {
				return nil, err
			}
			return v, nil
		}),
		def2("Kernel", "define_singleton_method", func(f *Frame, name, body Value) (Value, error) {
			s, err := f.rt.SingletonClassOf(f.Self)
			if err != nil {
				return nil, err
			}
			return defineFromValue(f, s, name, body)
		}),
	},
	aliases(def1("Kernel", "is_a?", func(f *Frame, arg Value) (Value, error) {
		mod, err := f.rt.moduleArg(arg)
		if err != nil {
			return nil, err
		}
		return f.rt.ClassOf(f.Self).IsKindOf(mod), nil
	}), "kind_of?"),
)
