package vm

// Body is the executable part of a method entry. Bodies are opaque to the
// dispatcher: it validates arity, then calls Invoke with a fresh frame
// whose Self is the receiver.
type Body interface {
	Invoke(f *Frame, args []Value) (Value, error)
}

// PrimitiveFunc is a Go function implementing a variable-arity method.
type PrimitiveFunc func(f *Frame, args []Value) (Value, error)

// Method0Func is a primitive taking no arguments.
type Method0Func func(f *Frame) (Value, error)

// Method1Func is a primitive taking one argument.
type Method1Func func(f *Frame, arg1 Value) (Value, error)

// Method2Func is a primitive taking two arguments.
type Method2Func func(f *Frame, arg1, arg2 Value) (Value, error)

// Method3Func is a primitive taking three arguments.
type Method3Func func(f *Frame, arg1, arg2, arg3 Value) (Value, error)

// ---------------------------------------------------------------------------
// Arity-specialized bodies
// ---------------------------------------------------------------------------

// PrimitiveMethod wraps a general PrimitiveFunc as a Body.
type PrimitiveMethod struct {
	fn    PrimitiveFunc
	arity Arity
}

func (m *PrimitiveMethod) Invoke(f *Frame, args []Value) (Value, error) {
	return m.fn(f, args)
}

func (m *PrimitiveMethod) Arity() Arity { return m.arity }

// Method0 wraps a zero-argument primitive.
type Method0 struct{ fn Method0Func }

func (m *Method0) Invoke(f *Frame, args []Value) (Value, error) { return m.fn(f) }
func (m *Method0) Arity() Arity                                 { return FixedArity(0) }

// Method1 wraps a one-argument primitive.
type Method1 struct{ fn Method1Func }

func (m *Method1) Invoke(f *Frame, args []Value) (Value, error) { return m.fn(f, args[0]) }
func (m *Method1) Arity() Arity                                 { return FixedArity(1) }

// Method2 wraps a two-argument primitive.
type Method2 struct{ fn Method2Func }

func (m *Method2) Invoke(f *Frame, args []Value) (Value, error) {
	return m.fn(f, args[0], args[1])
}

func (m *Method2) Arity() Arity { return FixedArity(2) }

// Method3 wraps a three-argument primitive.
type Method3 struct{ fn Method3Func }

func (m *Method3) Invoke(f *Frame, args []Value) (Value, error) {
	return m.fn(f, args[0], args[1], args[2])
}

func (m *Method3) Arity() Arity { return FixedArity(3) }

// ---------------------------------------------------------------------------
// Factory functions
// ---------------------------------------------------------------------------

// NewPrimitiveMethod creates a body accepting arguments described by arity.
func NewPrimitiveMethod(arity Arity, fn PrimitiveFunc) Body {
	return &PrimitiveMethod{fn: fn, arity: arity}
}

// NewMethod0 creates a zero-argument body.
func NewMethod0(fn Method0Func) Body { return &Method0{fn: fn} }

// NewMethod1 creates a one-argument body.
func NewMethod1(fn Method1Func) Body { return &Method1{fn: fn} }

// NewMethod2 creates a two-argument body.
func NewMethod2(fn Method2Func) Body { return &Method2{fn: fn} }

// NewMethod3 creates a three-argument body.
func NewMethod3(fn Method3Func) Body { return &Method3{fn: fn} }

// ---------------------------------------------------------------------------
// Optional body metadata
// ---------------------------------------------------------------------------

// ArityBody is implemented by bodies that know their own arity.
type ArityBody interface {
	Body
	Arity() Arity
}

// BodyArity returns the arity declared by b, or fallback when b does not
// implement ArityBody.
func BodyArity(b Body, fallback Arity) Arity {
	if ab, ok := b.(ArityBody); ok {
		return ab.Arity()
	}
	return fallback
}
