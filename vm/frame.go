package vm

// Frame is the activation record handed to a method body. Self is the
// receiver, Method the executing entry (its owner is where super
// continues), Class the class the send resolved against.
type Frame struct {
	Self   Value
	Method *MethodEntry
	Class  *Module
	Caller *Frame
	Args   []Value

	rt    *Runtime
	depth int
}

// Runtime returns the runtime executing the frame.
func (f *Frame) Runtime() *Runtime { return f.rt }

// Depth returns the dispatch nesting depth, 1 for top-level sends.
func (f *Frame) Depth() int { return f.depth }

// Send performs an implicit-receiver send (`name(args)`) to f.Self.
// Private methods are reachable.
func (f *Frame) Send(name string, args ...Value) (Value, error) {
	return f.rt.dispatcher.Dispatch(f, f.rt.sharedSite(name, SiteImplicitSelf), f.Self, args)
}

// SendTo performs a send with an explicit receiver (`recv.name(args)`).
func (f *Frame) SendTo(receiver Value, name string, args ...Value) (Value, error) {
	return f.rt.dispatcher.Dispatch(f, f.rt.sharedSite(name, 0), receiver, args)
}

// Call sends through a call site owned by the body, so repeated calls are
// served from the site's inline cache.
func (f *Frame) Call(site *CallSite, receiver Value, args ...Value) (Value, error) {
	if site.flags&(SiteImplicitSelf|SiteSuper) != 0 {
		receiver = f.Self
	}
	return f.rt.dispatcher.Dispatch(f, site, receiver, args)
}

// Super calls the next definition of the executing method above its owner
// with the given arguments. Aliases look up the name they were defined
// under.
func (f *Frame) Super(args ...Value) (Value, error) {
	if f.Method == nil {
		return nil, ErrSuperOutsideMethod
	}
	return f.rt.dispatcher.Dispatch(f, f.rt.sharedSite(f.Method.original, SiteSuper), f.Self, args)
}

// ZSuper is a bare `super`: it forwards the frame's own arguments.
func (f *Frame) ZSuper() (Value, error) {
	return f.Super(f.Args...)
}
