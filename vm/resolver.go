package vm

import "errors"

// CallKind selects where resolution starts.
type CallKind uint8

const (
	CallNormal CallKind = iota // walk the receiver class's full MRO
	CallSuper                  // walk the MRO after the executing method's owner
)

// ResolveStatus is the outcome of a resolution.
type ResolveStatus uint8

const (
	Resolved      ResolveStatus = iota
	NotFound                    // absent, or blocked by undef_method
	PrivateCall                 // private method called with an explicit receiver
	ProtectedCall               // protected method called from an unrelated self
)

func (s ResolveStatus) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case NotFound:
		return "not found"
	case PrivateCall:
		return "private"
	case ProtectedCall:
		return "protected"
	}
	return "unknown"
}

// Resolution is the result of Resolver.Resolve. Entry is set only when
// Status is Resolved, PrivateCall or ProtectedCall.
type Resolution struct {
	Entry  *MethodEntry
	Status ResolveStatus
}

// errUndefinedMethod stops an MRO walk at an undef marker. It never leaves
// the resolver.
var errUndefinedMethod = errors.New("method undefined")

// Resolver walks ancestor lists to find method entries.
type Resolver struct {
	rt *Runtime
}

// Resolve finds the entry for name starting at class start. For CallSuper
// the walk begins after definer in start's ancestors. Visibility is not
// checked; see ResolveFor.
func (r *Resolver) Resolve(start *Module, name string, kind CallKind, definer *Module) Resolution {
	var mods []*Module
	if kind == CallSuper {
		mods = start.ancestorsAfter(definer)
	} else {
		mods = start.ancestors()
	}

	e, err := lookupIn(mods, name)
	if err != nil || e == nil {
		return Resolution{Status: NotFound}
	}
	return Resolution{Entry: e, Status: Resolved}
}

// ResolveFor resolves name for a send and applies visibility rules.
// qualified is true when the send had an explicit receiver other than a
// literal self; caller is the sending frame, nil for sends from outside
// any method.
func (r *Resolver) ResolveFor(start *Module, name string, kind CallKind, definer *Module, qualified bool, caller *Frame) Resolution {
	res := r.Resolve(start, name, kind, definer)
	if res.Status != Resolved {
		return res
	}
	res.Status = r.CheckVisibility(res.Entry, qualified, caller)
	return res
}

// CheckVisibility applies private and protected rules to an entry.
func (r *Resolver) CheckVisibility(e *MethodEntry, qualified bool, caller *Frame) ResolveStatus {
	switch e.visibility {
	case Private:
		if qualified {
			return PrivateCall
		}
	case Protected:
		if qualified && !r.callerIsKindOf(caller, e.owner) {
			return ProtectedCall
		}
	}
	return Resolved
}

func (r *Resolver) callerIsKindOf(caller *Frame, owner *Module) bool {
	if caller == nil {
		return false
	}
	return r.rt.ClassOf(caller.Self).IsKindOf(owner)
}

// RespondTo reports whether instances of class respond to name. Private
// methods count only when includePrivate is set.
func (r *Resolver) RespondTo(class *Module, name string, includePrivate bool) bool {
	res := r.Resolve(class, name, CallNormal, nil)
	if res.Status != Resolved {
		return false
	}
	return includePrivate || res.Entry.visibility != Private
}

// lookupIn returns the first entry for name in mods. An undef marker ends
// the walk with errUndefinedMethod.
func lookupIn(mods []*Module, name string) (*MethodEntry, error) {
	for _, mod := range mods {
		if e, ok := mod.methods.Lookup(name); ok {
			if e.undefined {
				return nil, errUndefinedMethod
			}
			return e, nil
		}
	}
	return nil, nil
}
