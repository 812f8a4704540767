package vm

// Hooks let the embedding take part in failed sends and error reporting.
type Hooks struct {
	// MethodMissing is consulted when a send finds no accessible method
	// and the receiver defines no method_missing of its own. Returning
	// handled=false raises NoMethodError.
	MethodMissing func(caller *Frame, receiver Value, name string, args []Value) (result Value, handled bool, err error)

	// TranslateError converts errors raised by the dispatch core (never
	// errors returned by method bodies) into the embedding's exceptions.
	TranslateError func(err error) error
}

// Dispatcher performs message sends: inline cache probe, resolution on a
// miss, cache update, arity check and invocation.
type Dispatcher struct {
	rt       *Runtime
	resolver *Resolver
	global   *MethodCache
	hooks    Hooks
}

// Dispatch sends site's message to receiver with args on behalf of caller
// (nil for sends from outside any method).
func (d *Dispatcher) Dispatch(caller *Frame, site *CallSite, receiver Value, args []Value) (Value, error) {
	class := d.rt.ClassOf(receiver)
	// The version is read before any table is consulted, so a concurrent
	// definition either is visible to this lookup or stales what we cache.
	version := d.rt.registry.Version()

	var definer *Module
	useCache := true
	if site.flags&SiteSuper != 0 {
		if caller == nil || caller.Method == nil {
			return nil, d.fail(ErrSuperOutsideMethod)
		}
		definer = caller.Method.owner
		site.superOwner.CompareAndSwap(nil, definer)
		useCache = site.superOwner.Load() == definer
	}

	cache := site.cache
	megamorphic := cache.State() == CacheMegamorphic

	var entry *MethodEntry
	if useCache && !megamorphic {
		entry = cache.Lookup(class, version)
	}
	if entry != nil && entry.visibility == Protected && site.Qualified() && !d.resolver.callerIsKindOf(caller, entry.owner) {
		return d.missing(caller, site, receiver, class, args, ProtectedCall)
	}

	if entry == nil {
		res := d.resolve(class, site, definer, version, megamorphic)
		if res.Status == Resolved {
			res.Status = d.resolver.CheckVisibility(res.Entry, site.Qualified(), caller)
		}
		if res.Status != Resolved {
			return d.missing(caller, site, receiver, class, args, res.Status)
		}
		entry = res.Entry
		if useCache && !megamorphic {
			cache.Update(class, entry, version)
		}
	}

	return d.invoke(caller, entry, class, receiver, args)
}

// resolve performs an uncached lookup. Megamorphic normal sends go through
// the runtime-wide method cache first.
func (d *Dispatcher) resolve(class *Module, site *CallSite, definer *Module, version uint64, megamorphic bool) Resolution {
	kind := site.Kind()
	if !megamorphic || kind != CallNormal || d.global == nil {
		return d.resolver.Resolve(class, site.name, kind, definer)
	}

	if e := d.global.Lookup(class, site.name, version); e != nil {
		return Resolution{Entry: e, Status: Resolved}
	}
	res := d.resolver.Resolve(class, site.name, kind, definer)
	if res.Status == Resolved {
		d.global.Store(class, site.name, res.Entry, version)
	}
	return res
}

// invoke checks arity and runs e's body in a new frame.
func (d *Dispatcher) invoke(caller *Frame, e *MethodEntry, class *Module, receiver Value, args []Value) (Value, error) {
	if !e.arity.Accepts(len(args)) {
		return nil, d.fail(&ArgumentError{Method: e.name, Given: len(args), Expected: e.arity})
	}

	depth := 1
	if caller != nil {
		depth = caller.depth + 1
	}
	if depth > d.rt.config.MaxDepth {
		return nil, d.fail(&StackOverflowError{Depth: depth})
	}

	f := &Frame{
		Self:   receiver,
		Method: e,
		Class:  class,
		Caller: caller,
		Args:   args,
		rt:     d.rt,
		depth:  depth,
	}
	return e.body.Invoke(f, args)
}

// missing handles a failed resolution: a user-defined method_missing runs
// first, then the embedding's hook, else NoMethodError.
func (d *Dispatcher) missing(caller *Frame, site *CallSite, receiver Value, class *Module, args []Value, status ResolveStatus) (Value, error) {
	name := site.name
	if name != methodMissingName {
		mm := d.resolver.Resolve(class, methodMissingName, CallNormal, nil)
		if mm.Status == Resolved && mm.Entry.owner != d.rt.BasicObjectClass {
			mmArgs := make([]Value, 0, len(args)+1)
			mmArgs = append(mmArgs, d.rt.Intern(name))
			mmArgs = append(mmArgs, args...)
			return d.invoke(caller, mm.Entry, class, receiver, mmArgs)
		}
		if d.hooks.MethodMissing != nil {
			if v, handled, err := d.hooks.MethodMissing(caller, receiver, name, args); handled {
				return v, err
			}
		}
	}

	reason := ReasonUndefined
	switch {
	case status == PrivateCall:
		reason = ReasonPrivate
	case status == ProtectedCall:
		reason = ReasonProtected
	case site.flags&SiteSuper != 0:
		reason = ReasonSuper
	}
	return nil, d.fail(d.rt.noMethodError(receiver, name, args, reason))
}

func (d *Dispatcher) fail(err error) error {
	if d.hooks.TranslateError != nil {
		return d.hooks.TranslateError(err)
	}
	return err
}

const methodMissingName = "method_missing"

func (rt *Runtime) noMethodError(receiver Value, name string, args []Value, reason MissingReason) *NoMethodError {
	return &NoMethodError{
		Receiver: receiver,
		Name:     name,
		Args:     args,
		Reason:   reason,
		receiver: rt.describeReceiver(receiver),
	}
}
