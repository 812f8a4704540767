package vm

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

// ---------------------------------------------------------------------------
// End-to-end dispatch
// ---------------------------------------------------------------------------

func TestDispatchInheritRedefineInclude(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	b := mustClass(t, rt, "B", a)
	mustDefine(t, a, "foo", constBody(int64(1)))

	site := rt.NewCallSite("foo", 0)
	obj := mustNew(t, rt, b)

	call := func() Value {
		t.Helper()
		v, err := rt.Dispatch(nil, site, obj)
		if err != nil {
			t.Fatalf("B.new.foo: %v", err)
		}
		return v
	}

	if got := call(); got != int64(1) {
		t.Errorf("B.new.foo = %v, want 1", got)
	}
	if got := call(); got != int64(1) {
		t.Errorf("B.new.foo (cached) = %v, want 1", got)
	}
	if site.Cache().State() != CacheMonomorphic {
		t.Errorf("site state = %v, want monomorphic", site.Cache().State())
	}

	mustDefine(t, a, "foo", constBody(int64(2)))
	if got := call(); got != int64(2) {
		t.Errorf("after redefining A#foo, B.new.foo = %v, want 2", got)
	}

	m := mustModule(t, rt, "M")
	mustDefine(t, m, "foo", constBody(int64(3)))
	if err := b.Include(m); err != nil {
		t.Fatal(err)
	}
	if got := call(); got != int64(3) {
		t.Errorf("after B.include(M), B.new.foo = %v, want 3", got)
	}
}

func TestDispatchRedefinitionRunsNewBody(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	var oldCalls, newCalls atomic.Int64
	mustDefine(t, a, "tick", countingBody(nil, &oldCalls))

	site := rt.NewCallSite("tick", 0)
	obj := mustNew(t, rt, a)
	for i := 0; i < 3; i++ {
		if _, err := rt.Dispatch(nil, site, obj); err != nil {
			t.Fatal(err)
		}
	}

	mustDefine(t, a, "tick", countingBody(nil, &newCalls))
	if _, err := rt.Dispatch(nil, site, obj); err != nil {
		t.Fatal(err)
	}
	if oldCalls.Load() != 3 || newCalls.Load() != 1 {
		t.Errorf("old body ran %d times, new body %d; want 3 and 1", oldCalls.Load(), newCalls.Load())
	}
}

func TestDispatchRemoveFallsBackToSuperclass(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	b := mustClass(t, rt, "B", a)
	mustDefine(t, a, "foo", constBody("A"))
	mustDefine(t, b, "foo", constBody("B"))

	obj := mustNew(t, rt, b)
	if got := mustSend(t, rt, obj, "foo"); got != "B" {
		t.Errorf("foo = %v, want B", got)
	}
	if err := b.RemoveMethod("foo"); err != nil {
		t.Fatal(err)
	}
	if got := mustSend(t, rt, obj, "foo"); got != "A" {
		t.Errorf("foo after remove = %v, want A", got)
	}
}

func TestUndefineBlocksSuperclass(t *testing.T) {
	rt := newTestRuntime(t)
	b := mustClass(t, rt, "B", nil)
	a := mustClass(t, rt, "A", b)
	mustDefine(t, b, "m", constBody(1))

	obj := mustNew(t, rt, a)
	mustSend(t, rt, obj, "m") // warm the shared site

	if err := a.UndefineMethod("m"); err != nil {
		t.Fatal(err)
	}
	_, err := rt.Send(obj, "m")
	var nme *NoMethodError
	if !errors.As(err, &nme) {
		t.Fatalf("A.new.m error = %v, want NoMethodError", err)
	}
	if nme.Reason != ReasonUndefined {
		t.Errorf("reason = %v, want undefined", nme.Reason)
	}
	if want := "undefined method 'm' for an instance of A"; nme.Error() != want {
		t.Errorf("message = %q, want %q", nme.Error(), want)
	}
	if got := mustSend(t, rt, obj, "respond_to?", rt.Intern("m")); got != false {
		t.Errorf("respond_to?(:m) = %v, want false", got)
	}

	var ne *NameError
	if err := a.UndefineMethod("zzz"); !errors.As(err, &ne) {
		t.Errorf("undef of unknown method error = %v, want NameError", err)
	}
}

// ---------------------------------------------------------------------------
// Visibility
// ---------------------------------------------------------------------------

func TestPrivateMethodVisibility(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	if _, err := a.DefineMethodWith("secret", Private, FixedArity(0), constBody("s3cr3t")); err != nil {
		t.Fatal(err)
	}
	mustDefine(t, a, "reveal", NewMethod0(func(f *Frame) (Value, error) {
		return f.Send("secret")
	}))
	mustDefine(t, a, "reveal_self", NewMethod0(func(f *Frame) (Value, error) {
		site := f.Runtime().NewCallSite("secret", SiteSelfReceiver)
		return f.Call(site, f.Self)
	}))

	obj := mustNew(t, rt, a)
	if got := mustSend(t, rt, obj, "reveal"); got != "s3cr3t" {
		t.Errorf("reveal = %v, want s3cr3t", got)
	}
	if got := mustSend(t, rt, obj, "reveal_self"); got != "s3cr3t" {
		t.Errorf("self.secret = %v, want s3cr3t", got)
	}

	_, err := rt.Send(obj, "secret")
	var nme *NoMethodError
	if !errors.As(err, &nme) || nme.Reason != ReasonPrivate {
		t.Fatalf("obj.secret error = %v, want private NoMethodError", err)
	}
	if want := "private method 'secret' called for an instance of A"; nme.Error() != want {
		t.Errorf("message = %q, want %q", nme.Error(), want)
	}

	// send bypasses visibility, public_send does not.
	if got := mustSend(t, rt, obj, "send", rt.Intern("secret")); got != "s3cr3t" {
		t.Errorf("send(:secret) = %v", got)
	}
	if _, err := rt.Send(obj, "public_send", rt.Intern("secret")); !errors.As(err, &nme) {
		t.Errorf("public_send(:secret) error = %v, want NoMethodError", err)
	}
}

func TestProtectedMethodVisibility(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	b := mustClass(t, rt, "B", a)
	other := mustClass(t, rt, "Other", nil)

	if _, err := a.DefineMethodWith("token", Protected, FixedArity(0), constBody("t")); err != nil {
		t.Fatal(err)
	}
	peek := NewMethod1(func(f *Frame, x Value) (Value, error) {
		return f.SendTo(x, "token")
	})
	mustDefine(t, a, "peek", peek)
	mustDefine(t, other, "peek", peek)

	x, y := mustNew(t, rt, a), mustNew(t, rt, b)
	if got := mustSend(t, rt, x, "peek", y); got != "t" {
		t.Errorf("A#peek(B instance) = %v, want t", got)
	}

	// The shared site for "token" is now warm; an unrelated caller must
	// still be rejected on the cache hit.
	stranger := mustNew(t, rt, other)
	_, err := rt.Send(stranger, "peek", y)
	var nme *NoMethodError
	if !errors.As(err, &nme) || nme.Reason != ReasonProtected {
		t.Errorf("Other#peek error = %v, want protected NoMethodError", err)
	}
	if _, err := rt.Send(y, "token"); !errors.As(err, &nme) || nme.Reason != ReasonProtected {
		t.Errorf("top-level y.token error = %v, want protected NoMethodError", err)
	}
}

func TestSetVisibilityInSubclass(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	b := mustClass(t, rt, "B", a)
	mustDefine(t, a, "foo", constBody(1))

	if err := b.SetVisibility(Private, "foo"); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.Send(mustNew(t, rt, b), "foo"); err == nil {
		t.Error("B.new.foo should be private")
	}
	if _, err := rt.Send(mustNew(t, rt, a), "foo"); err != nil {
		t.Errorf("A.new.foo should stay public: %v", err)
	}

	var ne *NameError
	if err := b.SetVisibility(Private, "nope"); !errors.As(err, &ne) {
		t.Errorf("private(:nope) error = %v, want NameError", err)
	}
}

// ---------------------------------------------------------------------------
// Arity
// ---------------------------------------------------------------------------

func TestArityBoundaries(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	body := NewPrimitiveMethod(Arity{Required: 1, Optional: 2}, func(f *Frame, args []Value) (Value, error) {
		return int64(len(args)), nil
	})
	if _, err := a.DefineMethod("opt", body); err != nil {
		t.Fatal(err)
	}
	obj := mustNew(t, rt, a)

	for n := 0; n <= 4; n++ {
		args := make([]Value, n)
		got, err := rt.Send(obj, "opt", args...)
		if n >= 1 && n <= 3 {
			if err != nil || got != int64(n) {
				t.Errorf("opt with %d args = %v, %v", n, got, err)
			}
			continue
		}
		var ae *ArgumentError
		if !errors.As(err, &ae) {
			t.Errorf("opt with %d args error = %v, want ArgumentError", n, err)
			continue
		}
		want := fmt.Sprintf("wrong number of arguments (given %d, expected 1..3)", n)
		if ae.Error() != want {
			t.Errorf("message = %q, want %q", ae.Error(), want)
		}
	}
}

func TestArityCheckedBeforeBody(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	var calls atomic.Int64
	mustDefine(t, a, "zero", countingBody(nil, &calls))

	if _, err := rt.Send(mustNew(t, rt, a), "zero", 1); err == nil {
		t.Error("expected ArgumentError")
	}
	if calls.Load() != 0 {
		t.Error("body must not run on arity mismatch")
	}
}

// ---------------------------------------------------------------------------
// super
// ---------------------------------------------------------------------------

func TestSuperThroughModuleChain(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	b := mustClass(t, rt, "B", a)
	m := mustModule(t, rt, "M")

	appendSuper := func(tag string) Body {
		return NewMethod0(func(f *Frame) (Value, error) {
			v, err := f.ZSuper()
			if err != nil {
				return nil, err
			}
			return v.(string) + tag, nil
		})
	}
	mustDefine(t, a, "greet", constBody("A"))
	mustDefine(t, m, "greet", appendSuper("M"))
	mustDefine(t, b, "greet", appendSuper("B"))
	if err := b.Include(m); err != nil {
		t.Fatal(err)
	}

	if got := mustSend(t, rt, mustNew(t, rt, b), "greet"); got != "AMB" {
		t.Errorf("greet = %v, want AMB", got)
	}
	// A's instances reach M's super site from a different class.
	if got := mustSend(t, rt, mustNew(t, rt, a), "greet"); got != "A" {
		t.Errorf("A.new.greet = %v, want A", got)
	}
}

func TestSuperFromPrependedModule(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	p := mustModule(t, rt, "Loud")
	mustDefine(t, a, "say", constBody("hi"))
	mustDefine(t, p, "say", NewMethod0(func(f *Frame) (Value, error) {
		v, err := f.Super()
		if err != nil {
			return nil, err
		}
		return v.(string) + "!", nil
	}))
	if err := a.Prepend(p); err != nil {
		t.Fatal(err)
	}

	if got := mustSend(t, rt, mustNew(t, rt, a), "say"); got != "hi!" {
		t.Errorf("say = %v, want hi!", got)
	}
}

func TestSuperWithoutSuperclassMethod(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	mustDefine(t, a, "lonely", NewMethod0(func(f *Frame) (Value, error) {
		return f.Super()
	}))

	_, err := rt.Send(mustNew(t, rt, a), "lonely")
	var nme *NoMethodError
	if !errors.As(err, &nme) || nme.Reason != ReasonSuper {
		t.Fatalf("error = %v, want super NoMethodError", err)
	}
	if want := "super: no superclass method 'lonely' for an instance of A"; nme.Error() != want {
		t.Errorf("message = %q, want %q", nme.Error(), want)
	}
}

func TestSuperOutsideMethod(t *testing.T) {
	rt := newTestRuntime(t)
	site := rt.NewCallSite("foo", SiteSuper)
	if _, err := rt.Dispatch(nil, site, nil); !errors.Is(err, ErrSuperOutsideMethod) {
		t.Errorf("error = %v, want ErrSuperOutsideMethod", err)
	}
}

func TestAliasedMethodSuper(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	b := mustClass(t, rt, "B", a)
	mustDefine(t, a, "name", constBody("a"))
	mustDefine(t, b, "name", NewMethod0(func(f *Frame) (Value, error) {
		v, err := f.Super()
		if err != nil {
			return nil, err
		}
		return "b" + v.(string), nil
	}))
	if _, err := b.AliasMethod("label", "name"); err != nil {
		t.Fatal(err)
	}

	if got := mustSend(t, rt, mustNew(t, rt, b), "label"); got != "ba" {
		t.Errorf("label = %v, want ba", got)
	}
}

// ---------------------------------------------------------------------------
// Singleton classes
// ---------------------------------------------------------------------------

func TestSingletonMethods(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	x, y := mustNew(t, rt, a), mustNew(t, rt, a)

	s, err := rt.SingletonClassOf(x)
	if err != nil {
		t.Fatal(err)
	}
	mustDefine(t, s, "only_me", constBody(true))

	if got := mustSend(t, rt, x, "only_me"); got != true {
		t.Errorf("x.only_me = %v", got)
	}
	if _, err := rt.Send(y, "only_me"); err == nil {
		t.Error("y must not see x's singleton method")
	}
	if got := mustSend(t, rt, x, "class"); got != a {
		t.Errorf("x.class = %v, want A", got)
	}

	if _, err := rt.SingletonClassOf(int64(1)); err == nil {
		t.Error("immediates cannot have singleton classes")
	}
}

func TestClassMethodsInherit(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	b := mustClass(t, rt, "B", a)
	mustDefine(t, a.SingletonClass(), "create", NewMethod0(func(f *Frame) (Value, error) {
		return f.SendTo(f.Self, "new")
	}))

	obj := mustSend(t, rt, b, "create")
	inst, ok := obj.(*Instance)
	if !ok || inst.Class() != b {
		t.Errorf("B.create = %v, want a B instance", rt.Inspect(obj))
	}

	// Class-level lookup falls through to Class and Module instance methods.
	if got := mustSend(t, rt, b, "name"); got != "B" {
		t.Errorf("B.name = %v, want B", got)
	}
}

func TestExtend(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	m := mustModule(t, rt, "Greeter")
	mustDefine(t, m, "hello", constBody("hello"))

	x, y := mustNew(t, rt, a), mustNew(t, rt, a)
	mustSend(t, rt, x, "extend", m)
	if got := mustSend(t, rt, x, "hello"); got != "hello" {
		t.Errorf("x.hello = %v", got)
	}
	if got := mustSend(t, rt, x, "is_a?", m); got != true {
		t.Errorf("x.is_a?(Greeter) = %v, want true", got)
	}
	if _, err := rt.Send(y, "hello"); err == nil {
		t.Error("extend must only affect x")
	}
}

// ---------------------------------------------------------------------------
// method_missing and hooks
// ---------------------------------------------------------------------------

func TestUserMethodMissing(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "Ghost", nil)
	if _, err := a.DefineMethodWith("method_missing", Private, VariadicArity(1),
		NewPrimitiveMethod(VariadicArity(1), func(f *Frame, args []Value) (Value, error) {
			name := f.Runtime().Symbols.Name(args[0].(Symbol))
			return "ghost:" + name + ":" + strconv.Itoa(len(args)-1), nil
		})); err != nil {
		t.Fatal(err)
	}

	if got := mustSend(t, rt, mustNew(t, rt, a), "boo", 1, 2); got != "ghost:boo:2" {
		t.Errorf("boo = %v, want ghost:boo:2", got)
	}
}

func TestMethodMissingSuperRaises(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "Picky", nil)
	if _, err := a.DefineMethodWith("method_missing", Private, VariadicArity(1),
		NewPrimitiveMethod(VariadicArity(1), func(f *Frame, args []Value) (Value, error) {
			if f.Runtime().Symbols.Name(args[0].(Symbol)) == "ok" {
				return "handled", nil
			}
			return f.ZSuper()
		})); err != nil {
		t.Fatal(err)
	}

	obj := mustNew(t, rt, a)
	if got := mustSend(t, rt, obj, "ok"); got != "handled" {
		t.Errorf("ok = %v", got)
	}
	_, err := rt.Send(obj, "other")
	var nme *NoMethodError
	if !errors.As(err, &nme) || nme.Name != "other" {
		t.Errorf("other error = %v, want NoMethodError for other", err)
	}
}

func TestMethodMissingHook(t *testing.T) {
	hooks := Hooks{
		MethodMissing: func(caller *Frame, recv Value, name string, args []Value) (Value, bool, error) {
			if name == "dynamic" {
				return "from hook", true, nil
			}
			return nil, false, nil
		},
	}
	rt := newTestRuntimeWith(t, DefaultConfig(), WithHooks(hooks))
	a := mustClass(t, rt, "A", nil)
	obj := mustNew(t, rt, a)

	if got := mustSend(t, rt, obj, "dynamic"); got != "from hook" {
		t.Errorf("dynamic = %v", got)
	}
	var nme *NoMethodError
	if _, err := rt.Send(obj, "static"); !errors.As(err, &nme) {
		t.Errorf("static error = %v, want NoMethodError", err)
	}
}

type rubyException struct {
	class string
	cause error
}

func (e *rubyException) Error() string { return e.class + ": " + e.cause.Error() }
func (e *rubyException) Unwrap() error { return e.cause }

func TestTranslateErrorHook(t *testing.T) {
	hooks := Hooks{
		TranslateError: func(err error) error {
			var nme *NoMethodError
			if errors.As(err, &nme) {
				return &rubyException{class: "NoMethodError", cause: err}
			}
			return err
		},
	}
	rt := newTestRuntimeWith(t, DefaultConfig(), WithHooks(hooks))
	a := mustClass(t, rt, "A", nil)
	bodyErr := errors.New("boom")
	mustDefine(t, a, "fail", NewMethod0(func(f *Frame) (Value, error) { return nil, bodyErr }))
	obj := mustNew(t, rt, a)

	_, err := rt.Send(obj, "missing")
	var ex *rubyException
	if !errors.As(err, &ex) || ex.class != "NoMethodError" {
		t.Errorf("error = %v, want translated NoMethodError", err)
	}

	// Body errors propagate unchanged.
	if _, err := rt.Send(obj, "fail"); err != bodyErr {
		t.Errorf("body error = %v, want %v", err, bodyErr)
	}
}

func TestStackOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 64
	rt := newTestRuntimeWith(t, cfg)
	a := mustClass(t, rt, "A", nil)
	mustDefine(t, a, "forever", NewMethod0(func(f *Frame) (Value, error) {
		return f.Send("forever")
	}))

	_, err := rt.Send(mustNew(t, rt, a), "forever")
	var so *StackOverflowError
	if !errors.As(err, &so) {
		t.Fatalf("error = %v, want StackOverflowError", err)
	}
	if so.Depth != cfg.MaxDepth+1 {
		t.Errorf("depth = %d, want %d", so.Depth, cfg.MaxDepth+1)
	}
}

// ---------------------------------------------------------------------------
// Caching behaviour
// ---------------------------------------------------------------------------

func TestMegamorphicSiteStillDispatchesCorrectly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PICSize = 2
	rt := newTestRuntimeWith(t, cfg)

	const n = 5
	objs := make([]Value, n)
	classes := make([]*Module, n)
	for i := range objs {
		c := mustClass(t, rt, fmt.Sprintf("C%d", i), nil)
		mustDefine(t, c, "id", constBody(int64(i)))
		classes[i] = c
		objs[i] = mustNew(t, rt, c)
	}

	site := rt.NewCallSite("id", 0)
	for round := 0; round < 2; round++ {
		for i, obj := range objs {
			got, err := rt.Dispatch(nil, site, obj)
			if err != nil || got != int64(i) {
				t.Fatalf("round %d C%d.id = %v, %v", round, i, got, err)
			}
		}
	}
	if site.Cache().State() != CacheMegamorphic {
		t.Errorf("state = %v, want megamorphic", site.Cache().State())
	}
	if e := rt.MethodCache().Lookup(classes[0], "id", rt.Registry().Version()); e == nil {
		t.Error("megamorphic sends should populate the runtime method cache")
	}

	// Redefinition is still observed through the global cache.
	mustDefine(t, classes[0], "id", constBody(int64(100)))
	if got, _ := rt.Dispatch(nil, site, objs[0]); got != int64(100) {
		t.Errorf("after redefinition C0.id = %v, want 100", got)
	}
}

func TestEvictLRUSiteStaysPolymorphic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PICSize = 2
	cfg.Overflow = OverflowEvictLRU
	rt := newTestRuntimeWith(t, cfg)

	objs := make([]Value, 4)
	for i := range objs {
		c := mustClass(t, rt, fmt.Sprintf("D%d", i), nil)
		mustDefine(t, c, "id", constBody(int64(i)))
		objs[i] = mustNew(t, rt, c)
	}

	// Definitions above bump the registry; dispatch only after the last one
	// so that earlier tuples are not stale.
	site := rt.NewCallSite("id", 0)
	for i, obj := range objs {
		if got, err := rt.Dispatch(nil, site, obj); err != nil || got != int64(i) {
			t.Fatalf("D%d.id = %v, %v", i, got, err)
		}
	}
	if site.Cache().State() != CachePolymorphic {
		t.Errorf("state = %v, want polymorphic", site.Cache().State())
	}
	if site.Cache().Count() != 2 {
		t.Errorf("count = %d, want 2", site.Cache().Count())
	}
}

func TestCallSiteTableStats(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	mustDefine(t, a, "foo", constBody(1))
	obj := mustNew(t, rt, a)

	table := rt.NewCallSiteTable()
	site := table.GetOrCreate(0, "foo", 0)
	if table.GetOrCreate(0, "foo", 0) != site {
		t.Error("GetOrCreate should return the existing site")
	}
	table.GetOrCreate(4, "bar", 0)

	for i := 0; i < 4; i++ {
		if _, err := rt.Dispatch(nil, site, obj); err != nil {
			t.Fatal(err)
		}
	}

	stats := rt.ICStats()
	if stats.TotalCallSites != 2 || stats.Monomorphic != 1 || stats.Empty != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalHits != 3 || stats.TotalMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 3/1", stats.TotalHits, stats.TotalMisses)
	}

	table.Reset()
	if site.Cache().State() != CacheEmpty {
		t.Error("Reset should empty the caches")
	}
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestConcurrentDefineAndDispatch(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	mustDefine(t, a, "stable", constBody(int64(42)))
	obj := mustNew(t, rt, a)

	const definers, dispatchers, perDefiner, calls = 8, 8, 50, 500
	start := rt.Registry().Version()

	var wg sync.WaitGroup
	errs := make(chan error, definers+dispatchers)

	for d := 0; d < definers; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			for i := 0; i < perDefiner; i++ {
				name := fmt.Sprintf("m_%d_%d", d, i)
				if _, err := a.DefineMethod(name, constBody(int64(i))); err != nil {
					errs <- err
					return
				}
			}
		}(d)
	}
	for g := 0; g < dispatchers; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			site := rt.NewCallSite("stable", 0)
			for i := 0; i < calls; i++ {
				v, err := rt.Dispatch(nil, site, obj)
				if err != nil {
					errs <- err
					return
				}
				if v != int64(42) {
					errs <- fmt.Errorf("stable = %v, want 42", v)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if got, want := rt.Registry().Version(), start+definers*perDefiner; got != uint64(want) {
		t.Errorf("registry version = %d, want %d", got, want)
	}
	for d := 0; d < definers; d++ {
		for i := 0; i < perDefiner; i++ {
			name := fmt.Sprintf("m_%d_%d", d, i)
			if !a.Methods().Has(name) {
				t.Fatalf("method %s missing after concurrent definition", name)
			}
		}
	}
}

func TestConcurrentIncludeAndDispatch(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustClass(t, rt, "A", nil)
	mustDefine(t, a, "who", constBody("A"))
	obj := mustNew(t, rt, a)

	mods := make([]*Module, 16)
	for i := range mods {
		mods[i] = mustModule(t, rt, fmt.Sprintf("Mix%d", i))
		mustDefine(t, mods[i], fmt.Sprintf("extra%d", i), constBody(i))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, m := range mods {
			if err := a.Include(m); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		site := rt.NewCallSite("who", 0)
		for i := 0; i < 1000; i++ {
			if v, err := rt.Dispatch(nil, site, obj); err != nil || v != "A" {
				t.Errorf("who = %v, %v", v, err)
				return
			}
		}
	}()
	wg.Wait()

	if got := len(a.IncludedModules()); got != len(mods) {
		t.Errorf("included %d modules, want %d", got, len(mods))
	}
	for i := range mods {
		if _, err := rt.Send(obj, fmt.Sprintf("extra%d", i)); err != nil {
			t.Errorf("extra%d: %v", i, err)
		}
	}
}
