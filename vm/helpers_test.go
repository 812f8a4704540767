package vm

import (
	"sync/atomic"
	"testing"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	return newTestRuntimeWith(t, DefaultConfig())
}

func newTestRuntimeWith(t *testing.T, cfg Config, opts ...Option) *Runtime {
	t.Helper()
	rt, err := NewRuntime(cfg, opts...)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	return rt
}

func constBody(v Value) Body {
	return NewMethod0(func(f *Frame) (Value, error) { return v, nil })
}

// countingBody returns v and records how often it ran.
func countingBody(v Value, calls *atomic.Int64) Body {
	return NewMethod0(func(f *Frame) (Value, error) {
		calls.Add(1)
		return v, nil
	})
}

func mustClass(t *testing.T, rt *Runtime, name string, super *Module) *Module {
	t.Helper()
	c, err := rt.DefineClass(name, super)
	if err != nil {
		t.Fatalf("DefineClass(%s): %v", name, err)
	}
	return c
}

func mustModule(t *testing.T, rt *Runtime, name string) *Module {
	t.Helper()
	m, err := rt.DefineModule(name)
	if err != nil {
		t.Fatalf("DefineModule(%s): %v", name, err)
	}
	return m
}

func mustDefine(t *testing.T, m *Module, name string, body Body) *MethodEntry {
	t.Helper()
	e, err := m.DefineMethod(name, body)
	if err != nil {
		t.Fatalf("DefineMethod(%s#%s): %v", m, name, err)
	}
	return e
}

func mustNew(t *testing.T, rt *Runtime, class *Module, args ...Value) Value {
	t.Helper()
	obj, err := rt.Send(class, "new", args...)
	if err != nil {
		t.Fatalf("%s.new: %v", class, err)
	}
	return obj
}

func mustSend(t *testing.T, rt *Runtime, recv Value, name string, args ...Value) Value {
	t.Helper()
	v, err := rt.Send(recv, name, args...)
	if err != nil {
		t.Fatalf("send %s to %s: %v", name, rt.Inspect(recv), err)
	}
	return v
}

func moduleNames(mods []*Module) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
