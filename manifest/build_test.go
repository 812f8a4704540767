package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/garnet/vm"
)

const chainManifest = `
[runtime]
name = "chain"

# Declared before its superclass and mixins on purpose.
[[class]]
name = "B"
superclass = "A"
include = ["M"]
prepend = ["P"]
methods = [
  { name = "who", body = "super", value = "B>" },
  { name = "count", body = "counter" },
  { name = "echo", body = "args", rest = true },
  { name = "relay", body = "send", target = "who" },
  { name = "boom", body = "raise", value = "kaput" },
]
aliases = { tally = "count" }
undef = ["hidden"]

[[class]]
name = "A"
methods = [
  { name = "who", body = "const", value = "A" },
  { name = "hidden", body = "const", value = 1 },
]
singleton-methods = [
  { name = "make", body = "send", target = "new" },
]

[[module]]
name = "M"
methods = [{ name = "who", body = "super", value = "M>" }]

[[module]]
name = "P"
methods = [{ name = "who", body = "super", value = "P>" }]
`

func buildFrom(t *testing.T, content string) (*vm.Runtime, *Manifest) {
	t.Helper()
	m, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rt, err := m.NewRuntime()
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	return rt, m
}

func TestBuildOrdersDeclarations(t *testing.T) {
	rt, _ := buildFrom(t, chainManifest)

	b := rt.Constants.Lookup("B")
	if b == nil {
		t.Fatal("B not defined")
	}
	var names []string
	for _, m := range b.Ancestors() {
		names = append(names, m.String())
	}
	got := strings.Join(names, " ")
	if want := "P B M A Object Kernel BasicObject"; got != want {
		t.Errorf("B.ancestors = %s, want %s", got, want)
	}
	if rt.Config().Name != "chain" {
		t.Errorf("runtime name = %q", rt.Config().Name)
	}
}

func TestBuiltBodies(t *testing.T) {
	rt, _ := buildFrom(t, chainManifest)
	b := rt.Constants.Lookup("B")
	obj, err := rt.Send(b, "new")
	if err != nil {
		t.Fatal(err)
	}

	send := func(name string, args ...vm.Value) vm.Value {
		t.Helper()
		v, err := rt.Send(obj, name, args...)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		return v
	}

	if got := send("who"); got != "P>B>M>A" {
		t.Errorf("who = %v, want P>B>M>A", got)
	}
	if got := send("relay"); got != "P>B>M>A" {
		t.Errorf("relay = %v, want P>B>M>A", got)
	}
	send("count")
	if got := send("count"); got != int64(2) {
		t.Errorf("count = %v, want 2", got)
	}
	// The alias shares the counter's body.
	if got := send("tally"); got != int64(3) {
		t.Errorf("tally = %v, want 3", got)
	}
	if got := rt.Inspect(send("echo", int64(1), ":x")); got != `[1, ":x"]` {
		t.Errorf("echo = %s", got)
	}

	var re *RaisedError
	if _, err := rt.Send(obj, "boom"); !errors.As(err, &re) || re.Message != "kaput" {
		t.Errorf("boom error = %v, want RaisedError kaput", err)
	}
	var nme *vm.NoMethodError
	if _, err := rt.Send(obj, "hidden"); !errors.As(err, &nme) {
		t.Errorf("hidden error = %v, want NoMethodError", err)
	}

	made, err := rt.Send(rt.Constants.Lookup("A"), "make")
	if err != nil {
		t.Fatal(err)
	}
	if rt.ClassOf(made) != rt.Constants.Lookup("A") {
		t.Errorf("A.make returned %s", rt.Inspect(made))
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing superclass", "[[class]]\nname = \"A\"\nsuperclass = \"Nope\"\n", "uninitialized constant Nope"},
		{"cycle", "[[class]]\nname = \"A\"\nsuperclass = \"B\"\n[[class]]\nname = \"B\"\nsuperclass = \"A\"\n", "cyclic declaration"},
		{"twice", "[[class]]\nname = \"A\"\n[[class]]\nname = \"A\"\n", "declared twice"},
		{"include class", "[[class]]\nname = \"A\"\ninclude = [\"String\"]\n", ""},
		{"alias missing", "[[class]]\nname = \"A\"\naliases = { b = \"nope\" }\n", "nope"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Parse([]byte(tc.content))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			_, err = m.NewRuntime()
			if err == nil {
				t.Fatal("NewRuntime succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestBuildFrozenClass(t *testing.T) {
	rt, _ := buildFrom(t, "[[class]]\nname = \"Sealed\"\nfreeze = true\n")
	var fe *vm.FrozenError
	if _, err := rt.Constants.Lookup("Sealed").DefineMethod("x", vm.NewMethod0(func(f *vm.Frame) (vm.Value, error) {
		return nil, nil
	})); !errors.As(err, &fe) {
		t.Errorf("define on frozen class error = %v, want FrozenError", err)
	}
}

func TestBuildDependencies(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"app", "shapes"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	writeManifest(t, filepath.Join(root, "shapes"), `
[[class]]
name = "Shape"
methods = [{ name = "sides", body = "const", value = 0 }]

[[class]]
name = "Square"
superclass = "Shape"
methods = [{ name = "sides", body = "const", value = 4 }]
`)
	writeManifest(t, filepath.Join(root, "app"), `
[dependencies]
shapes = { path = "../shapes" }

[[class]]
name = "Tile"
superclass = "Shapes::Square"

[[send]]
instance = "Tile"
method = "sides"
expect = 4

[[send]]
instance = "Shapes::Shape"
method = "sides"
expect = 0
`)

	m, err := Load(filepath.Join(root, "app"))
	if err != nil {
		t.Fatal(err)
	}
	rt, err := m.NewRuntime()
	if err != nil {
		t.Fatalf("NewRuntime failed: %v", err)
	}
	if sq := rt.Constants.Lookup("Shapes::Square"); sq == nil || sq.Superclass() != rt.Constants.Lookup("Shapes::Shape") {
		t.Fatalf("Shapes::Square = %v", sq)
	}

	results, err := m.Run(context.Background(), rt)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("%s: %s", r.Describe(rt), r.Detail)
		}
	}
}
