package manifest

import (
	"strings"
	"testing"

	"github.com/chazu/garnet/vm"
)

func TestToPascalCase(t *testing.T) {
	tests := []struct {
		depName string
		want    string
	}{
		{"geometry", "Geometry"},
		{"http-client", "HttpClient"},
		{"json_parser", "JsonParser"},
		{"rubyGems", "RubyGems"},
		{"method-cache", "MethodCache"},
		{"shapes_2d", "Shapes2d"},
		{"MRO", "Mro"},
		{"--", ""},
		{"", ""},
	}

	for _, tc := range tests {
		if got := ToPascalCase(tc.depName); got != tc.want {
			t.Errorf("ToPascalCase(%q) = %q, want %q", tc.depName, got, tc.want)
		}
	}
}

// Every constant a fresh runtime installs must be refused as a namespace
// root, and classified as the kind the runtime gave it.
func TestBootConstantsAreReserved(t *testing.T) {
	rt, err := vm.NewRuntime(vm.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	paths := rt.Constants.Paths()
	if len(paths) == 0 {
		t.Fatal("runtime booted without constants")
	}
	for _, p := range paths {
		if strings.Contains(p, "::") {
			continue
		}
		if !IsReservedNamespace(p) {
			t.Errorf("boot constant %s is not reserved", p)
		}
		if !IsReservedNamespace(p + "::Shapes") {
			t.Errorf("%s::Shapes should be rejected by its root", p)
		}
		mod := rt.Constants.Lookup(p)
		if mod.IsClass() != IsCoreClass(p) || mod.IsClass() == IsCoreModule(p) {
			t.Errorf("%s: IsCoreClass=%v IsCoreModule=%v, runtime IsClass=%v",
				p, IsCoreClass(p), IsCoreModule(p), mod.IsClass())
		}
	}
}

func TestIsReservedNamespace(t *testing.T) {
	tests := []struct {
		ns   string
		want bool
	}{
		{"Geometry", false},
		{"Geo::Shapes", false},
		{"Shapes::String", false},
		{"Shapes::Comparable", false},
		{"Comparable::Shapes", true},
		{"Numeric::Vectors", true},
		{"Strings", false},
		{"Objects", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := IsReservedNamespace(tc.ns); got != tc.want {
			t.Errorf("IsReservedNamespace(%q) = %v, want %v", tc.ns, got, tc.want)
		}
	}
}
