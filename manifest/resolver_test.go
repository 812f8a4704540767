package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveNamespace(t *testing.T) {
	shapes := &Manifest{Project: Project{Name: "shapes", Namespace: "Geometry"}}

	tests := []struct {
		name        string
		depName     string
		dep         Dependency
		depManifest *Manifest
		wantNS      string
		wantErr     string
	}{
		{
			name:        "dependency name only",
			depName:     "http-client",
			dep:         Dependency{Path: "../http-client"},
			depManifest: &Manifest{Project: Project{Name: "http-client"}},
			wantNS:      "HttpClient",
		},
		{
			name:        "no manifest loaded",
			depName:     "json_parser",
			dep:         Dependency{Path: "vendor/json"},
			depManifest: nil,
			wantNS:      "JsonParser",
		},
		{
			name:        "dependency declares its own namespace",
			depName:     "shapes",
			dep:         Dependency{Path: "../shapes"},
			depManifest: shapes,
			wantNS:      "Geometry",
		},
		{
			name:        "consumer renames a declared namespace",
			depName:     "shapes",
			dep:         Dependency{Path: "../shapes", Namespace: "Geo::Shapes"},
			depManifest: shapes,
			wantNS:      "Geo::Shapes",
		},
		{
			name:        "core class under a consumer root",
			depName:     "bigint",
			dep:         Dependency{Path: "../bigint", Namespace: "Math::Integer"},
			depManifest: nil,
			wantNS:      "Math::Integer",
		},
		{
			name:        "name folds onto a core class",
			depName:     "integer",
			dep:         Dependency{Path: "../integer"},
			depManifest: nil,
			wantErr:     `"Integer"`,
		},
		{
			name:        "dependency claims a core module",
			depName:     "ordering",
			dep:         Dependency{Path: "../ordering"},
			depManifest: &Manifest{Project: Project{Namespace: "Comparable"}},
			wantErr:     `"Comparable"`,
		},
		{
			name:        "consumer override into core is still refused",
			depName:     "shapes",
			dep:         Dependency{Path: "../shapes", Namespace: "Object::Shapes"},
			depManifest: shapes,
			wantErr:     `"Object::Shapes"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ns, err := resolveNamespace(tc.depName, tc.dep, tc.depManifest)
			if tc.wantErr != "" {
				if err == nil {
					t.Fatalf("resolved to %q, want an error", ns)
				}
				if !strings.Contains(err.Error(), tc.wantErr) {
					t.Errorf("error %q does not name %s", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ns != tc.wantNS {
				t.Errorf("namespace = %q, want %q", ns, tc.wantNS)
			}
		})
	}
}

func TestLoadDependencyNamespaceOverride(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "canvas"

[dependencies]
shapes = { path = "../shapes", namespace = "Geo::Shapes" }
colors = { path = "../colors" }
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := m.Dependencies["shapes"]; got.Path != "../shapes" || got.Namespace != "Geo::Shapes" {
		t.Errorf("shapes = %+v, want path ../shapes under Geo::Shapes", got)
	}
	if got := m.Dependencies["colors"]; got.Namespace != "" {
		t.Errorf("colors.Namespace = %q, want empty", got.Namespace)
	}
}

func TestResolveTransitiveOrder(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"app", "ui", "core"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	writeManifest(t, filepath.Join(root, "core"), "[project]\nname = \"core-lib\"\n")
	writeManifest(t, filepath.Join(root, "ui"), `
[project]
namespace = "Ui"

[dependencies]
core = { path = "../core" }
`)
	writeManifest(t, filepath.Join(root, "app"), `
[dependencies]
ui = { path = "../ui" }
`)

	m, err := Load(filepath.Join(root, "app"))
	if err != nil {
		t.Fatal(err)
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("resolved %d deps, want 2", len(deps))
	}
	if deps[0].Name != "core" || deps[1].Name != "ui" {
		t.Errorf("order = %s, %s; want core, ui", deps[0].Name, deps[1].Name)
	}
	if deps[0].Namespace != "Core" || deps[1].Namespace != "Ui" {
		t.Errorf("namespaces = %s, %s", deps[0].Namespace, deps[1].Namespace)
	}
}

func TestResolveCycle(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a", "b"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	writeManifest(t, filepath.Join(root, "a"), "[dependencies]\nb = { path = \"../b\" }\n")
	writeManifest(t, filepath.Join(root, "b"), "[dependencies]\na = { path = \"../a\" }\n")

	m, err := Load(filepath.Join(root, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewResolver(m).Resolve(); err == nil {
		t.Error("expected a dependency cycle error")
	}
}

func TestResolveMissingPath(t *testing.T) {
	m := &Manifest{
		Dir:          t.TempDir(),
		Dependencies: map[string]Dependency{"gone": {Path: "does-not-exist"}},
	}
	if _, err := NewResolver(m).Resolve(); err == nil {
		t.Error("expected an error for a missing dependency path")
	}

	m.Dependencies = map[string]Dependency{"nopath": {}}
	if _, err := NewResolver(m).Resolve(); err == nil {
		t.Error("expected an error for a dependency without a path")
	}
}
