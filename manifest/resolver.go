package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolvedDep is a path dependency with its manifest loaded and its
// namespace chosen.
type ResolvedDep struct {
	Name      string
	Dir       string // absolute directory of the dependency's garnet.toml
	Namespace string
	Manifest  *Manifest
}

// Resolver orders the dependencies of a root manifest.
type Resolver struct {
	manifest *Manifest
}

// NewResolver returns a resolver for m's [dependencies].
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve loads every dependency, transitively, and returns them so that
// each one precedes the manifests that depend on it. A dependency reached
// twice under the same name is built once. Reaching a directory that is
// still being resolved is a cycle.
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	w := &depWalker{
		done:   make(map[string]bool),
		active: make(map[string]bool),
	}
	if r.manifest.Dir != "" {
		w.active[r.manifest.Dir] = true
	}
	if err := w.walk(r.manifest); err != nil {
		return nil, err
	}
	return w.order, nil
}

type depWalker struct {
	done   map[string]bool // dependency names already in order
	active map[string]bool // directories on the current path
	order  []ResolvedDep
}

func (w *depWalker) walk(m *Manifest) error {
	for _, name := range sortedKeys(m.Dependencies) {
		if w.done[name] {
			continue
		}
		rd, err := resolveOne(m, name, m.Dependencies[name])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		if w.active[rd.Dir] {
			return fmt.Errorf("resolving %s: dependency cycle through %s", name, rd.Dir)
		}

		w.active[rd.Dir] = true
		err = w.walk(rd.Manifest)
		delete(w.active, rd.Dir)
		if err != nil {
			return err
		}

		w.done[name] = true
		w.order = append(w.order, *rd)
	}
	return nil
}

// resolveNamespace picks the namespace a dependency's constants live under.
// An explicit namespace in the consumer's [dependencies] entry wins, then
// the dependency's own [project] namespace, then the PascalCase form of
// the dependency name.
func resolveNamespace(name string, dep Dependency, depManifest *Manifest) (string, error) {
	ns := ToPascalCase(name)
	if depManifest != nil && depManifest.Project.Namespace != "" {
		ns = depManifest.Project.Namespace
	}
	if dep.Namespace != "" {
		ns = dep.Namespace
	}
	if IsReservedNamespace(ns) {
		return "", fmt.Errorf("dependency %q would define constants under core constant %q; set namespace in its [dependencies] entry", name, ns)
	}
	return ns, nil
}

// resolveOne locates and loads dependency name of m. Relative paths are
// taken from m's directory.
func resolveOne(m *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path == "" {
		return nil, fmt.Errorf("dependency %q needs a path", name)
	}
	dir := dep.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(m.Dir, dir)
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("bad path %q: %w", dep.Path, err)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("dependency %q: %w", name, err)
	}

	depManifest, err := Load(dir)
	if err != nil {
		return nil, err
	}
	ns, err := resolveNamespace(name, dep, depManifest)
	if err != nil {
		return nil, err
	}
	return &ResolvedDep{Name: name, Dir: dir, Namespace: ns, Manifest: depManifest}, nil
}
