package manifest

import (
	"fmt"
	"sort"

	"github.com/chazu/garnet/vm"
)

// Build resolves m's dependencies and defines their declarations, then
// m's own, on rt. Within one manifest a declaration is built after every
// declaration it names as superclass or mixin.
func Build(rt *vm.Runtime, m *Manifest) error {
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		return err
	}
	for _, d := range deps {
		if err := build(rt, d.Manifest, d.Namespace); err != nil {
			return fmt.Errorf("dependency %s: %w", d.Name, err)
		}
	}
	return build(rt, m, m.Project.Namespace)
}

type decl struct {
	path  string
	class bool
	ModuleDecl
}

func build(rt *vm.Runtime, m *Manifest, ns string) error {
	byPath := make(map[string]*decl)
	var all []*decl
	add := func(ds []ModuleDecl, class bool) error {
		for _, d := range ds {
			p := qualify(ns, d.Name)
			if byPath[p] != nil {
				return fmt.Errorf("%s declared twice", p)
			}
			dd := &decl{path: p, class: class, ModuleDecl: d}
			byPath[p] = dd
			all = append(all, dd)
		}
		return nil
	}
	if err := add(m.Modules, false); err != nil {
		return err
	}
	if err := add(m.Classes, true); err != nil {
		return err
	}

	order, err := buildOrder(all, byPath, ns)
	if err != nil {
		return err
	}
	for _, d := range order {
		if err := d.apply(rt, ns); err != nil {
			return fmt.Errorf("%s: %w", d.path, err)
		}
	}
	log.Infof("built %d declarations (namespace %q)", len(order), ns)
	return nil
}

// buildOrder sorts declarations so that referenced ones come first,
// keeping file order otherwise.
func buildOrder(all []*decl, byPath map[string]*decl, ns string) ([]*decl, error) {
	const (
		unseen = iota
		visiting
		done
	)
	state := make(map[*decl]int)
	var order []*decl

	var visit func(d *decl) error
	visit = func(d *decl) error {
		switch state[d] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("cyclic declaration through %s", d.path)
		}
		state[d] = visiting
		for _, ref := range d.refs() {
			dep := byPath[qualify(ns, ref)]
			if dep == nil {
				dep = byPath[ref]
			}
			if dep == nil || dep == d {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[d] = done
		order = append(order, d)
		return nil
	}

	for _, d := range all {
		if err := visit(d); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (d *decl) refs() []string {
	var refs []string
	if d.Superclass != "" {
		refs = append(refs, d.Superclass)
	}
	refs = append(refs, d.Include...)
	refs = append(refs, d.Prepend...)
	return append(refs, d.Extend...)
}

func (d *decl) apply(rt *vm.Runtime, ns string) error {
	var mod *vm.Module
	var err error
	if d.class {
		var super *vm.Module
		if d.Superclass != "" {
			if super, err = lookup(rt, ns, d.Superclass); err != nil {
				return err
			}
		}
		mod, err = rt.DefineClass(d.path, super)
	} else {
		mod, err = rt.DefineModule(d.path)
	}
	if err != nil {
		return err
	}

	for _, step := range []struct {
		names []string
		fn    func(*vm.Module) error
	}{
		{d.Include, mod.Include},
		{d.Prepend, mod.Prepend},
		{d.Extend, func(x *vm.Module) error { return rt.Extend(mod, x) }},
	} {
		for _, name := range step.names {
			x, err := lookup(rt, ns, name)
			if err != nil {
				return err
			}
			if err := step.fn(x); err != nil {
				return err
			}
		}
	}

	if err := defineAll(rt, mod, d.Methods); err != nil {
		return err
	}
	if len(d.SingletonMethods) > 0 {
		if err := defineAll(rt, mod.SingletonClass(), d.SingletonMethods); err != nil {
			return err
		}
	}

	for _, newName := range sortedKeys(d.Aliases) {
		if _, err := mod.AliasMethod(newName, d.Aliases[newName]); err != nil {
			return err
		}
	}
	if len(d.Private) > 0 {
		if err := mod.SetVisibility(vm.Private, d.Private...); err != nil {
			return err
		}
	}
	for _, name := range d.Undef {
		if err := mod.UndefineMethod(name); err != nil {
			return err
		}
	}
	if d.Freeze {
		mod.Freeze()
	}
	log.Debugf("declared %s with %d methods", d.path, len(d.Methods)+len(d.SingletonMethods))
	return nil
}

// defineAll publishes every method of one declaration as a single batch.
func defineAll(rt *vm.Runtime, mod *vm.Module, methods []MethodDecl) error {
	if len(methods) == 0 {
		return nil
	}
	entries := make([]*vm.MethodEntry, 0, len(methods))
	for _, md := range methods {
		body, err := NewBody(rt, md)
		if err != nil {
			return fmt.Errorf("method %s: %w", md.Name, err)
		}
		arity, err := md.Arity()
		if err != nil {
			return fmt.Errorf("method %s: %w", md.Name, err)
		}
		vis, _ := vm.ParseVisibility(md.Visibility)
		entries = append(entries, vm.NewMethodEntry(mod, md.Name, vis, arity, body))
	}
	return mod.DefineMethods(entries)
}

// lookup resolves a constant reference from inside namespace ns.
func lookup(rt *vm.Runtime, ns, name string) (*vm.Module, error) {
	if m := rt.Constants.LookupInNamespace(ns, name); m != nil {
		return m, nil
	}
	return nil, &vm.NameError{Name: name, Message: "uninitialized constant " + name}
}

func qualify(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "::" + name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
