package snapshot

import (
	"fmt"
	"slices"
)

// ChangeKind classifies one difference between two snapshots.
type ChangeKind uint8

const (
	ModuleAdded ChangeKind = iota
	ModuleRemoved
	AncestorsChanged
	MethodAdded
	MethodRemoved
	MethodChanged
)

func (k ChangeKind) String() string {
	switch k {
	case ModuleAdded:
		return "+module"
	case ModuleRemoved:
		return "-module"
	case AncestorsChanged:
		return "~ancestors"
	case MethodAdded:
		return "+method"
	case MethodRemoved:
		return "-method"
	case MethodChanged:
		return "~method"
	}
	return "?"
}

// Change is one difference, reported against the module's display name.
type Change struct {
	Kind   ChangeKind
	Module string
	Method string
	Detail string
}

func (c Change) String() string {
	s := c.Kind.String() + " " + c.Module
	if c.Method != "" {
		s += "#" + c.Method
	}
	if c.Detail != "" {
		s += ": " + c.Detail
	}
	return s
}

// Diff reports how after differs from before. Modules are matched by
// display name and methods by name; the order of changes follows after,
// with removals last.
func Diff(before, after *Snapshot) []Change {
	var changes []Change
	for _, am := range after.Modules {
		bm, ok := before.Find(am.Name)
		if !ok {
			changes = append(changes, Change{Kind: ModuleAdded, Module: am.Name})
			continue
		}
		if !slices.Equal(bm.Ancestors, am.Ancestors) {
			changes = append(changes, Change{
				Kind:   AncestorsChanged,
				Module: am.Name,
				Detail: fmt.Sprintf("%v -> %v", bm.Ancestors, am.Ancestors),
			})
		}
		changes = append(changes, diffMethods(am.Name, bm.Methods, am.Methods)...)
	}
	for _, bm := range before.Modules {
		if _, ok := after.Find(bm.Name); !ok {
			changes = append(changes, Change{Kind: ModuleRemoved, Module: bm.Name})
		}
	}
	return changes
}

func diffMethods(module string, before, after []Method) []Change {
	index := make(map[string]Method, len(before))
	for _, m := range before {
		index[m.Name] = m
	}

	var changes []Change
	seen := make(map[string]bool, len(after))
	for _, am := range after {
		seen[am.Name] = true
		bm, ok := index[am.Name]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: MethodAdded, Module: module, Method: am.Name})
		case bm != am:
			changes = append(changes, Change{Kind: MethodChanged, Module: module, Method: am.Name, Detail: describeChange(bm, am)})
		}
	}
	for _, bm := range before {
		if !seen[bm.Name] {
			changes = append(changes, Change{Kind: MethodRemoved, Module: module, Method: bm.Name})
		}
	}
	return changes
}

func describeChange(before, after Method) string {
	switch {
	case before.Undefined != after.Undefined:
		if after.Undefined {
			return "undefined"
		}
		return "redefined"
	case before.Visibility != after.Visibility:
		return before.Visibility + " -> " + after.Visibility
	case before.Owner != after.Owner:
		return "owner " + before.Owner + " -> " + after.Owner
	}
	return "arity " + arityString(before) + " -> " + arityString(after)
}
