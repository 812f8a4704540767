package vm

import (
	"strconv"
	"sync/atomic"
)

// Visibility controls which sends may reach a method.
type Visibility uint8

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "visibility(" + strconv.Itoa(int(v)) + ")"
}

// ParseVisibility maps "public", "protected" and "private" to a Visibility.
func ParseVisibility(s string) (Visibility, bool) {
	switch s {
	case "", "public":
		return Public, true
	case "protected":
		return Protected, true
	case "private":
		return Private, true
	}
	return Public, false
}

// ---------------------------------------------------------------------------
// Arity
// ---------------------------------------------------------------------------

// Arity describes how many positional arguments a method accepts:
// Required mandatory ones, up to Optional more, and any number beyond
// that when Rest is set.
type Arity struct {
	Required int
	Optional int
	Rest     bool
}

// FixedArity returns an arity accepting exactly n arguments.
func FixedArity(n int) Arity { return Arity{Required: n} }

// VariadicArity returns an arity accepting required or more arguments.
func VariadicArity(required int) Arity { return Arity{Required: required, Rest: true} }

// Accepts reports whether n arguments satisfy the arity.
func (a Arity) Accepts(n int) bool {
	if n < a.Required {
		return false
	}
	return a.Rest || n <= a.Required+a.Optional
}

// Max returns the maximum accepted argument count, or -1 if unbounded.
func (a Arity) Max() int {
	if a.Rest {
		return -1
	}
	return a.Required + a.Optional
}

// Value returns the arity the way Method#arity reports it: the required
// count for fixed methods, -(required+1) when optional or rest arguments
// are accepted.
func (a Arity) Value() int {
	if a.Optional > 0 || a.Rest {
		return -(a.Required + 1)
	}
	return a.Required
}

// String renders the expected-count part of an ArgumentError message:
// "1", "1..3" or "1+".
func (a Arity) String() string {
	switch {
	case a.Rest:
		return strconv.Itoa(a.Required) + "+"
	case a.Optional > 0:
		return strconv.Itoa(a.Required) + ".." + strconv.Itoa(a.Required+a.Optional)
	default:
		return strconv.Itoa(a.Required)
	}
}

// ---------------------------------------------------------------------------
// MethodEntry
// ---------------------------------------------------------------------------

// entrySerial hands out definition versions. It is process-wide so entries
// created by different runtimes never compare equal by version.
var entrySerial atomic.Uint64

// MethodEntry is the immutable descriptor stored in a method table. A
// redefinition always produces a fresh entry; existing entries are never
// modified after publication, so call-site caches may hold them without
// synchronisation.
type MethodEntry struct {
	name       string
	original   string // name at definition; super looks this up
	owner      *Module
	visibility Visibility
	arity      Arity
	body       Body
	version    uint64
	undefined  bool
}

// NewMethodEntry creates an entry owned by owner.
func NewMethodEntry(owner *Module, name string, vis Visibility, arity Arity, body Body) *MethodEntry {
	return &MethodEntry{
		name:       name,
		original:   name,
		owner:      owner,
		visibility: vis,
		arity:      arity,
		body:       body,
		version:    entrySerial.Add(1),
	}
}

// newUndefinedEntry creates the marker installed by undef_method.
func newUndefinedEntry(owner *Module, name string) *MethodEntry {
	return &MethodEntry{
		name:      name,
		original:  name,
		owner:     owner,
		version:   entrySerial.Add(1),
		undefined: true,
	}
}

func (e *MethodEntry) Name() string           { return e.name }
func (e *MethodEntry) OriginalName() string   { return e.original }
func (e *MethodEntry) Owner() *Module         { return e.owner }
func (e *MethodEntry) Visibility() Visibility { return e.visibility }
func (e *MethodEntry) Arity() Arity           { return e.arity }
func (e *MethodEntry) Body() Body             { return e.body }

// Version is the definition version assigned when the entry was created.
// Later definitions always carry larger versions.
func (e *MethodEntry) Version() uint64 { return e.version }

// IsUndefined reports whether this entry is an undef_method marker.
func (e *MethodEntry) IsUndefined() bool { return e.undefined }

// withVisibility returns a copy with a new visibility. The copy keeps the
// original owner, so super from it still continues above the definer even
// when it is published in a subclass table.
func (e *MethodEntry) withVisibility(vis Visibility) *MethodEntry {
	return &MethodEntry{
		name:       e.name,
		original:   e.original,
		owner:      e.owner,
		visibility: vis,
		arity:      e.arity,
		body:       e.body,
		version:    entrySerial.Add(1),
	}
}

// renamed returns a copy published under a different name, as alias_method
// does. The body, owner and original name are shared with the source entry
// so that super from an alias continues with the original method above the
// original definer.
func (e *MethodEntry) renamed(name string) *MethodEntry {
	return &MethodEntry{
		name:       name,
		original:   e.original,
		owner:      e.owner,
		visibility: e.visibility,
		arity:      e.arity,
		body:       e.body,
		version:    entrySerial.Add(1),
	}
}

func (e *MethodEntry) String() string {
	if e == nil {
		return "<nil method>"
	}
	return e.owner.String() + "#" + e.name
}
