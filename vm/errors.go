package vm

import (
	"errors"
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Error kinds raised by the dispatch core
// ---------------------------------------------------------------------------
//
// The core reports failures as Go errors; the embedding turns them into
// language-level exception objects (see Hooks.TranslateError). Errors
// returned by method bodies are passed through untouched.

// ErrSuperOutsideMethod is returned for super sends without an executing
// method.
var ErrSuperOutsideMethod = errors.New("super called outside of method")

// MissingReason says why a NoMethodError was raised.
type MissingReason uint8

const (
	ReasonUndefined MissingReason = iota
	ReasonPrivate
	ReasonProtected
	ReasonSuper
)

// NoMethodError reports a send that found no accessible method and no
// method_missing handler.
type NoMethodError struct {
	Receiver Value
	Name     string
	Args     []Value
	Reason   MissingReason

	receiver string // rendered receiver description
}

func (e *NoMethodError) Error() string {
	switch e.Reason {
	case ReasonPrivate:
		return "private method '" + e.Name + "' called for " + e.receiver
	case ReasonProtected:
		return "protected method '" + e.Name + "' called for " + e.receiver
	case ReasonSuper:
		return "super: no superclass method '" + e.Name + "' for " + e.receiver
	}
	return "undefined method '" + e.Name + "' for " + e.receiver
}

// ArgumentError reports an argument count outside a method's arity.
type ArgumentError struct {
	Method   string
	Given    int
	Expected Arity
}

func (e *ArgumentError) Error() string {
	return "wrong number of arguments (given " + strconv.Itoa(e.Given) + ", expected " + e.Expected.String() + ")"
}

// NameError reports a missing method in definition APIs such as
// remove_method, undef_method and alias_method.
type NameError struct {
	Name    string
	Module  *Module
	Message string
}

func (e *NameError) Error() string { return e.Message }

// FrozenError reports an attempt to modify a frozen module or instance.
// Class is set instead of Module for instances.
type FrozenError struct {
	Module *Module
	Class  string
}

func (e *FrozenError) Error() string {
	if e.Module == nil {
		return "can't modify frozen " + e.Class
	}
	return "can't modify frozen " + e.Module.kindName() + ": " + e.Module.String()
}

// TypeError reports a value of the wrong kind passed to the core.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return e.Message }

// CyclicHierarchyError reports an include or prepend that would make the
// ancestor graph cyclic. It is also the panic value if a cycle is ever
// encountered while linearizing.
type CyclicHierarchyError struct {
	Module *Module
	Mixin  *Module
}

func (e *CyclicHierarchyError) Error() string {
	if e.Mixin == nil {
		return "cyclic hierarchy detected at " + e.Module.String()
	}
	return fmt.Sprintf("cyclic include detected: %s into %s", e.Mixin, e.Module)
}

// StackOverflowError reports dispatch nesting beyond Config.MaxDepth.
type StackOverflowError struct {
	Depth int
}

func (e *StackOverflowError) Error() string { return "stack level too deep" }

// describeReceiver renders the "for ..." part of NoMethodError messages.
func (rt *Runtime) describeReceiver(v Value) string {
	switch r := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(r)
	case *Module:
		if r.kind == KindModule {
			return "module " + r.String()
		}
		return "class " + r.String()
	}
	return "an instance of " + rt.ClassOf(v).nonSingleton().String()
}

// nonSingleton returns the first non-singleton class at or above m.
func (m *Module) nonSingleton() *Module {
	for c := m; c != nil; c = c.Superclass() {
		if c.kind != KindSingleton {
			return c
		}
	}
	return m
}

// ZeroDivisionError reports integer division by zero.
type ZeroDivisionError struct{}

func (e *ZeroDivisionError) Error() string { return "divided by 0" }

// RangeError reports an Integer result that does not fit in 64 bits.
type RangeError struct {
	Message string
}

func (e *RangeError) Error() string { return e.Message }

// ComparisonError reports a Comparable operator whose <=> returned nil.
type ComparisonError struct {
	Left, Right string // class names
}

func (e *ComparisonError) Error() string {
	return "comparison of " + e.Left + " with " + e.Right + " failed"
}
