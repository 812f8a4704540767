package manifest

import (
	"fmt"
	"sync/atomic"

	"github.com/chazu/garnet/vm"
)

// Body kinds a manifest method can use:
//
//	const    returns value (nil when unset)
//	self     returns the receiver
//	args     returns the arguments as a list
//	send     sends target to self with args, or the received arguments
//	super    calls super with args, or bare super; a string value is
//	         prepended to a string result
//	counter  returns how many times the method has run
//	raise    fails with value as the message
var bodyKinds = map[string]struct{}{
	"const":   {},
	"self":    {},
	"args":    {},
	"send":    {},
	"super":   {},
	"counter": {},
	"raise":   {},
}

func (md *MethodDecl) body() string {
	if md.Body == "" {
		return "const"
	}
	return md.Body
}

// RaisedError is returned by raise bodies.
type RaisedError struct {
	Method  string
	Message string
}

func (e *RaisedError) Error() string {
	return e.Message + " (raised by " + e.Method + ")"
}

// NewBody builds the canned body md declares.
func NewBody(rt *vm.Runtime, md MethodDecl) (vm.Body, error) {
	arity, err := md.Arity()
	if err != nil {
		return nil, err
	}
	value := ToValue(rt, md.Value)
	args := ToValues(rt, md.Args)

	var fn vm.PrimitiveFunc
	switch md.body() {
	case "const":
		fn = func(f *vm.Frame, _ []vm.Value) (vm.Value, error) { return value, nil }
	case "self":
		fn = func(f *vm.Frame, _ []vm.Value) (vm.Value, error) { return f.Self, nil }
	case "args":
		fn = func(f *vm.Frame, in []vm.Value) (vm.Value, error) {
			return append([]vm.Value{}, in...), nil
		}
	case "send":
		// One call site per body, so the target send keeps its own cache.
		site := rt.NewCallSite(md.Target, vm.SiteImplicitSelf)
		fn = func(f *vm.Frame, in []vm.Value) (vm.Value, error) {
			if md.Args != nil {
				in = args
			}
			return f.Call(site, f.Self, in...)
		}
	case "super":
		fn = func(f *vm.Frame, _ []vm.Value) (vm.Value, error) {
			var v vm.Value
			var err error
			if md.Args != nil {
				v, err = f.Super(args...)
			} else {
				v, err = f.ZSuper()
			}
			if err != nil {
				return nil, err
			}
			if prefix, ok := value.(string); ok {
				if s, ok := v.(string); ok {
					return prefix + s, nil
				}
			}
			return v, nil
		}
	case "counter":
		var n atomic.Int64
		fn = func(f *vm.Frame, _ []vm.Value) (vm.Value, error) { return n.Add(1), nil }
	case "raise":
		msg := fmt.Sprint(md.Value)
		fn = func(f *vm.Frame, _ []vm.Value) (vm.Value, error) {
			return nil, &RaisedError{Method: md.Name, Message: msg}
		}
	default:
		return nil, fmt.Errorf("unknown body %q", md.Body)
	}
	return vm.NewPrimitiveMethod(arity, fn), nil
}

// ToValue converts a decoded TOML value into a runtime value. Strings of
// the form ":name" become symbols; arrays convert element-wise.
func ToValue(rt *vm.Runtime, v any) vm.Value {
	switch x := v.(type) {
	case string:
		if len(x) > 1 && x[0] == ':' {
			return rt.Intern(x[1:])
		}
		return x
	case []any:
		return ToValues(rt, x)
	case int:
		return int64(x)
	}
	return v
}

// ToValues converts a TOML array. A nil slice stays nil.
func ToValues(rt *vm.Runtime, vs []any) []vm.Value {
	if vs == nil {
		return nil
	}
	out := make([]vm.Value, len(vs))
	for i, v := range vs {
		out[i] = ToValue(rt, v)
	}
	return out
}
