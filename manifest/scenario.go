package manifest

import (
	"context"
	"fmt"
	"strings"

	"github.com/chazu/garnet/vm"
)

// Result is the outcome of one [[send]] line.
type Result struct {
	Index  int
	Send   SendDecl
	Value  vm.Value
	Err    error
	Passed bool
	Detail string
}

// Describe renders the send as `recv.method(args)`.
func (r Result) Describe(rt *vm.Runtime) string {
	var recv string
	switch {
	case r.Send.Class != "":
		recv = r.Send.Class
	case r.Send.Instance != "":
		recv = r.Send.Instance + ".new"
	default:
		recv = rt.Inspect(ToValue(rt, r.Send.Value))
	}
	args := make([]string, len(r.Send.Args))
	for i, a := range ToValues(rt, r.Send.Args) {
		args[i] = rt.Inspect(a)
	}
	return recv + "." + r.Send.Method + "(" + strings.Join(args, ", ") + ")"
}

// Run replays the manifest's sends on rt.
func (m *Manifest) Run(ctx context.Context, rt *vm.Runtime) ([]Result, error) {
	return Run(ctx, rt, m.Project.Namespace, m.Sends)
}

// Run replays sends on rt, resolving constants from namespace ns. A send
// that fails or misses its expectation is reported in its Result; the
// returned error is only set when ctx ends the run early.
func Run(ctx context.Context, rt *vm.Runtime, ns string, sends []SendDecl) ([]Result, error) {
	results := make([]Result, 0, len(sends))
	for i, s := range sends {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, runOne(rt, ns, i, s))
	}
	return results, nil
}

func runOne(rt *vm.Runtime, ns string, i int, s SendDecl) Result {
	res := Result{Index: i, Send: s}

	recv, err := receiver(rt, ns, s)
	if err != nil {
		res.Err = err
		res.Detail = "receiver: " + err.Error()
		return res
	}

	args := ToValues(rt, s.Args)
	n := s.Repeat
	if n < 1 {
		n = 1
	}
	for range n {
		res.Value, res.Err = rt.Send(recv, s.Method, args...)
		if res.Err != nil {
			break
		}
	}

	res.Passed, res.Detail = check(rt, s, res.Value, res.Err)
	return res
}

func receiver(rt *vm.Runtime, ns string, s SendDecl) (vm.Value, error) {
	switch {
	case s.Class != "":
		return lookup(rt, ns, s.Class)
	case s.Instance != "":
		c, err := lookup(rt, ns, s.Instance)
		if err != nil {
			return nil, err
		}
		return rt.Send(c, "new")
	}
	return ToValue(rt, s.Value), nil
}

func check(rt *vm.Runtime, s SendDecl, v vm.Value, err error) (bool, string) {
	switch {
	case s.Error != "":
		if err == nil {
			return false, fmt.Sprintf("expected error containing %q, got %s", s.Error, rt.Inspect(v))
		}
		if !strings.Contains(err.Error(), s.Error) {
			return false, fmt.Sprintf("expected error containing %q, got %q", s.Error, err)
		}
		return true, err.Error()
	case err != nil:
		return false, err.Error()
	case s.Expect != nil:
		got, want := rt.Inspect(v), rt.Inspect(ToValue(rt, s.Expect))
		if got != want {
			return false, fmt.Sprintf("got %s, want %s", got, want)
		}
	}
	return true, rt.Inspect(v)
}
