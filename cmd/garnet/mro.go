package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/garnet/vm"
)

var (
	classColor     = color.New(color.FgGreen)
	moduleColor    = color.New(color.FgCyan)
	singletonColor = color.New(color.FgYellow)
	ownerColor     = color.New(color.Bold)
)

var mroMethod string

var mroCmd = &cobra.Command{
	Use:   "mro CONST...",
	Short: "Print the ancestor chain of classes and modules",
	Long: `Print the method resolution order of each named constant. With --method,
also show which ancestor's entry a send of that name resolves to.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMRO,
}

func init() {
	mroCmd.Flags().StringVarP(&mroMethod, "method", "m", "", "show where this method resolves")
}

func runMRO(cmd *cobra.Command, args []string) error {
	rt, _, err := loadRuntime()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range args {
		mod := rt.Constants.Lookup(name)
		if mod == nil {
			return fmt.Errorf("uninitialized constant %s", name)
		}
		printMRO(out, rt, mod, mroMethod)
	}
	return nil
}

func printMRO(w io.Writer, rt *vm.Runtime, mod *vm.Module, method string) {
	var owner *vm.Module
	if method != "" {
		if res := rt.Resolver().Resolve(mod, method, vm.CallNormal, nil); res.Status == vm.Resolved {
			owner = res.Entry.Owner()
		}
	}

	parts := make([]string, 0, 8)
	for _, a := range mod.Ancestors() {
		s := paint(a).Sprint(a.String())
		if a == owner {
			s = ownerColor.Sprint("[") + s + ownerColor.Sprint("]")
		}
		parts = append(parts, s)
	}
	fmt.Fprintf(w, "%s: %s\n", mod, strings.Join(parts, " > "))

	if method != "" {
		if owner == nil {
			fmt.Fprintf(w, "  %s: not found\n", method)
		} else {
			fmt.Fprintf(w, "  %s: %s\n", method, owner)
		}
	}
}

func paint(m *vm.Module) *color.Color {
	switch m.Kind() {
	case vm.KindModule:
		return moduleColor
	case vm.KindSingleton:
		return singletonColor
	}
	return classColor
}
