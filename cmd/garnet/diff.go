package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/garnet/snapshot"
)

var diffCmd = &cobra.Command{
	Use:   "diff BEFORE AFTER",
	Short: "Compare two binary snapshots",
	Long: `Compare two snapshots written by "garnet dump". The format is taken from
the file extension (.cbor or .msgpack). Exits non-zero if they differ.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	before, err := readSnapshot(args[0])
	if err != nil {
		return err
	}
	after, err := readSnapshot(args[1])
	if err != nil {
		return err
	}

	changes := snapshot.Diff(before, after)
	out := cmd.OutOrStdout()
	if len(changes) == 0 {
		fmt.Fprintln(out, "no differences")
		return nil
	}
	for _, c := range changes {
		fmt.Fprintln(out, changeColor(c.Kind).Sprint(c.String()))
	}
	return errors.New("snapshots differ")
}

func readSnapshot(path string) (*snapshot.Snapshot, error) {
	format, err := snapshot.ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := snapshot.Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func changeColor(k snapshot.ChangeKind) *color.Color {
	switch k {
	case snapshot.ModuleAdded, snapshot.MethodAdded:
		return color.New(color.FgGreen)
	case snapshot.ModuleRemoved, snapshot.MethodRemoved:
		return color.New(color.FgRed)
	}
	return color.New(color.FgYellow)
}
