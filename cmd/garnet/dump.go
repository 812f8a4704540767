package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/garnet/snapshot"
)

var (
	dumpFormat string
	dumpOutput string
	dumpDigest bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write a snapshot of the built class graph",
	Long: `Build the manifest's class graph and write a snapshot of every reachable
class, module and singleton class with its method table.`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "text", "output format (text|cbor|msgpack)")
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "output file (default stdout)")
	dumpCmd.Flags().BoolVar(&dumpDigest, "digest", false, "print only the snapshot digest")
}

func runDump(cmd *cobra.Command, args []string) error {
	format, err := snapshot.ParseFormat(dumpFormat)
	if err != nil {
		return err
	}
	rt, _, err := loadRuntime()
	if err != nil {
		return err
	}
	s, err := snapshot.Capture(rt)
	if err != nil {
		return err
	}

	if dumpDigest {
		sum, err := s.Digest()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(sum[:]))
		return nil
	}

	var w io.Writer = cmd.OutOrStdout()
	if dumpOutput != "" {
		f, err := os.Create(dumpOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := snapshot.Encode(w, s, format); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
