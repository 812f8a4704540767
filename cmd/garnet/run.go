package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chazu/garnet/manifest"
)

var (
	passColor = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the manifest's class graph and replay its sends",
	Long: `Load the nearest garnet.toml, build its classes and modules (dependencies
first) and replay every [[send]] entry, reporting which ones met their
expectation. Exits non-zero if any send failed.`,
	Args: cobra.NoArgs,
	RunE: runScenario,
}

func init() {
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "only report failures")
}

func runScenario(cmd *cobra.Command, args []string) error {
	rt, m, err := loadRuntime()
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no %s found from %s", manifest.FileName, projectDir)
	}

	results, err := m.Run(cmd.Context(), rt)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Passed {
			if !runQuiet {
				fmt.Fprintf(out, "%s %s\n", passColor.Sprint("PASS"), r.Describe(rt))
			}
			continue
		}
		failed++
		fmt.Fprintf(out, "%s %s: %s\n", failColor.Sprint("FAIL"), r.Describe(rt), r.Detail)
	}

	fmt.Fprintf(out, "\n%d sends, %d passed, %d failed\n", len(results), len(results)-failed, failed)
	if failed > 0 {
		return errors.New("some sends failed")
	}
	return nil
}
