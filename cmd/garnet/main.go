// Garnet CLI - inspect and exercise the method dispatch runtime
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/garnet/manifest"
	"github.com/chazu/garnet/vm"
)

var log = commonlog.GetLogger("garnet.cli")

var rootCmd = &cobra.Command{
	Use:   "garnet",
	Short: "Garnet method dispatch runtime",
	Long: `Garnet builds class graphs from a garnet.toml manifest and dispatches
messages through them with Ruby's lookup rules.`,
	SilenceUsage:      true,
	PersistentPreRunE: configure,
}

var (
	verbosity  int
	colorMode  string
	projectDir string
)

func init() {
	rootCmd.Version = Version

	rootCmd.AddCommand(mroCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "directory to search for "+manifest.FileName)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func configure(cmd *cobra.Command, args []string) error {
	switch colorMode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
	default:
		return fmt.Errorf("invalid --color value %q (want auto, on or off)", colorMode)
	}
	commonlog.Configure(verbosity, nil)
	return nil
}

// loadRuntime builds a runtime from the nearest manifest, or a bare runtime
// when there is none. The returned manifest may be nil.
func loadRuntime() (*vm.Runtime, *manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(projectDir)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		log.Infof("no %s found from %s, using a bare runtime", manifest.FileName, projectDir)
		rt, err := vm.NewRuntime(vm.DefaultConfig())
		return rt, nil, err
	}
	if v := m.Runtime.Verbosity(); v > verbosity {
		commonlog.Configure(v, nil)
	}
	rt, err := m.NewRuntime()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", m.Dir, err)
	}
	log.Infof("built %s: %d constants, registry version %d", m.Dir, rt.Constants.Len(), rt.Registry().Version())
	return rt, m, nil
}
