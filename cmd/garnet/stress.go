package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/garnet/vm"
)

var (
	stressWorkers    int64
	stressIterations int64
	stressClasses    int64
	stressRedefines  int64
	stressPICSize    int64
	stressOverflow   string
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Dispatch concurrently while redefining methods",
	Long: `Run worker goroutines that send through shared call sites while another
goroutine keeps redefining and removing the method they call. After the run
every receiver is checked against the final method tables, so a stale cache
entry shows up as a failure.`,
	Args: cobra.NoArgs,
	RunE: runStress,
}

func init() {
	f := stressCmd.Flags()
	f.Int64Var(&stressWorkers, "workers", 8, "dispatching goroutines")
	f.Int64Var(&stressIterations, "iterations", 100000, "sends per worker")
	f.Int64Var(&stressClasses, "classes", 12, "receiver classes (more than the PIC size goes megamorphic)")
	f.Int64Var(&stressRedefines, "redefines", 1000, "method redefinitions")
	f.Int64Var(&stressPICSize, "pic-size", int64(vm.DefaultPICEntries), "inline cache capacity")
	f.StringVar(&stressOverflow, "overflow", "megamorphic", "full cache policy (megamorphic|lru)")
}

type stressOptions struct {
	Workers    int
	Iterations int
	Classes    int
	Redefines  int
}

type stressReport struct {
	Sends    int64
	Elapsed  time.Duration
	Version  uint64
	IC       vm.ICStats
	Verified int
}

func runStress(cmd *cobra.Command, args []string) error {
	var opts stressOptions
	var err error
	for _, c := range []struct {
		dst  *int
		src  int64
		name string
	}{
		{&opts.Workers, stressWorkers, "workers"},
		{&opts.Iterations, stressIterations, "iterations"},
		{&opts.Classes, stressClasses, "classes"},
		{&opts.Redefines, stressRedefines, "redefines"},
	} {
		if *c.dst, err = safecast.Conv[int](c.src); err != nil {
			return fmt.Errorf("--%s: %w", c.name, err)
		}
		if *c.dst < 1 {
			return fmt.Errorf("--%s must be positive", c.name)
		}
	}

	cfg := vm.DefaultConfig()
	if cfg.PICSize, err = safecast.Conv[int](stressPICSize); err != nil {
		return fmt.Errorf("--pic-size: %w", err)
	}
	if cfg.Overflow, err = vm.ParseOverflowPolicy(stressOverflow); err != nil {
		return err
	}
	rt, err := vm.NewRuntime(cfg)
	if err != nil {
		return err
	}

	report, err := stress(cmd.Context(), rt, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rate := float64(report.Sends) / report.Elapsed.Seconds()
	fmt.Fprintf(out, "%d sends in %s (%.0f sends/s), registry version %d\n",
		report.Sends, report.Elapsed.Round(time.Millisecond), rate, report.Version)
	fmt.Fprintf(out, "call sites: %d mono, %d poly, %d mega; hit rate %.1f%%\n",
		report.IC.Monomorphic, report.IC.Polymorphic, report.IC.Megamorphic, report.IC.HitRate)
	fmt.Fprintf(out, "%s %d receivers match their final method tables\n", passColor.Sprint("OK"), report.Verified)
	return nil
}

func constant(v int64) vm.Body {
	return vm.NewMethod0(func(f *vm.Frame) (vm.Value, error) { return v, nil })
}

// stress defines Base#value returning 0 and opts.Classes subclasses, then
// sends value to instances of every subclass from opts.Workers goroutines
// while one goroutine alternately defines and removes value on the
// subclasses. Each worker owns one call site in a shared table.
func stress(ctx context.Context, rt *vm.Runtime, opts stressOptions) (stressReport, error) {
	var report stressReport

	base, err := rt.DefineClass("Base", nil)
	if err != nil {
		return report, err
	}
	if _, err := base.DefineMethod("value", constant(0)); err != nil {
		return report, err
	}

	classes := make([]*vm.Module, opts.Classes)
	instances := make([]vm.Value, opts.Classes)
	for i := range classes {
		if classes[i], err = rt.DefineClass(fmt.Sprintf("C%d", i), base); err != nil {
			return report, err
		}
		if instances[i], err = rt.Send(classes[i], "new"); err != nil {
			return report, err
		}
	}

	// final[i] is what instances[i].value must return once the redefiner
	// is done. Only the redefiner writes it.
	final := make([]int64, opts.Classes)
	table := rt.NewCallSiteTable()
	var sends atomic.Int64

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		site := table.GetOrCreate(w, "value", 0)
		g.Go(func() error {
			for i := 0; i < opts.Iterations; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				v, err := rt.Dispatch(nil, site, instances[(w+i)%len(instances)])
				if err != nil {
					return fmt.Errorf("worker %d: %w", w, err)
				}
				if _, ok := v.(int64); !ok {
					return fmt.Errorf("worker %d: value returned %s", w, rt.Inspect(v))
				}
				sends.Add(1)
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < opts.Redefines; i++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := i % len(classes)
			c := classes[n]
			if final[n] != 0 {
				if err := c.RemoveMethod("value"); err != nil {
					return err
				}
				final[n] = 0
				continue
			}
			v := int64(i + 1)
			if _, err := c.DefineMethod("value", constant(v)); err != nil {
				return err
			}
			final[n] = v
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Elapsed = time.Since(start)

	// Re-send through the warmed sites: a stale cache entry would return
	// a value from before the last redefinition.
	for w := 0; w < opts.Workers; w++ {
		site := table.Get(w)
		for i, inst := range instances {
			v, err := rt.Dispatch(nil, site, inst)
			if err != nil {
				return report, err
			}
			if v != final[i] {
				return report, fmt.Errorf("C%d#value = %s through site %d, want %d", i, rt.Inspect(v), w, final[i])
			}
			report.Verified++
		}
	}

	report.Sends = sends.Load()
	report.Version = rt.Registry().Version()
	report.IC = rt.ICStats()
	return report, nil
}
