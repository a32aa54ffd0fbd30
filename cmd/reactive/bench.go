package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/reactive"
)

type benchConfig struct {
	FanOut     int `json:"fanOut"`
	Chain      int `json:"chain"`
	Iterations int `json:"iterations"`
}

// benchCase is the timing of one propagation shape.
type benchCase struct {
	Name       string        `json:"name"`
	Iterations int           `json:"iterations"`
	Total      time.Duration `json:"totalNs"`
	PerOp      time.Duration `json:"perOpNs"`
	EffectRuns int           `json:"effectRuns"`
}

type benchReport struct {
	Config benchConfig `json:"config"`
	Cases  []benchCase `json:"cases"`
}

func benchCmd() *cobra.Command {
	var (
		cfg     benchConfig
		asJSON  bool
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark change propagation",
		Long: `Measure how long one signal write takes to propagate through a
wide graph (one signal feeding many effects) and a deep graph (a chain of
memos ending in one effect).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			report := runBench(cfg)

			if outPath != "" {
				if err := writeReport(outPath, report); err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "Wrote %s", outPath)
				return nil
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.FanOut, "fanout", 1000, "Effects subscribed to the signal in the wide graph")
	cmd.Flags().IntVar(&cfg.Chain, "chain", 100, "Memos in the deep graph")
	cmd.Flags().IntVarP(&cfg.Iterations, "iterations", "n", 1000, "Writes per case")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write JSON results to a file")

	return cmd
}

func (c benchConfig) validate() error {
	check := func(flag string, v int) error {
		if v <= 0 {
			return errors.New("R202").
				WithDetail(fmt.Sprintf("--%s must be positive, got %d.", flag, v))
		}
		return nil
	}
	if err := check("fanout", c.FanOut); err != nil {
		return err
	}
	if err := check("chain", c.Chain); err != nil {
		return err
	}
	return check("iterations", c.Iterations)
}

func runBench(cfg benchConfig) benchReport {
	return benchReport{
		Config: cfg,
		Cases: []benchCase{
			benchFanOut(cfg.FanOut, cfg.Iterations),
			benchChain(cfg.Chain, cfg.Iterations),
		},
	}
}

func newBenchRuntime() *reactive.Runtime {
	return reactive.NewRuntime(reactive.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func benchFanOut(width, iterations int) benchCase {
	rt := newBenchRuntime()
	defer rt.Dispose()

	src, setSrc := reactive.CreateSignal(rt.Root(), 0)
	effects := make([]*reactive.Effect, width)
	for i := range effects {
		effects[i] = reactive.CreateEffect(rt.Root(), func() reactive.Cleanup {
			_ = src.Get()
			return nil
		})
	}

	start := time.Now()
	for i := 1; i <= iterations; i++ {
		setSrc.Set(i)
	}
	total := time.Since(start)

	runs := 0
	for _, e := range effects {
		runs += e.Runs() - 1
	}
	return newBenchCase(fmt.Sprintf("fanout/%d", width), iterations, total, runs)
}

func benchChain(depth, iterations int) benchCase {
	rt := newBenchRuntime()
	defer rt.Dispose()

	src, setSrc := reactive.CreateSignal(rt.Root(), 0)
	last := src
	for i := 0; i < depth; i++ {
		prev := last
		last = reactive.CreateMemo(rt.Root(), func() int { return prev.Get() + 1 })
	}
	e := reactive.CreateEffect(rt.Root(), func() reactive.Cleanup {
		_ = last.Get()
		return nil
	})

	start := time.Now()
	for i := 1; i <= iterations; i++ {
		setSrc.Set(i)
	}
	total := time.Since(start)

	return newBenchCase(fmt.Sprintf("chain/%d", depth), iterations, total, e.Runs()-1)
}

func newBenchCase(name string, iterations int, total time.Duration, runs int) benchCase {
	return benchCase{
		Name:       name,
		Iterations: iterations,
		Total:      total,
		PerOp:      total / time.Duration(iterations),
		EffectRuns: runs,
	}
}

func printReport(w io.Writer, r benchReport) {
	fmt.Fprintf(w, "%-14s %10s %14s %12s\n", "case", "writes", "per write", "effect runs")
	for _, c := range r.Cases {
		fmt.Fprintf(w, "%-14s %10d %14s %12d\n", c.Name, c.Iterations, c.PerOp, c.EffectRuns)
	}
}

func writeReport(path string, r benchReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
