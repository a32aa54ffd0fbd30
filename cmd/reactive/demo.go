package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactive/internal/config"
	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/reactive"
)

// scenario is a small graph showing one behavior of the runtime.
type scenario struct {
	summary string
	run     func(w io.Writer, rt *reactive.Runtime) error
}

var scenarios = map[string]scenario{
	"glitch": {
		summary: "derived values never expose a half-updated graph",
		run:     demoGlitch,
	},
	"batch": {
		summary: "writes inside a batch run each effect once",
		run:     demoBatch,
	},
	"dynamic": {
		summary: "effects only depend on what their last run read",
		run:     demoDynamic,
	},
	"untrack": {
		summary: "untracked reads do not subscribe",
		run:     demoUntrack,
	},
	"dispose": {
		summary: "disposing a scope stops its effects and runs cleanups",
		run:     demoDispose,
	},
	"loop": {
		summary: "an effect feeding its own input is stopped by the rerun limit",
		run:     demoLoop,
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func demoCmd() *cobra.Command {
	var (
		maxReruns int
		debug     bool
	)

	cmd := &cobra.Command{
		Use:   "demo [scenario]",
		Short: "Run a reactive scenario",
		Long: `Run one of the built-in scenarios and print every effect run.

Without an argument, the available scenarios are listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listScenarios(cmd.OutOrStdout())
				return nil
			}
			return runDemo(cmd, args[0], maxReruns, debug)
		},
	}

	cmd.Flags().IntVar(&maxReruns, "max-reruns", 0, "Effect rerun limit per drain (default from reactive.json)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log runtime internals")

	return cmd
}

func listScenarios(w io.Writer) {
	fmt.Fprintln(w, "Scenarios:")
	for _, name := range scenarioNames() {
		fmt.Fprintf(w, "  %-8s %s\n", name, scenarios[name].summary)
	}
}

func runDemo(cmd *cobra.Command, name string, maxReruns int, debug bool) error {
	sc, ok := scenarios[name]
	if !ok {
		return errors.New("R201").
			WithDetail(fmt.Sprintf("There is no scenario named %q.", name)).
			WithSuggestion("Available scenarios: " + strings.Join(scenarioNames(), ", "))
	}
	if maxReruns < 0 {
		return errors.New("R202").
			WithDetail(fmt.Sprintf("--max-reruns must not be negative, got %d.", maxReruns))
	}

	cfg, err := config.LoadOrDefault()
	if err != nil {
		return err
	}
	if maxReruns > 0 {
		cfg.Runtime.MaxEffectReruns = maxReruns
	}
	if debug {
		cfg.Runtime.Debug = true
	}

	rt := reactive.NewRuntime(append(cfg.RuntimeOptions(),
		reactive.WithLogger(cfg.Logger(cmd.ErrOrStderr())))...)
	defer rt.Dispose()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %s\n\n", name, sc.summary)
	return sc.run(w, rt)
}

func step(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "> %s\n", fmt.Sprintf(format, args...))
}

func demoGlitch(w io.Writer, rt *reactive.Runtime) error {
	root := rt.Root()
	a, setA := reactive.CreateSignal(root, 1, reactive.Named("a"))
	b := reactive.CreateMemo(root, func() int { return a.Get() * 2 }, reactive.Named("b"))
	c := reactive.CreateMemo(root, func() int { return a.Get() + b.Get() }, reactive.Named("c"))

	e := reactive.CreateEffect(root, func() reactive.Cleanup {
		info(w, "effect: a=%d b=%d c=%d", a.Get(), b.Get(), c.Get())
		return nil
	}, reactive.EffectName("print"))

	step(w, "set a = 2")
	if err := setA.Set(2); err != nil {
		return err
	}
	step(w, "set a = 3")
	if err := setA.Set(3); err != nil {
		return err
	}

	fmt.Fprintf(w, "\neffect ran %d times\n", e.Runs())
	return nil
}

func demoBatch(w io.Writer, rt *reactive.Runtime) error {
	root := rt.Root()
	first, setFirst := reactive.CreateSignal(root, "Ada")
	last, setLast := reactive.CreateSignal(root, "Lovelace")

	e := reactive.CreateEffect(root, func() reactive.Cleanup {
		info(w, "effect: %s %s", first.Get(), last.Get())
		return nil
	})

	step(w, "batch: first = Grace, last = Hopper")
	if err := rt.Batch(func() {
		setFirst.Set("Grace")
		setLast.Set("Hopper")
	}); err != nil {
		return err
	}

	step(w, "set first = Alan, last = Turing without a batch")
	setFirst.Set("Alan")
	setLast.Set("Turing")

	fmt.Fprintf(w, "\neffect ran %d times\n", e.Runs())
	return nil
}

func demoDynamic(w io.Writer, rt *reactive.Runtime) error {
	root := rt.Root()
	useA, setUseA := reactive.CreateSignal(root, true)
	a, setA := reactive.CreateSignal(root, "a0")
	b, setB := reactive.CreateSignal(root, "b0")

	e := reactive.CreateEffect(root, func() reactive.Cleanup {
		if useA.Get() {
			info(w, "effect: a=%s", a.Get())
		} else {
			info(w, "effect: b=%s", b.Get())
		}
		return nil
	})

	step(w, "set b = b1 (not read, no run)")
	setB.Set("b1")
	step(w, "switch to b")
	setUseA.Set(false)
	step(w, "set a = a1 (no longer read, no run)")
	setA.Set("a1")
	step(w, "set b = b2")
	setB.Set("b2")

	fmt.Fprintf(w, "\neffect ran %d times\n", e.Runs())
	return nil
}

func demoUntrack(w io.Writer, rt *reactive.Runtime) error {
	root := rt.Root()
	count, setCount := reactive.CreateSignal(root, 0)
	label, setLabel := reactive.CreateSignal(root, "count")

	e := reactive.CreateEffect(root, func() reactive.Cleanup {
		l := reactive.Untrack(rt, label.Get)
		info(w, "effect: %s=%d", l, count.Get())
		return nil
	})

	step(w, "set label = total (untracked, no run)")
	setLabel.Set("total")
	step(w, "set count = 1")
	setCount.Set(1)

	fmt.Fprintf(w, "\neffect ran %d times\n", e.Runs())
	return nil
}

func demoDispose(w io.Writer, rt *reactive.Runtime) error {
	value, setValue := reactive.CreateSignal(rt.Root(), 1)

	child := rt.CreateScope(rt.Root())
	doubled := reactive.CreateMemo(child, func() int { return value.Get() * 2 })
	e := reactive.CreateEffect(child, func() reactive.Cleanup {
		v := doubled.Get()
		info(w, "effect: doubled=%d", v)
		return func() { info(w, "cleanup: doubled was %d", v) }
	})
	child.OnCleanup(func() { info(w, "scope cleanup") })

	step(w, "set value = 2")
	setValue.Set(2)
	step(w, "dispose child scope")
	child.Dispose()
	step(w, "set value = 3 (effect disposed, no run)")
	setValue.Set(3)

	stale, err := doubled.TryGet()
	fmt.Fprintf(w, "\neffect ran %d times; disposed memo reads %d (err: %v)\n", e.Runs(), stale, err)
	return nil
}

func demoLoop(w io.Writer, rt *reactive.Runtime) error {
	n, setN := reactive.CreateSignal(rt.Root(), 0)

	e := reactive.CreateEffect(rt.Root(), func() reactive.Cleanup {
		if v := n.Get(); v > 0 {
			setN.Set(v + 1)
		}
		return nil
	}, reactive.EffectName("increment"))

	step(w, "set n = 1")
	err := setN.Set(1)
	if err == nil {
		return fmt.Errorf("expected the rerun limit to stop the effect")
	}
	info(w, "stopped: %s", errors.FromRuntime(err).FormatCompact())

	fmt.Fprintf(w, "\neffect ran %d times; n = %d\n", e.Runs(), n.Peek())
	return nil
}
