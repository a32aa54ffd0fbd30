package reactive

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestEffectRunsOnCreate(t *testing.T) {
	rt := newTestRuntime(t)

	count, setCount := CreateSignal(rt.Root(), 1)
	var seen []int
	e := CreateEffect(rt.Root(), func() Cleanup {
		seen = append(seen, count.Get())
		return nil
	}, EffectName("logger"))

	if len(seen) != 1 || seen[0] != 1 {
		t.Fatalf("effect should run once on creation, saw %v", seen)
	}
	if e.Name() != "logger" {
		t.Errorf("expected name %q, got %q", "logger", e.Name())
	}

	setCount.Set(2)
	if len(seen) != 2 || seen[1] != 2 {
		t.Errorf("effect should rerun with the new value, saw %v", seen)
	}
	if e.Runs() != 2 {
		t.Errorf("expected 2 runs, got %d", e.Runs())
	}
}

func TestEffectDynamicDependencies(t *testing.T) {
	rt := newTestRuntime(t)

	useX, setUseX := CreateSignal(rt.Root(), true)
	x, setX := CreateSignal(rt.Root(), 1)
	y, setY := CreateSignal(rt.Root(), 2)

	runs := 0
	CreateEffect(rt.Root(), func() Cleanup {
		runs++
		if useX.Get() {
			_ = x.Get()
		} else {
			_ = y.Get()
		}
		return nil
	})

	steps := []struct {
		name  string
		write func()
		want  int
	}{
		{"write untaken branch", func() { setY.Set(3) }, 1},
		{"switch branch", func() { setUseX.Set(false) }, 2},
		{"write dropped branch", func() { setX.Set(4) }, 2},
		{"write new branch", func() { setY.Set(5) }, 3},
	}

	for _, step := range steps {
		step.write()
		if runs != step.want {
			t.Errorf("%s: expected %d runs, got %d", step.name, step.want, runs)
		}
	}
}

func TestEffectCleanupRunsBeforeRerunAndOnDispose(t *testing.T) {
	rt := newTestRuntime(t)

	scope := rt.CreateScope(rt.Root())
	count, setCount := CreateSignal(rt.Root(), 0)

	var log []string
	CreateEffect(scope, func() Cleanup {
		n := count.Get()
		log = append(log, "run")
		return func() {
			log = append(log, "cleanup")
			_ = n
		}
	})

	setCount.Set(1)
	scope.Dispose()
	setCount.Set(2)

	want := []string{"run", "cleanup", "run", "cleanup"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestEffectDispose(t *testing.T) {
	rt := newTestRuntime(t)

	count, setCount := CreateSignal(rt.Root(), 0)
	runs, cleanups := 0, 0
	e := CreateEffect(rt.Root(), func() Cleanup {
		_ = count.Get()
		runs++
		return func() { cleanups++ }
	})

	e.Dispose()
	e.Dispose()

	if !e.IsDisposed() {
		t.Error("effect should report disposal")
	}
	if cleanups != 1 {
		t.Errorf("expected 1 cleanup, got %d", cleanups)
	}

	setCount.Set(1)
	if runs != 1 {
		t.Errorf("disposed effect should not rerun, got %d runs", runs)
	}
}

func TestEffectDisposesOwnScopeMidRun(t *testing.T) {
	rt := newTestRuntime(t)

	scope := rt.CreateScope(rt.Root())
	count, setCount := CreateSignal(rt.Root(), 0)

	runs, cleanups, scopeCleanups := 0, 0, 0
	scope.OnCleanup(func() { scopeCleanups++ })
	CreateEffect(scope, func() Cleanup {
		runs++
		if count.Get() == 1 {
			scope.Dispose()
			_ = count.Get()
		}
		return func() { cleanups++ }
	})

	setCount.Set(1)
	if runs != 2 {
		t.Fatalf("expected 2 runs, got %d", runs)
	}
	if scopeCleanups != 1 {
		t.Errorf("scope cleanup should run once, got %d", scopeCleanups)
	}
	// The first run's cleanup ran before the second run; the second run's
	// cleanup runs as soon as the run that disposed the effect returns.
	if cleanups != 2 {
		t.Errorf("expected 2 cleanups, got %d", cleanups)
	}

	setCount.Set(2)
	if runs != 2 {
		t.Errorf("disposed effect should not rerun, got %d runs", runs)
	}
}

func TestEffectPanicDoesNotAbortDrain(t *testing.T) {
	rt := newTestRuntime(t)

	count, setCount := CreateSignal(rt.Root(), 0)
	panics := 0
	CreateEffect(rt.Root(), func() Cleanup {
		if count.Get() == 1 {
			panics++
			panic(errors.New("bad value"))
		}
		return nil
	})

	var seen []int
	CreateEffect(rt.Root(), func() Cleanup {
		seen = append(seen, count.Get())
		return nil
	})

	if err := setCount.Set(1); err != nil {
		t.Fatalf("panics should not be returned from Set, got %v", err)
	}
	if panics != 1 {
		t.Errorf("expected 1 panic, got %d", panics)
	}
	if len(seen) != 2 || seen[1] != 1 {
		t.Errorf("second effect should still run, saw %v", seen)
	}
	if len(rt.observers) != 0 {
		t.Errorf("observer stack should be empty, got %d entries", len(rt.observers))
	}

	setCount.Set(2)
	if len(seen) != 3 {
		t.Errorf("runtime should keep working after a panic, saw %v", seen)
	}
}

func TestEventSinkPanicDoesNotStallEffects(t *testing.T) {
	armed := false
	rt := newTestRuntime(t, WithEventSink(func(ev Event) {
		if armed && ev.Kind == EventEffectRun {
			armed = false
			panic("sink failed")
		}
	}))

	count, setCount := CreateSignal(rt.Root(), 0)
	first, second := 0, 0
	CreateEffect(rt.Root(), func() Cleanup {
		_ = count.Get()
		first++
		return nil
	})
	CreateEffect(rt.Root(), func() Cleanup {
		_ = count.Get()
		second++
		return nil
	})

	armed = true
	for i := 1; i <= 3; i++ {
		if err := setCount.Set(i); err != nil {
			t.Fatalf("Set(%d) = %v", i, err)
		}
	}

	if armed {
		t.Fatal("sink never saw an effect run")
	}
	if first != 4 || second != 4 {
		t.Errorf("both effects should run on every write, got %d and %d runs", first, second)
	}
	if p := rt.Stats().Pending; p != 0 {
		t.Errorf("expected no pending effects, got %d", p)
	}
}

// failingHandler is a slog handler that panics on the first error record.
type failingHandler struct{ fired *bool }

func (h failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h failingHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError && !*h.fired {
		*h.fired = true
		panic("log handler failed")
	}
	return nil
}

func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h failingHandler) WithGroup(string) slog.Handler { return h }

func TestEscapedPanicKeepsQueuedEffects(t *testing.T) {
	fired := false
	rt := newTestRuntime(t, WithLogger(slog.New(failingHandler{fired: &fired})))

	count, setCount := CreateSignal(rt.Root(), 0)
	CreateEffect(rt.Root(), func() Cleanup {
		if count.Get() == 1 {
			panic("bad value")
		}
		return nil
	})
	var seen []int
	CreateEffect(rt.Root(), func() Cleanup {
		seen = append(seen, count.Get())
		return nil
	})

	// Logging the effect panic panics in turn and unwinds through the drain.
	func() {
		defer func() { recover() }()
		setCount.Set(1)
	}()
	if !fired {
		t.Fatal("expected the handler to fail")
	}
	if rt.draining || rt.batchDepth != 0 {
		t.Errorf("runtime should be idle, draining=%v batchDepth=%d", rt.draining, rt.batchDepth)
	}

	if err := setCount.Set(2); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[1] != 2 {
		t.Errorf("queued effect should run on the next drain, saw %v", seen)
	}
	if p := rt.Stats().Pending; p != 0 {
		t.Errorf("expected no pending effects, got %d", p)
	}

	setCount.Set(3)
	if len(seen) != 3 {
		t.Errorf("effect should keep running, saw %v", seen)
	}
}

func TestEffectPanicRetriesOnNextChange(t *testing.T) {
	rt := newTestRuntime(t)

	count, setCount := CreateSignal(rt.Root(), 0)
	var seen []int
	CreateEffect(rt.Root(), func() Cleanup {
		n := count.Get()
		if n == 1 {
			panic("one")
		}
		seen = append(seen, n)
		return nil
	})

	setCount.Set(1)
	setCount.Set(2)

	if len(seen) != 2 || seen[1] != 2 {
		t.Errorf("effect should run again after panicking, saw %v", seen)
	}
}

func TestEffectInfiniteLoopIsReported(t *testing.T) {
	var loops []Event
	rt := newTestRuntime(t,
		WithMaxEffectReruns(10),
		WithEventSink(func(ev Event) {
			if ev.Kind == EventUpdateLoop {
				loops = append(loops, ev)
			}
		}),
	)

	enabled, setEnabled := CreateSignal(rt.Root(), false)
	n, setN := CreateSignal(rt.Root(), 0)
	CreateEffect(rt.Root(), func() Cleanup {
		v := n.Get()
		if enabled.Get() {
			setN.Set(v + 1)
		}
		return nil
	}, EffectName("counter"))

	err := setEnabled.Set(true)
	if !errors.Is(err, ErrInfiniteUpdateLoop) {
		t.Fatalf("expected ErrInfiniteUpdateLoop, got %v", err)
	}

	var loopErr *LoopError
	if !errors.As(err, &loopErr) {
		t.Fatalf("expected *LoopError, got %T", err)
	}
	if loopErr.Name != "counter" || loopErr.Runs != 10 || loopErr.Limit != 10 {
		t.Errorf("unexpected loop error %+v", loopErr)
	}
	if n.Peek() != 10 {
		t.Errorf("expected 10 completed runs to have written 10, got %d", n.Peek())
	}
	if len(loops) != 1 {
		t.Errorf("expected 1 update loop event, got %d", len(loops))
	}

	if err := setEnabled.Set(false); err != nil {
		t.Errorf("runtime should recover after a loop, got %v", err)
	}
}

func TestOnMount(t *testing.T) {
	rt := newTestRuntime(t)

	count, setCount := CreateSignal(rt.Root(), 0)
	mounts := 0
	OnMount(rt.Root(), func() {
		_ = count.Get()
		mounts++
	})

	setCount.Set(1)
	if mounts != 1 {
		t.Errorf("OnMount should run once, got %d", mounts)
	}
}

func TestOnUpdate(t *testing.T) {
	rt := newTestRuntime(t)

	count, setCount := CreateSignal(rt.Root(), 0)
	other, setOther := CreateSignal(rt.Root(), 0)

	var seen []int
	OnUpdate(rt.Root(), func() { _ = count.Get() }, func() {
		_ = other.Get()
		seen = append(seen, count.Peek())
	})

	if len(seen) != 0 {
		t.Errorf("callback should not run on the first run, saw %v", seen)
	}

	setCount.Set(1)
	setOther.Set(1)
	setCount.Set(2)

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("expected [1 2], got %v", seen)
	}
}

func TestEffectInDisposedScope(t *testing.T) {
	rt := newTestRuntime(t)

	scope := rt.CreateScope(rt.Root())
	scope.Dispose()

	runs := 0
	e := CreateEffect(scope, func() Cleanup {
		runs++
		return nil
	})

	if runs != 0 {
		t.Errorf("effect in a disposed scope should never run, got %d runs", runs)
	}
	if !e.IsDisposed() {
		t.Error("effect should report disposal")
	}
}
