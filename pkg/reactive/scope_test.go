package reactive

import "testing"

func TestScopeHierarchy(t *testing.T) {
	rt := newTestRuntime(t)

	parent := rt.CreateScope(rt.Root())
	child := parent.Child()

	if child.Parent() != parent {
		t.Error("child should point to its parent")
	}
	if parent.Parent() != rt.Root() {
		t.Error("parent should point to the root")
	}
	if child.Runtime() != rt {
		t.Error("child should belong to the runtime")
	}
	if child.ID() == parent.ID() {
		t.Error("scopes should have distinct IDs")
	}
}

func TestScopeDisposeOrder(t *testing.T) {
	rt := newTestRuntime(t)

	var log []string
	s := rt.CreateScope(rt.Root())
	s.OnCleanup(func() { log = append(log, "s1") })

	c := s.Child()
	c.OnCleanup(func() { log = append(log, "c1") })

	g := c.Child()
	g.OnCleanup(func() { log = append(log, "g1") })

	sibling := s.Child()
	sibling.OnCleanup(func() { log = append(log, "sibling") })

	s.OnCleanup(func() { log = append(log, "s2") })

	s.Dispose()
	s.Dispose()

	want := []string{"sibling", "g1", "c1", "s2", "s1"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}

	for _, scope := range []*Scope{s, c, g, sibling} {
		if !scope.IsDisposed() {
			t.Errorf("scope %d should be disposed", scope.ID())
		}
	}
}

func TestScopeDisposeMakesNodesInert(t *testing.T) {
	rt := newTestRuntime(t)

	scope := rt.CreateScope(rt.Root())
	count, setCount := CreateSignal(scope, 0)
	double := CreateMemo(scope, func() int { return count.Get() * 2 })

	innerRuns := 0
	CreateEffect(scope, func() Cleanup {
		_ = double.Get()
		innerRuns++
		return nil
	})

	outerRuns := 0
	CreateEffect(rt.Root(), func() Cleanup {
		_ = count.Get()
		outerRuns++
		return nil
	})

	before := rt.Stats()
	scope.Dispose()
	after := rt.Stats()

	setCount.Set(1)

	if innerRuns != 1 || outerRuns != 1 {
		t.Errorf("writes after disposal should not run effects, got %d inner and %d outer runs", innerRuns, outerRuns)
	}
	if after.Signals != before.Signals-1 || after.Memos != before.Memos-1 || after.Effects != before.Effects-1 {
		t.Errorf("disposed nodes should be released, before %+v after %+v", before, after)
	}
	if after.Scopes != before.Scopes-1 {
		t.Errorf("expected %d scopes, got %d", before.Scopes-1, after.Scopes)
	}
}

func TestScopeCleanupWritesAreBatched(t *testing.T) {
	rt := newTestRuntime(t)

	count, setCount := CreateSignal(rt.Root(), 0)
	var seen []int
	CreateEffect(rt.Root(), func() Cleanup {
		seen = append(seen, count.Get())
		return nil
	})

	scope := rt.CreateScope(rt.Root())
	scope.OnCleanup(func() { setCount.Set(1) })
	scope.Child().OnCleanup(func() { setCount.Set(2) })

	scope.Dispose()

	if len(seen) != 2 {
		t.Fatalf("expected one run after disposal, saw %v", seen)
	}
	if seen[1] != 1 {
		t.Errorf("effect should see the last cleanup write, got %d", seen[1])
	}
}

func TestScopeCleanupPanicDoesNotStopDisposal(t *testing.T) {
	rt := newTestRuntime(t)

	scope := rt.CreateScope(rt.Root())
	ran := false
	scope.OnCleanup(func() { ran = true })
	scope.OnCleanup(func() { panic("cleanup failed") })

	scope.Dispose()

	if !ran {
		t.Error("remaining cleanups should run after a panicking one")
	}
	if !scope.IsDisposed() {
		t.Error("scope should be disposed")
	}
}

func TestOnCleanupAfterDisposeRunsImmediately(t *testing.T) {
	rt := newTestRuntime(t)

	scope := rt.CreateScope(rt.Root())
	scope.Dispose()

	ran := false
	scope.OnCleanup(func() { ran = true })
	if !ran {
		t.Error("cleanup registered on a disposed scope should run immediately")
	}
}

func TestChildOfDisposedScope(t *testing.T) {
	rt := newTestRuntime(t)

	scope := rt.CreateScope(rt.Root())
	scope.Dispose()

	child := scope.Child()
	if !child.IsDisposed() {
		t.Error("child of a disposed scope should be disposed")
	}

	value, _ := CreateSignal(child, 5)
	if !value.IsDisposed() {
		t.Error("signal created in a disposed scope should be disposed")
	}
}

func TestRuntimeDispose(t *testing.T) {
	rt := newTestRuntime(t)

	extra := rt.CreateScope(nil)
	cleaned := false
	extra.OnCleanup(func() { cleaned = true })

	rt.Dispose()

	if !rt.IsDisposed() {
		t.Error("runtime should be disposed")
	}
	if !extra.IsDisposed() || !cleaned {
		t.Error("extra root scopes should be disposed with the runtime")
	}
	if s := rt.Stats(); s.Scopes != 0 || s.Signals+s.Memos+s.Effects+s.Stored != 0 {
		t.Errorf("expected an empty runtime, got %+v", s)
	}

	late := rt.CreateScope(nil)
	if !late.IsDisposed() {
		t.Error("root created after disposal should be disposed")
	}
}

type theme struct{ name string }

func TestContext(t *testing.T) {
	rt := newTestRuntime(t)

	ProvideContext(rt.Root(), theme{"light"})

	child := rt.CreateScope(rt.Root())
	grandchild := child.Child()
	sibling := rt.CreateScope(rt.Root())

	if v, ok := UseContext[theme](grandchild); !ok || v.name != "light" {
		t.Errorf("expected inherited light theme, got %v (ok=%v)", v, ok)
	}

	ProvideContext(child, theme{"dark"})
	if v, _ := UseContext[theme](grandchild); v.name != "dark" {
		t.Errorf("expected nearest provider to win, got %q", v.name)
	}
	if v, _ := UseContext[theme](sibling); v.name != "light" {
		t.Errorf("sibling should not see the shadowing value, got %q", v.name)
	}
	if _, ok := UseContext[int](grandchild); ok {
		t.Error("missing context type should not be found")
	}
}
