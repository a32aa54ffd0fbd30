package reactive

import (
	"errors"
	"testing"
)

func TestStoredValue(t *testing.T) {
	rt := newTestRuntime(t)

	v := StoreValue(rt.Root(), []string{"a"})
	v.Update(func(s []string) []string { return append(s, "b") })

	if got := v.Get(); len(got) != 2 || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}

	v.Set(nil)
	v.With(func(s []string) {
		if s != nil {
			t.Errorf("expected nil, got %v", s)
		}
	})
}

func TestStoredValueIsNotReactive(t *testing.T) {
	rt := newTestRuntime(t)

	v := StoreValue(rt.Root(), 1)
	runs := 0
	CreateEffect(rt.Root(), func() Cleanup {
		_ = v.Get()
		runs++
		return nil
	})

	v.Set(2)
	if runs != 1 {
		t.Errorf("stored value writes should not run effects, got %d runs", runs)
	}
}

func TestStoredValueAfterDispose(t *testing.T) {
	rt := newTestRuntime(t, WithDisposePolicy(DisposePolicyError))

	scope := rt.CreateScope(rt.Root())
	v := StoreValue(scope, "kept")
	scope.Dispose()

	if !v.IsDisposed() {
		t.Error("stored value should report disposal")
	}
	got, err := v.TryGet()
	if !errors.Is(err, ErrUseAfterDispose) {
		t.Errorf("expected ErrUseAfterDispose, got %v", err)
	}
	if got != "kept" {
		t.Errorf("expected last-known value, got %q", got)
	}
	if err := v.Set("new"); !errors.Is(err, ErrUseAfterDispose) {
		t.Errorf("expected ErrUseAfterDispose from Set, got %v", err)
	}
}
