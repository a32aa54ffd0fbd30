package reactive

// Cleanup is returned by an effect to release what its run acquired. It is
// called before the effect reruns and when the effect is disposed.
type Cleanup func()

// Effect is a reactive side effect. It runs once when created and reruns,
// from the runtime's pending queue, whenever a signal or memo it read during
// its previous run changes. Each run starts from an empty dependency set, so
// an effect that branches on a signal only depends on what the taken branch
// read.
type Effect struct {
	rt    *Runtime
	id    NodeID
	scope *Scope
	name  string

	fn      func() Cleanup
	cleanup Cleanup

	runs int
}

// EffectOption configures an Effect.
type EffectOption func(*Effect)

// EffectName sets the name used for the effect in logs, events and errors.
func EffectName(name string) EffectOption {
	return func(e *Effect) {
		e.name = name
	}
}

// CreateEffect creates an effect owned by s and runs it immediately.
//
// Writes made by the first run are applied when it returns; effects they
// trigger run before CreateEffect returns unless the caller is inside a
// batch or an update.
//
// Example:
//
//	reactive.CreateEffect(scope, func() reactive.Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
func CreateEffect(s *Scope, fn func() Cleanup, opts ...EffectOption) *Effect {
	rt := s.rt
	e := &Effect{rt: rt, scope: s, fn: fn}
	for _, opt := range opts {
		opt(e)
	}

	if s.disposed {
		rt.useAfterDispose(NodeID{}, "create effect")
		return e
	}

	id, n := rt.arena.alloc(NodeEffect, s)
	n.name = e.name
	n.effect = e
	e.id = id
	s.own(id)

	rt.batchDepth++
	rt.runEffect(id)
	rt.settle("create effect")

	return e
}

// ID returns the node handle of the effect.
func (e *Effect) ID() NodeID {
	return e.id
}

// Name returns the effect name, if any.
func (e *Effect) Name() string {
	return e.name
}

// Runs returns how many times the effect completed a run.
func (e *Effect) Runs() int {
	return e.runs
}

// IsDisposed reports whether the effect was disposed, directly or through
// its scope.
func (e *Effect) IsDisposed() bool {
	return e.rt.lookup(e.id) == nil
}

// Dispose stops the effect ahead of its scope and runs its last cleanup.
func (e *Effect) Dispose() {
	if e.IsDisposed() {
		return
	}
	e.rt.batchDepth++
	e.rt.releaseNode(e.id)
	e.rt.settle("dispose effect")
}

// OnMount runs fn once, untracked, as an effect of s.
func OnMount(s *Scope, fn func()) {
	CreateEffect(s, func() Cleanup {
		s.rt.Untracked(fn)
		return nil
	})
}

// OnUpdate tracks whatever deps reads and calls callback, untracked, every
// time one of those dependencies changes. The first run only establishes
// the dependencies.
func OnUpdate(s *Scope, deps func(), callback func()) {
	first := true
	CreateEffect(s, func() Cleanup {
		deps()
		if first {
			first = false
			return nil
		}
		s.rt.Untracked(callback)
		return nil
	})
}
