package reactive

import "time"

// Scope is a lifetime boundary for reactive nodes. Disposing a Scope
// disposes all of its child scopes, runs its cleanups and invalidates every
// signal, memo, effect and stored value created in it.
//
// Scopes form a hierarchy that usually mirrors the component tree of the
// layer built on top of the runtime: each mounted component gets a child
// scope of its parent, and unmounting disposes it.
type Scope struct {
	rt     *Runtime
	id     uint64
	parent *Scope

	children []*Scope
	cleanups []func()
	nodes    []NodeID

	// values holds context values provided on this scope.
	values map[any]any

	disposed bool
}

func (rt *Runtime) newScope(parent *Scope) *Scope {
	s := &Scope{
		rt:     rt,
		id:     nextID(),
		parent: parent,
	}
	rt.scopes++
	return s
}

// CreateScope creates a child of parent. A nil parent creates a new root
// scope in this runtime that is disposed together with the runtime.
// Creating a child of a disposed scope returns a scope that is already
// disposed.
func (rt *Runtime) CreateScope(parent *Scope) *Scope {
	if parent == nil {
		s := rt.newScope(nil)
		if rt.disposed {
			s.markDisposed()
			return s
		}
		rt.roots = append(rt.roots, s)
		return s
	}
	return parent.Child()
}

// Child creates a new scope owned by s.
func (s *Scope) Child() *Scope {
	child := s.rt.newScope(s)
	if s.disposed {
		child.markDisposed()
		return child
	}
	s.children = append(s.children, child)
	return child
}

func (s *Scope) markDisposed() {
	s.disposed = true
	s.rt.scopes--
}

// ID returns the unique identifier for this scope.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Runtime returns the runtime the scope belongs to.
func (s *Scope) Runtime() *Runtime {
	return s.rt
}

// IsDisposed reports whether the scope has been disposed.
func (s *Scope) IsDisposed() bool {
	return s.disposed
}

// OnCleanup registers fn to run when the scope is disposed. Cleanups run in
// reverse registration order. Registering on a disposed scope runs fn
// immediately.
func (s *Scope) OnCleanup(fn func()) {
	if fn == nil {
		return
	}
	if s.disposed {
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
}

// own records a node created in this scope.
func (s *Scope) own(id NodeID) {
	s.nodes = append(s.nodes, id)
}

// Dispose disposes the scope: children first, most recent child first, then
// the scope's cleanups in reverse registration order, then every node it
// owns. Disposing an already disposed scope does nothing.
//
// Writes made by cleanups are batched; their effects run once the whole
// subtree is gone.
func (s *Scope) Dispose() {
	if s == nil || s.disposed {
		return
	}
	rt := s.rt
	start := rt.now()
	s.markDisposed()

	if s.parent != nil && !s.parent.disposed {
		s.parent.removeChild(s)
	}

	rt.batchDepth++

	children := s.children
	s.children = nil
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	cleanups := s.cleanups
	s.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		rt.safeCall("scope", cleanups[i])
	}

	nodes := s.nodes
	s.nodes = nil
	for _, id := range nodes {
		rt.releaseNode(id)
	}
	s.values = nil

	if s == rt.root {
		rt.teardown()
	} else if s.parent == nil {
		rt.removeRoot(s)
	}

	if len(rt.opts.sinks) > 0 {
		var d time.Duration
		if !start.IsZero() {
			d = time.Since(start)
		}
		rt.emit(Event{Kind: EventScopeDisposed, Scope: s.id, Start: start, Duration: d})
	}

	rt.settle("dispose")
}

func (s *Scope) removeChild(child *Scope) {
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

func (rt *Runtime) removeRoot(s *Scope) {
	for i, r := range rt.roots {
		if r == s {
			rt.roots = append(rt.roots[:i], rt.roots[i+1:]...)
			return
		}
	}
}

// releaseNode disposes a single node: it runs an effect's pending cleanup,
// removes the node from every subscriber and dependency set it appears in
// and frees its arena slot.
func (rt *Runtime) releaseNode(id NodeID) {
	n := rt.arena.get(id)
	if n == nil {
		return
	}

	if n.kind == NodeEffect && n.effect.cleanup != nil {
		c := n.effect.cleanup
		n.effect.cleanup = nil
		rt.safeCall("effect", c)
		if n = rt.arena.get(id); n == nil {
			return
		}
	}

	rt.unlink(id, n)
	for _, sub := range n.subs {
		if s := rt.arena.get(sub); s != nil {
			s.deps = removeID(s.deps, id)
		}
	}
	rt.arena.release(id)
}

// =============================================================================
// Context
// =============================================================================

type contextKey[T any] struct{}

// ProvideContext makes value available to s and all of its descendants
// through UseContext. Providing the same type again replaces the value.
func ProvideContext[T any](s *Scope, value T) {
	if s.disposed {
		return
	}
	if s.values == nil {
		s.values = make(map[any]any)
	}
	s.values[contextKey[T]{}] = value
}

// UseContext returns the nearest value of type T provided on s or one of
// its ancestors.
func UseContext[T any](s *Scope) (T, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.values[contextKey[T]{}]; ok {
			return v.(T), true
		}
	}
	var zero T
	return zero, false
}
