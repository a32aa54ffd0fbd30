package reactive

// ReadSignal is the read half of a signal or memo. Reading it while an
// effect or memo computation runs subscribes that computation.
//
// A ReadSignal is a small value; copy it freely. It stays valid until the
// scope that created the node is disposed.
type ReadSignal[T any] struct {
	rt *Runtime
	id NodeID
}

// WriteSignal is the write half of a signal.
type WriteSignal[T any] struct {
	rt *Runtime
	id NodeID
}

// RwSignal combines both halves of a signal in one handle.
type RwSignal[T any] struct {
	rt *Runtime
	id NodeID
}

// CreateSignal creates a signal owned by s with the given initial value.
//
// By default every write propagates, even of an unchanged value. Use
// SkipEqual, WithEquals or the runtime's WithEqualitySkip to drop equal
// writes.
func CreateSignal[T any](s *Scope, initial T, opts ...SignalOption) (ReadSignal[T], WriteSignal[T]) {
	id := createSignalNode[T](s, initial, opts)
	return ReadSignal[T]{rt: s.rt, id: id}, WriteSignal[T]{rt: s.rt, id: id}
}

// CreateRwSignal creates a signal and returns a combined read/write handle.
func CreateRwSignal[T any](s *Scope, initial T, opts ...SignalOption) RwSignal[T] {
	return RwSignal[T]{rt: s.rt, id: createSignalNode[T](s, initial, opts)}
}

func createSignalNode[T any](s *Scope, initial T, opts []SignalOption) NodeID {
	rt := s.rt
	if s.disposed {
		rt.useAfterDispose(NodeID{}, "create signal")
		return NodeID{}
	}

	o := applySignalOptions(opts)
	id, n := rt.arena.alloc(NodeSignal, s)
	n.name = o.name
	n.value = initial
	n.hasValue = true
	n.equal = signalEquality[T](o, rt.opts.skipEqualWrites)
	rt.clock++
	n.version = rt.clock
	s.own(id)
	return id
}

// Get returns the current value and subscribes the current observer. After
// disposal it returns the last-known value, or the zero value once the
// storage was reused. The zero ReadSignal reads as the zero value.
func (r ReadSignal[T]) Get() T {
	v, _ := r.TryGet()
	return v
}

// TryGet is Get that also returns ErrUseAfterDispose when the runtime uses
// DisposePolicyError.
func (r ReadSignal[T]) TryGet() (T, error) {
	v, err := r.rt.read(r.id, "get", true)
	t, _ := v.(T)
	return t, err
}

// Peek returns the current value without subscribing. Memos are still
// brought up to date.
func (r ReadSignal[T]) Peek() T {
	v, _ := r.rt.read(r.id, "peek", false)
	t, _ := v.(T)
	return t
}

// With calls fn with the current value and subscribes the current observer.
func (r ReadSignal[T]) With(fn func(T)) {
	fn(r.Get())
}

// Version returns the clock reading of the node's last value change, or
// zero after disposal. A stale memo is recomputed first.
func (r ReadSignal[T]) Version() uint64 {
	return r.rt.version(r.id)
}

// ID returns the node handle.
func (r ReadSignal[T]) ID() NodeID {
	return r.id
}

// IsDisposed reports whether the owning scope was disposed.
func (r ReadSignal[T]) IsDisposed() bool {
	return r.rt.lookup(r.id) == nil
}

// Set stores value and notifies subscribers. When called outside a batch
// and outside a running update, the effects it triggers have run by the
// time Set returns, and any infinite update loop among them is returned.
func (w WriteSignal[T]) Set(value T) error {
	n, err := w.rt.writable(w.id)
	if n == nil {
		return err
	}
	return w.rt.commit(w.id, n, value)
}

// Update replaces the value with fn applied to the current one. fn runs
// untracked.
func (w WriteSignal[T]) Update(fn func(T) T) error {
	rt := w.rt
	n, err := rt.writable(w.id)
	if n == nil {
		return err
	}
	old, _ := n.value.(T)
	next := Untrack(rt, func() T { return fn(old) })

	if n, err = rt.writable(w.id); n == nil {
		return err
	}
	return rt.commit(w.id, n, next)
}

// ID returns the node handle.
func (w WriteSignal[T]) ID() NodeID {
	return w.id
}

// IsDisposed reports whether the owning scope was disposed.
func (w WriteSignal[T]) IsDisposed() bool {
	return w.rt.lookup(w.id) == nil
}

// writable looks up a signal for writing, reporting stale handles.
func (rt *Runtime) writable(id NodeID) (*node, error) {
	if n := rt.lookup(id); n != nil {
		return n, nil
	}
	return nil, rt.useAfterDispose(id, "set")
}

// ReadOnly returns the read half.
func (s RwSignal[T]) ReadOnly() ReadSignal[T] {
	return ReadSignal[T]{rt: s.rt, id: s.id}
}

// WriteOnly returns the write half.
func (s RwSignal[T]) WriteOnly() WriteSignal[T] {
	return WriteSignal[T]{rt: s.rt, id: s.id}
}

// Split returns both halves.
func (s RwSignal[T]) Split() (ReadSignal[T], WriteSignal[T]) {
	return s.ReadOnly(), s.WriteOnly()
}

// Get reads the value and subscribes the current observer.
func (s RwSignal[T]) Get() T { return s.ReadOnly().Get() }

// TryGet reads the value, reporting stale handles per the dispose policy.
func (s RwSignal[T]) TryGet() (T, error) { return s.ReadOnly().TryGet() }

// Peek reads the value without subscribing.
func (s RwSignal[T]) Peek() T { return s.ReadOnly().Peek() }

// Set writes the value.
func (s RwSignal[T]) Set(value T) error { return s.WriteOnly().Set(value) }

// Update writes fn applied to the current value.
func (s RwSignal[T]) Update(fn func(T) T) error { return s.WriteOnly().Update(fn) }

// Version returns the clock reading of the last change.
func (s RwSignal[T]) Version() uint64 { return s.ReadOnly().Version() }

// ID returns the node handle.
func (s RwSignal[T]) ID() NodeID { return s.id }

// IsDisposed reports whether the owning scope was disposed.
func (s RwSignal[T]) IsDisposed() bool { return s.ReadOnly().IsDisposed() }
