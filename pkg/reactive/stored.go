package reactive

// StoredValue is a non-reactive value owned by a scope. Reads never
// subscribe and writes never notify; the value is dropped when the scope is
// disposed.
type StoredValue[T any] struct {
	rt *Runtime
	id NodeID
}

// StoreValue stores value in s.
func StoreValue[T any](s *Scope, value T) StoredValue[T] {
	rt := s.rt
	if s.disposed {
		rt.useAfterDispose(NodeID{}, "store value")
		return StoredValue[T]{rt: rt}
	}

	id, n := rt.arena.alloc(NodeStored, s)
	n.value = value
	n.hasValue = true
	s.own(id)
	return StoredValue[T]{rt: rt, id: id}
}

// Get returns the stored value, or the last-known value after disposal.
func (v StoredValue[T]) Get() T {
	t, _ := v.TryGet()
	return t
}

// TryGet returns the stored value, reporting stale handles per the dispose
// policy.
func (v StoredValue[T]) TryGet() (T, error) {
	raw, err := v.rt.read(v.id, "get stored", false)
	t, _ := raw.(T)
	return t, err
}

// Set replaces the stored value.
func (v StoredValue[T]) Set(value T) error {
	n := v.rt.lookup(v.id)
	if n == nil {
		return v.rt.useAfterDispose(v.id, "set stored")
	}
	n.value = value
	return nil
}

// Update replaces the stored value with fn applied to it.
func (v StoredValue[T]) Update(fn func(T) T) error {
	n := v.rt.lookup(v.id)
	if n == nil {
		return v.rt.useAfterDispose(v.id, "set stored")
	}
	old, _ := n.value.(T)
	next := fn(old)
	if n = v.rt.lookup(v.id); n == nil {
		return v.rt.useAfterDispose(v.id, "set stored")
	}
	n.value = next
	return nil
}

// With calls fn with the stored value.
func (v StoredValue[T]) With(fn func(T)) {
	fn(v.Get())
}

// IsDisposed reports whether the owning scope was disposed.
func (v StoredValue[T]) IsDisposed() bool {
	return v.rt.lookup(v.id) == nil
}
