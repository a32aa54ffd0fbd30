package reactive

// CreateMemo creates a cached derived value owned by s.
//
// The computation does not run until the memo is first read. Afterwards it
// reruns only when the memo is read after one of the signals or memos it
// read last time changed. When a recomputation yields a value equal to the
// previous one, the memo's own subscribers are left alone; this is what
// keeps effects downstream of a memo from observing glitches or rerunning
// for nothing.
//
// Values are compared with ==/reflect.DeepEqual unless WithEquals or
// AlwaysNotify is given.
//
// Example:
//
//	parity := reactive.CreateMemo(scope, func() int { return n.Get() % 2 })
func CreateMemo[T any](s *Scope, compute func() T, opts ...SignalOption) ReadSignal[T] {
	rt := s.rt
	if s.disposed {
		rt.useAfterDispose(NodeID{}, "create memo")
		return ReadSignal[T]{rt: rt}
	}

	o := applySignalOptions(opts)
	id, n := rt.arena.alloc(NodeMemo, s)
	n.name = o.name
	n.equal = memoEquality[T](o)
	n.state = stateDirty
	n.compute = func() any { return compute() }
	s.own(id)

	return ReadSignal[T]{rt: rt, id: id}
}

// CreateSelector creates a memo of whether source currently equals key.
// Many selectors over one source only notify the two whose result flips.
func CreateSelector[T comparable](s *Scope, source ReadSignal[T], key T) ReadSignal[bool] {
	return CreateMemo(s, func() bool { return source.Get() == key })
}
