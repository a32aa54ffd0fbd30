package reactive

// Batch runs fn with queue draining suspended. Effects triggered by writes
// inside fn run once, after fn returns, and see only the final values.
//
// Batches can be nested. Draining happens when the outermost batch
// completes; its error, an infinite update loop, is returned from that
// outermost Batch.
//
// Example:
//
//	err := rt.Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	})
func (rt *Runtime) Batch(fn func()) (err error) {
	rt.batchDepth++
	defer func() {
		rt.batchDepth--
		if rt.batchDepth == 0 && !rt.draining {
			err = rt.flush()
		}
	}()

	fn()
	return nil
}

// Untracked runs fn without recording any dependency for the current
// observer.
//
// Example:
//
//	reactive.CreateEffect(scope, func() reactive.Cleanup {
//	    id := user.Get()
//	    rt.Untracked(func() {
//	        log.Println("theme is", theme.Get()) // no dependency on theme
//	    })
//	    return nil
//	})
func (rt *Runtime) Untracked(fn func()) {
	depth := len(rt.observers)
	rt.observers = append(rt.observers, NodeID{})
	defer func() { rt.observers = rt.observers[:depth] }()
	fn()
}

// Untrack runs fn without recording dependencies and returns its result.
func Untrack[T any](rt *Runtime, fn func() T) T {
	var result T
	rt.Untracked(func() {
		result = fn()
	})
	return result
}
