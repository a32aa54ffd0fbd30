// Package reactive provides a fine-grained reactive runtime: signals,
// memos and effects owned by a hierarchy of disposable scopes.
//
// Dependencies are tracked automatically at runtime. Reading a signal while
// an effect or memo computation is running subscribes that computation to
// the signal's changes.
//
// # Core Types
//
// Every graph lives in a Runtime. The Runtime is created together with its
// root Scope, and every primitive is created inside a Scope:
//
//	rt := reactive.NewRuntime()
//	defer rt.Dispose()
//
//	count, setCount := reactive.CreateSignal(rt.Root(), 0)
//	doubled := reactive.CreateMemo(rt.Root(), func() int { return count.Get() * 2 })
//
//	reactive.CreateEffect(rt.Root(), func() reactive.Cleanup {
//	    fmt.Println("doubled:", doubled.Get())
//	    return nil
//	})
//
//	setCount.Set(5) // prints "doubled: 10"
//
// Memos are lazy: they recompute only when read after a dependency changed,
// and they stop propagation when the recomputed value is equal to the
// previous one. Effects are eager: they run once on creation and then rerun
// from the runtime's pending queue after every write that affects them.
//
// # Batching
//
// Several writes can be grouped so that dependent effects run once, after
// all of them:
//
//	rt.Batch(func() {
//	    first.Set("Ada")
//	    last.Set("Lovelace")
//	})
//
// # Ownership
//
// Scopes form a tree. Disposing a scope disposes its children, runs its
// cleanups in reverse registration order and invalidates every node created
// in it. Node handles are generational, so a handle outliving its scope is
// detected on the next access instead of reaching freed state.
//
// # Threading
//
// A Runtime is single-threaded. It holds no locks and must only be used from
// one goroutine at a time; hosts that receive updates on other goroutines
// must hand them over to the goroutine that owns the Runtime.
package reactive
