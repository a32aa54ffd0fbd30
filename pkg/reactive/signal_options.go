package reactive

import "reflect"

// SignalOption configures a signal or memo.
type SignalOption func(*signalOptions)

type signalOptions struct {
	name string

	// equal is the configured equality function, already type-erased.
	equal func(a, b any) bool

	// notify forces every write to propagate, overriding the runtime
	// default.
	notify bool

	// skip turns on equality-skip with the default equality.
	skip bool
}

// Named attaches a name to the node. Names show up in logs, events and
// errors.
func Named(name string) SignalOption {
	return func(o *signalOptions) {
		o.name = name
	}
}

// WithEquals makes writes of a value equal to the current one under fn a
// no-op: no version bump and no propagation. For memos it decides whether a
// recomputed value is new.
func WithEquals[T any](fn func(a, b T) bool) SignalOption {
	return func(o *signalOptions) {
		if fn == nil {
			o.equal = nil
			return
		}
		o.equal = func(a, b any) bool {
			x, _ := a.(T)
			y, _ := b.(T)
			return fn(x, y)
		}
	}
}

// SkipEqual enables equality-skip using the default equality: == for basic
// types and reflect.DeepEqual for everything else.
func SkipEqual() SignalOption {
	return func(o *signalOptions) {
		o.skip = true
		o.notify = false
	}
}

// AlwaysNotify disables equality-skip: every write bumps the version and
// propagates, and every memo recomputation counts as a change.
func AlwaysNotify() SignalOption {
	return func(o *signalOptions) {
		o.notify = true
		o.skip = false
		o.equal = nil
	}
}

func applySignalOptions(opts []SignalOption) signalOptions {
	var o signalOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// signalEquality picks the equality function of a signal. Signals notify on
// every write unless an equality policy was configured on the signal or the
// runtime.
func signalEquality[T any](o signalOptions, runtimeDefault bool) func(a, b any) bool {
	switch {
	case o.notify:
		return nil
	case o.equal != nil:
		return o.equal
	case o.skip || runtimeDefault:
		return erasedEquals[T]
	default:
		return nil
	}
}

// memoEquality picks the equality function of a memo. Memos always compare
// unless told to notify.
func memoEquality[T any](o signalOptions) func(a, b any) bool {
	switch {
	case o.notify:
		return nil
	case o.equal != nil:
		return o.equal
	default:
		return erasedEquals[T]
	}
}

func erasedEquals[T any](a, b any) bool {
	x, _ := a.(T)
	y, _ := b.(T)
	return defaultEquals(x, y)
}

// defaultEquals uses == for the common comparable kinds and falls back to
// reflect.DeepEqual for slices, maps, structs and the rest.
func defaultEquals[T any](a, b T) bool {
	switch any(a).(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64:
		// Interface comparison cannot panic once a's dynamic type is
		// known to be comparable.
		return any(a) == any(b)
	default:
		return reflect.DeepEqual(a, b)
	}
}
