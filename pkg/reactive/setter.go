package reactive

type setterKind uint8

const (
	setterNone setterKind = iota
	setterDirect
	setterMapped
)

// SignalSetter is anything that accepts a value the way a WriteSignal does:
// either a signal's write half, or a closure that turns the value into
// writes on one or more signals. APIs can take a SignalSetter instead of a
// concrete signal to let callers adapt what gets written.
//
// The zero SignalSetter ignores every value.
//
// Example:
//
//	count, setCount := reactive.CreateSignal(scope, 2)
//	setDouble := reactive.MapSetter(scope, func(n int) { setCount.Set(n * 2) })
//
//	reactive.SetterFrom(setCount).Set(4) // count == 4
//	setDouble.Set(4)                     // count == 8
type SignalSetter[T any] struct {
	kind   setterKind
	direct WriteSignal[T]
	mapped StoredValue[func(T)]
}

// SetterFrom wraps a signal's write half.
func SetterFrom[T any](w WriteSignal[T]) SignalSetter[T] {
	return SignalSetter[T]{kind: setterDirect, direct: w}
}

// MapSetter wraps fn. The closure is stored in s and released with it.
func MapSetter[T any](s *Scope, fn func(T)) SignalSetter[T] {
	return SignalSetter[T]{kind: setterMapped, mapped: StoreValue(s, fn)}
}

// Set forwards value to the wrapped signal or closure. All writes made by a
// mapped closure are batched together.
func (s SignalSetter[T]) Set(value T) error {
	switch s.kind {
	case setterDirect:
		return s.direct.Set(value)
	case setterMapped:
		rt := s.mapped.rt
		n := rt.lookup(s.mapped.id)
		if n == nil {
			return rt.useAfterDispose(s.mapped.id, "set")
		}
		fn, _ := n.value.(func(T))
		if fn == nil {
			return nil
		}
		return rt.Batch(func() { fn(value) })
	default:
		return nil
	}
}

// IsMapped reports whether the setter wraps a closure.
func (s SignalSetter[T]) IsMapped() bool {
	return s.kind == setterMapped
}
