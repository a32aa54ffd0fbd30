package reactive

import (
	"errors"
	"fmt"
)

// ErrUseAfterDispose is reported when a node is read or written after the
// scope that owns it was disposed. Whether it is returned to the caller or
// only logged depends on the runtime's DisposePolicy.
var ErrUseAfterDispose = errors.New("reactive: use after dispose")

// ErrRuntimeDisposed is reported in place of a plain ErrUseAfterDispose
// once the whole runtime was disposed. errors.Is matches both.
var ErrRuntimeDisposed = errors.New("reactive: runtime disposed")

// ErrInfiniteUpdateLoop is returned from the write or batch that started a
// drain in which an effect kept re-triggering itself past the rerun limit.
var ErrInfiniteUpdateLoop = errors.New("reactive: infinite update loop")

// ErrClosurePanic identifies a panic recovered from an effect or memo
// closure. It is never returned from writes; it reaches callers through the
// logger and event sinks.
var ErrClosurePanic = errors.New("reactive: closure panicked")

// LoopError describes an effect that was stopped by the rerun limit.
type LoopError struct {
	Node  NodeID
	Name  string
	Runs  int
	Limit int
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	return fmt.Sprintf("reactive: effect %s ran %d times in one update (limit %d)",
		nodeLabel(e.Node, e.Name), e.Runs, e.Limit)
}

// Unwrap returns ErrInfiniteUpdateLoop for errors.Is support.
func (e *LoopError) Unwrap() error {
	return ErrInfiniteUpdateLoop
}

// PanicError carries a value recovered from a user closure.
type PanicError struct {
	Node  NodeID
	Kind  NodeKind
	Name  string
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("reactive: %s %s panicked: %v", e.Kind, nodeLabel(e.Node, e.Name), e.Value)
}

// Unwrap exposes ErrClosurePanic and, when the panic value was an error,
// that error too.
func (e *PanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrClosurePanic, err}
	}
	return []error{ErrClosurePanic}
}

func disposedError(id NodeID, op string, runtimeGone bool) error {
	if runtimeGone {
		return fmt.Errorf("%w: %s on node %s: %w", ErrRuntimeDisposed, op, id, ErrUseAfterDispose)
	}
	return fmt.Errorf("%w: %s on node %s", ErrUseAfterDispose, op, id)
}

func nodeLabel(id NodeID, name string) string {
	if name == "" {
		return id.String()
	}
	return fmt.Sprintf("%q (%s)", name, id)
}
