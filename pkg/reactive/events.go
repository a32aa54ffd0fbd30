package reactive

import "time"

// EventKind identifies a runtime diagnostic event.
type EventKind uint8

const (
	// EventEffectRun is emitted after every effect run.
	EventEffectRun EventKind = iota + 1

	// EventMemoRecompute is emitted after every memo computation.
	EventMemoRecompute

	// EventDrain is emitted after the pending queue has been drained.
	EventDrain

	// EventClosurePanic is emitted when an effect or memo closure panicked.
	EventClosurePanic

	// EventUpdateLoop is emitted when an effect hit the rerun limit.
	EventUpdateLoop

	// EventUseAfterDispose is emitted on any access through a stale handle.
	EventUseAfterDispose

	// EventScopeDisposed is emitted once a scope finished disposing.
	EventScopeDisposed
)

// String returns the event kind in snake case, suitable for metric labels.
func (k EventKind) String() string {
	switch k {
	case EventEffectRun:
		return "effect_run"
	case EventMemoRecompute:
		return "memo_recompute"
	case EventDrain:
		return "drain"
	case EventClosurePanic:
		return "closure_panic"
	case EventUpdateLoop:
		return "update_loop"
	case EventUseAfterDispose:
		return "use_after_dispose"
	case EventScopeDisposed:
		return "scope_disposed"
	default:
		return "unknown"
	}
}

// Event describes something the runtime did. Events are delivered
// synchronously on the goroutine that owns the runtime; sinks that hand
// them to other goroutines must copy what they need.
type Event struct {
	Kind EventKind

	// Node is the node concerned, zero for drains and scope disposal.
	Node     NodeID
	NodeKind NodeKind
	Name     string

	// Scope is the ID of the owning scope, or of the disposed scope.
	Scope uint64

	// Op names the rejected operation for EventUseAfterDispose.
	Op string

	// Start and Duration time the run, recomputation, drain or disposal.
	// They are zero when no timing applies.
	Start    time.Time
	Duration time.Duration

	// Effects is the number of effect runs in a drain.
	Effects int

	// Runs is the rerun count that tripped EventUpdateLoop.
	Runs int

	// Changed reports whether a memo recomputation produced a new value.
	Changed bool

	Err error
}

// EventSink receives runtime events.
type EventSink func(Event)
