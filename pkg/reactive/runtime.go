package reactive

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// runtimeIDCounter gives every Runtime and Scope a distinct ID for
// diagnostics. It is the only process-wide state in the package.
var runtimeIDCounter atomic.Uint64

func nextID() uint64 {
	return runtimeIDCounter.Add(1)
}

// Runtime coordinates one reactive graph: it owns the node arena, the
// observer stack, the pending effect queue, the batch depth and the version
// clock. A Runtime is created together with its root scope and is torn down
// when that scope is disposed.
type Runtime struct {
	id    uint64
	arena arena

	root  *Scope
	roots []*Scope

	// scopes counts live scopes for Stats.
	scopes int

	// observers is the stack of memos and effects currently computing.
	// A zero NodeID marks an untracked section.
	observers []NodeID

	// queue holds effects waiting to run, in first-enqueued order.
	queue []NodeID

	batchDepth int
	draining   bool

	// clock is bumped on every value change; node versions are clock
	// readings.
	clock uint64

	// skipped holds nodes whose closure panicked or looped during the
	// current update. They are not run again until it ends.
	skipped map[NodeID]struct{}

	opts     runtimeOptions
	logger   *slog.Logger
	disposed bool
}

// NewRuntime creates a Runtime and its root scope.
func NewRuntime(opts ...Option) *Runtime {
	o := defaultRuntimeOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default().With("component", "reactive")
	}

	rt := &Runtime{
		id:      nextID(),
		skipped: make(map[NodeID]struct{}),
		opts:    o,
		logger:  logger,
	}
	rt.root = rt.newScope(nil)
	return rt
}

// ID returns the unique identifier for this Runtime.
func (rt *Runtime) ID() uint64 {
	return rt.id
}

// Root returns the root scope.
func (rt *Runtime) Root() *Scope {
	return rt.root
}

// Logger returns the runtime's diagnostic logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// IsDisposed reports whether the root scope has been disposed.
func (rt *Runtime) IsDisposed() bool {
	return rt.disposed
}

// Dispose disposes the root scope and every other root created through
// CreateScope(nil), releasing the whole graph.
func (rt *Runtime) Dispose() {
	rt.root.Dispose()
}

// teardown runs once the root scope is gone.
func (rt *Runtime) teardown() {
	rt.disposed = true
	roots := rt.roots
	rt.roots = nil
	for i := len(roots) - 1; i >= 0; i-- {
		roots[i].Dispose()
	}
	rt.queue = nil
	clear(rt.skipped)
}

// Stats is a point-in-time summary of a Runtime.
type Stats struct {
	Signals    int    `json:"signals"`
	Memos      int    `json:"memos"`
	Effects    int    `json:"effects"`
	Stored     int    `json:"stored"`
	Scopes     int    `json:"scopes"`
	Pending    int    `json:"pending"`
	BatchDepth int    `json:"batchDepth"`
	Clock      uint64 `json:"clock"`
	Disposed   bool   `json:"disposed"`
}

// Stats returns counts of the live nodes and the scheduler state.
func (rt *Runtime) Stats() Stats {
	s := Stats{
		Scopes:     rt.scopes,
		BatchDepth: rt.batchDepth,
		Clock:      rt.clock,
		Disposed:   rt.disposed,
	}
	for _, n := range rt.arena.slots {
		if !n.live {
			continue
		}
		switch n.kind {
		case NodeSignal:
			s.Signals++
		case NodeMemo:
			s.Memos++
		case NodeEffect:
			s.Effects++
			if n.pending {
				s.Pending++
			}
		case NodeStored:
			s.Stored++
		}
	}
	return s
}

// =============================================================================
// Tracking
// =============================================================================

func (rt *Runtime) currentObserver() NodeID {
	if len(rt.observers) == 0 {
		return NodeID{}
	}
	return rt.observers[len(rt.observers)-1]
}

// track records that the current observer read source.
func (rt *Runtime) track(source NodeID, src *node) {
	obsID := rt.currentObserver()
	if obsID.IsZero() || obsID == source {
		return
	}
	obs := rt.arena.get(obsID)
	if obs == nil {
		return
	}
	if !containsID(src.subs, obsID) {
		src.subs = append(src.subs, obsID)
	}
	if !containsID(obs.deps, source) {
		obs.deps = append(obs.deps, source)
	}
}

// unlink drops every edge from the dependencies of id back to id and
// empties its dependency set.
func (rt *Runtime) unlink(id NodeID, n *node) {
	for _, dep := range n.deps {
		if d := rt.arena.get(dep); d != nil {
			d.subs = removeID(d.subs, id)
		}
	}
	n.deps = n.deps[:0]
}

// invoke runs fn with id as the current observer. The observer stack is
// restored even if fn panics; the panic is returned as a *PanicError.
func (rt *Runtime) invoke(id NodeID, kind NodeKind, name string, fn func() any) (v any, err error) {
	depth := len(rt.observers)
	rt.observers = append(rt.observers, id)
	defer func() {
		rt.observers = rt.observers[:depth]
		if r := recover(); r != nil {
			err = &PanicError{Node: id, Kind: kind, Name: name, Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(), nil
}

// safeCall runs a cleanup callback, logging instead of propagating a panic
// so one failing cleanup does not stop a disposal.
func (rt *Runtime) safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("reactive: cleanup panicked", "cleanup", what, "panic", r)
		}
	}()
	fn()
}

// differs reports whether value should replace n's current value. A panic
// in the node's equality function is returned as a *PanicError.
func (rt *Runtime) differs(id NodeID, n *node, value any) (changed bool, err error) {
	if !n.hasValue || n.equal == nil {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Node: id, Kind: n.kind, Name: n.name, Value: r, Stack: debug.Stack()}
		}
	}()
	return !n.equal(n.value, value), nil
}

// =============================================================================
// Reads and writes
// =============================================================================

// lookup returns the live node behind id. The zero value of every handle
// carries a nil runtime, for which lookup finds nothing.
func (rt *Runtime) lookup(id NodeID) *node {
	if rt == nil {
		return nil
	}
	return rt.arena.get(id)
}

// read returns the current value of a signal, memo or stored value,
// recording a dependency when track is set.
func (rt *Runtime) read(id NodeID, op string, track bool) (any, error) {
	if rt == nil {
		return nil, rt.useAfterDispose(id, op)
	}
	n := rt.arena.get(id)
	if n == nil {
		err := rt.useAfterDispose(id, op)
		v, _ := rt.arena.lastValue(id)
		return v, err
	}

	if n.kind == NodeMemo {
		rt.refresh(id)
		if n = rt.arena.get(id); n == nil {
			v, _ := rt.arena.lastValue(id)
			return v, nil
		}
	}

	if track {
		rt.track(id, n)
	}
	value := n.value

	// A memo read outside any update can still find effects to run, when
	// a recomputation changed a value an effect skipped earlier depends on.
	if rt.batchDepth == 0 && !rt.draining && len(rt.queue) > 0 {
		if err := rt.flush(); err != nil {
			rt.logger.Error("reactive: update loop during read", "node", id.String(), "error", err)
		}
	}
	return value, nil
}

// version returns the clock reading of a node's last value change. A memo
// is brought up to date first, so the reading matches what Peek returns.
func (rt *Runtime) version(id NodeID) uint64 {
	n := rt.lookup(id)
	if n == nil {
		return 0
	}
	if n.kind == NodeMemo {
		rt.read(id, "version", false)
		if n = rt.lookup(id); n == nil {
			return 0
		}
	}
	return n.version
}

// commit stores value into a signal and propagates the change. It returns
// the loop error of the drain it started, if any.
func (rt *Runtime) commit(id NodeID, n *node, value any) error {
	changed, err := rt.differs(id, n, value)
	if err != nil {
		// The write goes through when the values cannot be compared.
		rt.closurePanic(id, n, err, rt.now())
	} else if !changed {
		return nil
	}

	n.value = value
	n.hasValue = true
	rt.clock++
	n.version = rt.clock

	if rt.draining || rt.batchDepth > 0 {
		rt.mark(n.subs, stateDirty)
		return nil
	}

	rt.batchDepth++
	rt.mark(n.subs, stateDirty)
	rt.batchDepth--
	return rt.flush()
}

// useAfterDispose reports an access through a stale handle according to
// the dispose policy. A handle without a runtime always gets the error.
func (rt *Runtime) useAfterDispose(id NodeID, op string) error {
	if rt == nil {
		return disposedError(id, op, false)
	}
	err := disposedError(id, op, rt.disposed)
	rt.emit(Event{Kind: EventUseAfterDispose, Node: id, Op: op, Err: err})
	if rt.opts.disposePolicy == DisposePolicyError {
		return err
	}
	rt.logger.Warn("reactive: use after dispose", "node", id.String(), "op", op)
	return nil
}

// =============================================================================
// Propagation
// =============================================================================

type markItem struct {
	id    NodeID
	state nodeState
}

// mark raises every node in subs to at least state. A memo leaving the clean
// state passes a check mark on to its own subscribers; an effect is queued.
// The walk is depth-first in subscription order, which fixes the order in
// which effects enter the queue.
func (rt *Runtime) mark(subs []NodeID, state nodeState) {
	if len(subs) == 0 {
		return
	}
	stack := make([]markItem, 0, len(subs))
	for i := len(subs) - 1; i >= 0; i-- {
		stack = append(stack, markItem{subs[i], state})
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := rt.arena.get(it.id)
		if n == nil || n.state >= it.state {
			continue
		}
		prev := n.state
		n.state = it.state

		switch n.kind {
		case NodeMemo:
			if prev == stateClean {
				for i := len(n.subs) - 1; i >= 0; i-- {
					stack = append(stack, markItem{n.subs[i], stateCheck})
				}
			}
		case NodeEffect:
			if !n.pending {
				n.pending = true
				rt.queue = append(rt.queue, it.id)
			}
		}
	}
}

// resolve settles a node in the check state by bringing its memo
// dependencies up to date. A dependency that changes marks the node dirty.
// It returns the node, or nil if it was disposed meanwhile.
func (rt *Runtime) resolve(id NodeID) *node {
	n := rt.arena.get(id)
	if n == nil || n.state != stateCheck {
		return n
	}

	deps := append([]NodeID(nil), n.deps...)
	for _, dep := range deps {
		if d := rt.arena.get(dep); d != nil && d.kind == NodeMemo {
			rt.refresh(dep)
		}
		if n = rt.arena.get(id); n == nil {
			return nil
		}
		if n.state == stateDirty {
			return n
		}
	}
	n.state = stateClean
	return n
}

// refresh brings a memo up to date, recomputing it only when it is dirty.
func (rt *Runtime) refresh(id NodeID) {
	n := rt.arena.get(id)
	if n == nil || n.computing || n.state == stateClean {
		return
	}
	if _, skip := rt.skipped[id]; skip {
		return
	}
	if n = rt.resolve(id); n != nil && n.state == stateDirty {
		rt.recompute(id)
	}
}

// recompute re-runs a memo's computation with fresh dependency tracking and
// marks its subscribers only if the value changed.
func (rt *Runtime) recompute(id NodeID) {
	n := rt.arena.get(id)
	rt.unlink(id, n)
	n.computing = true
	compute, name, scope := n.compute, n.name, n.scope.id

	start := rt.now()
	rt.batchDepth++
	value, err := rt.invoke(id, NodeMemo, name, compute)
	rt.batchDepth--

	if n = rt.arena.get(id); n == nil {
		return
	}
	n.computing = false

	if err != nil {
		rt.closurePanic(id, n, err, start)
		return
	}

	changed, err := rt.differs(id, n, value)
	if err != nil {
		rt.closurePanic(id, n, err, start)
		return
	}
	n.state = stateClean
	if changed {
		n.value = value
		n.hasValue = true
		rt.clock++
		n.version = rt.clock
		rt.mark(n.subs, stateDirty)
	}

	if len(rt.opts.sinks) > 0 {
		rt.emit(Event{
			Kind:     EventMemoRecompute,
			Node:     id,
			NodeKind: NodeMemo,
			Name:     name,
			Scope:    scope,
			Start:    start,
			Duration: time.Since(start),
			Changed:  changed,
		})
	}
}

// runEffect runs an effect's previous cleanup and then its closure, with
// fresh dependency tracking.
func (rt *Runtime) runEffect(id NodeID) {
	n := rt.arena.get(id)
	if n == nil {
		return
	}
	n.state = stateClean
	n.pending = false
	e := n.effect

	if c := e.cleanup; c != nil {
		e.cleanup = nil
		rt.safeCall("effect", c)
		if n = rt.arena.get(id); n == nil {
			return
		}
	}

	rt.unlink(id, n)

	var cleanup Cleanup
	start := rt.now()
	rt.batchDepth++
	_, err := rt.invoke(id, NodeEffect, e.name, func() any {
		cleanup = e.fn()
		return nil
	})
	rt.batchDepth--

	if n = rt.arena.get(id); n == nil {
		// The effect's own run disposed it.
		if cleanup != nil {
			rt.safeCall("effect", cleanup)
		}
		return
	}
	if err != nil {
		rt.closurePanic(id, n, err, start)
		return
	}

	e.cleanup = cleanup
	e.runs++

	if len(rt.opts.sinks) > 0 {
		rt.emit(Event{
			Kind:     EventEffectRun,
			Node:     id,
			NodeKind: NodeEffect,
			Name:     e.name,
			Scope:    e.scope.id,
			Start:    start,
			Duration: time.Since(start),
		})
	}
}

// closurePanic reports a recovered panic and takes the node out of the rest
// of the current update. The node is left clean so that the next change of
// a dependency it did read schedules it again; a memo keeps its previous
// value until then.
func (rt *Runtime) closurePanic(id NodeID, n *node, err error, start time.Time) {
	n.state = stateClean
	n.pending = false
	if rt.batchDepth > 0 || rt.draining {
		rt.skipped[id] = struct{}{}
	}

	var scope uint64
	if n.scope != nil {
		scope = n.scope.id
	}
	rt.logger.Error("reactive: closure panicked",
		"node", id.String(), "kind", n.kind.String(), "name", n.name, "error", err)
	rt.emit(Event{
		Kind:     EventClosurePanic,
		Node:     id,
		NodeKind: n.kind,
		Name:     n.name,
		Scope:    scope,
		Start:    start,
		Duration: rt.since(start),
		Err:      err,
	})
}

// flush drains the pending queue in first-enqueued order. Effects queued
// while draining are appended and run in the same drain.
func (rt *Runtime) flush() error {
	if rt.draining {
		return nil
	}
	if len(rt.queue) == 0 {
		clear(rt.skipped)
		return nil
	}

	rt.draining = true
	start := rt.now()
	ran := 0
	counts := make(map[NodeID]int)
	var errs []error

	// Entries from i on are still pending if a panic escapes the loop; they
	// stay queued for the next drain.
	i := 0
	defer func() {
		rt.queue = rt.queue[:copy(rt.queue, rt.queue[i:])]
		rt.draining = false
		clear(rt.skipped)
	}()

	for ; i < len(rt.queue); i++ {
		id := rt.queue[i]
		n := rt.arena.get(id)
		if n == nil {
			continue
		}
		if _, skip := rt.skipped[id]; skip {
			n.state = stateClean
			n.pending = false
			continue
		}

		if n = rt.resolve(id); n == nil {
			continue
		}
		if n.state != stateDirty {
			n.pending = false
			continue
		}

		counts[id]++
		if counts[id] > rt.opts.maxEffectReruns {
			n.state = stateClean
			n.pending = false
			rt.skipped[id] = struct{}{}
			errs = append(errs, rt.updateLoop(id, n, counts[id]-1))
			continue
		}

		rt.runEffect(id)
		ran++
	}

	if rt.opts.debug {
		rt.logger.Debug("reactive: drained", "effects", ran, "queued", len(rt.queue), "duration", rt.since(start))
	}
	if len(rt.opts.sinks) > 0 {
		rt.emit(Event{Kind: EventDrain, Start: start, Duration: time.Since(start), Effects: ran})
	}

	return errors.Join(errs...)
}

func (rt *Runtime) updateLoop(id NodeID, n *node, runs int) error {
	err := &LoopError{Node: id, Name: n.name, Runs: runs, Limit: rt.opts.maxEffectReruns}
	var scope uint64
	if n.scope != nil {
		scope = n.scope.id
	}
	rt.logger.Error("reactive: update loop aborted", "node", id.String(), "name", n.name, "runs", runs)
	rt.emit(Event{
		Kind:     EventUpdateLoop,
		Node:     id,
		NodeKind: n.kind,
		Name:     n.name,
		Scope:    scope,
		Runs:     runs,
		Err:      err,
	})
	return err
}

// settle closes an internal batch opened by a constructor or disposal,
// draining if it was the outermost one.
func (rt *Runtime) settle(what string) {
	rt.batchDepth--
	if rt.batchDepth > 0 || rt.draining {
		return
	}
	if err := rt.flush(); err != nil {
		rt.logger.Error("reactive: update loop", "during", what, "error", err)
	}
}

// =============================================================================
// Diagnostics
// =============================================================================

func (rt *Runtime) emit(ev Event) {
	for _, sink := range rt.opts.sinks {
		rt.deliver(sink, ev)
	}
}

// deliver hands ev to one sink. A panicking sink is logged and does not
// reach the runtime or the remaining sinks.
func (rt *Runtime) deliver(sink EventSink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("reactive: event sink panicked", "event", ev.Kind.String(), "node", ev.Node.String(), "panic", r)
		}
	}()
	sink(ev)
}

// now returns the current time only when someone consumes timings.
func (rt *Runtime) now() time.Time {
	if len(rt.opts.sinks) == 0 && !rt.opts.debug {
		return time.Time{}
	}
	return time.Now()
}

func (rt *Runtime) since(start time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
