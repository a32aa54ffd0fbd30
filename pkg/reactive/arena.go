package reactive

import "fmt"

// NodeID is a generational handle to a node stored in a Runtime's arena.
// A NodeID stays comparable and copyable after its node is disposed; the
// generation mismatch is what marks it stale. The zero NodeID never refers
// to a node.
type NodeID struct {
	index uint32
	gen   uint32
}

// IsZero reports whether id is the zero handle.
func (id NodeID) IsZero() bool {
	return id.gen == 0
}

// String returns the handle as "index:generation".
func (id NodeID) String() string {
	return fmt.Sprintf("%d:%d", id.index, id.gen)
}

// NodeKind identifies what a node in the arena is.
type NodeKind uint8

const (
	NodeSignal NodeKind = iota + 1
	NodeMemo
	NodeEffect
	NodeStored
)

// String returns a human-readable name for the node kind.
func (k NodeKind) String() string {
	switch k {
	case NodeSignal:
		return "signal"
	case NodeMemo:
		return "memo"
	case NodeEffect:
		return "effect"
	case NodeStored:
		return "stored"
	default:
		return "unknown"
	}
}

// nodeState orders how stale a memo or effect is. A node only ever moves up
// this order while marking, and back to clean when it is brought up to date.
type nodeState uint8

const (
	stateClean nodeState = iota
	// stateCheck means an upstream memo may have changed.
	stateCheck
	// stateDirty means a direct dependency changed.
	stateDirty
)

type node struct {
	gen  uint32
	live bool
	kind NodeKind
	name string

	scope *Scope

	value    any
	hasValue bool
	version  uint64

	// equal reports whether a new value may be dropped. nil means every
	// write propagates.
	equal func(a, b any) bool

	// subs are the memos and effects that read this node, in the order
	// they first subscribed.
	subs []NodeID

	// deps are the nodes read during the last computation of a memo or
	// run of an effect.
	deps []NodeID

	state     nodeState
	pending   bool
	computing bool

	compute func() any
	effect  *Effect
}

// arena owns the storage of every node in a Runtime. Freed slots keep their
// last value until the slot is reused so stale readers can be answered with
// the last-known value.
type arena struct {
	slots []*node
	free  []uint32
	live  int
}

func (a *arena) alloc(kind NodeKind, scope *Scope) (NodeID, *node) {
	var (
		idx uint32
		n   *node
	)
	if l := len(a.free); l > 0 {
		idx = a.free[l-1]
		a.free = a.free[:l-1]
		n = a.slots[idx]
		*n = node{gen: n.gen}
	} else {
		idx = uint32(len(a.slots))
		n = &node{gen: 1}
		a.slots = append(a.slots, n)
	}

	n.live = true
	n.kind = kind
	n.scope = scope
	a.live++

	return NodeID{index: idx, gen: n.gen}, n
}

// get returns the live node for id, or nil when id is zero or stale.
func (a *arena) get(id NodeID) *node {
	if id.gen == 0 || int(id.index) >= len(a.slots) {
		return nil
	}
	n := a.slots[id.index]
	if !n.live || n.gen != id.gen {
		return nil
	}
	return n
}

// lastValue returns the value a node held when it was released, provided
// its slot has not been handed out again since.
func (a *arena) lastValue(id NodeID) (any, bool) {
	if id.gen == 0 || int(id.index) >= len(a.slots) {
		return nil, false
	}
	n := a.slots[id.index]
	if n.live || n.gen != id.gen+1 {
		return nil, false
	}
	return n.value, n.hasValue
}

// release frees the slot of id and bumps its generation, turning every
// outstanding copy of id stale.
func (a *arena) release(id NodeID) {
	n := a.get(id)
	if n == nil {
		return
	}

	n.live = false
	n.gen++
	if n.gen == 0 {
		n.gen = 1
	}
	n.scope = nil
	n.subs = nil
	n.deps = nil
	n.equal = nil
	n.compute = nil
	n.effect = nil
	n.pending = false
	n.computing = false

	a.free = append(a.free, id.index)
	a.live--
}

func containsID(ids []NodeID, id NodeID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// removeID removes id from ids keeping the order of the remaining entries.
func removeID(ids []NodeID, id NodeID) []NodeID {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
