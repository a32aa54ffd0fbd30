// Package inspect serves live runtime diagnostics to development tools.
//
// A Hub collects runtime events and stats on the goroutine that owns the
// runtime and fans them out to websocket subscribers. A Server exposes the
// hub over HTTP:
//
//	GET /stats    latest runtime stats as JSON
//	GET /events   websocket stream of runtime events
//	GET /metrics  Prometheus metrics
//	GET /healthz  liveness probe
//
// The reactive graph is never touched from HTTP goroutines. The runtime
// goroutine pushes into the hub; handlers only read what was pushed.
package inspect

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// DefaultBuffer is the per-client queue length used when none is given.
const DefaultBuffer = 256

// Message types sent to subscribers.
const (
	MessageHello = "hello"
	MessageEvent = "event"
	MessageStats = "stats"
)

// Message is one frame of the event stream.
type Message struct {
	Type   string          `json:"type"`
	Client string          `json:"client,omitempty"`
	Event  *EventPayload   `json:"event,omitempty"`
	Stats  *reactive.Stats `json:"stats,omitempty"`
}

// EventPayload is the JSON form of a reactive.Event.
type EventPayload struct {
	Kind     string     `json:"kind"`
	Node     string     `json:"node,omitempty"`
	NodeKind string     `json:"nodeKind,omitempty"`
	Name     string     `json:"name,omitempty"`
	Scope    uint64     `json:"scope,omitempty"`
	Op       string     `json:"op,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	Micros   int64      `json:"durationMicros,omitempty"`
	Effects  int        `json:"effects,omitempty"`
	Runs     int        `json:"runs,omitempty"`
	Changed  bool       `json:"changed,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// NewEventPayload converts ev for the wire.
func NewEventPayload(ev reactive.Event) *EventPayload {
	p := &EventPayload{
		Kind:    ev.Kind.String(),
		Name:    ev.Name,
		Scope:   ev.Scope,
		Op:      ev.Op,
		Micros:  ev.Duration.Microseconds(),
		Effects: ev.Effects,
		Runs:    ev.Runs,
		Changed: ev.Changed,
	}
	if !ev.Node.IsZero() {
		p.Node = ev.Node.String()
		p.NodeKind = ev.NodeKind.String()
	}
	if !ev.Start.IsZero() {
		start := ev.Start
		p.Start = &start
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}
	return p
}

// Snapshot is the hub state served by /stats.
type Snapshot struct {
	Stats     reactive.Stats `json:"stats"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Clients   int            `json:"clients"`
	Published uint64         `json:"published"`
	Dropped   uint64         `json:"dropped"`
}

type client struct {
	id   string
	send chan []byte
}

// Hub fans runtime events out to subscribers. All methods are safe for
// concurrent use.
type Hub struct {
	logger *slog.Logger
	buffer int

	mu        sync.RWMutex
	clients   map[string]*client
	stats     reactive.Stats
	updatedAt time.Time
	published uint64
	dropped   uint64
	closed    bool
}

// NewHub returns a Hub whose subscribers each queue up to buffer frames.
// A subscriber that falls further behind loses frames.
func NewHub(logger *slog.Logger, buffer int) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		logger:  logger.With("component", "inspect"),
		buffer:  buffer,
		clients: make(map[string]*client),
	}
}

// Subscribe registers a new subscriber. The returned channel is closed by
// cancel or by Close.
func (h *Hub) Subscribe() (id string, frames <-chan []byte, cancel func()) {
	c := &client{
		id:   uuid.NewString(),
		send: make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(c.send)
		return c.id, c.send, func() {}
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client subscribed", "client", c.id, "clients", n)

	var once sync.Once
	return c.id, c.send, func() {
		once.Do(func() { h.unsubscribe(c.id) })
	}
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		h.logger.Debug("client unsubscribed", "client", id)
	}
}

// Sink returns an event sink publishing into h.
func (h *Hub) Sink() reactive.EventSink {
	return h.Publish
}

// Publish sends ev to every subscriber.
func (h *Hub) Publish(ev reactive.Event) {
	h.broadcast(Message{Type: MessageEvent, Event: NewEventPayload(ev)})
}

// PublishStats records s as the latest stats and sends it to every
// subscriber.
func (h *Hub) PublishStats(s reactive.Stats) {
	h.mu.Lock()
	h.stats = s
	h.updatedAt = time.Now()
	h.mu.Unlock()

	h.broadcast(Message{Type: MessageStats, Stats: &s})
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode message", "type", msg.Type, "error", err)
		return
	}

	// Sends never block, so holding the write lock keeps unsubscribe from
	// closing a channel mid-send.
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.published++
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped++
		}
	}
}

// Snapshot returns the latest stats and the hub counters.
func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		Stats:     h.stats,
		UpdatedAt: h.updatedAt,
		Clients:   len(h.clients),
		Published: h.published,
		Dropped:   h.dropped,
	}
}

// Clients returns the number of subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}
