package hub

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// EventKind identifies a hub lifecycle event.
type EventKind int

const (
	// EventConnected fires after a client is registered in both
	// registries and heartbeat tracking has begun.
	EventConnected EventKind = iota

	// EventDisconnected fires after a client has been removed from both
	// registries. Exactly one per client lifetime.
	EventDisconnected
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Handler observes a lifecycle event for one client. Handlers run
// synchronously on the dispatching goroutine, in subscription order, and
// must not block or assume a particular thread.
type Handler func(c *Client)

type subscription struct {
	id uint64
	fn Handler
}

// Dispatcher is an ordered multicast of lifecycle events to subscribers.
// Dispatch iterates a snapshot of the subscriber list, so subscribing or
// unsubscribing during a dispatch never corrupts the in-flight delivery.
// A panicking subscriber is recovered and logged; its siblings still run.
type Dispatcher struct {
	mu     sync.Mutex
	seq    uint64
	subs   map[EventKind][]subscription
	logger *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		subs:   make(map[EventKind][]subscription),
		logger: logger.With("component", "dispatcher"),
	}
}

// Subscribe appends fn to the subscriber list for kind and returns a
// func that removes it again. Unsubscribing twice is a no-op.
func (d *Dispatcher) Subscribe(kind EventKind, fn Handler) func() {
	d.mu.Lock()
	d.seq++
	id := d.seq
	d.subs[kind] = append(d.subs[kind], subscription{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		list := d.subs[kind]
		for i, s := range list {
			if s.id == id {
				d.subs[kind] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Dispatch invokes every subscriber for kind synchronously, in
// subscription order, on the calling goroutine.
func (d *Dispatcher) Dispatch(kind EventKind, c *Client) {
	d.mu.Lock()
	snapshot := append([]subscription(nil), d.subs[kind]...)
	d.mu.Unlock()

	for _, s := range snapshot {
		d.invoke(kind, s.fn, c)
	}
}

func (d *Dispatcher) invoke(kind EventKind, fn Handler, c *Client) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("subscriber panic",
				"event", kind.String(),
				"client_id", c.ID(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn(c)
}
