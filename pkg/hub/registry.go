package hub

import (
	"sort"
	"sync"
)

// Registry is a thread-safe mapping from client identity to client
// handle. The hub maintains two independent instances: the set of all
// connected clients and the subset currently considered alive. They are
// never the same underlying structure because their membership diverges
// under heartbeat eviction.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint64]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[uint64]*Client),
	}
}

// Put inserts or overwrites the entry for id.
// It reports whether an entry for id already existed.
func (r *Registry) Put(id uint64, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.clients[id]
	r.clients[id] = c
	return existed
}

// PutIfAbsent inserts the entry for id only if no entry exists yet. It
// reports whether the insert happened; on false the existing entry is
// left untouched.
func (r *Registry) PutIfAbsent(id uint64, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[id]; exists {
		return false
	}
	r.clients[id] = c
	return true
}

// Remove deletes the entry for id if present. It is idempotent: removing
// an absent id is a no-op. The removed client and whether it was present
// are returned.
func (r *Registry) Remove(id uint64) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	delete(r.clients, id)
	return c, true
}

// Get returns the client for id, or nil and false if not found.
func (r *Registry) Get(id uint64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	return c, ok
}

// Has reports whether id is present.
func (r *Registry) Has(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.clients[id]
	return ok
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot returns a point-in-time copy of all entries, ordered by
// identity. The copy is safe to iterate while the registry continues to
// mutate concurrently.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// IDs returns a sorted point-in-time copy of the key set.
func (r *Registry) IDs() []uint64 {
	r.mu.RLock()
	out := make([]uint64, 0, len(r.clients))
	for id := range r.clients {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
