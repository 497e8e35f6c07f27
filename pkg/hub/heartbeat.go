package hub

import (
	"log/slog"
	"sort"
	"sync"
)

// Monitor tracks a missed-heartbeat counter per identity and evicts
// unresponsive clients from the alive registry.
//
// Eviction is a liveness decision only: it removes the identity from the
// alive set and stops tracking it, but the client stays in the connected
// set and its channel stays open until an actual disconnect signal.
// Liveness is a one-way ratchet after eviction: a late heartbeat from an
// evicted identity is ignored, the identity is never re-inserted into
// the alive set.
type Monitor struct {
	mu        sync.Mutex
	missed    map[uint64]int
	threshold int
	alive     *Registry
	onEvict   func(id uint64)
	logger    *slog.Logger
}

// NewMonitor creates a monitor evicting from alive after threshold
// consecutive missed sweeps.
func NewMonitor(alive *Registry, threshold int, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		missed:    make(map[uint64]int),
		threshold: threshold,
		alive:     alive,
		logger:    logger.With("component", "heartbeat_monitor"),
	}
}

// SetOnEvict sets the callback invoked after an identity is evicted from
// the alive registry. Set before the first sweep.
func (m *Monitor) SetOnEvict(fn func(id uint64)) {
	m.onEvict = fn
}

// Track begins heartbeat tracking for id with a missed count of zero.
func (m *Monitor) Track(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missed[id] = 0
}

// Forget stops tracking id. Called from the disconnect path so counters
// never outlive registration; a no-op for untracked identities.
func (m *Monitor) Forget(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.missed, id)
}

// Beat resets the missed count for id. Heartbeats from identities no
// longer tracked (evicted or disconnected) are ignored.
func (m *Monitor) Beat(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.missed[id]; ok {
		m.missed[id] = 0
	}
}

// Tracked returns the current missed count for id and whether id is
// still tracked.
func (m *Monitor) Tracked(id uint64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.missed[id]
	return n, ok
}

// Count returns the number of tracked identities.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.missed)
}

// Sweep ages every tracked counter by one tick. An identity whose missed
// count reaches the threshold stops being tracked and is removed from
// the alive registry. The tracked set is snapshotted under the lock so
// concurrent Track/Forget calls cannot corrupt iteration or double-evict;
// registry removal and the eviction callback run after the lock is
// released.
func (m *Monitor) Sweep() {
	m.mu.Lock()
	ids := make([]uint64, 0, len(m.missed))
	for id := range m.missed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var evicted []uint64
	for _, id := range ids {
		n := m.missed[id] + 1
		if n >= m.threshold {
			delete(m.missed, id)
			evicted = append(evicted, id)
		} else {
			m.missed[id] = n
		}
	}
	m.mu.Unlock()

	for _, id := range evicted {
		m.alive.Remove(id)
		m.logger.Info("client evicted from alive set",
			"client_id", id,
			"missed", m.threshold)
		if m.onEvict != nil {
			m.onEvict(id)
		}
	}
}
