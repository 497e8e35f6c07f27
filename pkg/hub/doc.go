// Package hub implements server-side connection lifecycle and liveness
// management above a generic bidirectional channel abstraction.
//
// The hub accepts newly established channels from a transport.Listener,
// assigns each a process-unique identity, tracks it in two concurrent
// registries (connected and alive), detects unresponsive peers with
// periodic heartbeat sweeps, and multicasts connect/disconnect events to
// subscribers.
//
// # Components
//
//   - Registry: thread-safe identity -> *Client map with ordered snapshots
//   - Monitor: missed-heartbeat counters and threshold eviction
//   - Dispatcher: ordered synchronous connect/disconnect multicast
//   - Hub: the lifecycle controller tying listener, registries, monitor,
//     and dispatcher together
//
// # Client lifecycle
//
// A client moves through: Connecting (channel accepted) -> Active
// (registered, tracked) -> Degraded (1..threshold-1 missed sweeps) ->
// Evicted (out of the alive set, still connected, no longer tracked) ->
// Disconnected (terminal, out of both registries). A disconnect signal
// wins from any non-terminal state. Eviction never closes the channel;
// disconnection remains the channel's responsibility.
//
// # Concurrency
//
// The accept path, each channel's I/O goroutines, and the sweep ticker
// all mutate shared state concurrently. Registries and counters are
// mutex-guarded and every iteration (sweep, Stop, snapshots) runs over a
// copy, never a live view. Operations on a single identity are
// linearizable: a processed disconnect wins permanently.
//
// # Example
//
//	lis := ws.NewListener(ws.DefaultConfig(), logger)
//	h := hub.New(hub.DefaultConfig(), lis, hub.WithLogger(logger))
//	h.OnClientConnected(func(c *hub.Client) {
//	    logger.Info("peer joined", "id", c.ID())
//	})
//	if err := h.Start(); err != nil {
//	    // *hub.StartupError: the listener could not bind
//	}
//	defer h.Stop()
package hub
