package hub

import (
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/peerhub-dev/peerhub/pkg/protocol"
	"github.com/peerhub-dev/peerhub/pkg/transport"
)

// Hub orchestrates the listener, registries, heartbeat monitor, and
// event dispatcher into a coherent start/accept/stop lifecycle.
type Hub struct {
	config     *Config
	listener   transport.Listener
	factory    protocol.Factory
	ids        IDAllocator
	clients    *Registry
	alive      *Registry
	monitor    *Monitor
	dispatcher *Dispatcher
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	onMessage  func(c *Client, m protocol.Message)

	mu        sync.Mutex
	started   bool
	done      chan struct{}
	sweepDone chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger.With("component", "hub")
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithIDAllocator substitutes the identity allocator.
func WithIDAllocator(ids IDAllocator) Option {
	return func(h *Hub) {
		if ids != nil {
			h.ids = ids
		}
	}
}

// WithProtocolFactory sets the wire-protocol factory used to create one
// codec per client.
func WithProtocolFactory(f protocol.Factory) Option {
	return func(h *Hub) {
		if f != nil {
			h.factory = f
		}
	}
}

// New creates a Hub over the given listener. A nil config uses
// DefaultConfig; a non-nil config with a zero MissedThreshold gets the
// default threshold.
func New(config *Config, listener transport.Listener, opts ...Option) *Hub {
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.Clone()
		if config.MissedThreshold == 0 {
			config.MissedThreshold = DefaultConfig().MissedThreshold
		}
	}

	h := &Hub{
		config:   config,
		listener: listener,
		factory:  protocol.NewBinaryFactory(),
		ids:      NewIDAllocator(),
		logger:   slog.Default().With("component", "hub"),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.clients = NewRegistry()
	h.alive = NewRegistry()
	h.monitor = NewMonitor(h.alive, config.MissedThreshold, h.logger)
	h.dispatcher = NewDispatcher(h.logger)
	h.monitor.SetOnEvict(func(id uint64) {
		h.metrics.recordEviction()
	})

	return h
}

// SetProtocolFactory replaces the wire-protocol factory. Must be called
// before Start.
func (h *Hub) SetProtocolFactory(f protocol.Factory) {
	if f != nil {
		h.factory = f
	}
}

// SetMessageHandler sets the callback for data frames arriving on any
// client channel. Must be called before Start.
func (h *Hub) SetMessageHandler(fn func(c *Client, m protocol.Message)) {
	h.onMessage = fn
}

// OnClientConnected subscribes fn to the connected event and returns an
// unsubscribe func.
func (h *Hub) OnClientConnected(fn Handler) func() {
	return h.dispatcher.Subscribe(EventConnected, fn)
}

// OnClientDisconnected subscribes fn to the disconnected event and
// returns an unsubscribe func.
func (h *Hub) OnClientDisconnected(fn Handler) func() {
	return h.dispatcher.Subscribe(EventDisconnected, fn)
}

// Start subscribes to the listener, starts it, and begins the periodic
// heartbeat sweep. A listener failure is returned as a *StartupError;
// it is fatal and not retried.
func (h *Hub) Start() error {
	if err := h.config.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return ErrAlreadyStarted
	}

	h.listener.OnChannel(h.handleChannel)
	if err := h.listener.Start(); err != nil {
		h.mu.Unlock()
		return &StartupError{Err: err}
	}

	h.started = true
	h.done = make(chan struct{})
	h.sweepDone = make(chan struct{})
	if h.config.SweepInterval > 0 {
		go h.sweepLoop()
	} else {
		close(h.sweepDone)
	}
	h.mu.Unlock()

	h.logger.Info("hub started",
		"sweep_interval", h.config.SweepInterval,
		"missed_threshold", h.config.MissedThreshold)
	return nil
}

// Stop stops the sweep loop and the listener, then disconnects every
// remaining client through the normal disconnect path. It is idempotent
// and a no-op if the hub was never started. After Stop returns both
// registries are empty and exactly one disconnected notification has
// fired per client that was connected when Stop was invoked.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = false
	close(h.done)
	sweepDone := h.sweepDone
	h.mu.Unlock()

	// An in-flight sweep is allowed to finish; no further sweeps run.
	<-sweepDone

	if err := h.listener.Stop(); err != nil {
		h.logger.Warn("listener stop failed", "error", err)
	}

	for _, c := range h.clients.Snapshot() {
		if err := c.channel.Disconnect(); err != nil {
			h.logger.Error("client disconnect failed",
				"client_id", c.ID(),
				"remote_addr", c.RemoteAddr(),
				"error", err)
			h.metrics.recordDisconnectError()
			// The channel could not deliver its own signal; drain this
			// client through the normal path.
			h.handleDisconnect(c.ID(), err)
		}
	}

	h.logger.Info("hub stopped")
	return nil
}

// Sweep runs one heartbeat sweep immediately. The background loop calls
// this on every tick; tests call it to advance liveness time
// deterministically.
func (h *Hub) Sweep() {
	start := time.Now()
	h.monitor.Sweep()
	h.metrics.observeSweep(time.Since(start).Seconds())
}

// Clients returns a point-in-time snapshot of all connected clients,
// ordered by identity.
func (h *Hub) Clients() []*Client {
	return h.clients.Snapshot()
}

// AliveClients returns a point-in-time snapshot of the clients currently
// considered alive, ordered by identity.
func (h *Hub) AliveClients() []*Client {
	return h.alive.Snapshot()
}

// Client returns the connected client for id, or nil and false.
func (h *Hub) Client(id uint64) (*Client, bool) {
	return h.clients.Get(id)
}

// Stats summarizes the hub's registries.
type Stats struct {
	Connected int `json:"connected"`
	Alive     int `json:"alive"`
	Tracked   int `json:"tracked"`
}

// Stats returns current registry sizes.
func (h *Hub) Stats() Stats {
	return Stats{
		Connected: h.clients.Len(),
		Alive:     h.alive.Len(),
		Tracked:   h.monitor.Count(),
	}
}

// handleChannel is the accept path: allocate an identity, build the
// client, register it, wire the channel's signals, announce it, and only
// then start the channel's I/O. Registration and subscription complete
// before Start so no signal can arrive unobserved.
func (h *Hub) handleChannel(ch transport.Channel) {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if !started {
		// A listener's accept path can race Stop; a channel handed over
		// after shutdown is closed, never registered.
		h.logger.Warn("channel accepted after stop, disconnecting",
			"remote_addr", ch.RemoteAddr())
		if err := ch.Disconnect(); err != nil {
			h.logger.Error("late channel disconnect failed",
				"remote_addr", ch.RemoteAddr(),
				"error", err)
		}
		return
	}

	id := h.ids.NextID()
	span := h.startSpan("peerhub.connect", clientAttrs(id, ch.RemoteAddr())...)
	defer span.End()

	codec := h.factory.NewCodec()
	client := newClient(id, ch, codec)

	// The collision panic must leave the registries untouched: the
	// already-registered client keeps its entry.
	if !h.clients.PutIfAbsent(id, client) {
		panic(&IdentityCollisionError{ID: id})
	}
	h.alive.Put(id, client)
	h.monitor.Track(id)

	ch.Bind(codec, transport.Callbacks{
		OnHeartbeat: func() { h.handleHeartbeat(id) },
		OnMessage: func(m protocol.Message) {
			if h.onMessage != nil {
				h.onMessage(client, m)
			}
		},
		OnDisconnect: func(err error) { h.handleDisconnect(id, err) },
	})

	h.metrics.recordConnect()
	h.dispatcher.Dispatch(EventConnected, client)

	ch.Start()

	h.logger.Info("client connected",
		"client_id", id,
		"remote_addr", ch.RemoteAddr(),
		"connected_clients", h.clients.Len())
}

// handleDisconnect is the shared disconnect path for channel-raised
// signals and Stop. A second signal for the same identity is a harmless
// no-op; the first removal wins permanently.
func (h *Hub) handleDisconnect(id uint64, cause error) {
	client, ok := h.clients.Remove(id)
	if !ok {
		return
	}
	_, wasAlive := h.alive.Remove(id)
	h.monitor.Forget(id)

	span := h.startSpan("peerhub.disconnect", clientAttrs(id, client.RemoteAddr())...)
	if cause != nil {
		span.RecordError(cause)
		span.SetStatus(codes.Error, cause.Error())
	}
	defer span.End()

	h.metrics.recordDisconnect(wasAlive)
	h.dispatcher.Dispatch(EventDisconnected, client)

	h.logger.Info("client disconnected",
		"client_id", id,
		"was_alive", wasAlive,
		"connected_clients", h.clients.Len())
}

func (h *Hub) handleHeartbeat(id uint64) {
	h.monitor.Beat(id)
	h.metrics.recordHeartbeat()
}

// sweepLoop drives periodic sweeps until Stop.
func (h *Hub) sweepLoop() {
	defer close(h.sweepDone)

	ticker := time.NewTicker(h.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Sweep()
		case <-h.done:
			return
		}
	}
}
