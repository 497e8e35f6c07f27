// Package ws provides the WebSocket transport: an HTTP listener that
// upgrades connections and surfaces them as transport.Channels carrying
// protocol frames in binary WebSocket messages.
package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/peerhub-dev/peerhub/pkg/transport"
)

// Listener accepts WebSocket connections on a chi-routed HTTP server.
type Listener struct {
	cfg      *Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu         sync.Mutex
	onChannel  func(transport.Channel)
	httpServer *http.Server
	boundAddr  string
	started    bool
}

// NewListener creates a WebSocket listener. A nil config uses defaults;
// unset fields are filled in.
func NewListener(cfg *Config, logger *slog.Logger) *Listener {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger: logger.With("component", "ws_listener"),
	}
}

// OnChannel registers the accept callback. Must be called before Start.
func (l *Listener) OnChannel(fn func(transport.Channel)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChannel = fn
}

// Start binds the listen address and begins serving upgrades. A bind
// failure is returned synchronously; serving continues in the background.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return nil
	}

	r := chi.NewRouter()
	r.Get(l.cfg.Path, l.handleUpgrade)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return err
	}

	// The goroutine serves on a local reference; Stop nils the field and
	// must not race the dereference.
	srv := &http.Server{Handler: r}
	l.httpServer = srv
	l.boundAddr = ln.Addr().String()
	l.started = true

	go func() {
		l.logger.Info("listening", "addr", l.cfg.Addr, "path", l.cfg.Path)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.logger.Error("serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the HTTP server down gracefully. Channels already accepted
// keep operating until individually disconnected.
func (l *Listener) Stop() error {
	l.mu.Lock()
	srv := l.httpServer
	l.httpServer = nil
	l.started = false
	l.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Addr returns the bound listen address, or the configured address if
// the listener is not running.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.boundAddr != "" {
		return l.boundAddr
	}
	return l.cfg.Addr
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	accept := l.onChannel
	l.mu.Unlock()

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	if accept == nil {
		conn.Close()
		return
	}

	token := uuid.NewString()
	ch := newChannel(conn, l.cfg, token, l.logger)
	l.logger.Debug("channel accepted",
		"token", token,
		"remote_addr", conn.RemoteAddr().String())

	accept(ch)
}

var _ transport.Listener = (*Listener)(nil)
