// Package tcp provides the raw TCP transport: length-prefixed protocol
// frames read directly off a net.Conn, with no HTTP layer in front.
package tcp

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peerhub-dev/peerhub/pkg/transport"
)

// Config holds configuration for the TCP listener and its channels.
type Config struct {
	// Addr is the address to listen on (e.g., ":9001").
	// Default: ":9001".
	Addr string

	// ReadTimeout is the maximum time to wait for a frame from the peer
	// before the channel is treated as dead.
	// Default: 120 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":9001",
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}
	out := *c
	if out.Addr == "" {
		out.Addr = defaults.Addr
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = defaults.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	return &out
}

// Listener accepts TCP connections and surfaces them as channels.
type Listener struct {
	cfg    *Config
	logger *slog.Logger

	mu        sync.Mutex
	onChannel func(transport.Channel)
	ln        net.Listener
	done      chan struct{}
}

// NewListener creates a TCP listener. A nil config uses defaults.
func NewListener(cfg *Config, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "tcp_listener"),
	}
}

// OnChannel registers the accept callback. Must be called before Start.
func (l *Listener) OnChannel(fn func(transport.Channel)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChannel = fn
}

// Start binds the listen address and begins accepting. A bind failure is
// returned synchronously; accepting continues in the background.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln != nil {
		return nil
	}

	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return err
	}

	l.ln = ln
	l.done = make(chan struct{})

	go l.acceptLoop(ln, l.done)

	l.logger.Info("listening", "addr", l.cfg.Addr)
	return nil
}

// Stop closes the listen socket. Channels already accepted keep operating
// until individually disconnected.
func (l *Listener) Stop() error {
	l.mu.Lock()
	ln := l.ln
	done := l.done
	l.ln = nil
	l.mu.Unlock()

	if ln == nil {
		return nil
	}
	close(done)
	return ln.Close()
}

// Addr returns the bound listen address, or the configured address if the
// listener is not running.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr().String()
	}
	return l.cfg.Addr
}

func (l *Listener) acceptLoop(ln net.Listener, done chan struct{}) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Error("accept error", "error", err)
			continue
		}

		l.mu.Lock()
		accept := l.onChannel
		l.mu.Unlock()

		if accept == nil {
			conn.Close()
			continue
		}

		token := uuid.NewString()
		l.logger.Debug("channel accepted",
			"token", token,
			"remote_addr", conn.RemoteAddr().String())

		accept(newChannel(conn, l.cfg, token, l.logger))
	}
}

var _ transport.Listener = (*Listener)(nil)
