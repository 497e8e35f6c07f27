package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/peerhub-dev/peerhub/internal/config"
	"github.com/peerhub-dev/peerhub/pkg/hub"
	"github.com/peerhub-dev/peerhub/pkg/transport"
	"github.com/peerhub-dev/peerhub/pkg/transport/tcp"
	"github.com/peerhub-dev/peerhub/pkg/transport/ws"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		adminAddr  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub server",
		Long: `Run the hub server.

Accepts peer connections on the WebSocket endpoint (and the TCP
endpoint if configured), sweeps for missed heartbeats, and serves
metrics and registry snapshots on the admin address.

Examples:
  peerhubd serve
  peerhubd serve --config=peerhub.toml
  peerhubd serve --listen=:9000 --admin=:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			if adminAddr != "" {
				cfg.AdminAddr = adminAddr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to TOML config file")
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "WebSocket listen address (overrides config)")
	cmd.Flags().StringVarP(&adminAddr, "admin", "a", "", "Admin HTTP address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return cmd
}

func runServe(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := hub.NewMetrics(reg, cfg.MetricsNamespace)

	wsListener := ws.NewListener(&ws.Config{
		Addr: cfg.ListenAddr,
		Path: cfg.WSPath,
	}, logger)

	listener := transport.Listener(wsListener)
	if cfg.TCPAddr != "" {
		listener = transport.Combine(
			wsListener,
			tcp.NewListener(&tcp.Config{Addr: cfg.TCPAddr}, logger),
		)
	}

	hubCfg := hub.DefaultConfig().
		WithSweepInterval(cfg.SweepInterval).
		WithMissedThreshold(cfg.MissedThreshold)

	h := hub.New(hubCfg, listener,
		hub.WithLogger(logger),
		hub.WithMetrics(metrics),
		hub.WithTracing("peerhubd"),
	)

	h.OnClientConnected(func(c *hub.Client) {
		logger.Debug("peer joined", "client_id", c.ID(), "remote_addr", c.RemoteAddr())
	})
	h.OnClientDisconnected(func(c *hub.Client) {
		logger.Debug("peer left", "client_id", c.ID())
	})

	if err := h.Start(); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}

	admin := newAdminServer(cfg.AdminAddr, h, reg, logger)
	go func() {
		logger.Info("admin listening", "addr", cfg.AdminAddr)
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", "error", err)
		}
	}()

	logger.Info("peerhubd running",
		"listen_addr", cfg.ListenAddr,
		"ws_path", cfg.WSPath,
		"tcp_addr", cfg.TCPAddr,
		"version", version)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := admin.Shutdown(ctx); err != nil {
		logger.Warn("admin shutdown failed", "error", err)
	}

	return h.Stop()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newAdminServer(addr string, h *hub.Hub, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, h.Stats(), logger)
	})

	r.Get("/clients", func(w http.ResponseWriter, _ *http.Request) {
		type clientInfo struct {
			ID          uint64 `json:"id"`
			RemoteAddr  string `json:"remote_addr"`
			ConnectedAt string `json:"connected_at"`
			Alive       bool   `json:"alive"`
		}

		alive := make(map[uint64]bool)
		for _, c := range h.AliveClients() {
			alive[c.ID()] = true
		}

		clients := h.Clients()
		out := make([]clientInfo, 0, len(clients))
		for _, c := range clients {
			out = append(out, clientInfo{
				ID:          c.ID(),
				RemoteAddr:  c.RemoteAddr(),
				ConnectedAt: c.ConnectedAt().UTC().Format(time.RFC3339),
				Alive:       alive[c.ID()],
			})
		}
		writeJSON(w, out, logger)
	})

	return &http.Server{Addr: addr, Handler: r}
}

func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("admin response encode failed", "error", err)
	}
}
