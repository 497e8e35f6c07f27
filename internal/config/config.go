// Package config loads peerhubd's TOML configuration with a
// defaults-plus-overlay model: every field has a working default and the
// file only overrides what it defines.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the resolved peerhubd runtime configuration.
type Config struct {
	// ListenAddr is the WebSocket listen address.
	ListenAddr string

	// WSPath is the WebSocket upgrade endpoint path.
	WSPath string

	// TCPAddr is the raw TCP listen address. Empty disables the TCP
	// transport.
	TCPAddr string

	// AdminAddr is the admin HTTP address serving /metrics, /healthz,
	// and /clients.
	AdminAddr string

	// SweepInterval is the heartbeat sweep period. Zero disables the
	// background sweep.
	SweepInterval time.Duration

	// MissedThreshold is the number of consecutive missed sweeps before
	// eviction.
	MissedThreshold int

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// MetricsNamespace prefixes all Prometheus metric names.
	MetricsNamespace string
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr:       ":9000",
		WSPath:           "/ws",
		TCPAddr:          "",
		AdminAddr:        ":9090",
		SweepInterval:    30 * time.Second,
		MissedThreshold:  3,
		LogLevel:         "info",
		MetricsNamespace: "peerhub",
	}
}

// config.toml key mapping to peerhubd runtime settings.
type fileConfig struct {
	ListenAddr       string `toml:"listen_addr"`
	WSPath           string `toml:"ws_path"`
	TCPAddr          string `toml:"tcp_addr"`
	AdminAddr        string `toml:"admin_addr"`
	SweepInterval    string `toml:"sweep_interval"`
	MissedThreshold  int    `toml:"missed_threshold"`
	LogLevel         string `toml:"log_level"`
	MetricsNamespace string `toml:"metrics_namespace"`
}

// Load reads a TOML file and overlays it on the defaults. Only keys the
// file defines override; everything else keeps its default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("ws_path") {
		cfg.WSPath = strings.TrimSpace(raw.WSPath)
	}
	if meta.IsDefined("tcp_addr") {
		cfg.TCPAddr = strings.TrimSpace(raw.TCPAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("sweep_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SweepInterval))
		if err != nil {
			return Config{}, fmt.Errorf("load config: sweep_interval: %w", err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("load config: sweep_interval must not be negative")
		}
		cfg.SweepInterval = d
	}
	if meta.IsDefined("missed_threshold") {
		if raw.MissedThreshold < 1 {
			return Config{}, fmt.Errorf("load config: missed_threshold must be at least 1")
		}
		cfg.MissedThreshold = raw.MissedThreshold
	}
	if meta.IsDefined("log_level") {
		level := strings.ToLower(strings.TrimSpace(raw.LogLevel))
		switch level {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = level
		default:
			return Config{}, fmt.Errorf("load config: unknown log_level %q", raw.LogLevel)
		}
	}
	if meta.IsDefined("metrics_namespace") {
		cfg.MetricsNamespace = strings.TrimSpace(raw.MetricsNamespace)
	}

	if cfg.ListenAddr == "" {
		return Config{}, fmt.Errorf("load config: listen_addr must not be empty")
	}
	if !strings.HasPrefix(cfg.WSPath, "/") {
		return Config{}, fmt.Errorf("load config: ws_path must start with /")
	}

	return cfg, nil
}
