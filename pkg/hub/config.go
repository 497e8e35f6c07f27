package hub

import (
	"fmt"
	"time"
)

// Config holds hub liveness configuration.
type Config struct {
	// SweepInterval is the time between heartbeat sweeps.
	// 0 disables the background sweep loop; sweeps can still be driven
	// manually through Hub.Sweep, which is how tests advance time.
	// Default: 30 seconds.
	SweepInterval time.Duration

	// MissedThreshold is the number of consecutive missed sweeps after
	// which a client is evicted from the alive set.
	// Default: 3.
	MissedThreshold int
}

// DefaultConfig returns a Config with the default 30s/3 liveness policy.
func DefaultConfig() *Config {
	return &Config{
		SweepInterval:   30 * time.Second,
		MissedThreshold: 3,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithSweepInterval sets the sweep interval and returns the config for chaining.
func (c *Config) WithSweepInterval(d time.Duration) *Config {
	c.SweepInterval = d
	return c
}

// WithMissedThreshold sets the eviction threshold and returns the config for chaining.
func (c *Config) WithMissedThreshold(n int) *Config {
	c.MissedThreshold = n
	return c
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SweepInterval < 0 {
		return fmt.Errorf("%w: sweep interval must not be negative", ErrInvalidConfig)
	}
	if c.MissedThreshold < 1 {
		return fmt.Errorf("%w: missed threshold must be at least 1", ErrInvalidConfig)
	}
	return nil
}
