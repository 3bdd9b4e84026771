// Package timeouts provides the timeout values handlers and workers put on
// database calls.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks
//   - Short: single-document reads and writes (load a group, join, delete)
//   - Medium: list queries and conditional multi-field writes (directory, draw)
//   - Long: startup work such as index reconciliation
package timeouts

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
)

// Config holds timeout configuration values.
// Zero values are ignored (defaults are kept).
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

func defaults() *Config {
	return &Config{Ping: DefaultPing, Short: DefaultShort, Medium: DefaultMedium, Long: DefaultLong}
}

var current atomic.Pointer[Config]

func init() { current.Store(defaults()) }

// Ping returns the timeout for health checks.
func Ping() time.Duration { return current.Load().Ping }

// Short returns the timeout for single-document operations.
func Short() time.Duration { return current.Load().Short }

// Medium returns the timeout for list queries and conditional writes.
func Medium() time.Duration { return current.Load().Medium }

// Long returns the timeout for startup and maintenance work.
func Long() time.Duration { return current.Load().Long }

// Configure overrides timeout values. Zero values keep the current value.
// Call during startup before handlers are registered.
func Configure(cfg Config) {
	next := *current.Load()
	if cfg.Ping > 0 {
		next.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		next.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		next.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		next.Long = cfg.Long
	}
	current.Store(&next)
}

// Reset restores all timeouts to their default values.
func Reset() { current.Store(defaults()) }

// Current returns the active configuration.
func Current() Config { return *current.Load() }

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "draw")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
