// Package timeouts provides centralized timeout values for request handling.
//
// Handlers wrap their store calls with context.WithTimeout using these values
// so every endpoint bounds its I/O the same way. Values can be overridden at
// startup with Configure or ConfigureFromEnv.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks and connectivity verification
//   - Short: single-document reads and atomic updates
//   - Medium: list queries and create-with-retry writes
//   - Long: websocket event handling (lane wait plus store write)
//   - Generation: calls to the text-generation service
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing       = 2 * time.Second
	DefaultShort      = 5 * time.Second
	DefaultMedium     = 10 * time.Second
	DefaultLong       = 30 * time.Second
	DefaultGeneration = 30 * time.Second
)

var mu sync.RWMutex

var (
	ping       = DefaultPing
	short      = DefaultShort
	medium     = DefaultMedium
	long       = DefaultLong
	generation = DefaultGeneration
)

// Ping returns the timeout for health checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short returns the timeout for single-document reads and updates.
// Examples: view a room, toggle a vote, look up a user.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Medium returns the timeout for list queries and multi-attempt writes.
// Examples: list rooms, create a room (invite-code retries).
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

// Long returns the timeout for one inbound websocket event.
func Long() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return long
}

// Generation returns the upper bound for one plan-generation request.
func Generation() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return generation
}

// Config holds timeout configuration values.
// Zero values are ignored (defaults are kept).
type Config struct {
	Ping       time.Duration
	Short      time.Duration
	Medium     time.Duration
	Long       time.Duration
	Generation time.Duration
}

// Configure sets custom timeout values. Zero values keep the current value.
// Call during startup before handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Medium > 0 {
		medium = cfg.Medium
	}
	if cfg.Long > 0 {
		long = cfg.Long
	}
	if cfg.Generation > 0 {
		generation = cfg.Generation
	}
}

// Reset restores all timeouts to their default values.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	medium = DefaultMedium
	long = DefaultLong
	generation = DefaultGeneration
}

// envKeys maps environment variables to the value they override.
var envKeys = []struct {
	name string
	dst  *time.Duration
}{
	{"TIMEOUT_PING", &ping},
	{"TIMEOUT_SHORT", &short},
	{"TIMEOUT_MEDIUM", &medium},
	{"TIMEOUT_LONG", &long},
	{"TIMEOUT_GENERATION", &generation},
}

// ConfigureFromEnv reads TIMEOUT_PING, TIMEOUT_SHORT, TIMEOUT_MEDIUM,
// TIMEOUT_LONG and TIMEOUT_GENERATION (Go duration strings). Unset or
// invalid values are skipped. Returns how many values were applied.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	configured := 0
	for _, k := range envKeys {
		v := os.Getenv(k.name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*k.dst = d
			configured++
		}
	}
	return configured
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:       ping,
		Short:      short,
		Medium:     medium,
		Long:       long,
		Generation: generation,
	}
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the context ended because the deadline passed.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Generation(), h.Log, "generate plan")
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
