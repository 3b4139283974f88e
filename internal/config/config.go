// Package config loads and validates the bridge's runtime configuration.
//
// Configuration files are CUE: the embedded schema carries defaults and
// constraints, the user file is unified against it, and constraint
// violations surface as load errors with file positions instead of
// mystery zero values at runtime.
package config

import "time"

// Config is the decoded, validated runtime configuration.
type Config struct {
	Engine EngineConfig
	Cache  CacheConfig
	Queue  QueueConfig
	Store  StoreConfig
}

// EngineConfig shapes executor policy.
type EngineConfig struct {
	// Binary is the scripting runtime executable.
	Binary string
	// Timeout is the per-call wall-clock deadline.
	Timeout time.Duration
	// MaxAttempts bounds retries for transient read failures.
	MaxAttempts int
	// BackoffBase and BackoffCap shape the exponential retry backoff.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// CacheConfig shapes the read result cache.
type CacheConfig struct {
	// DefaultTTL applies to reads that do not pick their own ttl.
	DefaultTTL time.Duration
	// SweepSchedule is a cron spec for the janitor's cache sweep.
	SweepSchedule string
}

// QueueConfig shapes the mutation queue.
type QueueConfig struct {
	// MaxPending bounds the backlog; enqueues past it shed load.
	MaxPending int
	// MaxAttempts bounds retries per operation.
	MaxAttempts int
	// BackoffBase and BackoffCap shape the retry backoff.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// Retention is how long terminal operations stay queryable.
	Retention time.Duration
}

// StoreConfig shapes the optional read-only direct store path.
type StoreConfig struct {
	// Enabled turns the direct reader on. Off by default: it is a
	// performance variant, never required for correctness.
	Enabled bool
	// Path is the external application's database file.
	Path string
}

// Default returns the configuration an empty file decodes to.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Binary:      "osascript",
			Timeout:     45 * time.Second,
			MaxAttempts: 3,
			BackoffBase: 250 * time.Millisecond,
			BackoffCap:  5 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:    30 * time.Second,
			SweepSchedule: "@every 30s",
		},
		Queue: QueueConfig{
			MaxPending:  256,
			MaxAttempts: 3,
			BackoffBase: 500 * time.Millisecond,
			BackoffCap:  10 * time.Second,
			Retention:   5 * time.Minute,
		},
		Store: StoreConfig{},
	}
}
