// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and RINGSIDE_ env vars.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SupervisorToken authorizes judge unlocks, forced round advances and
	// audit exports. Empty disables those endpoints.
	SupervisorToken string `koanf:"supervisor_token"`

	// AuditSigningKey is the HMAC key for audit record signatures.
	AuditSigningKey string `koanf:"audit_signing_key"`

	// StalenessWindowSeconds is the heartbeat window after which a device
	// stops counting toward round-advance consensus.
	StalenessWindowSeconds int `koanf:"staleness_window_seconds"`

	// BarrierTimeoutSeconds bounds how long a next-round request blocks.
	BarrierTimeoutSeconds int `koanf:"barrier_timeout_seconds"`

	// RoundDurationSeconds is the scored length of a round.
	RoundDurationSeconds int `koanf:"round_duration_seconds"`

	// BroadcastQueueSize bounds the in-memory fan-out queue.
	BroadcastQueueSize int `koanf:"broadcast_queue_size"`

	// DispatcherCount sets the number of fan-out dispatchers.
	DispatcherCount int `koanf:"dispatcher_count"`

	// Scoring card thresholds on the absolute round delta.
	EvenThreshold      float64 `koanf:"even_threshold"`
	ClearThreshold     float64 `koanf:"clear_threshold"`
	DominanceThreshold float64 `koanf:"dominance_threshold"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		StalenessWindowSeconds: 120,
		BarrierTimeoutSeconds:  30,
		RoundDurationSeconds:   300,
		BroadcastQueueSize:     10_000,
		DispatcherCount:        runtime.NumCPU(),
		EvenThreshold:          3,
		ClearThreshold:         140,
		DominanceThreshold:     200,
	}
}
