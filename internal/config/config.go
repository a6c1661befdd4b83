// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorePath locates the flat-file event store.
	StorePath string `koanf:"store_path"`

	// WebhookURL receives notification deliveries. Empty means
	// notifications are logged instead of posted.
	WebhookURL string `koanf:"webhook_url"`

	// SweepSchedule is the cron expression driving the reminder sweep.
	SweepSchedule string `koanf:"sweep_schedule"`

	// QueueSize bounds the in-memory notification queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of delivery workers.
	WorkerCount int `koanf:"worker_count"`

	// GuardSize sets the size of the fired-notification guard.
	GuardSize int `koanf:"guard_size"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		Addr:          ":9080",
		StorePath:     "nudge.json",
		SweepSchedule: "* * * * *",
		QueueSize:     1024,
		WorkerCount:   runtime.NumCPU(),
		GuardSize:     10_000,
	}
}
