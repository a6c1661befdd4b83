// Package smoketest drives command traffic against a running service
// and verifies the replies. It is a manual tool, not part of the
// service itself.
package smoketest

import "time"

// Config controls one smoke run.
type Config struct {
	// BaseURL of the service under test.
	BaseURL string
	// Users is the number of distinct user ids to exercise.
	Users int
	// EventsPerUser is the number of add commands per user.
	EventsPerUser int
	// Workers is the number of concurrent submitters.
	Workers int
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// Verbose switches progress output to per-line logs.
	Verbose bool
}

// Stats accumulates the run outcome.
type Stats struct {
	CommandsSent int
	Failed       int
	Duplicates   int
	ListMismatch int
	RemoveFailed int
	Elapsed      time.Duration
}
