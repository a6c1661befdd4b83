package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/nudge/internal/smoketest"
)

// Default configuration constants.
const (
	defaultUsers         = 10
	defaultEventsPerUser = 20
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users   = flag.Int("users", defaultUsers, "Number of distinct users to exercise")
		events  = flag.Int("events", defaultEventsPerUser, "Number of add commands per user")
		workers = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &smoketest.Config{
		BaseURL:       *baseURL,
		Users:         *users,
		EventsPerUser: *events,
		Workers:       *workers,
		Timeout:       *timeout,
		Verbose:       *verbose,
	}

	stats, err := smoketest.Run(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("smoke run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	if stats.Failed > 0 || stats.ListMismatch > 0 || stats.RemoveFailed > 0 {
		os.Exit(1)
	}
}
