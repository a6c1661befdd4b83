// Package dedupe tracks already-fired notifications so each reminder
// fires at most once per minute-boundary match, even when a sweep tick
// re-observes the same boundary.
package dedupe

import (
	"context"
	"sync"
)

// Guard records fired-notification keys for at-most-once delivery.
type Guard interface {
	// SeenAndRecord atomically checks whether key was seen and records it
	// if not. Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key, allowing it to fire again. Used to roll
	// back when a notification was recorded but could not be enqueued.
	Unrecord(ctx context.Context, key string)

	// Size returns the number of keys currently held.
	Size() int
}

// memoryGuard implements Guard with a bounded FIFO window: once maxSize
// keys are held, recording a new key evicts the oldest. Reminder keys
// embed their fire date, so anything older than the window can never
// fire again anyway.
type memoryGuard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	maxSize int
}

// Option applies a configuration option to the guard.
type Option func(*memoryGuard)

// WithMaxSize bounds the number of keys kept. Sizes below 1 fall back
// to the default.
func WithMaxSize(n int) Option {
	return func(g *memoryGuard) {
		if n > 0 {
			g.maxSize = n
		}
	}
}

const defaultMaxSize = 10000

// NewMemoryGuard creates an in-memory guard.
func NewMemoryGuard(opts ...Option) Guard {
	g := &memoryGuard{
		seen:    make(map[string]struct{}),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *memoryGuard) SeenAndRecord(ctx context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[key]; ok {
		return true
	}
	if len(g.order) >= g.maxSize {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
	}
	g.seen[key] = struct{}{}
	g.order = append(g.order, key)
	return false
}

func (g *memoryGuard) Unrecord(ctx context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[key]; !ok {
		return
	}
	delete(g.seen, key)
	for i, k := range g.order {
		if k == key {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

func (g *memoryGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
