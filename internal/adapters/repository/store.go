// Package repository defines the event store contract and its flat-file
// implementation.
package repository

import (
	"context"

	"github.com/okian/nudge/internal/domain/model"
)

// Store provides read/write access to per-user reminder state. All
// mutations are atomic at the granularity of one read-modify-write cycle
// over the whole document; a profile is created implicitly on first
// write and never deleted.
type Store interface {
	// AddEvent appends an event to the user's active list.
	// Returns ErrDuplicate if an active event with identical (text, date)
	// already exists.
	AddEvent(ctx context.Context, user string, e model.Event) error

	// ListEvents returns the user's active events in storage order.
	ListEvents(ctx context.Context, user string) ([]model.Event, error)

	// RemoveEventsAt moves the events at the given 1-based display
	// positions to the backlog. Positions resolve against the display
	// order of the list as it stands inside the store's own
	// read-modify-write cycle, so a concurrent mutation can never shift
	// what a position names. The result maps each requested position to
	// its outcome in the order given.
	RemoveEventsAt(ctx context.Context, user string, positions []int) ([]RemoveResult, error)

	// RewriteEventAt replaces the event at the given 1-based display
	// position with the result of rewrite, which receives the current
	// event. Resolution and replacement happen in one read-modify-write
	// cycle. Returns ErrOutOfRange if the position does not name an
	// active event, ErrDuplicate if the rewritten event collides with
	// another active event, or the rewrite's own error.
	RewriteEventAt(ctx context.Context, user string, position int, rewrite func(model.Event) (model.Event, error)) (model.Event, error)

	// ArchiveEvent moves the first active event equal to e (by text and
	// date) to the backlog. Returns ErrNotFound when no active event
	// matches. Used by the scheduler, which holds values, not indices.
	ArchiveEvent(ctx context.Context, user string, e model.Event) error

	// ListBacklog returns the user's archived events in storage order.
	ListBacklog(ctx context.Context, user string) ([]model.Event, error)

	// SetReminderTime stores the user's daily digest time as "HH:MM".
	SetReminderTime(ctx context.Context, user string, hhmm string) error

	// SetTimezone stores the user's fixed UTC offset in hours.
	SetTimezone(ctx context.Context, user string, offset float64) error

	// Profile returns the user's profile, or a default one if the user
	// has never written anything.
	Profile(ctx context.Context, user string) (model.Profile, error)

	// Snapshot returns a copy of every profile keyed by user id. The
	// scheduler performs exactly one Snapshot per sweep tick instead of
	// per-user queries.
	Snapshot(ctx context.Context) (map[string]model.Profile, error)
}

// RemoveResult reports the outcome of removing one display position.
type RemoveResult struct {
	Position int         // requested 1-based display position
	Removed  model.Event // valid only when Err is nil
	Err      error       // ErrOutOfRange when the position missed
}
