package service

import "errors"

// Sentinel errors returned by service operations. Command handlers map
// these onto user-facing replies.
var (
	// ErrEmptyText is returned when an add or edit carries no text.
	ErrEmptyText = errors.New("event text is empty")

	// ErrBadTime is returned when a reminder time is not a valid HH:MM.
	ErrBadTime = errors.New("reminder time must be HH:MM")

	// ErrBadTimezone is returned when a UTC offset falls outside -12..14.
	ErrBadTimezone = errors.New("timezone offset must be between -12 and 14")

	// ErrBadIndex is returned when a display index does not name an
	// active event.
	ErrBadIndex = errors.New("no event at that position")

	// ErrNotStarted is returned when an operation runs before Start.
	ErrNotStarted = errors.New("service not started")
)
