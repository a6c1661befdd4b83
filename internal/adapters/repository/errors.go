package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrDuplicate  = errors.New("duplicate event")
	ErrOutOfRange = errors.New("event index out of range")
	ErrNotFound   = errors.New("event not found")
)
