package domain

import "errors"

var (
	ErrNotFound         = errors.New("auction not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrContention       = errors.New("too much contention on auction")
	ErrStoreUnavailable = errors.New("auction store unavailable")

	// ErrVersionConflict is returned by stores when a conditional update loses
	// the race. The lifecycle manager absorbs it by retrying.
	ErrVersionConflict = errors.New("version conflict")
)
