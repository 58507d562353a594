package arena

import "errors"

var (
	// ErrInvalidHandle is returned for the zero handle
	ErrInvalidHandle = errors.New("arena: invalid handle")

	// ErrStaleHandle is returned when a handle no longer refers to a live slot
	ErrStaleHandle = errors.New("arena: stale handle")

	// ErrArenaFull is returned when the index space is exhausted
	ErrArenaFull = errors.New("arena: index space exhausted")
)
