package castqueue

import "errors"

var (
	// ErrInvalidTier is returned for tiers outside Low..Highest
	ErrInvalidTier = errors.New("castqueue: invalid priority tier")

	// ErrInvalidPriorityClass is returned when an aging curve is not monotonic
	ErrInvalidPriorityClass = errors.New("castqueue: invalid priority class")

	// ErrNilResult is returned when a request is queued without a result callback
	ErrNilResult = errors.New("castqueue: nil result callback")

	// ErrNilSubmit is returned when a placeholder request has no submit callback
	ErrNilSubmit = errors.New("castqueue: placeholder requires a submit callback")
)
