package contention

import "errors"

var (
	// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names
	ErrUnknownPolicy = errors.New("contention: unknown policy")

	// ErrInvalidQuota is returned for negative quotas
	ErrInvalidQuota = errors.New("contention: quota must not be negative")

	// ErrInvalidRates is returned when rate limits are empty, non-positive or irrelevant
	ErrInvalidRates = errors.New("contention: invalid rates")
)
