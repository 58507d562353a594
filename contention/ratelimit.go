package contention

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/joeycumines/go-catrate"
)

// RateLimited caps deferred dispatches of an inner controller with wall-clock sliding
// windows, independent of tick rate. The per-tick policy still applies
type RateLimited struct {
	Controller

	limiter      *catrate.Limiter
	category     string
	blockedUntil time.Time
	throttled    uint64 // admission checks refused by the limiter
	now          func() time.Time
}

// NewRateLimited wraps inner with the given window -> max dispatches rates
// Rates follow catrate rules: every window must allow more events than shorter windows
// at a lower effective rate
func NewRateLimited(inner Controller, category string, rates map[time.Duration]int) (*RateLimited, error) {
	if err := ValidateRates(rates); err != nil {
		return nil, err
	}
	return &RateLimited{
		Controller: inner,
		limiter:    catrate.NewLimiter(rates),
		category:   category,
		now:        time.Now,
	}, nil
}

// ValidateRates applies the limiter's relevance rules without panicking
func ValidateRates(rates map[time.Duration]int) error {
	if len(rates) == 0 {
		return fmt.Errorf("%w: no rates", ErrInvalidRates)
	}
	durations := slices.Sorted(maps.Keys(rates))
	for i, d := range durations {
		n := rates[d]
		if d <= 0 || n <= 0 {
			return fmt.Errorf("%w: %s=%d must be positive", ErrInvalidRates, d, n)
		}
		if i < len(durations)-1 && n >= rates[durations[i+1]] {
			return fmt.Errorf("%w: %s=%d must be below the count of %s", ErrInvalidRates, d, n, durations[i+1])
		}
		if i > 0 && float64(n)/float64(d) >= float64(rates[durations[i-1]])/float64(durations[i-1]) {
			return fmt.Errorf("%w: %s=%d must have a lower rate than %s", ErrInvalidRates, d, n, durations[i-1])
		}
	}
	return nil
}

func (r *RateLimited) limited() bool {
	return r.now().Before(r.blockedUntil)
}

func (r *RateLimited) CanAdmitDeferred() bool {
	if r.limited() {
		r.throttled++
		return false
	}
	return r.Controller.CanAdmitDeferred()
}

// RecordDeferred registers the dispatch with the limiter and arms the block deadline
// once the limiter reports the window is exhausted
func (r *RateLimited) RecordDeferred() {
	r.Controller.RecordDeferred()
	if next, _ := r.limiter.Allow(r.category); !next.IsZero() {
		r.blockedUntil = next
	}
}

func (r *RateLimited) Budget() int {
	if r.limited() {
		return 0
	}
	return r.Controller.Budget()
}

// Throttled returns how many admission checks the rate limit refused
func (r *RateLimited) Throttled() uint64 {
	return r.throttled
}

func (r *RateLimited) ResetStats() {
	r.Controller.ResetStats()
	r.throttled = 0
}

var _ Controller = (*RateLimited)(nil)
