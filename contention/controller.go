// Package contention implements per-tick admission control for deferred requests.
//
// A Controller is consulted by a request queue once per scheduling pass. It counts
// immediate (synchronous) and deferred (asynchronous) dispatches, decides how many
// deferred requests may proceed in the current tick, and keeps rolling statistics.
// Controllers are not safe for concurrent use; they belong to the queue's owner.
package contention

import (
	"fmt"
	"strings"

	"github.com/lixenwraith/castqueue/parameter"
)

// Unlimited is the Budget of a controller that never throttles
const Unlimited = -1

// Controller decides how many deferred requests may be dispatched per tick
type Controller interface {
	// CanAdmitDeferred reports whether one more deferred dispatch is allowed this tick
	CanAdmitDeferred() bool
	// RecordImmediate counts a synchronous cast
	RecordImmediate()
	// RecordDeferred counts a deferred dispatch
	RecordDeferred()
	// TickStart opens a scheduling pass
	TickStart(queueSize int)
	// TickEnd closes a scheduling pass and resets per-tick counters
	TickEnd(queueSize int)
	// Budget returns the remaining deferred admissions this tick, or Unlimited
	Budget() int
	Stats() Stats
	ResetStats()
}

// Policy selects a Controller implementation
type Policy uint8

const (
	PolicyNone Policy = iota
	PolicyDefault
	PolicyConservative
)

var policyNames = [...]string{
	PolicyNone:         "none",
	PolicyDefault:      "default",
	PolicyConservative: "conservative",
}

func (p Policy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", p)
}

// ParsePolicy resolves a policy by case-insensitive name
func ParsePolicy(name string) (Policy, error) {
	for i, n := range policyNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Policy(i), nil
		}
	}
	return PolicyNone, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// New creates a controller for the policy; window <= 0 selects the default width
func New(policy Policy, quota, window int) (Controller, error) {
	if quota < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuota, quota)
	}
	if window <= 0 {
		window = parameter.ContentionWindow
	}
	switch policy {
	case PolicyNone:
		return NewNoContention(window), nil
	case PolicyDefault:
		return NewDefaultContention(quota, window), nil
	case PolicyConservative:
		return NewConservativeContention(quota, window), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, policy)
}

// --- Policies ---

// NoContention admits every deferred request, for tests and non-critical paths
type NoContention struct {
	tracker
}

func NewNoContention(window int) *NoContention {
	return &NoContention{tracker: newTracker(0, window)}
}

func (c *NoContention) CanAdmitDeferred() bool { return true }

func (c *NoContention) Budget() int { return Unlimited }

// DefaultContention admits up to quota deferred requests per tick
type DefaultContention struct {
	tracker
}

func NewDefaultContention(quota, window int) *DefaultContention {
	return &DefaultContention{tracker: newTracker(quota, window)}
}

func (c *DefaultContention) CanAdmitDeferred() bool {
	return c.deferred < c.quota
}

func (c *DefaultContention) Budget() int {
	return max(c.quota-c.deferred, 0)
}

// ConservativeContention behaves like DefaultContention until immediate casts reach the
// quota within a tick, then raises the deferred quota by ConservativeBonus so the backlog
// keeps draining under heavy synchronous load
type ConservativeContention struct {
	tracker
}

func NewConservativeContention(quota, window int) *ConservativeContention {
	return &ConservativeContention{tracker: newTracker(quota, window)}
}

func (c *ConservativeContention) effectiveQuota() int {
	if c.immediate >= c.quota {
		return c.quota + parameter.ConservativeBonus
	}
	return c.quota
}

func (c *ConservativeContention) CanAdmitDeferred() bool {
	return c.deferred < c.effectiveQuota()
}

func (c *ConservativeContention) Budget() int {
	return max(c.effectiveQuota()-c.deferred, 0)
}

var (
	_ Controller = (*NoContention)(nil)
	_ Controller = (*DefaultContention)(nil)
	_ Controller = (*ConservativeContention)(nil)
)
