package castqueue

import (
	"fmt"
	"math"
	"strings"

	"github.com/lixenwraith/castqueue/parameter"
)

// Tier is an ordered priority bucket
type Tier uint8

const (
	Low Tier = iota
	Medium
	High
	Highest

	TierCount = int(Highest) + 1
)

var tierNames = [TierCount]string{"low", "medium", "high", "highest"}

func (t Tier) String() string {
	if t.Valid() {
		return tierNames[t]
	}
	return fmt.Sprintf("tier(%d)", t)
}

// Valid reports whether t is one of the four tiers
func (t Tier) Valid() bool {
	return int(t) < TierCount
}

// ParseTier resolves a tier by case-insensitive name
func ParseTier(name string) (Tier, error) {
	for i, n := range tierNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Tier(i), nil
		}
	}
	return Low, fmt.Errorf("%w: %q", ErrInvalidTier, name)
}

// PriorityClass is the exponential aging curve of a tier:
// priority(age) = Base * GrowthFactor^(age/GrowthTime), age in seconds
type PriorityClass struct {
	Base         float64
	GrowthFactor float64
	GrowthTime   float64
}

// Priority evaluates the curve; non-decreasing in age for a valid class
func (c PriorityClass) Priority(age float64) float64 {
	return c.Base * math.Pow(c.GrowthFactor, age/c.GrowthTime)
}

// Validate rejects curves that are not positive and non-decreasing
func (c PriorityClass) Validate() error {
	switch {
	case !(c.Base > 0) || math.IsInf(c.Base, 0):
		return fmt.Errorf("%w: base %v must be positive and finite", ErrInvalidPriorityClass, c.Base)
	case !(c.GrowthFactor >= 1) || math.IsInf(c.GrowthFactor, 0):
		return fmt.Errorf("%w: growth factor %v must be >= 1", ErrInvalidPriorityClass, c.GrowthFactor)
	case !(c.GrowthTime > 0) || math.IsInf(c.GrowthTime, 0):
		return fmt.Errorf("%w: growth time %v must be positive", ErrInvalidPriorityClass, c.GrowthTime)
	}
	return nil
}

// DefaultPriorityClasses returns the tier curves indexed by Tier
func DefaultPriorityClasses() [TierCount]PriorityClass {
	return [TierCount]PriorityClass{
		Low:     {parameter.PriorityLowBase, parameter.PriorityLowGrowthFactor, parameter.PriorityLowGrowthTime},
		Medium:  {parameter.PriorityMedBase, parameter.PriorityMedGrowthFactor, parameter.PriorityMedGrowthTime},
		High:    {parameter.PriorityHighBase, parameter.PriorityHighGrowthFactor, parameter.PriorityHighGrowthTime},
		Highest: {parameter.PriorityTopBase, parameter.PriorityTopGrowthFactor, parameter.PriorityTopGrowthTime},
	}
}

// OvertakeAge returns the age at which a request of class c, queued at that age, outranks a
// freshly queued request of class other. Returns +Inf if it never does
func (c PriorityClass) OvertakeAge(other PriorityClass) float64 {
	if c.Base > other.Base {
		return 0
	}
	if c.GrowthFactor <= 1 {
		return math.Inf(1)
	}
	// Base * F^(t/T) > other.Base  =>  t > T * ln(other.Base/Base) / ln(F)
	return c.GrowthTime * math.Log(other.Base/c.Base) / math.Log(c.GrowthFactor)
}
