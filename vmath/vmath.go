// Package vmath is Q32.32 fixed-point arithmetic for grid queries
package vmath

import (
	"math"
	"math/bits"
)

// Q32.32 fixed point constants
const (
	Shift = 32
	Scale = 1 << Shift
	Mask  = Scale - 1
	Half  = 1 << (Shift - 1)
)

// --- Conversion ---

func FromInt(i int) int64       { return int64(i) << Shift }
func ToInt(f int64) int         { return int(f >> Shift) }
func FromFloat(f float64) int64 { return int64(f * Scale) }
func ToFloat(f int64) float64   { return float64(f) / Scale }

// CellCenter returns the fixed-point center of grid cell i
func CellCenter(i int) int64 { return FromInt(i) + Half }

// --- Arithmetic ---

// Mul multiplies two Q32.32 values through a 128-bit intermediate
func Mul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	negative := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(absU(a), absU(b))
	// Q64.64 -> Q32.32
	result := int64((hi << 32) | (lo >> 32))
	if negative {
		return -result
	}
	return result
}

// Div divides two Q32.32 values, saturating on overflow; division by zero yields 0
func Div(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	negative := (a < 0) != (b < 0)
	ua, ub := absU(a), absU(b)

	// a << 32 as 128-bit
	hi, lo := ua>>32, ua<<32
	if hi >= ub {
		return saturate(negative)
	}
	quo, _ := bits.Div64(hi, lo, ub)
	if quo > math.MaxInt64 {
		return saturate(negative)
	}
	if negative {
		return -int64(quo)
	}
	return int64(quo)
}

func absU(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

func saturate(negative bool) int64 {
	if negative {
		return math.MinInt64
	}
	return math.MaxInt64
}

func Abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Sqrt returns the Q32.32 square root using Newton-Raphson
func Sqrt(x int64) int64 {
	if x <= 0 {
		return 0
	}

	// sqrt(x * 2^32) seeded from the bit length, within a factor of two
	guess := int64(1) << ((bits.Len64(uint64(x)) + Shift) / 2)

	for i := 0; i < 8; i++ {
		if guess == 0 {
			return 0
		}
		guess = (guess + Div(x, guess)) >> 1
	}
	return guess
}

// DistanceApprox is alpha max plus beta min, error ~4%
func DistanceApprox(dx, dy int64) int64 {
	dx, dy = Abs(dx), Abs(dy)
	if dx < dy {
		dx, dy = dy, dx
	}
	return dx + (dy >> 2) + (dy >> 3)
}

// --- Randomness ---

// FastRand is an xorshift64 generator for jitter, not safe for concurrent use
type FastRand struct {
	state uint64
}

func NewFastRand(seed uint64) *FastRand {
	if seed == 0 {
		seed = 1
	}
	return &FastRand{state: seed}
}

func (r *FastRand) Next() uint64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

func (r *FastRand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint64(n))
}

// Signed returns a value in [-limit, limit]
func (r *FastRand) Signed(limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	return int64(r.Next()%uint64(2*limit+1)) - limit
}
