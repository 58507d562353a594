package arena

import (
	"fmt"
	"math"
)

// Handle is a weak reference into an Arena
// Layout: bits 63..32 generation, bits 31..0 slot index + 1
// The zero value is the invalid sentinel
type Handle uint64

// InvalidHandle is never issued by an Arena
const InvalidHandle Handle = 0

const (
	indexBits = 32
	indexMask = 1<<indexBits - 1

	// maxSlots keeps index+1 representable in the low 32 bits
	maxSlots = math.MaxUint32 - 1
)

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<indexBits | (uint64(index) + 1))
}

// Index returns the slot index, meaningless for InvalidHandle
func (h Handle) Index() uint32 {
	return uint32(uint64(h)&indexMask) - 1
}

// Generation returns the slot generation the handle was issued for
func (h Handle) Generation() uint32 {
	return uint32(uint64(h) >> indexBits)
}

// Valid reports whether the handle is structurally well formed
// A valid handle can still be stale
func (h Handle) Valid() bool {
	return uint64(h)&indexMask != 0 && h.Generation() != 0
}

func (h Handle) String() string {
	if !h.Valid() {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d@%d)", h.Index(), h.Generation())
}

// nextGeneration skips 0 on wrap so reissued handles are never invalid
func nextGeneration(g uint32) uint32 {
	g++
	if g == 0 {
		g = 1
	}
	return g
}
