package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	base float64
}

func newTestArena() *Arena[entry, float64, float64] {
	return New[entry, float64, float64](4)
}

func greater(a, b float64) bool { return a > b }

// byBase ignores age, ordering purely by the stored base value
func byBase(_ float64, v *entry) float64 { return v.base }

func names(t *testing.T, a *Arena[entry, float64, float64]) []string {
	t.Helper()
	var out []string
	for _, h := range a.Handles() {
		v, ok := a.Get(h)
		require.True(t, ok)
		out = append(out, v.name)
	}
	return out
}

func mustPush(t *testing.T, a *Arena[entry, float64, float64], e entry) Handle {
	t.Helper()
	h, err := a.PushBack(e)
	require.NoError(t, err)
	require.True(t, h.Valid())
	return h
}

func TestHandle_Layout(t *testing.T) {
	h := makeHandle(7, 3)
	assert.Equal(t, uint32(7), h.Index())
	assert.Equal(t, uint32(3), h.Generation())
	assert.True(t, h.Valid())
	assert.Equal(t, Handle(3<<32|8), h)

	assert.False(t, InvalidHandle.Valid())
	assert.Equal(t, "handle(invalid)", InvalidHandle.String())
	assert.Equal(t, "handle(7@3)", h.String())
}

func TestHandle_GenerationWrapSkipsZero(t *testing.T) {
	assert.Equal(t, uint32(1), nextGeneration(^uint32(0)))
	assert.Equal(t, uint32(2), nextGeneration(1))
}

// TestArena_EraseReuseStaleHandle pushes A, B, C, erases B and pushes D into B's slot
func TestArena_EraseReuseStaleHandle(t *testing.T) {
	a := newTestArena()
	mustPush(t, a, entry{name: "A"})
	idB := mustPush(t, a, entry{name: "B"})
	mustPush(t, a, entry{name: "C"})

	require.NoError(t, a.Erase(idB))
	idD := mustPush(t, a, entry{name: "D"})

	assert.Equal(t, idB.Index(), idD.Index(), "D must reuse B's slot")
	assert.NotEqual(t, idB, idD)
	assert.False(t, a.Has(idB))
	assert.True(t, a.Has(idD))
	assert.Equal(t, []string{"A", "C", "D"}, names(t, a))

	_, ok := a.Get(idB)
	assert.False(t, ok)
	assert.Nil(t, a.Ptr(idB))
}

func TestArena_EraseErrors(t *testing.T) {
	a := newTestArena()
	h := mustPush(t, a, entry{name: "A"})

	assert.ErrorIs(t, a.Erase(InvalidHandle), ErrInvalidHandle)
	assert.ErrorIs(t, a.Erase(makeHandle(42, 1)), ErrStaleHandle)
	assert.ErrorIs(t, a.Erase(makeHandle(h.Index(), h.Generation()+1)), ErrStaleHandle)

	require.NoError(t, a.Erase(h))
	assert.ErrorIs(t, a.Erase(h), ErrStaleHandle, "double erase must fail")
	assert.Equal(t, 0, a.Len())
}

// TestArena_HandleSafetySequence exercises a long push/erase interleaving and checks
// that every handle erased earlier stays stale forever
func TestArena_HandleSafetySequence(t *testing.T) {
	a := newTestArena()
	var dead []Handle
	liveSet := make(map[Handle]bool)

	for round := 0; round < 50; round++ {
		for i := 0; i < 3; i++ {
			liveSet[mustPush(t, a, entry{name: "x"})] = true
		}
		// Erase two live entries per round
		erased := 0
		for h := range liveSet {
			if erased == 2 {
				break
			}
			require.NoError(t, a.Erase(h))
			delete(liveSet, h)
			dead = append(dead, h)
			erased++
		}

		for _, h := range dead {
			require.False(t, a.Has(h), "stale handle %v reported live", h)
		}
		for h := range liveSet {
			require.True(t, a.Has(h))
		}
		require.Equal(t, len(liveSet), a.Len())
	}
	// Storage only grows as far as the peak live count
	assert.LessOrEqual(t, a.Cap(), 3+50)
}

func TestArena_Deque(t *testing.T) {
	a := newTestArena()
	_, ok := a.Front()
	assert.False(t, ok)
	_, _, ok = a.PopFront()
	assert.False(t, ok)

	hA := mustPush(t, a, entry{name: "A"})
	mustPush(t, a, entry{name: "B"})
	hC := mustPush(t, a, entry{name: "C"})

	front, ok := a.Front()
	require.True(t, ok)
	assert.Equal(t, hA, front)
	back, ok := a.Back()
	require.True(t, ok)
	assert.Equal(t, hC, back)

	h, v, ok := a.PopFront()
	require.True(t, ok)
	assert.Equal(t, hA, h)
	assert.Equal(t, "A", v.name)
	assert.False(t, a.Has(hA))
	assert.Equal(t, []string{"B", "C"}, names(t, a))

	// Erase after a pop keeps positions consistent
	require.NoError(t, a.Erase(hC))
	assert.Equal(t, []string{"B"}, names(t, a))
}

func TestArena_PopFrontCompaction(t *testing.T) {
	a := newTestArena()
	var handles []Handle
	for i := 0; i < 100; i++ {
		handles = append(handles, mustPush(t, a, entry{name: "x", base: float64(i)}))
	}
	for i := 0; i < 70; i++ {
		h, _, ok := a.PopFront()
		require.True(t, ok)
		require.Equal(t, handles[i], h)
	}
	assert.Equal(t, 30, a.Len())

	// Remaining entries are still addressable and erasable after compaction
	require.NoError(t, a.Erase(handles[85]))
	assert.Equal(t, 29, a.Len())
	front, _ := a.Front()
	assert.Equal(t, handles[70], front)
}

func TestArena_UpdateStableDescending(t *testing.T) {
	a := newTestArena()
	mustPush(t, a, entry{name: "low1", base: 1})
	mustPush(t, a, entry{name: "high", base: 5})
	mustPush(t, a, entry{name: "low2", base: 1})
	mustPush(t, a, entry{name: "mid", base: 3})

	a.Update(0, byBase, greater)
	assert.Equal(t, []string{"high", "mid", "low1", "low2"}, names(t, a))
}

func TestArena_UpdateAccumulatesAge(t *testing.T) {
	a := newTestArena()
	h := mustPush(t, a, entry{name: "A", base: 1})

	ageTimesBase := func(age float64, v *entry) float64 { return age * v.base }
	a.Update(0.5, ageTimesBase, greater)
	a.Update(0.25, ageTimesBase, greater)

	age, ok := a.Age(h)
	require.True(t, ok)
	assert.InDelta(t, 0.75, age, 1e-9)
	p, ok := a.Priority(h)
	require.True(t, ok)
	assert.InDelta(t, 0.75, p, 1e-9)

	// Reuse resets age and priority
	require.NoError(t, a.Erase(h))
	h2 := mustPush(t, a, entry{name: "B", base: 1})
	age, _ = a.Age(h2)
	assert.Zero(t, age)
}

func TestArena_PartialUpdate(t *testing.T) {
	tests := []struct {
		name  string
		bases []float64
		count int
		top   []string
	}{
		{"prefix of two", []float64{1, 9, 3, 7, 5}, 2, []string{"e1", "e3"}},
		{"ties keep insertion order", []float64{2, 4, 4, 1, 4}, 2, []string{"e1", "e2"}},
		{"count one", []float64{3, 1, 8, 2}, 1, []string{"e2"}},
		{"count covers all", []float64{3, 1, 2}, 5, []string{"e0", "e2", "e1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestArena()
			for i, b := range tc.bases {
				mustPush(t, a, entry{name: "e" + string(rune('0'+i)), base: b})
			}
			a.PartialUpdate(tc.count, 0, byBase, greater)

			got := names(t, a)
			require.Len(t, got, len(tc.bases))
			assert.Equal(t, tc.top, got[:len(tc.top)])
		})
	}
}

// TestArena_PartialUpdateRemainderOrder checks the unselected tail keeps its prior order
func TestArena_PartialUpdateRemainderOrder(t *testing.T) {
	a := newTestArena()
	for i, b := range []float64{1, 9, 3, 7, 5} {
		mustPush(t, a, entry{name: "e" + string(rune('0'+i)), base: b})
	}
	a.PartialUpdate(2, 0, byBase, greater)
	assert.Equal(t, []string{"e1", "e3", "e0", "e2", "e4"}, names(t, a))

	// Popping the prefix yields the global maximum first
	_, v, ok := a.PopFront()
	require.True(t, ok)
	assert.Equal(t, "e1", v.name)
}

func TestArena_PartialUpdateMatchesFullSortPrefix(t *testing.T) {
	bases := []float64{4, 8, 1, 8, 6, 2, 9, 0, 6, 3, 7, 7}
	full := newTestArena()
	part := newTestArena()
	for i, b := range bases {
		e := entry{name: "e" + string(rune('a'+i)), base: b}
		mustPush(t, full, e)
		mustPush(t, part, e)
	}

	full.Update(0, byBase, greater)
	for count := 1; count <= len(bases); count++ {
		part.PartialUpdate(count, 0, byBase, greater)
		assert.Equal(t, names(t, full)[:count], names(t, part)[:count], "count=%d", count)
	}
}

func TestArena_PartialUpdateReusesScratch(t *testing.T) {
	a := newTestArena()
	for i, b := range []float64{5, 1, 4, 2, 3, 0} {
		mustPush(t, a, entry{name: "e" + string(rune('0'+i)), base: b})
	}
	a.PartialUpdate(2, 0, byBase, greater)
	require.Positive(t, cap(a.rest))
	rest := &a.rest[:1][0]
	order := &a.order[:1][0]

	a.PartialUpdate(2, 0, byBase, greater)
	assert.Same(t, rest, &a.rest[:1][0], "remainder buffer reused")
	assert.Same(t, order, &a.order[:1][0], "selection buffer reused")
	assert.Equal(t, []string{"e0", "e2", "e1", "e3", "e4", "e5"}, names(t, a))
}

func TestArena_Clear(t *testing.T) {
	a := newTestArena()
	h1 := mustPush(t, a, entry{name: "A"})
	h2 := mustPush(t, a, entry{name: "B"})
	a.Clear()

	assert.Equal(t, 0, a.Len())
	assert.False(t, a.Has(h1))
	assert.False(t, a.Has(h2))

	h3 := mustPush(t, a, entry{name: "C"})
	assert.True(t, a.Has(h3))
	assert.Equal(t, 2, a.Cap())
}

func TestArena_IntegerAge(t *testing.T) {
	a := New[string, int, int](0)
	h, err := a.PushBack("tick")
	require.NoError(t, err)
	a.Update(3, func(age int, _ *string) int { return age * 2 }, func(x, y int) bool { return x > y })

	p, ok := a.Priority(h)
	require.True(t, ok)
	assert.Equal(t, 6, p)
}
