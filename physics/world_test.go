package physics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/castqueue/parameter"
)

func newWorld(t *testing.T) *World {
	t.Helper()
	w, err := NewWorld(20, 10)
	require.NoError(t, err)
	return w
}

func spawn(t *testing.T, w *World, x, y int) Entity {
	t.Helper()
	e, err := w.Spawn(x, y)
	require.NoError(t, err)
	require.NotZero(t, e)
	return e
}

func TestNewWorld_InvalidSize(t *testing.T) {
	_, err := NewWorld(0, 5)
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestWorld_SpawnMoveDestroy(t *testing.T) {
	w := newWorld(t)
	e := spawn(t, w, 3, 4)

	x, y, ok := w.Position(e)
	require.True(t, ok)
	assert.Equal(t, [2]int{3, 4}, [2]int{x, y})
	assert.Equal(t, []Entity{e}, w.EntitiesAt(3, 4))

	require.NoError(t, w.Move(e, 5, 6))
	assert.Nil(t, w.EntitiesAt(3, 4))
	assert.Equal(t, []Entity{e}, w.EntitiesAt(5, 6))
	assert.ErrorIs(t, w.Move(e, 20, 0), ErrOutOfBounds)

	freed, err := w.Destroy(e)
	require.NoError(t, err)
	assert.True(t, freed)
	assert.False(t, w.Alive(e))
	assert.Nil(t, w.EntitiesAt(5, 6))

	_, err = w.Destroy(e)
	assert.ErrorIs(t, err, ErrUnknownEntity)
	assert.ErrorIs(t, w.Move(e, 1, 1), ErrUnknownEntity)
}

func TestWorld_CellCapacity(t *testing.T) {
	w := newWorld(t)
	for i := 0; i < parameter.QueryCellCapacity; i++ {
		spawn(t, w, 1, 1)
	}
	_, err := w.Spawn(1, 1)
	assert.ErrorIs(t, err, ErrCellFull)

	other := spawn(t, w, 2, 1)
	assert.ErrorIs(t, w.Move(other, 1, 1), ErrCellFull)
	assert.Equal(t, []Entity{other}, w.EntitiesAt(2, 1), "failed move keeps the old cell")

	_, err = w.Spawn(-1, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

// TestWorld_DestroyWhilePinned defers freeing the record until the last unpin
func TestWorld_DestroyWhilePinned(t *testing.T) {
	w := newWorld(t)
	e := spawn(t, w, 2, 2)
	require.True(t, w.Pin(e))
	require.True(t, w.Pin(e))

	freed, err := w.Destroy(e)
	require.NoError(t, err)
	assert.False(t, freed)
	assert.False(t, w.Alive(e))
	assert.Nil(t, w.EntitiesAt(2, 2), "destroyed entities leave the grid at once")
	assert.Equal(t, 2, w.Pins(e))

	w.Unpin(e)
	assert.Equal(t, 1, w.Pins(e))
	w.Unpin(e)
	assert.Equal(t, 0, w.Pins(e))
	assert.False(t, w.Pin(e), "record freed on last unpin")
	assert.Equal(t, 0, w.Count())
}

func TestSkipList(t *testing.T) {
	s := Skip(1, 2, 2, 0)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(3))

	for e := Entity(3); s.Len() < parameter.MaxSkipEntities; e++ {
		require.True(t, s.Add(e))
	}
	assert.False(t, s.Add(99), "full list reports overflow")
	assert.True(t, s.Add(1), "duplicates are accepted")
}

func TestWorld_PinAllBalances(t *testing.T) {
	w := newWorld(t)
	a, b := spawn(t, w, 0, 0), spawn(t, w, 1, 0)
	s := Skip(a, b, 12345)

	w.PinAll(s)
	assert.Equal(t, 1, w.Pins(a))
	assert.Equal(t, 1, w.Pins(b))
	w.UnpinAll(s)
	assert.Zero(t, w.Pins(a))
	assert.Zero(t, w.Pins(b))
}

func TestWorld_ConcurrentReaders(t *testing.T) {
	w := newWorld(t)
	e := spawn(t, w, 0, 5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				w.Position(e)
				w.EntitiesAt(j%20, 5)
			}
		}()
	}
	for x := 0; x < 20; x++ {
		require.NoError(t, w.Move(e, x, 5))
	}
	wg.Wait()

	seen := 0
	w.Each(func(got Entity, x, y int) {
		seen++
		assert.Equal(t, e, got)
		assert.Equal(t, 19, x)
	})
	assert.Equal(t, 1, seen)
}
