// Package physics is a grid-based reference backend for castqueue: an entity world, ray and
// shape intersection casters, and the worker pool that runs their deferred queries
package physics

import (
	"fmt"
	"sync"

	"github.com/lixenwraith/castqueue/parameter"
)

// Entity identifies a body in the World, 0 is never issued
type Entity uint64

// cell holds a fixed number of entities inline
// 7 * 8 (Entities) + 1 (Count) + 7 (Padding) = 64 bytes, one cache line
type cell struct {
	count    uint8
	_        [7]byte
	entities [parameter.QueryCellCapacity]Entity
}

type body struct {
	x, y   int
	pins   int
	doomed bool // destroyed while pinned, removed on last unpin
}

// World is a dense 2D grid of entities, safe for concurrent use
// Queries hold the read lock; spawning, moving, pinning and destroying take the write lock
type World struct {
	mu     sync.RWMutex
	width  int
	height int
	cells  []cell // index = y*width + x
	bodies map[Entity]*body
	next   Entity
}

// NewWorld creates an empty world of the given size
func NewWorld(width, height int) (*World, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, width, height)
	}
	return &World{
		width:  width,
		height: height,
		cells:  make([]cell, width*height),
		bodies: make(map[Entity]*body),
	}, nil
}

func (w *World) Width() int  { return w.width }
func (w *World) Height() int { return w.height }

func (w *World) inBounds(x, y int) bool {
	return x >= 0 && x < w.width && y >= 0 && y < w.height
}

// --- Grid cells ---

func (w *World) add(e Entity, x, y int) bool {
	c := &w.cells[y*w.width+x]
	if int(c.count) >= len(c.entities) {
		return false
	}
	c.entities[c.count] = e
	c.count++
	return true
}

// remove swap-deletes e from its cell
func (w *World) remove(e Entity, x, y int) {
	c := &w.cells[y*w.width+x]
	for i := uint8(0); i < c.count; i++ {
		if c.entities[i] == e {
			c.count--
			if i < c.count {
				c.entities[i] = c.entities[c.count]
			}
			c.entities[c.count] = 0
			return
		}
	}
}

// at returns a view of the entities at (x, y), caller holds the lock
func (w *World) at(x, y int) []Entity {
	if !w.inBounds(x, y) {
		return nil
	}
	c := &w.cells[y*w.width+x]
	return c.entities[:c.count]
}

// --- Lifecycle ---

// Spawn places a new entity at (x, y)
func (w *World) Spawn(x, y int) (Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.inBounds(x, y) {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	w.next++
	e := w.next
	if !w.add(e, x, y) {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrCellFull, x, y)
	}
	w.bodies[e] = &body{x: x, y: y}
	return e, nil
}

// Move relocates a live entity
func (w *World) Move(e Entity, x, y int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[e]
	if !ok || b.doomed {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, e)
	}
	if !w.inBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	if b.x == x && b.y == y {
		return nil
	}
	if !w.add(e, x, y) {
		return fmt.Errorf("%w: (%d,%d)", ErrCellFull, x, y)
	}
	w.remove(e, b.x, b.y)
	b.x, b.y = x, y
	return nil
}

// Destroy removes e from the grid at once. While pinned by in-flight queries the entity
// record survives, not alive, until the last Unpin. Reports whether it was freed immediately
func (w *World) Destroy(e Entity) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[e]
	if !ok || b.doomed {
		return false, fmt.Errorf("%w: %d", ErrUnknownEntity, e)
	}
	w.remove(e, b.x, b.y)
	if b.pins > 0 {
		b.doomed = true
		return false, nil
	}
	delete(w.bodies, e)
	return true, nil
}

// --- Pinning ---

// Pin keeps the entity record alive while a query references it, unknown entities are ignored
func (w *World) Pin(e Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pin(e)
}

func (w *World) pin(e Entity) bool {
	b, ok := w.bodies[e]
	if !ok {
		return false
	}
	b.pins++
	return true
}

// Unpin drops one reference and frees a destroyed entity on the last one
func (w *World) Unpin(e Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unpin(e)
}

func (w *World) unpin(e Entity) {
	b, ok := w.bodies[e]
	if !ok || b.pins == 0 {
		return
	}
	b.pins--
	if b.pins == 0 && b.doomed {
		delete(w.bodies, e)
	}
}

// PinAll pins every entity of the skip list under one lock
func (w *World) PinAll(s SkipList) {
	if s.Len() == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range s.Entities() {
		w.pin(e)
	}
}

// UnpinAll reverses PinAll
func (w *World) UnpinAll(s SkipList) {
	if s.Len() == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range s.Entities() {
		w.unpin(e)
	}
}

// Pins returns the outstanding pin count of e
func (w *World) Pins(e Entity) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if b, ok := w.bodies[e]; ok {
		return b.pins
	}
	return 0
}

// --- Queries ---

// Alive reports whether e exists and was not destroyed
func (w *World) Alive(e Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, ok := w.bodies[e]
	return ok && !b.doomed
}

// Position returns the cell of a live entity
func (w *World) Position(e Entity) (x, y int, ok bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, found := w.bodies[e]
	if !found || b.doomed {
		return 0, 0, false
	}
	return b.x, b.y, true
}

// EntitiesAt returns a copy of the entities at (x, y)
func (w *World) EntitiesAt(x, y int) []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	view := w.at(x, y)
	if len(view) == 0 {
		return nil
	}
	return append([]Entity(nil), view...)
}

// Count returns the number of live entities
func (w *World) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, b := range w.bodies {
		if !b.doomed {
			n++
		}
	}
	return n
}

// Each calls fn for every live entity under the read lock; fn must not call back into the World
func (w *World) Each(fn func(e Entity, x, y int)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for e, b := range w.bodies {
		if !b.doomed {
			fn(e, b.x, b.y)
		}
	}
}
