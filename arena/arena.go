package arena

import (
	"container/heap"
	"slices"

	"golang.org/x/exp/constraints"
)

// Age is the accumulated aging metric of an entry
type Age interface {
	constraints.Integer | constraints.Float
}

// UpdateFunc recomputes an entry's priority from its accumulated age
type UpdateFunc[V any, A Age, P constraints.Ordered] func(age A, value *V) P

// LessFunc reports whether priority a sorts before priority b
// Pass a "greater" function to order highest priority first
type LessFunc[P constraints.Ordered] func(a, b P) bool

type slot[V any, A Age, P constraints.Ordered] struct {
	value      V
	age        A
	priority   P
	generation uint32
	pos        int // index into Arena.live, valid only while occupied
	free       bool
}

// Arena stores values in recyclable slots and keeps an ordered sequence of live handles
type Arena[V any, A Age, P constraints.Ordered] struct {
	slots []slot[V, A, P]
	free  []uint32 // LIFO free list of slot indices
	live  []uint32 // ordered live slot indices, live[head:] is the visible sequence
	head  int

	// Scratch buffers reused by PartialUpdate
	picked []bool
	order  []uint32
	rest   []uint32
}

// New creates an empty Arena with room for capacity entries before growing
func New[V any, A Age, P constraints.Ordered](capacity int) *Arena[V, A, P] {
	if capacity < 0 {
		capacity = 0
	}
	return &Arena[V, A, P]{
		slots: make([]slot[V, A, P], 0, capacity),
		live:  make([]uint32, 0, capacity),
	}
}

// --- Storage ---

// PushBack stores value at the back of the live sequence
// Reuses a free slot when available (age and priority reset, generation bumped)
func (a *Arena[V, A, P]) PushBack(value V) (Handle, error) {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]

		s := &a.slots[idx]
		var zeroAge A
		var zeroPriority P
		s.value = value
		s.age = zeroAge
		s.priority = zeroPriority
		s.free = false
		s.generation = nextGeneration(s.generation)
	} else {
		if len(a.slots) >= maxSlots {
			return InvalidHandle, ErrArenaFull
		}
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[V, A, P]{value: value, generation: 1})
	}

	s := &a.slots[idx]
	s.pos = len(a.live)
	a.live = append(a.live, idx)
	return makeHandle(idx, s.generation), nil
}

// Erase removes the entry from the live sequence and returns its slot to the free list
// O(n) in the live sequence length
func (a *Arena[V, A, P]) Erase(h Handle) error {
	s, err := a.resolve(h)
	if err != nil {
		return err
	}

	pos := s.pos
	copy(a.live[pos:], a.live[pos+1:])
	a.live = a.live[:len(a.live)-1]
	for i := pos; i < len(a.live); i++ {
		a.slots[a.live[i]].pos = i
	}

	a.release(h.Index())
	return nil
}

// Has reports whether h refers to a live entry
func (a *Arena[V, A, P]) Has(h Handle) bool {
	_, err := a.resolve(h)
	return err == nil
}

// Get returns a copy of the value referenced by h
func (a *Arena[V, A, P]) Get(h Handle) (V, bool) {
	s, err := a.resolve(h)
	if err != nil {
		var zero V
		return zero, false
	}
	return s.value, true
}

// Ptr returns a pointer to the stored value, nil if h is stale
// The pointer is invalidated by the next PushBack that grows storage
func (a *Arena[V, A, P]) Ptr(h Handle) *V {
	s, err := a.resolve(h)
	if err != nil {
		return nil
	}
	return &s.value
}

// Age returns the accumulated age of the entry
func (a *Arena[V, A, P]) Age(h Handle) (A, bool) {
	s, err := a.resolve(h)
	if err != nil {
		var zero A
		return zero, false
	}
	return s.age, true
}

// Priority returns the priority computed by the last Update or PartialUpdate
func (a *Arena[V, A, P]) Priority(h Handle) (P, bool) {
	s, err := a.resolve(h)
	if err != nil {
		var zero P
		return zero, false
	}
	return s.priority, true
}

// Len returns the number of live entries
func (a *Arena[V, A, P]) Len() int {
	return len(a.live) - a.head
}

// Cap returns the number of slots ever allocated
func (a *Arena[V, A, P]) Cap() int {
	return len(a.slots)
}

// Handles returns the live sequence in order
func (a *Arena[V, A, P]) Handles() []Handle {
	out := make([]Handle, 0, a.Len())
	for _, idx := range a.live[a.head:] {
		out = append(out, makeHandle(idx, a.slots[idx].generation))
	}
	return out
}

// Clear frees every live entry, outstanding handles become stale
func (a *Arena[V, A, P]) Clear() {
	for _, idx := range a.live[a.head:] {
		a.release(idx)
	}
	a.live = a.live[:0]
	a.head = 0
}

// --- Deque ---

// Front returns the first live entry
func (a *Arena[V, A, P]) Front() (Handle, bool) {
	if a.Len() == 0 {
		return InvalidHandle, false
	}
	idx := a.live[a.head]
	return makeHandle(idx, a.slots[idx].generation), true
}

// Back returns the last live entry
func (a *Arena[V, A, P]) Back() (Handle, bool) {
	if a.Len() == 0 {
		return InvalidHandle, false
	}
	idx := a.live[len(a.live)-1]
	return makeHandle(idx, a.slots[idx].generation), true
}

// PopFront removes the first live entry and returns its handle and value
// The returned handle is already stale
func (a *Arena[V, A, P]) PopFront() (Handle, V, bool) {
	if a.Len() == 0 {
		var zero V
		return InvalidHandle, zero, false
	}

	idx := a.live[a.head]
	s := &a.slots[idx]
	h := makeHandle(idx, s.generation)
	value := s.value

	a.head++
	a.release(idx)

	// Reclaim the consumed prefix once it dominates the sequence
	if a.head == len(a.live) {
		a.live = a.live[:0]
		a.head = 0
	} else if a.head > 32 && a.head*2 > len(a.live) {
		a.compact()
	}
	return h, value, true
}

// --- Ordering ---

// Update ages every live entry by delta, recomputes priorities with fn and
// stable sorts the whole sequence by less
func (a *Arena[V, A, P]) Update(delta A, fn UpdateFunc[V, A, P], less LessFunc[P]) {
	a.age(delta, fn)
	a.compact()

	slices.SortStableFunc(a.live, func(x, y uint32) int {
		px, py := a.slots[x].priority, a.slots[y].priority
		switch {
		case less(px, py):
			return -1
		case less(py, px):
			return 1
		}
		return 0
	})
	a.reindex()
}

// PartialUpdate ages every live entry like Update but only orders the first count entries
// The first count entries are the correctly ordered top of the sequence, ties broken by
// previous position. The remainder keeps its previous relative order. O(n log count)
func (a *Arena[V, A, P]) PartialUpdate(count int, delta A, fn UpdateFunc[V, A, P], less LessFunc[P]) {
	n := a.Len()
	if count >= n {
		a.Update(delta, fn, less)
		return
	}

	a.age(delta, fn)
	a.compact()
	if count <= 0 {
		return
	}

	before := func(x, y uint32) bool {
		sx, sy := &a.slots[x], &a.slots[y]
		if less(sx.priority, sy.priority) {
			return true
		}
		if less(sy.priority, sx.priority) {
			return false
		}
		return sx.pos < sy.pos
	}

	// Bounded heap whose root is the worst selected entry
	sel := &selection{items: a.order[:0], worse: func(x, y uint32) bool { return before(y, x) }}
	for _, idx := range a.live {
		if len(sel.items) < count {
			heap.Push(sel, idx)
			continue
		}
		if before(idx, sel.items[0]) {
			sel.items[0] = idx
			heap.Fix(sel, 0)
		}
	}

	top := sel.items
	slices.SortFunc(top, func(x, y uint32) int {
		if before(x, y) {
			return -1
		}
		return 1
	})

	if cap(a.picked) < len(a.slots) {
		a.picked = make([]bool, len(a.slots))
	}
	picked := a.picked[:len(a.slots)]
	for _, idx := range top {
		picked[idx] = true
	}

	// Rebuild: selected prefix, then the untouched remainder in previous order
	rest := a.rest[:0]
	for _, idx := range a.live {
		if !picked[idx] {
			rest = append(rest, idx)
		}
	}
	a.live = append(append(a.live[:0], top...), rest...)
	for _, idx := range top {
		picked[idx] = false
	}
	a.order = top[:0]
	a.rest = rest[:0]
	a.reindex()
}

// --- Internal ---

func (a *Arena[V, A, P]) resolve(h Handle) (*slot[V, A, P], error) {
	if !h.Valid() {
		return nil, ErrInvalidHandle
	}
	idx := h.Index()
	if int(idx) >= len(a.slots) {
		return nil, ErrStaleHandle
	}
	s := &a.slots[idx]
	if s.free || s.generation != h.Generation() {
		return nil, ErrStaleHandle
	}
	return s, nil
}

func (a *Arena[V, A, P]) release(idx uint32) {
	s := &a.slots[idx]
	var zero V
	s.value = zero
	s.free = true
	s.pos = -1
	a.free = append(a.free, idx)
}

func (a *Arena[V, A, P]) age(delta A, fn UpdateFunc[V, A, P]) {
	for _, idx := range a.live[a.head:] {
		s := &a.slots[idx]
		s.age += delta
		s.priority = fn(s.age, &s.value)
	}
}

// compact drops the consumed prefix so positions are absolute indices into live
func (a *Arena[V, A, P]) compact() {
	if a.head == 0 {
		return
	}
	n := copy(a.live, a.live[a.head:])
	a.live = a.live[:n]
	a.head = 0
	a.reindex()
}

func (a *Arena[V, A, P]) reindex() {
	for i, idx := range a.live {
		a.slots[idx].pos = i
	}
}

// selection is a container/heap of slot indices ordered worst-first
type selection struct {
	items []uint32
	worse func(x, y uint32) bool
}

func (s *selection) Len() int           { return len(s.items) }
func (s *selection) Less(i, j int) bool { return s.worse(s.items[i], s.items[j]) }
func (s *selection) Swap(i, j int)      { s.items[i], s.items[j] = s.items[j], s.items[i] }
func (s *selection) Push(x any)         { s.items = append(s.items, x.(uint32)) }
func (s *selection) Pop() any {
	n := len(s.items)
	x := s.items[n-1]
	s.items = s.items[:n-1]
	return x
}
