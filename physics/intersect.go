package physics

import (
	"github.com/lixenwraith/castqueue/castqueue"
	"github.com/lixenwraith/castqueue/parameter"
	"github.com/lixenwraith/castqueue/vmath"
)

type ShapeKind uint8

const (
	ShapeCircle ShapeKind = iota
	ShapeBox
)

// Shape is a query volume in Q32.32 world coordinates
// Circle uses Center and Radius, Box uses Min/Max (inclusive cells)
type Shape struct {
	Kind             ShapeKind
	CenterX, CenterY int64
	Radius           int64
	MinX, MinY       int64
	MaxX, MaxY       int64
}

func Circle(cx, cy, radius int64) Shape {
	return Shape{Kind: ShapeCircle, CenterX: cx, CenterY: cy, Radius: radius}
}

func Box(minX, minY, maxX, maxY int64) Shape {
	return Shape{Kind: ShapeBox, MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// Degenerate reports shapes that cover nothing
func (s Shape) Degenerate() bool {
	switch s.Kind {
	case ShapeCircle:
		return s.Radius <= 0
	case ShapeBox:
		return s.MinX > s.MaxX || s.MinY > s.MaxY
	}
	return true
}

// cellBounds returns the inclusive cell rectangle enclosing the shape
func (s Shape) cellBounds() (x0, y0, x1, y1 int) {
	if s.Kind == ShapeCircle {
		return vmath.ToInt(s.CenterX - s.Radius), vmath.ToInt(s.CenterY - s.Radius),
			vmath.ToInt(s.CenterX + s.Radius), vmath.ToInt(s.CenterY + s.Radius)
	}
	return vmath.ToInt(s.MinX), vmath.ToInt(s.MinY), vmath.ToInt(s.MaxX), vmath.ToInt(s.MaxY)
}

// covers reports whether the cell at (x, y) belongs to the shape
func (s Shape) covers(x, y int) bool {
	if s.Kind == ShapeCircle {
		return vmath.Distance(s.CenterX, s.CenterY, vmath.CellCenter(x), vmath.CellCenter(y)) <= s.Radius
	}
	return true
}

type IntersectRequest struct {
	Shape   Shape
	Skip    SkipList
	MaxHits int // 0 or above capacity means parameter.MaxIntersectHits
}

// IntersectResult lists overlapping entities in row-major cell order
type IntersectResult struct {
	Entities [parameter.MaxIntersectHits]Entity
	Count    int
}

// Contains reports whether e is among the results
func (r *IntersectResult) Contains(e Entity) bool {
	for i := 0; i < r.Count; i++ {
		if r.Entities[i] == e {
			return true
		}
	}
	return false
}

// IntersectCaster evaluates shape overlaps against a World
type IntersectCaster struct {
	world      *World
	dispatcher *Dispatcher
	callback   castqueue.CompletionFunc[IntersectResult]
}

var _ castqueue.Caster[IntersectRequest, IntersectResult] = (*IntersectCaster)(nil)

func NewIntersectCaster(world *World, dispatcher *Dispatcher) *IntersectCaster {
	return &IntersectCaster{world: world, dispatcher: dispatcher}
}

func (c *IntersectCaster) SetCallback(fn castqueue.CompletionFunc[IntersectResult]) {
	c.callback = fn
}

func (c *IntersectCaster) Cast(req IntersectRequest) IntersectResult {
	return c.world.intersect(req)
}

func (c *IntersectCaster) Acquire(req IntersectRequest) { c.world.PinAll(req.Skip) }

func (c *IntersectCaster) Release(req IntersectRequest) { c.world.UnpinAll(req.Skip) }

// Queue evaluates req asynchronously; degenerate shapes complete before Queue returns
// Panics with ErrNoCallback when no completion callback is registered
func (c *IntersectCaster) Queue(slot castqueue.SlotID, req IntersectRequest) {
	cb := c.callback
	if cb == nil {
		panic(ErrNoCallback)
	}
	if req.Shape.Degenerate() {
		cb(slot, IntersectResult{})
		return
	}

	c.Acquire(req)
	delivered := false
	finish := func(res IntersectResult) {
		if delivered {
			return
		}
		delivered = true
		c.Release(req)
		cb(slot, res)
	}
	submit(c.dispatcher, Job{
		Run:   func() { finish(c.world.intersect(req)) },
		Abort: func() { finish(IntersectResult{}) },
	})
}

func (w *World) intersect(req IntersectRequest) IntersectResult {
	var res IntersectResult
	if req.Shape.Degenerate() {
		return res
	}
	limit := req.MaxHits
	if limit <= 0 || limit > parameter.MaxIntersectHits {
		limit = parameter.MaxIntersectHits
	}

	x0, y0, x1, y1 := req.Shape.cellBounds()
	x0, y0 = max(x0, 0), max(y0, 0)

	w.mu.RLock()
	defer w.mu.RUnlock()

	x1, y1 = min(x1, w.width-1), min(y1, w.height-1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if !req.Shape.covers(x, y) {
				continue
			}
			for _, e := range w.at(x, y) {
				if req.Skip.Contains(e) {
					continue
				}
				res.Entities[res.Count] = e
				res.Count++
				if res.Count == limit {
					return res
				}
			}
		}
	}
	return res
}
