package physics

import (
	"github.com/lixenwraith/castqueue/castqueue"
	"github.com/lixenwraith/castqueue/parameter"
	"github.com/lixenwraith/castqueue/vmath"
)

// RayRequest casts a ray from the origin along the direction, all values Q32.32
// The direction need not be normalized
type RayRequest struct {
	OriginX, OriginY int64
	DirX, DirY       int64
	MaxDistance      int64
	Skip             SkipList
	MaxHits          int // 0 or above capacity means parameter.MaxRayHits
}

// Degenerate reports a request no backend can evaluate: zero direction or non-positive distance
func (r RayRequest) Degenerate() bool {
	_, _, ok := vmath.RayEnd(r.OriginX, r.OriginY, r.DirX, r.DirY, r.MaxDistance)
	return !ok
}

type RayHit struct {
	Entity   Entity
	X, Y     int
	Distance int64 // origin to cell center, Q32.32
}

// RayResult lists hits nearest first
type RayResult struct {
	Hits  [parameter.MaxRayHits]RayHit
	Count int
}

// Nearest returns the closest hit
func (r *RayResult) Nearest() (RayHit, bool) {
	if r.Count == 0 {
		return RayHit{}, false
	}
	return r.Hits[0], true
}

// RayCaster evaluates rays against a World
type RayCaster struct {
	world      *World
	dispatcher *Dispatcher
	callback   castqueue.CompletionFunc[RayResult]
}

var _ castqueue.Caster[RayRequest, RayResult] = (*RayCaster)(nil)

// NewRayCaster runs deferred rays on dispatcher; a nil dispatcher evaluates them inline
func NewRayCaster(world *World, dispatcher *Dispatcher) *RayCaster {
	return &RayCaster{world: world, dispatcher: dispatcher}
}

func (c *RayCaster) SetCallback(fn castqueue.CompletionFunc[RayResult]) {
	c.callback = fn
}

func (c *RayCaster) Cast(req RayRequest) RayResult {
	return c.world.castRay(req)
}

func (c *RayCaster) Acquire(req RayRequest) { c.world.PinAll(req.Skip) }

func (c *RayCaster) Release(req RayRequest) { c.world.UnpinAll(req.Skip) }

// Queue evaluates req asynchronously; degenerate requests complete before Queue returns
// Panics with ErrNoCallback when no completion callback is registered
func (c *RayCaster) Queue(slot castqueue.SlotID, req RayRequest) {
	cb := c.callback
	if cb == nil {
		panic(ErrNoCallback)
	}
	if req.Degenerate() {
		cb(slot, RayResult{})
		return
	}

	c.Acquire(req)
	delivered := false
	finish := func(res RayResult) {
		if delivered {
			return
		}
		delivered = true
		c.Release(req)
		cb(slot, res)
	}
	submit(c.dispatcher, Job{
		Run:   func() { finish(c.world.castRay(req)) },
		Abort: func() { finish(RayResult{}) },
	})
}

// submit runs the job inline when no dispatcher is configured
func submit(d *Dispatcher, job Job) {
	if d != nil {
		d.Submit(job)
		return
	}
	job.Run()
}

func rayLimit(n int) int {
	if n <= 0 || n > parameter.MaxRayHits {
		return parameter.MaxRayHits
	}
	return n
}

// castRay walks the cells under the ray in order, stopping at the hit limit or after
// leaving the grid
func (w *World) castRay(req RayRequest) RayResult {
	var res RayResult
	endX, endY, ok := vmath.RayEnd(req.OriginX, req.OriginY, req.DirX, req.DirY, req.MaxDistance)
	if !ok {
		return res
	}
	limit := rayLimit(req.MaxHits)

	w.mu.RLock()
	defer w.mu.RUnlock()

	entered := false
	tr := vmath.NewGridTraverser(req.OriginX, req.OriginY, endX, endY)
	for tr.Next() {
		x, y := tr.Pos()
		if !w.inBounds(x, y) {
			if entered {
				break
			}
			continue
		}
		entered = true

		for _, e := range w.at(x, y) {
			if req.Skip.Contains(e) {
				continue
			}
			res.Hits[res.Count] = RayHit{
				Entity:   e,
				X:        x,
				Y:        y,
				Distance: vmath.Distance(req.OriginX, req.OriginY, vmath.CellCenter(x), vmath.CellCenter(y)),
			}
			res.Count++
			if res.Count == limit {
				return res
			}
		}
	}
	return res
}
