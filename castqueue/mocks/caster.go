// Package mocks provides recording test doubles for the castqueue contracts
package mocks

import (
	"sync"

	"github.com/lixenwraith/castqueue/castqueue"
)

// QueuedCall records one asynchronous submission
type QueuedCall[Req any] struct {
	Slot castqueue.SlotID
	Req  Req
}

// Caster records every call and lets tests complete submissions on demand
// CastFunc computes synchronous results; QueueFunc, when set, runs inside Queue and may
// complete the slot synchronously. Safe for concurrent use
type Caster[Req, Res any] struct {
	mu sync.Mutex

	CastFunc  func(req Req) Res
	QueueFunc func(slot castqueue.SlotID, req Req, complete castqueue.CompletionFunc[Res])

	Casts    []Req
	Queued   []QueuedCall[Req]
	Acquired []Req
	Released []Req

	callback castqueue.CompletionFunc[Res]
}

var _ castqueue.Caster[int, int] = (*Caster[int, int])(nil)

func (c *Caster[Req, Res]) Cast(req Req) Res {
	c.mu.Lock()
	c.Casts = append(c.Casts, req)
	fn := c.CastFunc
	c.mu.Unlock()

	if fn == nil {
		var zero Res
		return zero
	}
	return fn(req)
}

func (c *Caster[Req, Res]) Queue(slot castqueue.SlotID, req Req) {
	c.mu.Lock()
	c.Queued = append(c.Queued, QueuedCall[Req]{Slot: slot, Req: req})
	fn, cb := c.QueueFunc, c.callback
	c.mu.Unlock()

	if fn != nil {
		fn(slot, req, cb)
	}
}

func (c *Caster[Req, Res]) Acquire(req Req) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Acquired = append(c.Acquired, req)
}

func (c *Caster[Req, Res]) Release(req Req) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Released = append(c.Released, req)
}

func (c *Caster[Req, Res]) SetCallback(fn castqueue.CompletionFunc[Res]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = fn
}

// Complete invokes the registered completion entrypoint as a backend would
func (c *Caster[Req, Res]) Complete(slot castqueue.SlotID, res Res) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	cb(slot, res)
}

// QueuedSnapshot returns a copy of the recorded submissions
func (c *Caster[Req, Res]) QueuedSnapshot() []QueuedCall[Req] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]QueuedCall[Req](nil), c.Queued...)
}

// Counts returns (casts, queued, acquired, released)
func (c *Caster[Req, Res]) Counts() (int, int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Casts), len(c.Queued), len(c.Acquired), len(c.Released)
}
