// Package castqueue schedules deferred physics queries under admission control.
//
// Callers queue requests at a priority tier and receive results through a callback.
// Once per frame the owner calls Update, which ages the backlog, asks the contention
// controller how many requests may proceed, and submits the highest priority ones to
// the Caster backend. Completions reach the queue through a single goroutine-safe
// entrypoint, are funneled to the owner and delivered exactly once, or dropped when the
// request was cancelled in flight.
//
// Threading: every method except the completion entrypoint registered with the Caster
// must be called from the owning goroutine. Completions arriving from backend workers are
// buffered and delivered during Update or Poll on that goroutine.
package castqueue

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lixenwraith/castqueue/arena"
	"github.com/lixenwraith/castqueue/contention"
)

type queuedRequest[Req, Res any] struct {
	tier       Tier
	request    Req
	hasRequest bool // false for placeholders until the submit callback fills the payload
	onResult   ResultFunc[Res]
	onSubmit   SubmitFunc[Req]
}

type inflight[Res any] struct {
	id       arena.Handle
	onResult ResultFunc[Res]
}

// Queue is a deferred request queue over a Caster backend
type Queue[Req, Res any] struct {
	caster     Caster[Req, Res]
	controller contention.Controller

	// Pending backlog ordered by priority after each Update
	backlog *arena.Arena[queuedRequest[Req, Res], float64, float64]

	// Completion correlation: slot -> (queued id, callback) and queued id -> slot
	slots     map[SlotID]inflight[Res]
	submitted map[arena.Handle]SlotID
	lastSlot  SlotID

	// Request whose submit callback is running, and whether it was cancelled from inside it
	submitting      arena.Handle
	submitCancelled bool

	classes [TierCount]PriorityClass
	inbox   *inbox[Res]

	name   string
	logger zerolog.Logger
}

// New creates a queue dispatching to caster under controller and registers the
// queue's completion entrypoint with the caster. A nil controller admits everything
func New[Req, Res any](caster Caster[Req, Res], controller contention.Controller, opts ...Option) *Queue[Req, Res] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if controller == nil {
		controller = contention.NewNoContention(0)
	}

	q := &Queue[Req, Res]{
		caster:     caster,
		controller: controller,
		backlog:    arena.New[queuedRequest[Req, Res], float64, float64](o.capacity),
		slots:      make(map[SlotID]inflight[Res]),
		submitted:  make(map[arena.Handle]SlotID),
		classes:    DefaultPriorityClasses(),
		inbox:      newInbox[Res](o.capacity),
		name:       o.name,
		logger:     o.logger.With().Str("queue", o.name).Logger(),
	}

	for i, class := range o.classes {
		if err := class.Validate(); err != nil {
			q.logger.Warn().Err(err).Stringer("tier", Tier(i)).Msg("priority class rejected, keeping default")
			continue
		}
		q.classes[i] = class
	}

	caster.SetCallback(q.complete)
	return q
}

// --- Submission ---

// Cast bypasses the backlog and runs the query synchronously
func (q *Queue[Req, Res]) Cast(req Req) Res {
	q.controller.RecordImmediate()
	return q.caster.Cast(req)
}

// Queue adds a request whose payload is known now
// The payload is acquired immediately and stays pinned while it waits in the backlog
// onSubmit is optional and may refresh the payload right before dispatch
func (q *Queue[Req, Res]) Queue(tier Tier, req Req, onResult ResultFunc[Res], onSubmit SubmitFunc[Req]) (arena.Handle, error) {
	if err := q.validate(tier, onResult); err != nil {
		return arena.InvalidHandle, err
	}

	q.caster.Acquire(req)
	id, err := q.backlog.PushBack(queuedRequest[Req, Res]{
		tier:       tier,
		request:    req,
		hasRequest: true,
		onResult:   onResult,
		onSubmit:   onSubmit,
	})
	if err != nil {
		q.caster.Release(req)
		return arena.InvalidHandle, fmt.Errorf("castqueue: queue %s: %w", q.name, err)
	}
	return id, nil
}

// QueuePlaceholder adds a request whose payload is produced by onSubmit at dispatch time
func (q *Queue[Req, Res]) QueuePlaceholder(tier Tier, onResult ResultFunc[Res], onSubmit SubmitFunc[Req]) (arena.Handle, error) {
	if err := q.validate(tier, onResult); err != nil {
		return arena.InvalidHandle, err
	}
	if onSubmit == nil {
		return arena.InvalidHandle, ErrNilSubmit
	}

	id, err := q.backlog.PushBack(queuedRequest[Req, Res]{
		tier:     tier,
		onResult: onResult,
		onSubmit: onSubmit,
	})
	if err != nil {
		return arena.InvalidHandle, fmt.Errorf("castqueue: queue %s: %w", q.name, err)
	}
	return id, nil
}

func (q *Queue[Req, Res]) validate(tier Tier, onResult ResultFunc[Res]) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	if onResult == nil {
		return ErrNilResult
	}
	return nil
}

// Cancel withdraws a request
// Pending requests are released and erased. For in-flight requests only the completion
// bookkeeping is removed: the backend call still finishes but its result is dropped.
// A request cancelled from its own submit callback is discarded once the callback returns.
// Unknown or completed ids are a no-op. Reports whether anything was removed
func (q *Queue[Req, Res]) Cancel(id arena.Handle) bool {
	if id.Valid() && id == q.submitting {
		if q.submitCancelled {
			return false
		}
		q.submitCancelled = true
		return true
	}

	if qr := q.backlog.Ptr(id); qr != nil {
		if qr.hasRequest {
			q.caster.Release(qr.request)
		}
		if err := q.backlog.Erase(id); err != nil {
			q.logger.Error().Err(err).Stringer("id", id).Msg("backlog erase failed")
		}
		return true
	}

	if slot, ok := q.submitted[id]; ok {
		delete(q.slots, slot)
		delete(q.submitted, id)
		q.logger.Debug().Stringer("id", id).Uint64("slot", uint64(slot)).Msg("in-flight request cancelled")
		return true
	}
	return false
}

// CancelAll withdraws every pending and in-flight request, returning how many were removed
func (q *Queue[Req, Res]) CancelAll() int {
	n := 0
	if q.submitting.Valid() && q.Cancel(q.submitting) {
		n++
	}
	for _, id := range q.backlog.Handles() {
		if q.Cancel(id) {
			n++
		}
	}
	n += len(q.submitted)
	clear(q.slots)
	clear(q.submitted)
	return n
}

// --- Scheduling ---

// Update runs one scheduling pass: deliver buffered completions, age and reorder the
// backlog, dispatch admitted requests in priority order, then deliver completions produced
// synchronously during dispatch
func (q *Queue[Req, Res]) Update(dt time.Duration) {
	q.drain()

	if dt < 0 {
		dt = 0
	}

	q.controller.TickStart(q.backlog.Len())
	// Only the sorted prefix is popped. A budget raised during dispatch, e.g. by a
	// submit callback casting synchronously, re-sorts the remainder before popping more
	delta := dt.Seconds()
	for q.backlog.Len() > 0 && q.controller.CanAdmitDeferred() {
		count := q.sortCount()
		q.backlog.PartialUpdate(count, delta, q.priorityOf, higher)
		delta = 0

		for ; count > 0 && q.backlog.Len() > 0 && q.controller.CanAdmitDeferred(); count-- {
			id, qr, _ := q.backlog.PopFront()
			q.dispatch(id, qr)
		}
	}
	q.controller.TickEnd(q.backlog.Len())

	q.drain()
}

// Poll delivers completions that arrived since the last Update, returning the number of
// result callbacks invoked
func (q *Queue[Req, Res]) Poll() int {
	return q.drain()
}

// sortCount is how many backlog entries the next pass orders, at least one
func (q *Queue[Req, Res]) sortCount() int {
	count := q.controller.Budget()
	if count == contention.Unlimited || count > q.backlog.Len() {
		return q.backlog.Len()
	}
	return max(count, 1)
}

func (q *Queue[Req, Res]) dispatch(id arena.Handle, qr queuedRequest[Req, Res]) {
	req := qr.request
	if qr.onSubmit != nil {
		fresh := req
		q.submitting, q.submitCancelled = id, false
		ok := qr.onSubmit(id, &fresh)
		cancelled := q.submitCancelled
		q.submitting, q.submitCancelled = arena.InvalidHandle, false

		if !ok || cancelled {
			if qr.hasRequest {
				q.caster.Release(qr.request)
			}
			q.logger.Debug().Stringer("id", id).Stringer("tier", qr.tier).Bool("cancelled", cancelled).Msg("submit declined, request discarded")
			return
		}
		q.caster.Acquire(fresh)
		if qr.hasRequest {
			q.caster.Release(qr.request)
		}
		req = fresh
	}

	slot := q.newSlotID()
	q.slots[slot] = inflight[Res]{id: id, onResult: qr.onResult}
	q.submitted[id] = slot
	q.controller.RecordDeferred()

	q.caster.Queue(slot, req)
	// The caster holds its own reference while in flight
	q.caster.Release(req)
}

func (q *Queue[Req, Res]) newSlotID() SlotID {
	q.lastSlot++
	if q.lastSlot == 0 {
		q.lastSlot++
	}
	return q.lastSlot
}

func (q *Queue[Req, Res]) priorityOf(age float64, qr *queuedRequest[Req, Res]) float64 {
	return q.classes[qr.tier].Priority(age)
}

func higher(a, b float64) bool { return a > b }

// --- Completion ---

// complete is the Caster's completion entrypoint, safe from any goroutine
func (q *Queue[Req, Res]) complete(slot SlotID, res Res) {
	q.inbox.push(slot, res)
}

func (q *Queue[Req, Res]) drain() int {
	batch := q.inbox.take()
	delivered := 0
	for _, c := range batch {
		if q.deliver(c.slot, c.res) {
			delivered++
		}
	}
	q.inbox.recycle(batch)
	return delivered
}

func (q *Queue[Req, Res]) deliver(slot SlotID, res Res) bool {
	entry, ok := q.slots[slot]
	if !ok {
		q.logger.Debug().Uint64("slot", uint64(slot)).Msg("orphaned completion dropped")
		return false
	}
	delete(q.slots, slot)
	delete(q.submitted, entry.id)
	entry.onResult(entry.id, res)
	return true
}

// --- Configuration & introspection ---

// SetPriorityClass replaces the aging curve of a tier
func (q *Queue[Req, Res]) SetPriorityClass(tier Tier, class PriorityClass) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	if err := class.Validate(); err != nil {
		return err
	}
	q.classes[tier] = class
	return nil
}

// PriorityClass returns the aging curve of a tier
func (q *Queue[Req, Res]) PriorityClass(tier Tier) PriorityClass {
	if !tier.Valid() {
		return PriorityClass{}
	}
	return q.classes[tier]
}

// Name returns the queue label
func (q *Queue[Req, Res]) Name() string { return q.name }

// Pending returns the backlog size
func (q *Queue[Req, Res]) Pending() int { return q.backlog.Len() }

// InFlight returns the number of submitted requests awaiting completion
func (q *Queue[Req, Res]) InFlight() int { return len(q.slots) }

// Buffered returns completions waiting for the next Update or Poll
func (q *Queue[Req, Res]) Buffered() int { return q.inbox.len() }

// IsPending reports whether id still waits in the backlog
func (q *Queue[Req, Res]) IsPending(id arena.Handle) bool { return q.backlog.Has(id) }

// IsInFlight reports whether id was submitted and awaits its completion
func (q *Queue[Req, Res]) IsInFlight(id arena.Handle) bool {
	_, ok := q.submitted[id]
	return ok
}

// Stats returns the controller's admission statistics
func (q *Queue[Req, Res]) Stats() contention.Stats { return q.controller.Stats() }

// ResetStats clears the controller's statistics
func (q *Queue[Req, Res]) ResetStats() { q.controller.ResetStats() }
