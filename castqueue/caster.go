package castqueue

import "github.com/lixenwraith/castqueue/arena"

// SlotID correlates an asynchronous submission with its completion, never 0
type SlotID uint64

// ResultFunc receives the result of a queued request, at most once
type ResultFunc[Res any] func(id arena.Handle, res Res)

// SubmitFunc materializes or refreshes the payload just before dispatch
// Returning false discards the request without dispatching it
// Cancelling the request from inside the callback has the same effect
type SubmitFunc[Req any] func(id arena.Handle, req *Req) bool

// CompletionFunc is the single completion entrypoint a Caster reports to
type CompletionFunc[Res any] func(slot SlotID, res Res)

// Caster is the backend performing the actual query
//
// Contract:
//   - Cast is synchronous and blocks the caller
//   - Queue never blocks; it must eventually invoke the registered CompletionFunc with
//     (slot, result) exactly once. A request that cannot be submitted (degenerate
//     geometry) completes synchronously inside Queue with an empty result
//   - Queue holds its own Acquire on the payload for the in-flight duration
//   - Acquire and Release pin and unpin backend entities referenced by the payload
//   - The CompletionFunc may be invoked from any goroutine
type Caster[Req, Res any] interface {
	Cast(req Req) Res
	Queue(slot SlotID, req Req)
	Acquire(req Req)
	Release(req Req)
	SetCallback(fn CompletionFunc[Res])
}
