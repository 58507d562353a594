package castqueue

import "sync"

type completion[Res any] struct {
	slot SlotID
	res  Res
}

// inbox funnels completions from any goroutine to the queue owner
// Push: multiple producers, mutex guarded, never drops
// Take: single consumer, swaps buffers so producers are not blocked during delivery
type inbox[Res any] struct {
	mu      sync.Mutex
	pending []completion[Res]
	spare   []completion[Res]
}

func newInbox[Res any](capacity int) *inbox[Res] {
	return &inbox[Res]{
		pending: make([]completion[Res], 0, capacity),
		spare:   make([]completion[Res], 0, capacity),
	}
}

func (b *inbox[Res]) push(slot SlotID, res Res) {
	b.mu.Lock()
	b.pending = append(b.pending, completion[Res]{slot: slot, res: res})
	b.mu.Unlock()
}

// take returns every queued completion in arrival order
// The batch must be handed back through recycle once consumed
func (b *inbox[Res]) take() []completion[Res] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending
	b.pending = b.spare[:0]
	b.spare = nil
	return batch
}

func (b *inbox[Res]) recycle(batch []completion[Res]) {
	if batch == nil {
		return
	}
	clear(batch)
	b.mu.Lock()
	if b.spare == nil {
		b.spare = batch[:0]
	}
	b.mu.Unlock()
}

func (b *inbox[Res]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
