package contention

// Stats is a snapshot of a controller's admission bookkeeping
type Stats struct {
	Quota         int
	Immediate     int // immediate casts recorded in the current tick
	PeakImmediate int
	Deferred      int // deferred dispatches recorded in the current tick
	PeakDeferred  int
	QueueSize     int // backlog size observed at the last tick boundary
	PeakQueueSize int
	Ticks         uint64

	// Per-tick counts of completed ticks, oldest first
	ImmediateWindow []int
	DeferredWindow  []int
}

// AvgImmediate returns the moving average of immediate casts per tick
func (s Stats) AvgImmediate() float64 {
	return average(s.ImmediateWindow)
}

// AvgDeferred returns the moving average of deferred dispatches per tick
func (s Stats) AvgDeferred() float64 {
	return average(s.DeferredWindow)
}

func average(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// window is a fixed-width ring of per-tick counts
type window struct {
	values []int
	next   int
	filled bool
}

func newWindow(width int) *window {
	if width < 1 {
		width = 1
	}
	return &window{values: make([]int, width)}
}

func (w *window) push(v int) {
	w.values[w.next] = v
	w.next++
	if w.next == len(w.values) {
		w.next = 0
		w.filled = true
	}
}

// snapshot returns the recorded counts oldest first
func (w *window) snapshot() []int {
	if !w.filled {
		return append([]int(nil), w.values[:w.next]...)
	}
	out := make([]int, 0, len(w.values))
	out = append(out, w.values[w.next:]...)
	return append(out, w.values[:w.next]...)
}

func (w *window) reset() {
	clear(w.values)
	w.next = 0
	w.filled = false
}

// tracker carries the counters shared by every policy
type tracker struct {
	quota         int
	immediate     int
	deferred      int
	peakImmediate int
	peakDeferred  int
	queueSize     int
	peakQueueSize int
	ticks         uint64

	immediateWin *window
	deferredWin  *window
}

func newTracker(quota, width int) tracker {
	return tracker{
		quota:        quota,
		immediateWin: newWindow(width),
		deferredWin:  newWindow(width),
	}
}

func (t *tracker) RecordImmediate() { t.immediate++ }

func (t *tracker) RecordDeferred() { t.deferred++ }

func (t *tracker) TickStart(queueSize int) {
	t.observeQueue(queueSize)
}

// TickEnd folds the tick's counts into the window and peaks, then resets per-tick counters
func (t *tracker) TickEnd(queueSize int) {
	t.observeQueue(queueSize)
	t.immediateWin.push(t.immediate)
	t.deferredWin.push(t.deferred)
	t.peakImmediate = max(t.peakImmediate, t.immediate)
	t.peakDeferred = max(t.peakDeferred, t.deferred)
	t.immediate = 0
	t.deferred = 0
	t.ticks++
}

func (t *tracker) observeQueue(queueSize int) {
	t.queueSize = queueSize
	t.peakQueueSize = max(t.peakQueueSize, queueSize)
}

func (t *tracker) Stats() Stats {
	return Stats{
		Quota:           t.quota,
		Immediate:       t.immediate,
		PeakImmediate:   max(t.peakImmediate, t.immediate),
		Deferred:        t.deferred,
		PeakDeferred:    max(t.peakDeferred, t.deferred),
		QueueSize:       t.queueSize,
		PeakQueueSize:   t.peakQueueSize,
		Ticks:           t.ticks,
		ImmediateWindow: t.immediateWin.snapshot(),
		DeferredWindow:  t.deferredWin.snapshot(),
	}
}

// ResetStats clears peaks, windows and per-tick counters; the quota is kept
func (t *tracker) ResetStats() {
	t.immediate, t.deferred = 0, 0
	t.peakImmediate, t.peakDeferred = 0, 0
	t.queueSize, t.peakQueueSize = 0, 0
	t.ticks = 0
	t.immediateWin.reset()
	t.deferredWin.reset()
}
