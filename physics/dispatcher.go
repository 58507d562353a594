package physics

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/castqueue/parameter"
)

// Job is one deferred query
// Abort runs instead when Run panics, so the query still reports exactly once
type Job struct {
	Run   func()
	Abort func()
}

// Dispatcher runs jobs on a fixed pool of workers fed by a buffered channel
// Submit never blocks: with a full backlog or after Close the job runs inline on the caller
type Dispatcher struct {
	jobs   chan Job
	group  *errgroup.Group
	logger zerolog.Logger

	mu     sync.RWMutex // orders sends against close
	closed bool
	once   sync.Once

	inline atomic.Uint64
	panics atomic.Uint64
	done   atomic.Uint64
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	workers int
	backlog int
	logger  zerolog.Logger
}

func WithWorkers(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithBacklog sets the job channel capacity, 0 makes every submission without an idle worker run inline
func WithBacklog(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n >= 0 {
			o.backlog = n
		}
	}
}

func WithDispatcherLogger(logger zerolog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.logger = logger
	}
}

// NewDispatcher starts the workers; cancelling ctx closes the dispatcher after queued jobs drain
func NewDispatcher(ctx context.Context, opts ...DispatcherOption) *Dispatcher {
	o := dispatcherOptions{
		workers: parameter.DispatcherWorkers,
		backlog: parameter.DispatcherBacklog,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dispatcher{
		jobs:   make(chan Job, o.backlog),
		logger: o.logger,
	}
	g, gctx := errgroup.WithContext(ctx)
	d.group = g

	for i := 0; i < o.workers; i++ {
		g.Go(func() error {
			for job := range d.jobs {
				d.run(job)
			}
			return nil
		})
	}
	go func() {
		<-gctx.Done()
		d.shutdown()
	}()

	d.logger.Debug().Int("workers", o.workers).Int("backlog", o.backlog).Msg("dispatcher started")
	return d
}

// Submit hands the job to a worker or runs it inline when none can take it
func (d *Dispatcher) Submit(job Job) {
	d.mu.RLock()
	if !d.closed {
		select {
		case d.jobs <- job:
			d.mu.RUnlock()
			return
		default:
		}
	}
	d.mu.RUnlock()

	d.inline.Add(1)
	d.logger.Warn().Msg("dispatcher saturated, running query inline")
	d.run(job)
}

func (d *Dispatcher) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.logger.Warn().Interface("panic", r).Msg("query panicked, delivering empty result")
			if job.Abort != nil {
				job.Abort()
			}
		}
		d.done.Add(1)
	}()
	job.Run()
}

func (d *Dispatcher) shutdown() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
	})
}

// Close stops accepting jobs and waits for queued ones to finish
func (d *Dispatcher) Close() error {
	d.shutdown()
	return d.group.Wait()
}

// Backlog returns jobs waiting for a worker
func (d *Dispatcher) Backlog() int { return len(d.jobs) }

// Inline returns how many jobs ran on the submitting goroutine
func (d *Dispatcher) Inline() uint64 { return d.inline.Load() }

// Panics returns how many jobs were aborted by a recovered panic
func (d *Dispatcher) Panics() uint64 { return d.panics.Load() }

// Completed returns how many jobs finished, aborted ones included
func (d *Dispatcher) Completed() uint64 { return d.done.Load() }
