// Package metrics exports request queue statistics to Prometheus
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lixenwraith/castqueue/contention"
)

const namespace = "castqueue"

// Source is the queue state a Collector reads, owned by the queue goroutine
type Source interface {
	Name() string
	Stats() contention.Stats
	Pending() int
	InFlight() int
}

type snapshot struct {
	stats    contention.Stats
	pending  int
	inFlight int
}

// Collector publishes the last observed queue state
// Observe runs on the queue's owner; Collect may run on any goroutine
type Collector struct {
	src Source

	mu   sync.Mutex
	snap snapshot

	pending       *prometheus.Desc
	inFlight      *prometheus.Desc
	quota         *prometheus.Desc
	immediate     *prometheus.Desc
	deferred      *prometheus.Desc
	peakImmediate *prometheus.Desc
	peakDeferred  *prometheus.Desc
	peakQueue     *prometheus.Desc
	avgImmediate  *prometheus.Desc
	avgDeferred   *prometheus.Desc
	ticks         *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(src Source) *Collector {
	labels := prometheus.Labels{"queue": src.Name()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels)
	}
	c := &Collector{
		src:           src,
		pending:       desc("pending_requests", "Requests waiting in the backlog"),
		inFlight:      desc("inflight_requests", "Submitted requests awaiting completion"),
		quota:         desc("deferred_quota", "Configured deferred dispatches per tick"),
		immediate:     desc("immediate_casts", "Synchronous casts in the current tick"),
		deferred:      desc("deferred_dispatches", "Deferred dispatches in the current tick"),
		peakImmediate: desc("immediate_casts_peak", "Highest synchronous casts in one tick"),
		peakDeferred:  desc("deferred_dispatches_peak", "Highest deferred dispatches in one tick"),
		peakQueue:     desc("pending_requests_peak", "Largest backlog observed at a tick boundary"),
		avgImmediate:  desc("immediate_casts_avg", "Rolling average of synchronous casts per tick"),
		avgDeferred:   desc("deferred_dispatches_avg", "Rolling average of deferred dispatches per tick"),
		ticks:         desc("ticks_total", "Scheduling passes since the last stats reset"),
	}
	c.Observe()
	return c
}

// Observe copies the source state, call it from the queue owner after Update
func (c *Collector) Observe() {
	s := snapshot{
		stats:    c.src.Stats(),
		pending:  c.src.Pending(),
		inFlight: c.src.InFlight(),
	}
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.pending, c.inFlight, c.quota, c.immediate, c.deferred,
		c.peakImmediate, c.peakDeferred, c.peakQueue, c.avgImmediate, c.avgDeferred, c.ticks,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	s := c.snap
	c.mu.Unlock()

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	gauge(c.pending, float64(s.pending))
	gauge(c.inFlight, float64(s.inFlight))
	gauge(c.quota, float64(s.stats.Quota))
	gauge(c.immediate, float64(s.stats.Immediate))
	gauge(c.deferred, float64(s.stats.Deferred))
	gauge(c.peakImmediate, float64(s.stats.PeakImmediate))
	gauge(c.peakDeferred, float64(s.stats.PeakDeferred))
	gauge(c.peakQueue, float64(s.stats.PeakQueueSize))
	gauge(c.avgImmediate, s.stats.AvgImmediate())
	gauge(c.avgDeferred, s.stats.AvgDeferred())
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(s.stats.Ticks))
}
