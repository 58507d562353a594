package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/castqueue/arena"
	"github.com/lixenwraith/castqueue/castqueue"
	"github.com/lixenwraith/castqueue/castqueue/mocks"
	"github.com/lixenwraith/castqueue/contention"
)

type fakeSource struct {
	stats    contention.Stats
	pending  int
	inFlight int
}

func (f *fakeSource) Name() string { return "rays" }
func (f *fakeSource) Stats() contention.Stats { return f.stats }
func (f *fakeSource) Pending() int { return f.pending }
func (f *fakeSource) InFlight() int { return f.inFlight }

func TestCollector_ExportsSnapshot(t *testing.T) {
	src := &fakeSource{
		stats: contention.Stats{
			Quota:          4,
			Deferred:       3,
			PeakQueueSize:  12,
			Ticks:          5,
			DeferredWindow: []int{2, 4},
		},
		pending:  7,
		inFlight: 2,
	}
	c := NewCollector(src)

	expected := `
# HELP castqueue_pending_requests Requests waiting in the backlog
# TYPE castqueue_pending_requests gauge
castqueue_pending_requests{queue="rays"} 7
# HELP castqueue_inflight_requests Submitted requests awaiting completion
# TYPE castqueue_inflight_requests gauge
castqueue_inflight_requests{queue="rays"} 2
# HELP castqueue_deferred_dispatches_avg Rolling average of deferred dispatches per tick
# TYPE castqueue_deferred_dispatches_avg gauge
castqueue_deferred_dispatches_avg{queue="rays"} 3
# HELP castqueue_ticks_total Scheduling passes since the last stats reset
# TYPE castqueue_ticks_total counter
castqueue_ticks_total{queue="rays"} 5
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"castqueue_pending_requests", "castqueue_inflight_requests",
		"castqueue_deferred_dispatches_avg", "castqueue_ticks_total")
	require.NoError(t, err)
	assert.Equal(t, 11, testutil.CollectAndCount(c))
}

func TestCollector_ObserveRefreshes(t *testing.T) {
	src := &fakeSource{pending: 1}
	c := NewCollector(src)
	src.pending = 9

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	assert.Equal(t, 1.0, gaugeValue(t, reg, "castqueue_pending_requests"), "stale until observed")

	c.Observe()
	assert.Equal(t, 9.0, gaugeValue(t, reg, "castqueue_pending_requests"))
}

func gaugeValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestCollector_OverQueue(t *testing.T) {
	caster := &mocks.Caster[int, int]{}
	q := castqueue.New[int, int](caster, contention.NewDefaultContention(1, 10), castqueue.WithName("probes"))
	for i := 0; i < 3; i++ {
		_, err := q.Queue(castqueue.Low, i, func(arena.Handle, int) {}, nil)
		require.NoError(t, err)
	}
	q.Update(0)

	c := NewCollector(q)
	expected := `
# HELP castqueue_pending_requests Requests waiting in the backlog
# TYPE castqueue_pending_requests gauge
castqueue_pending_requests{queue="probes"} 2
# HELP castqueue_inflight_requests Submitted requests awaiting completion
# TYPE castqueue_inflight_requests gauge
castqueue_inflight_requests{queue="probes"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"castqueue_pending_requests", "castqueue_inflight_requests"))
}
