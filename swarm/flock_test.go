package swarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/castqueue/castqueue"
	"github.com/lixenwraith/castqueue/contention"
	"github.com/lixenwraith/castqueue/physics"
	"github.com/lixenwraith/castqueue/vmath"
)

type fixture struct {
	world *physics.World
	queue *RayQueue
	flock *Flock
}

func newFixture(t *testing.T, ctrl contention.Controller) *fixture {
	t.Helper()
	w, err := physics.NewWorld(20, 10)
	require.NoError(t, err)
	// Inline caster: probes complete during Update
	q := castqueue.New[physics.RayRequest, physics.RayResult](physics.NewRayCaster(w, nil), ctrl)
	return &fixture{world: w, queue: q, flock: NewFlock(w, q, WithSeed(1))}
}

func TestFlock_TurnsAwayFromNearObstacle(t *testing.T) {
	fx := newFixture(t, nil)
	_, err := fx.world.Spawn(4, 5)
	require.NoError(t, err)
	e, err := fx.flock.Add(2, 5, vmath.Scale, 0)
	require.NoError(t, err)

	fx.flock.Step(0)
	assert.Equal(t, 1, fx.queue.Pending())
	fx.queue.Update(0)

	a, ok := fx.flock.Agent(e)
	require.True(t, ok)
	assert.Equal(t, 1, a.Turns())
	assert.Zero(t, a.VelX)
	assert.InDelta(t, 8, vmath.ToFloat(vmath.Abs(a.VelY)), 1e-6)
	assert.Equal(t, uint64(1), fx.flock.Hits())
	assert.Zero(t, fx.world.Pins(e), "probe released its pin on the agent")
}

func TestFlock_IgnoresDistantObstacle(t *testing.T) {
	fx := newFixture(t, nil)
	_, err := fx.world.Spawn(7, 5)
	require.NoError(t, err)
	e, err := fx.flock.Add(2, 5, vmath.Scale, 0)
	require.NoError(t, err)

	fx.flock.Step(0)
	fx.queue.Update(0)

	a, _ := fx.flock.Agent(e)
	assert.Zero(t, a.Turns())
	assert.Positive(t, a.VelX)
}

func TestFlock_OneProbeOutstanding(t *testing.T) {
	fx := newFixture(t, contention.NewDefaultContention(0, 10))
	_, err := fx.flock.Add(2, 2, 0, vmath.Scale)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		fx.flock.Step(10 * time.Millisecond)
		fx.queue.Update(10 * time.Millisecond)
	}
	assert.Equal(t, uint64(1), fx.flock.Probes())
	assert.Equal(t, 1, fx.queue.Pending())
}

func TestFlock_ReprobesAfterResult(t *testing.T) {
	fx := newFixture(t, nil)
	_, err := fx.flock.Add(2, 2, vmath.Scale, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		fx.flock.Step(10 * time.Millisecond)
		fx.queue.Update(10 * time.Millisecond)
	}
	assert.Equal(t, uint64(3), fx.flock.Probes())
}

// gated admits nothing until opened
type gated struct {
	*contention.NoContention
	open bool
}

func (g *gated) CanAdmitDeferred() bool { return g.open }

func (g *gated) Budget() int {
	if g.open {
		return contention.Unlimited
	}
	return 0
}

func TestFlock_ProbeAimsFromDispatchPosition(t *testing.T) {
	gate := &gated{NoContention: contention.NewNoContention(10)}
	fx := newFixture(t, gate)
	e, err := fx.flock.Add(1, 1, vmath.Scale, 0)
	require.NoError(t, err)
	fx.flock.Step(0)

	// Agent keeps moving while its probe waits in the backlog
	for i := 0; i < 4; i++ {
		fx.flock.Step(100 * time.Millisecond)
		fx.queue.Update(100 * time.Millisecond)
	}
	x, _, ok := fx.world.Position(e)
	require.True(t, ok)
	require.Equal(t, 4, x)
	require.Equal(t, uint64(1), fx.flock.Probes())

	// Near from the current cell, beyond avoidance range from the spawn cell
	_, err = fx.world.Spawn(6, 1)
	require.NoError(t, err)

	gate.open = true
	fx.queue.Update(0)

	a, _ := fx.flock.Agent(e)
	assert.Equal(t, 1, a.Turns(), "probe must start from the agent's current position")
}

func TestFlock_EdgeReflection(t *testing.T) {
	fx := newFixture(t, contention.NewDefaultContention(0, 10))
	e, err := fx.flock.Add(19, 5, vmath.Scale, 0)
	require.NoError(t, err)

	fx.flock.Step(time.Second)
	a, _ := fx.flock.Agent(e)
	assert.Negative(t, a.VelX)
	x, _, _ := fx.world.Position(e)
	assert.Equal(t, 19, x)
}

// TestFlock_RemoveCancelsProbe checks a removed agent never receives its pending result
func TestFlock_RemoveCancelsProbe(t *testing.T) {
	fx := newFixture(t, nil)
	e, err := fx.flock.Add(3, 3, vmath.Scale, 0)
	require.NoError(t, err)
	fx.flock.Step(0)
	require.Equal(t, 1, fx.queue.Pending())

	require.NoError(t, fx.flock.Remove(e))
	assert.Zero(t, fx.queue.Pending())
	assert.Zero(t, fx.flock.Len())
	assert.False(t, fx.world.Alive(e))

	fx.queue.Update(0)
	assert.Zero(t, fx.queue.InFlight())
	assert.ErrorIs(t, fx.flock.Remove(e), ErrUnknownAgent)
}
