// Package swarm moves a flock of agents that sense obstacles with deferred ray probes
package swarm

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lixenwraith/castqueue/arena"
	"github.com/lixenwraith/castqueue/castqueue"
	"github.com/lixenwraith/castqueue/parameter"
	"github.com/lixenwraith/castqueue/physics"
	"github.com/lixenwraith/castqueue/vmath"
)

// ErrUnknownAgent is returned for entities not in the flock
var ErrUnknownAgent = errors.New("swarm: unknown agent")

// RayQueue is the queue the flock probes through
type RayQueue = castqueue.Queue[physics.RayRequest, physics.RayResult]

// Agent is one flock member, position and velocity in Q32.32 cells and cells/second
type Agent struct {
	Entity     physics.Entity
	X, Y       int64
	VelX, VelY int64

	probe arena.Handle
	turns int
}

// Turns returns how often the agent steered away from an obstacle
func (a *Agent) Turns() int { return a.turns }

// Flock owns its agents and their outstanding probes; owner goroutine only
type Flock struct {
	world *physics.World
	queue *RayQueue

	agents map[physics.Entity]*Agent
	order  []physics.Entity

	tier          castqueue.Tier
	probeDistance int64
	avoidDistance int64
	speed         int64
	rng           *vmath.FastRand
	logger        zerolog.Logger

	// Telemetry
	probes uint64
	hits   uint64
}

type Option func(*Flock)

// WithTier sets the probe priority tier, Low by default
func WithTier(tier castqueue.Tier) Option {
	return func(f *Flock) {
		if tier.Valid() {
			f.tier = tier
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(f *Flock) { f.rng = vmath.NewFastRand(seed) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(f *Flock) { f.logger = logger }
}

// WithDistances overrides the probe length and the avoidance threshold, in cells
func WithDistances(probe, avoid float64) Option {
	return func(f *Flock) {
		if probe > 0 {
			f.probeDistance = vmath.FromFloat(probe)
		}
		if avoid > 0 {
			f.avoidDistance = vmath.FromFloat(avoid)
		}
	}
}

func NewFlock(world *physics.World, queue *RayQueue, opts ...Option) *Flock {
	f := &Flock{
		world:         world,
		queue:         queue,
		agents:        make(map[physics.Entity]*Agent),
		tier:          castqueue.Low,
		probeDistance: vmath.FromFloat(parameter.ProbeDistanceFloat),
		avoidDistance: vmath.FromFloat(parameter.AvoidDistanceFloat),
		speed:         vmath.FromFloat(parameter.AgentSpeedFloat),
		rng:           vmath.NewFastRand(uint64(time.Now().UnixNano())),
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Add spawns an agent at cell (x, y) heading along (dirX, dirY) at cruise speed
func (f *Flock) Add(x, y int, dirX, dirY int64) (physics.Entity, error) {
	e, err := f.world.Spawn(x, y)
	if err != nil {
		return 0, fmt.Errorf("swarm: add agent: %w", err)
	}
	nx, ny := vmath.Normalize2D(dirX, dirY)
	if nx == 0 && ny == 0 {
		nx = vmath.Scale
	}
	vx, vy := vmath.ScaleVector(nx, ny, f.speed)
	f.agents[e] = &Agent{
		Entity: e,
		X:      vmath.CellCenter(x),
		Y:      vmath.CellCenter(y),
		VelX:   vx,
		VelY:   vy,
	}
	f.order = append(f.order, e)
	return e, nil
}

// Remove cancels the agent's outstanding probe and destroys its entity
func (f *Flock) Remove(e physics.Entity) error {
	a, ok := f.agents[e]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, e)
	}
	if a.probe.Valid() {
		f.queue.Cancel(a.probe)
	}
	delete(f.agents, e)
	for i, id := range f.order {
		if id == e {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	if _, err := f.world.Destroy(e); err != nil {
		return fmt.Errorf("swarm: remove agent: %w", err)
	}
	return nil
}

// Step integrates every agent over dt and queues a probe for agents without one
func (f *Flock) Step(dt time.Duration) {
	step := vmath.FromFloat(dt.Seconds())
	for _, e := range f.order {
		a := f.agents[e]
		f.move(a, step)
		if !f.probing(a) {
			f.queueProbe(a)
		}
	}
}

func (f *Flock) probing(a *Agent) bool {
	return a.probe.Valid() && (f.queue.IsPending(a.probe) || f.queue.IsInFlight(a.probe))
}

// move advances the agent and reflects it off the world edges
func (f *Flock) move(a *Agent, step int64) {
	x := a.X + vmath.Mul(a.VelX, step)
	y := a.Y + vmath.Mul(a.VelY, step)

	maxX, maxY := vmath.FromInt(f.world.Width())-1, vmath.FromInt(f.world.Height())-1
	if x < 0 || x > maxX {
		a.VelX = -a.VelX
		x = min(max(x, 0), maxX)
	}
	if y < 0 || y > maxY {
		a.VelY = -a.VelY
		y = min(max(y, 0), maxY)
	}

	if err := f.world.Move(a.Entity, vmath.ToInt(x), vmath.ToInt(y)); err != nil {
		// Crowded cell: hold position and reverse
		a.VelX, a.VelY = -a.VelX, -a.VelY
		f.logger.Debug().Err(err).Uint64("entity", uint64(a.Entity)).Msg("agent blocked")
		return
	}
	a.X, a.Y = x, y
}

func (f *Flock) queueProbe(a *Agent) {
	e := a.Entity
	id, err := f.queue.QueuePlaceholder(f.tier,
		func(_ arena.Handle, res physics.RayResult) { f.sensed(e, res) },
		func(_ arena.Handle, req *physics.RayRequest) bool {
			// Aim from wherever the agent is at dispatch time
			agent, ok := f.agents[e]
			if !ok {
				return false
			}
			*req = physics.RayRequest{
				OriginX:     agent.X,
				OriginY:     agent.Y,
				DirX:        agent.VelX,
				DirY:        agent.VelY,
				MaxDistance: f.probeDistance,
				Skip:        physics.Skip(e),
				MaxHits:     1,
			}
			return true
		})
	if err != nil {
		f.logger.Warn().Err(err).Uint64("entity", uint64(e)).Msg("probe not queued")
		return
	}
	a.probe = id
	f.probes++
}

// sensed steers the agent away when the nearest hit is inside the avoidance distance
func (f *Flock) sensed(e physics.Entity, res physics.RayResult) {
	a, ok := f.agents[e]
	if !ok {
		return
	}
	a.probe = arena.InvalidHandle

	hit, ok := res.Nearest()
	if !ok || hit.Distance > f.avoidDistance {
		return
	}
	f.hits++
	a.turns++
	px, py := vmath.Perpendicular(a.VelX, a.VelY)
	if f.rng.Intn(2) == 0 {
		px, py = -px, -py
	}
	a.VelX, a.VelY = px, py
}

// --- Introspection ---

func (f *Flock) Len() int { return len(f.order) }

// Agent returns a copy of an agent's state
func (f *Flock) Agent(e physics.Entity) (Agent, bool) {
	a, ok := f.agents[e]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// Each visits agents in insertion order
func (f *Flock) Each(fn func(a *Agent)) {
	for _, e := range f.order {
		fn(f.agents[e])
	}
}

// Probes returns how many probes were queued
func (f *Flock) Probes() uint64 { return f.probes }

// Hits returns how many probes triggered an avoidance turn
func (f *Flock) Hits() uint64 { return f.hits }
