package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/lixenwraith/castqueue/arena"
	"github.com/lixenwraith/castqueue/castqueue"
	"github.com/lixenwraith/castqueue/config"
	"github.com/lixenwraith/castqueue/metrics"
	"github.com/lixenwraith/castqueue/parameter"
	"github.com/lixenwraith/castqueue/physics"
	"github.com/lixenwraith/castqueue/swarm"
	"github.com/lixenwraith/castqueue/vmath"
)

const (
	hudRows      = 3
	obstacleRate = 25 // one obstacle per this many cells
	scanRadius   = 4
	sampleRate   = beep.SampleRate(44100)
)

type scanQueue = castqueue.Queue[physics.IntersectRequest, physics.IntersectResult]

type sandbox struct {
	screen tcell.Screen
	logger zerolog.Logger
	rng    *vmath.FastRand

	world      *physics.World
	dispatcher *physics.Dispatcher
	rays       *swarm.RayQueue
	scans      *scanQueue
	flock      *swarm.Flock
	rayStats   *metrics.Collector
	scanStats  *metrics.Collector

	obstacles map[physics.Entity]bool

	// Player
	player     physics.Entity
	dirX, dirY int64
	lastRay    physics.RayResult
	lastScan   physics.IntersectResult
	scanID     arena.Handle

	audio bool
}

func newSandbox(ctx context.Context, cfg *config.Config, logger zerolog.Logger, seed uint64) (*sandbox, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	w, h := screen.Size()
	world, err := physics.NewWorld(max(w, parameter.QueryGridWidth/4), max(h-hudRows, parameter.QueryGridHeight/4))
	if err != nil {
		screen.Fini()
		return nil, err
	}

	rayCtrl, err := cfg.Controller()
	if err != nil {
		screen.Fini()
		return nil, err
	}
	scanCtrl, err := cfg.Controller()
	if err != nil {
		screen.Fini()
		return nil, err
	}

	dispatcher := physics.NewDispatcher(ctx, cfg.DispatcherOptions(logger.With().Str("component", "dispatcher").Logger())...)
	rays := castqueue.New[physics.RayRequest, physics.RayResult](
		physics.NewRayCaster(world, dispatcher), rayCtrl, cfg.QueueOptions(logger)...)
	scanOpts := append(cfg.QueueOptions(logger), castqueue.WithName(cfg.Queue.Name+"-scan"))
	scans := castqueue.New[physics.IntersectRequest, physics.IntersectResult](
		physics.NewIntersectCaster(world, dispatcher), scanCtrl, scanOpts...)

	sb := &sandbox{
		screen:     screen,
		logger:     logger,
		rng:        vmath.NewFastRand(seed),
		world:      world,
		dispatcher: dispatcher,
		rays:       rays,
		scans:      scans,
		flock:      swarm.NewFlock(world, rays, swarm.WithSeed(seed), swarm.WithLogger(logger)),
		obstacles:  make(map[physics.Entity]bool),
		dirX:       vmath.Scale,
	}
	sb.rayStats = metrics.NewCollector(rays)
	sb.scanStats = metrics.NewCollector(scans)

	sb.player, err = world.Spawn(world.Width()/2, world.Height()/2)
	if err != nil {
		sb.close()
		return nil, err
	}
	sb.scatterObstacles()
	return sb, nil
}

func (sb *sandbox) scatterObstacles() {
	n := sb.world.Width() * sb.world.Height() / obstacleRate
	for i := 0; i < n; i++ {
		e, err := sb.world.Spawn(sb.rng.Intn(sb.world.Width()), sb.rng.Intn(sb.world.Height()))
		if err == nil {
			sb.obstacles[e] = true
		}
	}
}

func (sb *sandbox) addAgent() {
	dirX, dirY := sb.rng.Signed(vmath.Scale), sb.rng.Signed(vmath.Scale)
	if _, err := sb.flock.Add(sb.rng.Intn(sb.world.Width()), sb.rng.Intn(sb.world.Height()), dirX, dirY); err != nil {
		sb.logger.Debug().Err(err).Msg("agent not added")
	}
}

func (sb *sandbox) collectors() []prometheus.Collector {
	return []prometheus.Collector{sb.rayStats, sb.scanStats}
}

func (sb *sandbox) close() {
	sb.rays.CancelAll()
	sb.scans.CancelAll()
	if err := sb.dispatcher.Close(); err != nil {
		sb.logger.Warn().Err(err).Msg("dispatcher close")
	}
	sb.screen.Fini()
}

// --- Audio ---

func (sb *sandbox) initAudio() error {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return err
	}
	sb.audio = true
	return nil
}

func (sb *sandbox) playHitTone(distance int64) {
	if !sb.audio {
		return
	}
	// Closer hits sound higher
	freq := 1320 - 40*vmath.ToInt(distance)
	tone, err := generators.SineTone(sampleRate, float64(max(freq, 220)))
	if err != nil {
		sb.logger.Debug().Err(err).Msg("tone")
		return
	}
	speaker.Play(beep.Take(sampleRate.N(50*time.Millisecond), tone))
}

// --- Loop ---

func (sb *sandbox) loop() {
	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := sb.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(parameter.SandboxTickInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case ev, ok := <-events:
			if !ok || !sb.handle(ev) {
				return
			}
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			sb.tick(dt)
			sb.render()
		}
	}
}

func (sb *sandbox) tick(dt time.Duration) {
	sb.flock.Step(dt)
	sb.rays.Update(dt)
	sb.scans.Update(dt)
	sb.rayStats.Observe()
	sb.scanStats.Observe()
}

// handle applies one input event, returning false to quit
func (sb *sandbox) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			sb.movePlayer(0, -1)
		case tcell.KeyDown:
			sb.movePlayer(0, 1)
		case tcell.KeyLeft:
			sb.movePlayer(-1, 0)
		case tcell.KeyRight:
			sb.movePlayer(1, 0)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				sb.fire()
			case 's':
				sb.scan()
			case 'a':
				sb.addAgent()
			case 'r':
				sb.rays.ResetStats()
				sb.scans.ResetStats()
			}
		}
	case *tcell.EventResize:
		sb.screen.Sync()
	}
	return true
}

func (sb *sandbox) movePlayer(dx, dy int) {
	sb.dirX, sb.dirY = vmath.FromInt(dx), vmath.FromInt(dy)
	x, y, ok := sb.world.Position(sb.player)
	if !ok {
		return
	}
	if err := sb.world.Move(sb.player, x+dx, y+dy); err != nil {
		sb.logger.Debug().Err(err).Msg("player blocked")
	}
}

// fire casts synchronously, bypassing the backlog
func (sb *sandbox) fire() {
	x, y, ok := sb.world.Position(sb.player)
	if !ok {
		return
	}
	sb.lastRay = sb.rays.Cast(physics.RayRequest{
		OriginX:     vmath.CellCenter(x),
		OriginY:     vmath.CellCenter(y),
		DirX:        sb.dirX,
		DirY:        sb.dirY,
		MaxDistance: vmath.FromInt(max(sb.world.Width(), sb.world.Height())),
		Skip:        physics.Skip(sb.player),
	})
	if hit, ok := sb.lastRay.Nearest(); ok {
		sb.playHitTone(hit.Distance)
	}
}

// scan queues an area query around the player, replacing any outstanding one
func (sb *sandbox) scan() {
	x, y, ok := sb.world.Position(sb.player)
	if !ok {
		return
	}
	if sb.scanID.Valid() {
		sb.scans.Cancel(sb.scanID)
	}
	id, err := sb.scans.Queue(castqueue.High, physics.IntersectRequest{
		Shape: physics.Circle(vmath.CellCenter(x), vmath.CellCenter(y), vmath.FromInt(scanRadius)),
		Skip:  physics.Skip(sb.player),
	}, func(_ arena.Handle, res physics.IntersectResult) {
		sb.lastScan = res
		sb.scanID = arena.InvalidHandle
	}, nil)
	if err != nil {
		sb.logger.Warn().Err(err).Msg("scan not queued")
		return
	}
	sb.scanID = id
}

// --- Render ---

var (
	styleObstacle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleAgent    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	stylePlayer   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleHit      = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleScanned  = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleHUD      = tcell.StyleDefault.Foreground(tcell.ColorWhite)
)

func (sb *sandbox) render() {
	sb.screen.Clear()

	agents := make(map[physics.Entity]bool, sb.flock.Len())
	sb.flock.Each(func(a *swarm.Agent) { agents[a.Entity] = true })

	sb.world.Each(func(e physics.Entity, x, y int) {
		switch {
		case e == sb.player:
			sb.screen.SetContent(x, y, '@', nil, stylePlayer)
		case agents[e]:
			sb.screen.SetContent(x, y, 'o', nil, styleAgent)
		case sb.lastScan.Contains(e):
			sb.screen.SetContent(x, y, '#', nil, styleScanned)
		case sb.obstacles[e]:
			sb.screen.SetContent(x, y, '#', nil, styleObstacle)
		}
	})
	for i := 0; i < sb.lastRay.Count; i++ {
		h := sb.lastRay.Hits[i]
		sb.screen.SetContent(h.X, h.Y, '*', nil, styleHit)
	}

	rs := sb.rays.Stats()
	top := sb.world.Height()
	sb.text(0, top, fmt.Sprintf("rays  pending %4d  inflight %3d  quota %d  deferred avg %5.2f  immediate avg %5.2f  peak queue %d",
		sb.rays.Pending(), sb.rays.InFlight(), rs.Quota, rs.AvgDeferred(), rs.AvgImmediate(), rs.PeakQueueSize))
	sb.text(0, top+1, fmt.Sprintf("scans pending %4d  inflight %3d  found %2d  agents %d  turns %d  dispatcher inline %d panics %d",
		sb.scans.Pending(), sb.scans.InFlight(), sb.lastScan.Count, sb.flock.Len(), sb.flock.Hits(),
		sb.dispatcher.Inline(), sb.dispatcher.Panics()))
	sb.text(0, top+2, "arrows move  space cast  s scan  a agent  r reset  q quit")
	sb.screen.Show()
}

func (sb *sandbox) text(x, y int, s string) {
	for i, r := range s {
		sb.screen.SetContent(x+i, y, r, nil, styleHUD)
	}
}
