package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yegors/airship-atc/internal/avoidance"
	"github.com/yegors/airship-atc/internal/config"
	"github.com/yegors/airship-atc/internal/metrics"
	"github.com/yegors/airship-atc/internal/physics"
	"github.com/yegors/airship-atc/internal/pilot"
	"github.com/yegors/airship-atc/internal/route"
	"github.com/yegors/airship-atc/pkg/logger"
)

// spawnSpacing separates airships spawned on the same leg
const spawnSpacing = 400.0

// Service runs the airship simulation: it owns the airships, calls the pilot
// for each of them once per tick and integrates the resulting directives.
type Service struct {
	cfg      config.SimulationConfig
	nominal  float32
	terrain  Terrain
	geo      physics.GeoRef
	routes   *route.Network
	pilot    *pilot.Pilot
	renderer Renderer
	sink     EventSink
	logger   *logger.Logger

	runID string
	dt    float32
	epoch time.Time
	now   func() time.Time

	mu           sync.RWMutex
	rng          *rand.Rand
	t            float64
	airships     map[string]*Airship
	order        []string
	byRoute      map[int][]string
	nextID       int
	states       []AirshipState
	entities     map[string]pilot.EntityState
	observer     physics.Vec2
	loadedRadius float64

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewService creates a simulation over routes. renderer and sink may be nil.
func NewService(cfg *config.Config, routes *route.Network, p *pilot.Pilot, renderer Renderer, sink EventSink, log *logger.Logger) *Service {
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if sink == nil {
		sink = MultiSink{}
	}

	s := &Service{
		cfg:          cfg.Simulation,
		nominal:      float32(cfg.Airships.NominalSpeed),
		terrain:      NewTerrain(cfg.World),
		geo:          physics.GeoRef{OriginLat: cfg.World.OriginLat, OriginLon: cfg.World.OriginLon},
		routes:       routes,
		pilot:        p,
		renderer:     renderer,
		sink:         sink,
		logger:       log.Named("simulation"),
		runID:        uuid.NewString(),
		dt:           float32(cfg.Simulation.TickMs) / 1000,
		now:          func() time.Time { return time.Now().UTC() },
		rng:          rand.New(rand.NewSource(seed)),
		airships:     make(map[string]*Airship),
		byRoute:      make(map[int][]string),
		entities:     make(map[string]pilot.EntityState),
		loadedRadius: cfg.Simulation.LoadedRadius,
		stopCh:       make(chan struct{}),
	}
	if s.epoch = cfg.World.Epoch; s.epoch.IsZero() {
		s.epoch = config.DefaultEpoch
	}
	if op := cfg.Simulation.ObserverPos; len(op) == 2 {
		s.observer = physics.V2(float32(op[0]), float32(op[1]))
	}
	return s
}

// RunID identifies this simulation run in stored events
func (s *Service) RunID() string {
	return s.runID
}

// Spawn places the configured number of airships on every route, spread
// over its legs
func (s *Service) Spawn() error {
	n := s.cfg.AirshipsPerRoute
	for _, r := range s.routes.Routes() {
		for i := 0; i < n; i++ {
			if _, err := s.AddAirship(r.ID, spawnPos(r, i, n)); err != nil {
				return err
			}
		}
	}
	return nil
}

// spawnPos is the start position of the i-th of n airships on r. Airships
// start in cruise, queued up behind the initial approach point of their leg.
func spawnPos(r route.Route, i, n int) physics.Vec3 {
	legs := len(r.Legs)
	leg := i * legs / n
	first := (leg*n + legs - 1) / legs
	stack := float32(i-first) + 1

	a := r.Legs[leg]
	back := a.InitialPos.XY().Sub(a.TransitionPos.XY()).NormalizedOr(a.Direction.Neg())
	return a.InitialPos.XY().Add(back.Scale(stack * spawnSpacing)).WithZ(a.InitialPos.Z)
}

// AddAirship registers an airship on routeID at pos and returns its id
func (s *Service) AddAirship(routeID int, pos physics.Vec3) (string, error) {
	if _, err := s.routes.RouteLen(routeID); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("AS-%03d", s.nextID)
	a := newAirship(id, routeID, pos)
	a.rc.Assign(routeID, "")
	s.airships[id] = a
	s.order = append(s.order, id)
	s.byRoute[routeID] = append(s.byRoute[routeID], id)
	s.entities[id] = a.entity()
	s.assignPredecessors(routeID)
	s.states = s.buildStates()

	s.logger.Info("Airship added",
		logger.String("airship", id),
		logger.Int("route", routeID),
		logger.String("predecessor", a.rc.PredecessorID))
	return id, nil
}

// RemoveAirship takes an airship out of the simulation
func (s *Service) RemoveAirship(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.airships[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrAirshipNotFound)
	}
	delete(s.airships, id)
	delete(s.entities, id)
	s.order = without(s.order, id)
	s.byRoute[a.RouteID] = without(s.byRoute[a.RouteID], id)
	s.assignPredecessors(a.RouteID)
	s.states = s.buildStates()

	s.logger.Info("Airship removed", logger.String("airship", id))
	return nil
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// assignPredecessors orders the airships of a route by progress and makes
// each one follow the next airship ahead of it, wrapping around
func (s *Service) assignPredecessors(routeID int) {
	ids := s.byRoute[routeID]
	progress := make(map[string]float64, len(ids))
	for _, id := range ids {
		progress[id] = s.progress(routeID, s.airships[id].Pos)
	}
	sort.SliceStable(ids, func(i, j int) bool { return progress[ids[i]] < progress[ids[j]] })

	for i, id := range ids {
		pred := ""
		if len(ids) > 1 {
			pred = ids[(i+1)%len(ids)]
		}
		s.airships[id].rc.PredecessorID = pred
	}
}

// progress orders positions along a route: by nearest leg, then by closeness
// to that leg's dock
func (s *Service) progress(routeID int, pos physics.Vec3) float64 {
	leg, err := s.routes.NearestLeg(routeID, pos.XY())
	if err != nil {
		return 0
	}
	a, err := s.routes.ApproachFor(routeID, leg)
	if err != nil {
		return 0
	}
	return float64(leg)*1e9 - float64(pos.XY().Distance(a.DockPos.XY()))
}

// SetObserver moves the point around which airships are fully simulated
func (s *Service) SetObserver(pos physics.Vec2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = pos
}

func (s *Service) modeFor(pos physics.Vec3) pilot.SimulationMode {
	if s.loadedRadius > 0 && float64(pos.XY().Distance(s.observer)) <= s.loadedRadius {
		return pilot.Loaded
	}
	return pilot.Simulated
}

// pending collects the events of a tick; they are delivered after the lock
// is released
type pending struct {
	modes []ModeChange
	docks []DockEvent
	chat  []ChatLine
}

// Step advances the simulation by one tick
func (s *Service) Step() {
	start := time.Now()

	s.mu.Lock()
	s.t += float64(s.dt)
	wall := s.now()
	var ev pending
	loaded := 0
	for _, id := range s.order {
		a := s.airships[id]
		a.Mode = s.modeFor(a.Pos)
		if a.Mode == pilot.Loaded {
			loaded++
		}

		prev := a.rc.Mode.Kind
		chat := &chatBuffer{}
		res := s.pilot.Tick(&tickWorld{svc: s, self: a}, a.rc, a, chat)
		a.integrate(s.dt, s.nominal, s.terrain.Alt)

		s.collect(a, prev, res, chat, wall, &ev)
	}
	for id, a := range s.airships {
		s.entities[id] = a.entity()
	}
	s.states = s.buildStates()
	states := s.states
	total := len(s.order)
	s.mu.Unlock()

	for _, e := range ev.modes {
		s.sink.OnModeChange(e)
	}
	for _, e := range ev.docks {
		s.sink.OnDock(e)
	}
	for _, e := range ev.chat {
		s.sink.OnChat(e)
	}
	s.sink.OnTick(states)

	metrics.ActiveAirships.WithLabelValues(pilot.Loaded.String()).Set(float64(loaded))
	metrics.ActiveAirships.WithLabelValues(pilot.Simulated.String()).Set(float64(total - loaded))
	metrics.TickDuration.Observe(time.Since(start).Seconds())
}

func (s *Service) collect(a *Airship, prev avoidance.Kind, res pilot.Result, chat *chatBuffer, wall time.Time, ev *pending) {
	rc := a.rc
	if kind := rc.Mode.Kind; kind != prev {
		ev.modes = append(ev.modes, ModeChange{
			RunID:       s.runID,
			AirshipID:   a.ID,
			RouteID:     a.RouteID,
			Phase:       rc.Phase,
			From:        prev,
			Mode:        rc.Mode,
			SpeedFactor: rc.SpeedFactor,
			SimTime:     s.t,
			Timestamp:   wall,
		})
		metrics.ModeTransitions.WithLabelValues(kind.String()).Inc()
		if kind == avoidance.KindStuck {
			metrics.StuckEvents.Inc()
		}
	}
	if res.Decision != nil && errors.Is(res.Decision.OverrideErr, avoidance.ErrOverrideUnavailable) {
		metrics.OverrideUnavailable.Inc()
	}
	if res.Dock != nil {
		ev.docks = append(ev.docks, DockEvent{
			RunID:     s.runID,
			AirshipID: a.ID,
			RouteID:   a.RouteID,
			Dock:      *res.Dock,
			SimTime:   s.t,
			Timestamp: wall,
		})
		metrics.DocksCompleted.WithLabelValues(res.Dock.Site).Inc()
		metrics.DockWaitSeconds.Observe(float64(res.Dock.Wait))
	}
	if res.Idle != nil {
		metrics.PilotsIdle.Inc()
	}

	for _, u := range chat.lines {
		ev.chat = append(ev.chat, ChatLine{
			RunID:     s.runID,
			AirshipID: a.ID,
			RouteID:   a.RouteID,
			Key:       u.Key,
			Data:      u.Data,
			Text:      s.render(u),
			SimTime:   s.t,
			Timestamp: wall,
		})
	}
}

func (s *Service) render(u pilot.Utterance) string {
	if s.renderer == nil {
		return u.Key
	}
	text, err := s.renderer.Render(u.Key, u.Data)
	if err != nil {
		s.logger.Warn("Failed to render chat line",
			logger.String("key", u.Key),
			logger.Error(err))
		return u.Key
	}
	return text
}

func (s *Service) buildStates() []AirshipState {
	out := make([]AirshipState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.airships[id].state(s.t, s.geo))
	}
	return out
}

// Snapshot returns the state of every airship as of the last tick
func (s *Service) Snapshot() []AirshipState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AirshipState, len(s.states))
	copy(out, s.states)
	return out
}

// Get returns the state of one airship as of the last tick
func (s *Service) Get(id string) (AirshipState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.states {
		if st.ID == id {
			return st, nil
		}
	}
	return AirshipState{}, fmt.Errorf("%s: %w", id, ErrAirshipNotFound)
}

// Time returns the simulation clock in seconds
func (s *Service) Time() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t
}

// Start runs the simulation loop until Stop is called or ctx is done
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.TickMs <= 0 {
		return fmt.Errorf("invalid tick interval %dms", s.cfg.TickMs)
	}
	s.logger.Info("Starting simulation",
		logger.String("run_id", s.runID),
		logger.Int("airships", len(s.order)),
		logger.Duration("tick", time.Duration(s.cfg.TickMs)*time.Millisecond))

	s.started = true
	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop stops the simulation loop and waits for it to exit
func (s *Service) Stop() {
	if !s.started {
		return
	}
	s.logger.Info("Stopping simulation")
	close(s.stopCh)
	s.wg.Wait()
	s.started = false
	s.logger.Info("Simulation stopped", logger.Float64("sim_time", s.Time()))
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.cfg.TickMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Step()
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// date is the calendar time at the current simulation time
func (s *Service) date() time.Time {
	return s.epoch.Add(time.Duration(s.t * float64(time.Second)))
}

// tickWorld is the pilot's view of the world while one airship is ticked.
// Other airships are seen as they were at the end of the previous tick.
type tickWorld struct {
	svc  *Service
	self *Airship
}

func (w *tickWorld) Time() float64                     { return w.svc.t }
func (w *tickWorld) Dt() float32                       { return w.svc.dt }
func (w *tickWorld) Date() time.Time                   { return w.svc.date() }
func (w *tickWorld) Rand() *rand.Rand                  { return w.svc.rng }
func (w *tickWorld) TerrainAlt(p physics.Vec2) float32 { return w.svc.terrain.Alt(p) }
func (w *tickWorld) Self() pilot.EntityState           { return w.self.entity() }
func (w *tickWorld) Mode() pilot.SimulationMode        { return w.self.Mode }

func (w *tickWorld) Lookup(id string) (pilot.EntityState, bool) {
	e, ok := w.svc.entities[id]
	return e, ok
}
