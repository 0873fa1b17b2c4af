package pilot

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/yegors/airship-atc/internal/avoidance"
	"github.com/yegors/airship-atc/internal/physics"
	"github.com/yegors/airship-atc/internal/route"
	"github.com/yegors/airship-atc/internal/tracking"
	"github.com/yegors/airship-atc/pkg/logger"
)

// DockRecord describes one completed dock
type DockRecord struct {
	Site          string  `json:"site"`
	Leg           int     `json:"leg"`
	DidHold       bool    `json:"did_hold"`
	SlowCount     uint32  `json:"slow_count"`
	ExtraHold     float32 `json:"extra_hold"`
	ExtraSlowdown float32 `json:"extra_slowdown"`
	Wait          float32 `json:"wait"`
}

// Result reports what happened during a tick
type Result struct {
	// Decision is set when avoidance was evaluated
	Decision *avoidance.Decision
	// PhaseChanged is set when the airship entered a new phase; From is the
	// phase it left
	PhaseChanged bool
	From         Phase
	Dock         *DockRecord
	// Idle is set on the tick the pilot gave up
	Idle error
}

// Pilot flies airships along their routes. One Pilot serves many airships;
// all per-airship state lives in RouteContext.
type Pilot struct {
	cfg      Config
	engine   *avoidance.Engine
	routes   RouteSource
	override avoidance.OverrideSource
	logger   *logger.Logger
}

// New creates a pilot. override may be nil.
func New(cfg Config, routes RouteSource, override avoidance.OverrideSource, log *logger.Logger) *Pilot {
	return &Pilot{
		cfg:      cfg,
		engine:   avoidance.NewEngine(cfg.Engine),
		routes:   routes,
		override: override,
		logger:   log.Named("pilot"),
	}
}

// Tick runs one simulation step for the airship owning rc
func (p *Pilot) Tick(w World, rc *RouteContext, act Actuator, chat ChatSink) Result {
	var res Result
	if rc.Phase == PhaseIdle {
		return res
	}

	self := w.Self()
	if rc.Phase == PhaseUnresolved {
		if err := p.resolve(w, rc, &res); err != nil {
			p.goIdle(rc, self.ID, err, &res)
			return res
		}
	}

	info := phases[rc.Phase]
	if info.avoidance {
		rc.AvoidanceTimer -= time.Duration(float64(w.Dt()) * float64(time.Second))
		if rc.AvoidanceTimer <= 0 {
			rc.AvoidanceTimer = p.cfg.radar(rc.Phase)
			d := p.evaluate(w, rc, self)
			res.Decision = &d
		}
	}

	switch rc.Mode.Kind {
	case avoidance.KindStuck:
		act.Goto(Directive{Target: rc.Mode.BackoutTarget, SpeedFactor: StuckSpeedFactor, Braking: BrakingPrecise})
		return res
	case avoidance.KindHold:
		p.hold(w, rc, self, act, chat)
		return res
	}

	if err := p.fly(w, rc, self, act, chat, &res); err != nil {
		p.goIdle(rc, self.ID, err, &res)
	}
	return res
}

func (p *Pilot) evaluate(w World, rc *RouteContext, self EntityState) avoidance.Decision {
	in := avoidance.Inputs{
		Time:          w.Time(),
		Self:          self.Pos,
		DockPos:       rc.Current.DockPos,
		DockReference: rc.zoneRef,
		Target:        rc.target().XY(),
		GroundAlt:     w.TerrainAlt(self.Pos.XY()),
		Cruise:        rc.Phase == PhaseCruise,
		Baseline:      Baseline(rc.Phase),
		Rand:          w.Rand(),
	}
	if rc.PredecessorID != "" {
		if pred, ok := w.Lookup(rc.PredecessorID); ok {
			pos := pred.Pos
			in.Predecessor = &pos
		}
	}

	d := p.engine.Evaluate(&rc.State, in, rc.model, avoidance.Params{Override: p.override})
	if d.OverrideErr != nil {
		p.logger.Debug("Speed override not applied",
			logger.String("airship", self.ID),
			logger.Error(d.OverrideErr))
	}
	if d.Changed {
		fields := []logger.Field{
			logger.String("airship", self.ID),
			logger.String("from", d.Previous.String()),
			logger.String("to", d.Mode.String()),
			logger.String("phase", rc.Phase.String()),
			logger.Float32("speed_factor", d.SpeedFactor),
		}
		if d.Mode.Kind == avoidance.KindStuck {
			p.logger.Warn("Airship stuck, backing out", fields...)
		} else {
			p.logger.Debug("Avoidance mode changed", fields...)
		}
	}
	return d
}

func (p *Pilot) hold(w World, rc *RouteContext, self EntityState, act Actuator, chat ChatSink) {
	target := rc.Mode.HoldPos
	if w.Mode() == Loaded {
		target = target.Add(wobble(w.Time()))
	}
	dir := rc.Mode.HoldDir
	act.Goto(Directive{Target: target, SpeedFactor: HoldSpeedFactor, Orientation: &dir, Braking: BrakingPrecise})

	rc.HoldTimer -= w.Dt()
	if rc.HoldTimer > 0 {
		return
	}
	key := SayHoldContinue
	if !rc.HoldAnnounced {
		key = SayHoldAnnounced
		rc.HoldAnnounced = true
	}
	chat.Say(Utterance{Key: key, Data: map[string]string{"site": rc.Current.SiteName}})
	rc.HoldTimer = float32(randRange(w.Rand(), HoldAnnounceMin, HoldAnnounceMax))
}

// wobble is a small deterministic drift that keeps a holding airship alive
func wobble(t float64) physics.Vec3 {
	return physics.V3(
		float32(math.Sin(t*0.5))*WobbleAmplitude,
		float32(math.Cos(t*0.4))*WobbleAmplitude,
		float32(math.Sin(t*0.3))*WobbleAmplitude*0.5,
	)
}

// fly emits the phase directive and advances the phase when its target is reached
func (p *Pilot) fly(w World, rc *RouteContext, self EntityState, act Actuator, chat ChatSink, res *Result) error {
	now := w.Time()
	if rc.Phase == PhaseDocked {
		p.announce(w, rc, self, chat)
		if now >= rc.DockUntil {
			if err := p.takeoff(w, rc, chat, res); err != nil {
				return err
			}
		}
	}

	info := phases[rc.Phase]
	target := rc.target()
	d := Directive{Target: target, SpeedFactor: rc.SpeedFactor, Braking: info.braking}
	if info.followTerrain {
		h := rc.Current.Height
		d.HeightOffset = &h
	}
	if info.orient {
		dir := rc.Current.Direction
		d.Orientation = &dir
	}
	act.Goto(d)

	if rc.Phase == PhaseDocked || !reached(self.Pos, target, info) {
		return nil
	}
	if len(rc.Waypoints) > 1 {
		rc.Waypoints = rc.Waypoints[1:]
		return nil
	}

	switch rc.Phase {
	case PhaseAscent:
		p.enter(rc, PhaseCruise, now, res)
	case PhaseCruise:
		p.enter(rc, PhaseTransition, now, res)
	case PhaseTransition:
		p.enter(rc, PhaseFinalApproach, now, res)
	case PhaseFinalApproach:
		p.enter(rc, PhaseDescent, now, res)
	case PhaseDescent:
		p.arrive(w, rc, self, chat, res)
	}
	return nil
}

func reached(pos, target physics.Vec3, info phaseInfo) bool {
	if pos.XY().DistanceSquared(target.XY()) >= float64(info.arrive)*float64(info.arrive) {
		return false
	}
	return info.arriveZ == 0 || math.Abs(float64(pos.Z-target.Z)) < float64(info.arriveZ)
}

func (p *Pilot) arrive(w World, rc *RouteContext, self EntityState, chat ChatSink, res *Result) {
	rec := DockRecord{Site: rc.Current.SiteName, Leg: rc.Leg, DidHold: rc.DidHold, SlowCount: rc.SlowCount}
	rec.Wait = rc.CompleteDock(p.routes.DockingDuration())
	rec.ExtraHold = rc.ExtraHoldDockTime
	rec.ExtraSlowdown = rc.ExtraSlowdownDockTime
	res.Dock = &rec

	now := w.Time()
	rc.DockUntil = now + float64(rec.Wait)
	rc.Announcements = ScheduleAnnouncements(w.Rand(), now, rec.Wait)
	p.enter(rc, PhaseDocked, now, res)

	chat.Say(Utterance{Key: SayLanded, Data: map[string]string{"site": rc.Current.SiteName}})
	p.logger.Info("Airship docked",
		logger.String("airship", self.ID),
		logger.String("site", rec.Site),
		logger.Float32("wait", rec.Wait),
		logger.Bool("did_hold", rec.DidHold),
		logger.Int("slow_count", int(rec.SlowCount)))
}

func (p *Pilot) announce(w World, rc *RouteContext, self EntityState, chat ChatSink) {
	if len(rc.Announcements) == 0 || w.Time() < rc.Announcements[0] {
		return
	}
	rc.Announcements = rc.Announcements[1:]

	dir := rc.Next.DockPos.XY().Sub(rc.Current.DockPos.XY())
	data := map[string]string{
		"site":        rc.Current.SiteName,
		"destination": rc.Next.SiteName,
		"direction":   physics.CompassFromDir(dir).String(),
	}
	if p.cfg.GeoRef != nil {
		hdg := p.cfg.GeoRef.MagneticHeading(self.Pos, dir, w.Date())
		data["heading"] = strconv.Itoa(int(math.Round(hdg)))
	}
	chat.Say(Utterance{Key: SayAnnounceNext, Data: data})
}

func (p *Pilot) takeoff(w World, rc *RouteContext, chat ChatSink, res *Result) error {
	from := rc.Current.SiteName
	next, err := p.routes.IncrementLeg(rc.RouteID, rc.Leg)
	if err != nil {
		return err
	}
	if err := p.setLeg(rc, next); err != nil {
		return err
	}
	chat.Say(Utterance{Key: SayTakeoff, Data: map[string]string{"site": from, "destination": rc.Current.SiteName}})
	p.enter(rc, PhaseAscent, w.Time(), res)
	return nil
}

// resolve picks the route model and the leg to resume on
func (p *Pilot) resolve(w World, rc *RouteContext, res *Result) error {
	if rc.RouteID < 0 {
		return fmt.Errorf("airship has no route: %w", route.ErrUnknownRoute)
	}
	n, err := p.routes.RouteLen(rc.RouteID)
	if err != nil {
		return err
	}
	rc.RouteLen = n

	model, err := p.routes.Model(rc.RouteID)
	if err != nil {
		return err
	}
	if model == route.ModelZone {
		rc.model = avoidance.NewZoneModel(p.cfg.ZoneTolerance, 0)
	} else {
		rc.model = avoidance.NewPredecessorModel(p.cfg.Thresholds)
	}
	if rc.PredecessorAverage == nil || rc.PredecessorAverage.Capacity() != p.cfg.Engine.AverageWindow {
		rc.PredecessorAverage = tracking.NewMovingAverage[int64](p.cfg.Engine.AverageWindow)
	}

	self := w.Self()
	leg := rc.Leg
	if leg < 0 {
		if leg, err = p.routes.NearestLeg(rc.RouteID, self.Pos.XY()); err != nil {
			return err
		}
	}
	if err := p.setLeg(rc, leg); err != nil {
		return err
	}

	p.logger.Info("Airship resuming route",
		logger.String("airship", self.ID),
		logger.Int("route", rc.RouteID),
		logger.Int("leg", leg),
		logger.String("model", rc.model.Name()),
		logger.String("site", rc.Current.SiteName))

	if self.Pos.XY().DistanceSquared(rc.Current.DockPos.XY()) < DockedArrival*DockedArrival {
		p.arrive(w, rc, self, discard{}, res)
		return nil
	}
	p.enter(rc, PhaseCruise, w.Time(), res)
	return nil
}

// setLeg loads the approach geometry of leg
func (p *Pilot) setLeg(rc *RouteContext, leg int) error {
	cur, err := p.routes.ApproachFor(rc.RouteID, leg)
	if err != nil {
		return err
	}
	nextLeg, err := p.routes.IncrementLeg(rc.RouteID, leg)
	if err != nil {
		return err
	}
	next, err := p.routes.ApproachFor(rc.RouteID, nextLeg)
	if err != nil {
		return err
	}
	prevLeg, err := p.routes.DecrementLeg(rc.RouteID, leg)
	if err != nil {
		return err
	}
	prev, err := p.routes.ApproachFor(rc.RouteID, prevLeg)
	if err != nil {
		return err
	}

	rc.Leg = leg
	rc.Current = cur
	rc.Next = next
	rc.Depart = prev.DockPos

	along := cur.TransitionPos.XY().Sub(rc.Depart.XY()).NormalizedOr(cur.Direction)
	rc.CruiseCheckpoint = cur.TransitionPos.XY().Sub(along.Scale(CruiseCheckpointOffset)).WithZ(cur.TransitionPos.Z)

	rc.zoneRef = 0
	if _, ok := rc.model.(*avoidance.ZoneModel); ok {
		legacy, err := p.routes.Legacy(rc.RouteID)
		if err != nil {
			return err
		}
		rc.zoneRef = legacy.Destination(leg).ZoneReference()
	}
	return nil
}

// enter starts phase ph
func (p *Pilot) enter(rc *RouteContext, ph Phase, now float64, res *Result) {
	if !res.PhaseChanged {
		res.From = rc.Phase
	}
	res.PhaseChanged = true

	rc.Phase = ph
	rc.PhaseBegin = now
	rc.Mode = avoidance.None()
	rc.SpeedFactor = Baseline(ph)
	rc.AvoidanceTimer = p.cfg.radar(ph)
	rc.ResetTrackers(ph)

	cur := rc.Current
	switch ph {
	case PhaseAscent:
		rc.Waypoints = []physics.Vec3{rc.Depart.WithZ(rc.Depart.Z + cur.Height)}
	case PhaseCruise:
		rc.Waypoints = []physics.Vec3{rc.CruiseCheckpoint}
	case PhaseTransition:
		rc.Waypoints = []physics.Vec3{cur.InitialPos, cur.TransitionPos}
	case PhaseFinalApproach:
		rc.Waypoints = []physics.Vec3{cur.FinalPos, cur.DockPos.WithZ(cur.FinalPos.Z)}
	case PhaseDescent, PhaseDocked:
		rc.Waypoints = []physics.Vec3{cur.DockPos}
	default:
		rc.Waypoints = nil
	}
}

func (p *Pilot) goIdle(rc *RouteContext, id string, err error, res *Result) {
	p.logger.Error("Airship route failed, pilot idle",
		logger.String("airship", id),
		logger.Int("route", rc.RouteID),
		logger.Int("leg", rc.Leg),
		logger.Error(err))
	if !res.PhaseChanged {
		res.From = rc.Phase
	}
	res.PhaseChanged = true
	res.Idle = err
	rc.Phase = PhaseIdle
	rc.Mode = avoidance.None()
	rc.Waypoints = nil
	rc.DisableTrackers()
	rc.idleCause = err
}

// target is the waypoint the current phase is flying to
func (rc *RouteContext) target() physics.Vec3 {
	if len(rc.Waypoints) == 0 {
		return rc.Current.DockPos
	}
	return rc.Waypoints[0]
}

// Target returns the current waypoint
func (rc *RouteContext) Target() physics.Vec3 {
	return rc.target()
}

// discard drops chat lines said while resuming
type discard struct{}

func (discard) Say(Utterance) {}
