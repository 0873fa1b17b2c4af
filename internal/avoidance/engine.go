package avoidance

import (
	"errors"
	"math/rand"

	"github.com/yegors/airship-atc/internal/physics"
	"github.com/yegors/airship-atc/internal/tracking"
)

// Config holds the constants of the decision engine
type Config struct {
	// SimulatedCruiseSpeed is the nominal cruise speed; a predecessor going
	// faster than this minus two is taken to be cruising
	SimulatedCruiseSpeed float32
	// CruiseMatchRange is the squared distance within which the speed of the
	// predecessor is matched
	CruiseMatchRange float64
	// MatchCoefficients are the constant, linear, square and cube terms of
	// the speed matching fit
	MatchCoefficients [4]float64
	// VelocityScale converts predecessor speed to the fixed-point average
	VelocityScale float64
	HoldTimerMin  float32
	HoldTimerMax  float32
	// SlowDownFactor is applied to the phase baseline on entering SlowDown
	SlowDownFactor float32
	// AverageWindow is the capacity of the predecessor speed average
	AverageWindow int
}

// DefaultConfig returns the calibrated engine constants
func DefaultConfig() Config {
	return Config{
		SimulatedCruiseSpeed: 24.0,
		CruiseMatchRange:     2500 * 2500,
		// Empirical fit against measured cruise behavior. Recalibrate if
		// the nominal cruise speed changes.
		MatchCoefficients: [4]float64{-2.0173, 0.3885, -0.02215, 0.0004694},
		VelocityScale:     10000,
		HoldTimerMin:      4.0,
		HoldTimerMax:      7.0,
		SlowDownFactor:    0.3,
		AverageWindow:     5,
	}
}

// State is the avoidance part of an airship's route context. Trackers are
// only present while cruising.
type State struct {
	Mode          Mode
	SpeedFactor   float32
	HoldTimer     float32
	HoldAnnounced bool
	DidHold       bool
	SlowCount     uint32

	Position        *tracking.PositionTracker
	SelfRate        *tracking.RateTracker
	PredecessorRate *tracking.RateTracker
	// PredecessorAverage holds predecessor cruise speeds scaled by
	// Config.VelocityScale
	PredecessorAverage *tracking.MovingAverage[int64]
}

// NewState creates a state with an empty predecessor average
func NewState(window int) State {
	return State{
		Mode:               None(),
		PredecessorAverage: tracking.NewMovingAverage[int64](window),
	}
}

// EnableTrackers creates fresh cruise trackers
func (s *State) EnableTrackers() {
	s.Position = tracking.NewPositionTracker()
	s.SelfRate = &tracking.RateTracker{}
	s.PredecessorRate = &tracking.RateTracker{}
}

// DisableTrackers drops the cruise trackers
func (s *State) DisableTrackers() {
	s.Position = nil
	s.SelfRate = nil
	s.PredecessorRate = nil
}

// Inputs describes one airship at evaluation time
type Inputs struct {
	Time float64
	Self physics.Vec3
	// Predecessor is nil when it has no predecessor or it could not be found
	Predecessor *physics.Vec3
	DockPos     physics.Vec3
	// DockReference is the squared inner zone radius of the dock
	DockReference float64
	// Target is where the current phase is heading, used to plan a backout
	Target    physics.Vec2
	GroundAlt float32
	// Cruise enables speed matching
	Cruise bool
	// Baseline is the speed factor of the current phase
	Baseline float32
	Rand     *rand.Rand
}

// Params are per-call dependencies
type Params struct {
	Override OverrideSource
}

// Decision is the outcome of one evaluation
type Decision struct {
	Mode     Mode
	Previous Kind
	// Changed is true when Mode.Kind differs from Previous
	Changed     bool
	SpeedFactor float32
	// OverrideErr is set when an override is configured but could not be read
	OverrideErr error
}

// Engine runs the periodic avoidance decision for one airship at a time
type Engine struct {
	cfg Config
}

// NewEngine creates an engine
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine constants
func (e *Engine) Config() Config {
	return e.cfg
}

// MatchFactor evaluates the speed matching fit for predecessor speed v
func (e *Engine) MatchFactor(v float64) float64 {
	c := e.cfg.MatchCoefficients
	return c[0] + v*(c[1]+v*(c[2]+v*c[3]))
}

// Evaluate updates s from in and returns the resulting mode
func (e *Engine) Evaluate(s *State, in Inputs, model RouteModel, params Params) Decision {
	prev := s.Mode.Kind
	d := Decision{Previous: prev}

	// holding is commanded station keeping, not being wedged
	if s.Position != nil && prev != KindHold {
		if s.Position.IsStuck(in.Self, in.Target, in.GroundAlt) {
			if target, ok := s.Position.NextBackoutPos(in.Self); ok {
				s.Mode = Stuck(target)
				return e.finish(s, d)
			}
		} else if prev == KindStuck {
			// route exhausted: clears the history
			s.Position.NextBackoutPos(in.Self)
		}
	}

	var selfRate float32
	if s.SelfRate != nil {
		selfRate = s.SelfRate.Update(in.Self.XY(), in.Time)
	}
	if s.PredecessorRate != nil && in.Predecessor != nil {
		rate := s.PredecessorRate.Update(in.Predecessor.XY(), in.Time)
		if rate > e.cfg.SimulatedCruiseSpeed-2.0 {
			s.PredecessorAverage.Add(int64(float64(rate) * e.cfg.VelocityScale))
		}
	}

	if s.Mode.Kind == KindNone && in.Cruise {
		d.OverrideErr = e.matchSpeed(s, in, selfRate, params.Override)
	}

	kind := KindNone
	if in.Predecessor != nil && model != nil {
		kind = model.Classify(Proximity{Self: in.Self, Predecessor: *in.Predecessor, DockPos: in.DockPos, Reference: in.DockReference}, s.Mode.Kind)
	}

	if kind != s.Mode.Kind {
		switch kind {
		case KindHold:
			dir := in.DockPos.XY().Sub(in.Self.XY()).NormalizedOr(physics.V2(0, 1))
			s.Mode = Hold(in.Self, dir)
			if s.Position != nil {
				s.Position.Reset()
			}
			s.DidHold = true
			s.HoldTimer = e.randRange(in.Rand, e.cfg.HoldTimerMin, e.cfg.HoldTimerMax)
			s.HoldAnnounced = false
		case KindSlowDown:
			s.Mode = SlowDown()
			s.SlowCount++
			s.SpeedFactor = in.Baseline * e.cfg.SlowDownFactor
		default:
			if s.Mode.Kind == KindHold || s.Mode.Kind == KindSlowDown {
				s.SpeedFactor = in.Baseline
			}
			s.Mode = None()
		}
	}

	return e.finish(s, d)
}

func (e *Engine) finish(s *State, d Decision) Decision {
	d.Mode = s.Mode
	d.Changed = s.Mode.Kind != d.Previous
	d.SpeedFactor = s.SpeedFactor
	return d
}

func (e *Engine) matchSpeed(s *State, in Inputs, selfRate float32, src OverrideSource) error {
	var overrideErr error
	if src != nil {
		v, err := src.SpeedOverride()
		if err == nil {
			s.SpeedFactor = v
			return nil
		}
		if !errors.Is(err, ErrNoOverride) {
			overrideErr = err
		}
	}

	if selfRate <= 1e-3 {
		s.SpeedFactor = in.Baseline
		return overrideErr
	}
	if in.Predecessor == nil || s.PredecessorAverage.Count() < tracking.MinAverageSamples {
		return overrideErr
	}
	if in.Self.DistanceSquared(*in.Predecessor) >= e.cfg.CruiseMatchRange {
		return overrideErr
	}

	v := float64(s.PredecessorAverage.Average()) / e.cfg.VelocityScale
	if f := e.MatchFactor(v); f > 0 {
		s.SpeedFactor = float32(f)
	}
	return overrideErr
}

func (e *Engine) randRange(r *rand.Rand, lo, hi float32) float32 {
	if r == nil || hi <= lo {
		return lo
	}
	return lo + r.Float32()*(hi-lo)
}
