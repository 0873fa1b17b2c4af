package pilot

import (
	"time"

	"github.com/yegors/airship-atc/internal/avoidance"
	"github.com/yegors/airship-atc/internal/config"
	"github.com/yegors/airship-atc/internal/physics"
)

// Phase is a flight phase of one leg
type Phase int

const (
	PhaseUnresolved Phase = iota
	PhaseAscent
	PhaseCruise
	PhaseTransition
	PhaseFinalApproach
	PhaseDescent
	PhaseDocked
	PhaseIdle
)

var phaseNames = [...]string{"unresolved", "ascent", "cruise", "transition", "final_approach", "descent", "docked", "idle"}

func (p Phase) String() string {
	if p < PhaseUnresolved || p > PhaseIdle {
		return "unknown"
	}
	return phaseNames[p]
}

// MarshalText lets Phase be used as a JSON value
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// phaseInfo is the static behavior of a phase
type phaseInfo struct {
	avoidance bool
	baseline  float32
	// arrive is the horizontal radius at which a waypoint counts as reached
	arrive float32
	// arriveZ is the vertical tolerance; zero ignores height
	arriveZ       float32
	braking       Braking
	followTerrain bool
	orient        bool
}

var phases = map[Phase]phaseInfo{
	PhaseAscent:        {baseline: 0.3, arrive: 50, arriveZ: 10},
	PhaseCruise:        {avoidance: true, baseline: 1.0, arrive: 100, followTerrain: true},
	PhaseTransition:    {avoidance: true, baseline: 0.8, arrive: 50},
	PhaseFinalApproach: {avoidance: true, baseline: 0.4, arrive: 25, braking: BrakingPrecise},
	PhaseDescent:       {baseline: 0.3, arrive: 3, arriveZ: 3, braking: BrakingPrecise, orient: true},
	PhaseDocked:        {baseline: 0.75, braking: BrakingPrecise, orient: true},
}

// Baseline returns the nominal speed factor of a phase
func Baseline(p Phase) float32 {
	return phases[p].baseline
}

// AvoidanceEnabled reports whether collision avoidance runs during p
func AvoidanceEnabled(p Phase) bool {
	return phases[p].avoidance
}

// Flight constants
const (
	// CruiseCheckpointOffset is how far short of the transition point cruise ends
	CruiseCheckpointOffset = 300.0
	// StuckSpeedFactor is the speed used while backing out
	StuckSpeedFactor = 1.5
	// HoldSpeedFactor is the speed used to keep station while holding
	HoldSpeedFactor = 0.5
	// WobbleAmplitude is the size of the station keeping drift while holding
	WobbleAmplitude = 2.0
	// HoldAnnounceMin and HoldAnnounceMax bound the time between hold chat lines
	HoldAnnounceMin = 10.0
	HoldAnnounceMax = 20.0
	// DockedArrival is the distance from a dock at which a resuming airship
	// counts as already docked
	DockedArrival = 50.0
)

// Config tunes pilots
type Config struct {
	RadarCruise        time.Duration
	RadarTransition    time.Duration
	RadarFinalApproach time.Duration
	Thresholds         avoidance.Thresholds
	ZoneTolerance      float64
	Engine             avoidance.Config
	// GeoRef, when set, adds magnetic headings to announcements
	GeoRef *physics.GeoRef
}

// DefaultConfig returns the calibrated pilot configuration
func DefaultConfig() Config {
	return Config{
		RadarCruise:        5 * time.Second,
		RadarTransition:    3 * time.Second,
		RadarFinalApproach: 2 * time.Second,
		Thresholds:         avoidance.DefaultThresholds(),
		ZoneTolerance:      100,
		Engine:             avoidance.DefaultConfig(),
	}
}

// NewConfig builds a pilot configuration from the application configuration
func NewConfig(cfg *config.Config) Config {
	a := cfg.Airships
	c := DefaultConfig()
	c.RadarCruise = seconds(a.RadarCruiseSecs)
	c.RadarTransition = seconds(a.RadarTransitionSecs)
	c.RadarFinalApproach = seconds(a.RadarFinalApproachSecs)
	c.Thresholds = avoidance.Thresholds{
		CloseToDock:   a.CloseToDock * a.CloseToDock,
		VeryClose:     a.VeryClose * a.VeryClose,
		HoldMargin:    a.HoldMargin * a.HoldMargin,
		SomewhatClose: a.SomewhatClose * a.SomewhatClose,
		PassingClose:  a.PassingClose * a.PassingClose,
	}
	c.ZoneTolerance = a.ZoneTolerance
	c.Engine.SimulatedCruiseSpeed = float32(a.NominalSpeed)
	c.Engine.CruiseMatchRange = a.MatchRange * a.MatchRange
	c.GeoRef = &physics.GeoRef{OriginLat: cfg.World.OriginLat, OriginLon: cfg.World.OriginLon}
	return c
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c Config) radar(p Phase) time.Duration {
	switch p {
	case PhaseCruise:
		return c.RadarCruise
	case PhaseTransition:
		return c.RadarTransition
	case PhaseFinalApproach:
		return c.RadarFinalApproach
	default:
		return 0
	}
}
