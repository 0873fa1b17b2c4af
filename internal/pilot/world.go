package pilot

import (
	"math/rand"
	"time"

	"github.com/yegors/airship-atc/internal/physics"
	"github.com/yegors/airship-atc/internal/route"
)

// SimulationMode tells how closely an airship is being simulated
type SimulationMode int

const (
	// Loaded airships are fully simulated near an observer
	Loaded SimulationMode = iota
	// Simulated airships are far away and only roughly simulated
	Simulated
)

func (m SimulationMode) String() string {
	if m == Simulated {
		return "simulated"
	}
	return "loaded"
}

// EntityState is the kinematic state of an airship
type EntityState struct {
	ID  string       `json:"id"`
	Pos physics.Vec3 `json:"pos"`
	Vel physics.Vec3 `json:"vel"`
	Dir physics.Vec2 `json:"dir"`
}

// World is the per-tick view of the simulation a pilot flies in
type World interface {
	Time() float64
	// Date is the calendar time at Time, used where the world needs a real date
	Date() time.Time
	Dt() float32
	Rand() *rand.Rand
	TerrainAlt(pos physics.Vec2) float32
	Lookup(id string) (EntityState, bool)
	Self() EntityState
	Mode() SimulationMode
}

// Braking selects how the actuator slows near its target
type Braking int

const (
	BrakingNormal Braking = iota
	BrakingPrecise
)

// Directive is a movement command consumed by the actuator each tick
type Directive struct {
	Target      physics.Vec3
	SpeedFactor float32
	// HeightOffset, when set, flies at this height above terrain instead of Target.Z
	HeightOffset *float32
	Orientation  *physics.Vec2
	Braking      Braking
}

// Actuator turns directives into motion
type Actuator interface {
	Goto(d Directive)
}

// Phrase keys emitted by pilots
const (
	SayTakeoff       = "pilot-takeoff"
	SayLanded        = "pilot-landed"
	SayAnnounceNext  = "pilot-announce-next"
	SayHoldAnnounced = "pilot-hold-announced"
	SayHoldContinue  = "pilot-hold-continue"
)

// Utterance is a chat line identified by a phrase key. Wording is left to the
// sink.
type Utterance struct {
	Key  string            `json:"key"`
	Data map[string]string `json:"data,omitempty"`
}

// ChatSink receives pilot chat lines
type ChatSink interface {
	Say(u Utterance)
}

// RouteSource is the static route data a pilot consults
type RouteSource interface {
	ApproachFor(routeID, leg int) (route.Approach, error)
	IncrementLeg(routeID, leg int) (int, error)
	DecrementLeg(routeID, leg int) (int, error)
	RouteLen(routeID int) (int, error)
	NearestLeg(routeID int, pos physics.Vec2) (int, error)
	Model(routeID int) (route.ModelKind, error)
	Legacy(routeID int) (route.LegacyRoute, error)
	DockingDuration() float32
}
