package simulation

import (
	"errors"

	"github.com/yegors/airship-atc/internal/avoidance"
	"github.com/yegors/airship-atc/internal/physics"
	"github.com/yegors/airship-atc/internal/pilot"
)

// ErrAirshipNotFound is returned when an airship id is not registered
var ErrAirshipNotFound = errors.New("airship not found")

// Kinematic limits
const (
	// preciseBrakeGain is the speed per unit of remaining distance under
	// precise braking
	preciseBrakeGain = 0.5
	// minCreepSpeed keeps precise braking from stalling short of the target
	minCreepSpeed = 1.0
)

// Airship is one simulated airship. Only the simulation loop touches it.
type Airship struct {
	ID      string
	RouteID int
	Pos     physics.Vec3
	Vel     physics.Vec3
	Dir     physics.Vec2
	Mode    pilot.SimulationMode

	rc        *pilot.RouteContext
	directive *pilot.Directive
}

func newAirship(id string, routeID int, pos physics.Vec3) *Airship {
	return &Airship{
		ID:      id,
		RouteID: routeID,
		Pos:     pos,
		Dir:     physics.V2(0, 1),
		Mode:    pilot.Simulated,
		rc:      pilot.NewRouteContext(),
	}
}

func (a *Airship) entity() pilot.EntityState {
	return pilot.EntityState{ID: a.ID, Pos: a.Pos, Vel: a.Vel, Dir: a.Dir}
}

// Goto implements pilot.Actuator. The last directive of a tick wins.
func (a *Airship) Goto(d pilot.Directive) {
	a.directive = &d
}

// integrate moves the airship toward its directive for dt seconds
func (a *Airship) integrate(dt, nominal float32, ground func(physics.Vec2) float32) {
	d := a.directive
	a.directive = nil
	if d == nil || dt <= 0 {
		a.Vel = physics.Vec3{}
		return
	}

	target := d.Target
	if d.HeightOffset != nil {
		target.Z = ground(a.Pos.XY()) + *d.HeightOffset
	}
	to := target.Sub(a.Pos)
	dist := to.Length()

	speed := nominal * d.SpeedFactor
	if d.Braking == pilot.BrakingPrecise {
		if b := dist * preciseBrakeGain; b < speed {
			speed = max(b, minCreepSpeed)
		}
	}

	switch {
	case dist == 0:
		a.Vel = physics.Vec3{}
	case speed*dt >= dist:
		a.Vel = to.Scale(1 / dt)
		a.Pos = target
	default:
		a.Vel = to.Scale(speed / dist)
		a.Pos = a.Pos.Add(a.Vel.Scale(dt))
	}

	if d.Orientation != nil {
		a.Dir = *d.Orientation
	} else if dir, ok := to.XY().Normalized(); ok {
		a.Dir = dir
	}
}

// AirshipState is a read-only view of an airship taken at the end of a tick
type AirshipState struct {
	ID             string         `json:"id"`
	RouteID        int            `json:"route_id"`
	Leg            int            `json:"leg"`
	Destination    string         `json:"destination"`
	Next           string         `json:"next"`
	Phase          pilot.Phase    `json:"phase"`
	Mode           avoidance.Mode `json:"mode"`
	SpeedFactor    float32        `json:"speed_factor"`
	Position       physics.Vec3   `json:"position"`
	Velocity       physics.Vec3   `json:"velocity"`
	Heading        float64        `json:"heading"`
	Target         physics.Vec3   `json:"target"`
	Lat            float64        `json:"lat"`
	Lon            float64        `json:"lon"`
	SimulationMode string         `json:"simulation_mode"`
	PredecessorID  string         `json:"predecessor_id,omitempty"`
	DidHold        bool           `json:"did_hold"`
	SlowCount      uint32         `json:"slow_count"`
	ExtraHold      float32        `json:"extra_hold_dock_time"`
	ExtraSlowdown  float32        `json:"extra_slowdown_dock_time"`
	DockUntil      float64        `json:"dock_until,omitempty"`
	IdleCause      string         `json:"idle_cause,omitempty"`
	SimTime        float64        `json:"sim_time"`
}

func (a *Airship) state(now float64, geo physics.GeoRef) AirshipState {
	rc := a.rc
	s := AirshipState{
		ID:             a.ID,
		RouteID:        a.RouteID,
		Leg:            rc.Leg,
		Destination:    rc.Current.SiteName,
		Next:           rc.Next.SiteName,
		Phase:          rc.Phase,
		Mode:           rc.Mode,
		SpeedFactor:    rc.SpeedFactor,
		Position:       a.Pos,
		Velocity:       a.Vel,
		Heading:        physics.VectorToHeading(a.Dir),
		Target:         rc.Target(),
		SimulationMode: a.Mode.String(),
		PredecessorID:  rc.PredecessorID,
		DidHold:        rc.DidHold,
		SlowCount:      rc.SlowCount,
		ExtraHold:      rc.ExtraHoldDockTime,
		ExtraSlowdown:  rc.ExtraSlowdownDockTime,
		SimTime:        now,
	}
	s.Lat, s.Lon, _ = geo.ToGeodetic(a.Pos)
	if rc.Phase == pilot.PhaseDocked {
		s.DockUntil = rc.DockUntil
	}
	if err := rc.IdleCause(); err != nil {
		s.IdleCause = err.Error()
	}
	return s
}
