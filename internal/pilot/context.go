package pilot

import (
	"math/rand"
	"time"

	"github.com/yegors/airship-atc/internal/avoidance"
	"github.com/yegors/airship-atc/internal/physics"
	"github.com/yegors/airship-atc/internal/route"
)

// Dock time bookkeeping, in seconds
const (
	HoldDockBonus     = 30.0
	HoldDockDecay     = 45.0
	SlowdownDockBonus = 15.0
	SlowdownDockDecay = 20.0
)

// Docked announcement timing, in seconds
const (
	announceFirstMin = 5.0
	announceFirstMax = 8.0
	announceEveryMin = 10.0
	announceEveryMax = 16.0
	announceQuiet    = 10.0
)

// RouteContext is the persistent state of one airship's pilot. It belongs to
// that airship alone.
type RouteContext struct {
	RouteID  int
	Leg      int
	RouteLen int

	// Current is the approach at the end of Leg, Next the one after it
	Current route.Approach
	Next    route.Approach
	// Depart is the dock Leg starts from
	Depart           physics.Vec3
	CruiseCheckpoint physics.Vec3

	PredecessorID string

	AvoidanceTimer time.Duration
	avoidance.State

	ExtraHoldDockTime     float32
	ExtraSlowdownDockTime float32

	Phase      Phase
	PhaseBegin float64
	// Waypoints left in the current phase
	Waypoints []physics.Vec3

	DockUntil     float64
	Announcements []float64

	model     avoidance.RouteModel
	zoneRef   float64
	idleCause error
}

// NewRouteContext creates a context that has not been assigned a route yet
func NewRouteContext() *RouteContext {
	return &RouteContext{
		RouteID: -1,
		Leg:     -1,
		State:   avoidance.NewState(avoidance.DefaultConfig().AverageWindow),
	}
}

// Assign puts the airship on a route behind predecessorID. The leg is
// resolved from position on the first tick.
func (rc *RouteContext) Assign(routeID int, predecessorID string) {
	rc.RouteID = routeID
	rc.PredecessorID = predecessorID
	rc.Leg = -1
	rc.Phase = PhaseUnresolved
}

// IdleCause returns the error that stopped the pilot, if any
func (rc *RouteContext) IdleCause() error {
	return rc.idleCause
}

// ResetTrackers starts a phase with fresh trackers. Counters carried across
// the route cycle are kept.
func (rc *RouteContext) ResetTrackers(p Phase) {
	if p == PhaseCruise {
		rc.EnableTrackers()
	} else {
		rc.DisableTrackers()
	}
}

// CompleteDock updates the dock time bookkeeping after a dock and returns the
// total time to wait there
func (rc *RouteContext) CompleteDock(base float32) float32 {
	if rc.DidHold {
		rc.ExtraHoldDockTime += HoldDockBonus
	} else {
		rc.ExtraHoldDockTime = max(0, rc.ExtraHoldDockTime-HoldDockDecay)
	}
	if rc.SlowCount > 0 {
		rc.ExtraSlowdownDockTime += SlowdownDockBonus
	} else {
		rc.ExtraSlowdownDockTime = max(0, rc.ExtraSlowdownDockTime-SlowdownDockDecay)
	}
	total := base + rc.ExtraHoldDockTime + rc.ExtraSlowdownDockTime
	rc.DidHold = false
	rc.SlowCount = 0
	return total
}

// ScheduleAnnouncements returns the times at which a docked airship announces
// its next destination. Nothing is said in the last ten seconds; short stays
// get a single announcement halfway through.
func ScheduleAnnouncements(r *rand.Rand, start float64, wait float32) []float64 {
	if wait <= announceQuiet {
		return nil
	}
	last := start + float64(wait) - announceQuiet
	first := start + randRange(r, announceFirstMin, announceFirstMax)
	if first+announceEveryMin > last {
		return []float64{start + float64(wait)/2}
	}
	var out []float64
	for t := first; t <= last; t += randRange(r, announceEveryMin, announceEveryMax) {
		out = append(out, t)
	}
	return out
}

func randRange(r *rand.Rand, lo, hi float64) float64 {
	if r == nil {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}
