package tracking

import "github.com/yegors/airship-atc/internal/physics"

const (
	// MaxPositionHistory is the number of samples needed before stuck detection runs
	MaxPositionHistory = 5
	// StuckDistanceSquared is how far (squared) every sample may be from the
	// latest one while still counting as not having moved
	StuckDistanceSquared = 10.0
	// BackoutDistance is how far to back away from the obstacle
	BackoutDistance = 100.0
	// BackoutClimb is the height of the second backout waypoint above the first
	BackoutClimb = 200.0
	// BackoutReachedSquared is the squared distance at which a backout waypoint counts as reached
	BackoutReachedSquared = 50.0 * 50.0
	// NearGroundHeight is the altitude band above terrain that counts as near the ground
	NearGroundHeight = 10.0
	// NearGroundLift is added to the first backout waypoint when near the ground
	NearGroundLift = 50.0
)

// PositionTracker keeps a short position history for stuck detection and the
// backout route used to get unstuck.
type PositionTracker struct {
	history      []physics.Vec3
	backoutRoute []physics.Vec3
}

// NewPositionTracker creates an empty tracker
func NewPositionTracker() *PositionTracker {
	return &PositionTracker{history: make([]physics.Vec3, 0, MaxPositionHistory)}
}

// AddPosition records a position, dropping the oldest once full
func (t *PositionTracker) AddPosition(pos physics.Vec3) {
	if len(t.history) >= MaxPositionHistory {
		copy(t.history, t.history[1:])
		t.history = t.history[:len(t.history)-1]
	}
	t.history = append(t.history, pos)
}

// IsStuck records pos and reports whether the airship is stuck. When it first
// becomes stuck a backout route leading away from target is planned. The
// result stays true while that route is pending.
func (t *PositionTracker) IsStuck(pos physics.Vec3, target physics.Vec2, groundAlt float32) bool {
	t.AddPosition(pos)
	if len(t.history) == MaxPositionHistory && len(t.backoutRoute) == 0 {
		last := t.history[len(t.history)-1]
		moved := false
		for _, p := range t.history {
			if p.DistanceSquared(last) >= StuckDistanceSquared {
				moved = true
				break
			}
		}
		if !moved {
			dir := pos.XY().Sub(target).NormalizedOr(physics.V2(0, 1))
			backout := pos.Add(dir.WithZ(0).Scale(BackoutDistance))
			if abs32(pos.Z-groundAlt) < NearGroundHeight {
				backout.Z += NearGroundLift
			}
			t.backoutRoute = []physics.Vec3{backout, backout.Add(physics.UnitZ.Scale(BackoutClimb))}
		}
	}
	return len(t.backoutRoute) > 0
}

// NextBackoutPos returns the current backout waypoint. The waypoint is
// consumed once pos is within reach of it. When the route is exhausted the
// history is cleared so stuck detection starts over, and false is returned.
func (t *PositionTracker) NextBackoutPos(pos physics.Vec3) (physics.Vec3, bool) {
	if len(t.backoutRoute) == 0 {
		t.history = t.history[:0]
		return physics.Vec3{}, false
	}
	next := t.backoutRoute[0]
	if pos.DistanceSquared(next) < BackoutReachedSquared {
		t.backoutRoute = t.backoutRoute[1:]
	}
	return next, true
}

// BackoutRoute returns a copy of the pending backout waypoints
func (t *PositionTracker) BackoutRoute() []physics.Vec3 {
	return append([]physics.Vec3(nil), t.backoutRoute...)
}

// HistoryLen returns the number of recorded positions
func (t *PositionTracker) HistoryLen() int {
	return len(t.history)
}

// Reset forgets the history and any pending backout route
func (t *PositionTracker) Reset() {
	t.history = t.history[:0]
	t.backoutRoute = nil
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
