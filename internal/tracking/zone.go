package tracking

import (
	"math"

	"github.com/yegors/airship-atc/internal/physics"
)

// Trend describes how another airship is moving relative to a dock
type Trend int

const (
	TrendUnknown Trend = iota
	ApproachingDock
	DepartingDock
	Docked
)

func (t Trend) String() string {
	switch t {
	case ApproachingDock:
		return "approaching"
	case DepartingDock:
		return "departing"
	case Docked:
		return "docked"
	default:
		return "unknown"
	}
}

// Zone describes where another airship is relative to a dock and to me
type Zone int

const (
	ZoneUnknown Zone = iota
	InsideReference
	InsideMyDistance
	OutsideMyDistance
)

func (z Zone) String() string {
	switch z {
	case InsideReference:
		return "inside_reference"
	case InsideMyDistance:
		return "inside_my_distance"
	case OutsideMyDistance:
		return "outside_my_distance"
	default:
		return "unknown"
	}
}

// zoneSmoothing is the weight given to each new distance sample
const zoneSmoothing = 0.3

// ZoneDistanceTracker follows another airship's squared distance from a fixed
// point and classifies its trend and zone. All distances are squared.
type ZoneDistanceTracker struct {
	fixedPos        physics.Vec2
	stableTolerance float64
	refDist         *float64
	prevDist        *float64
	avgDist         *float64
}

// NewZoneDistanceTracker creates a tracker around fixedPos
func NewZoneDistanceTracker(fixedPos physics.Vec2, stableTolerance float64) *ZoneDistanceTracker {
	return &ZoneDistanceTracker{fixedPos: fixedPos, stableTolerance: stableTolerance}
}

// SetReference sets the squared reference distance for the InsideReference zone
func (z *ZoneDistanceTracker) SetReference(distSq float64) {
	z.refDist = &distSq
}

// FixedPos returns the tracked point
func (z *ZoneDistanceTracker) FixedPos() physics.Vec2 {
	return z.fixedPos
}

// Update classifies otherPos. The first call only seeds the tracker and
// returns TrendUnknown and ZoneUnknown.
func (z *ZoneDistanceTracker) Update(myPos, otherPos physics.Vec2) (Trend, Zone) {
	cur := otherPos.DistanceSquared(z.fixedPos)
	if z.avgDist == nil || z.prevDist == nil {
		avg, prev := cur, cur
		z.avgDist, z.prevDist = &avg, &prev
		return TrendUnknown, ZoneUnknown
	}

	avg := *z.avgDist + (cur-*z.avgDist)*zoneSmoothing
	*z.avgDist = avg

	myDist := myPos.DistanceSquared(z.fixedPos)
	var zone Zone
	switch {
	case z.refDist != nil && cur < *z.refDist:
		zone = InsideReference
	case cur < myDist:
		zone = InsideMyDistance
	default:
		zone = OutsideMyDistance
	}

	var trend Trend
	switch {
	case math.Abs(avg) < z.stableTolerance:
		trend = Docked
	case cur < *z.prevDist:
		trend = ApproachingDock
	default:
		trend = DepartingDock
	}
	*z.prevDist = cur

	return trend, zone
}

// Reset forgets all samples, keeping the fixed point and reference
func (z *ZoneDistanceTracker) Reset() {
	z.prevDist = nil
	z.avgDist = nil
}
