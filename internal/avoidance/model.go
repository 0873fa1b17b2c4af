package avoidance

import (
	"github.com/yegors/airship-atc/internal/physics"
	"github.com/yegors/airship-atc/internal/tracking"
)

// Proximity is what a RouteModel sees when classifying
type Proximity struct {
	Self        physics.Vec3
	Predecessor physics.Vec3
	// DockPos is the dock of the current leg
	DockPos physics.Vec3
	// Reference is the squared radius of the inner dock zone, if known
	Reference float64
}

// RouteModel decides which avoidance kind applies given the predecessor's
// position. Implementations may keep state between calls.
type RouteModel interface {
	Name() string
	Classify(in Proximity, current Kind) Kind
}

// Thresholds are squared distances used by PredecessorModel
type Thresholds struct {
	CloseToDock   float64 `json:"close_to_dock"`
	VeryClose     float64 `json:"very_close"`
	HoldMargin    float64 `json:"hold_margin"`
	SomewhatClose float64 `json:"somewhat_close"`
	PassingClose  float64 `json:"passing_close"`
}

// DefaultThresholds returns the thresholds tuned for world units
func DefaultThresholds() Thresholds {
	return Thresholds{
		CloseToDock:   225 * 225,
		VeryClose:     400 * 400,
		HoldMargin:    50 * 50,
		SomewhatClose: 1000 * 1000,
		PassingClose:  700 * 700,
	}
}

// PredecessorModel classifies by distance to the single predecessor and by
// how close the predecessor is to the dock
type PredecessorModel struct {
	Thresholds Thresholds
}

// NewPredecessorModel creates a model using t
func NewPredecessorModel(t Thresholds) *PredecessorModel {
	return &PredecessorModel{Thresholds: t}
}

func (m *PredecessorModel) Name() string { return "predecessor" }

func (m *PredecessorModel) Classify(in Proximity, current Kind) Kind {
	t := m.Thresholds
	d1 := in.Predecessor.DistanceSquared(in.DockPos)
	d2 := in.Self.DistanceSquared(in.Predecessor)

	if d1 < t.CloseToDock {
		veryClose := t.VeryClose
		if current == KindHold {
			veryClose += t.HoldMargin
		}
		switch {
		case d2 < veryClose:
			return KindHold
		case d2 < t.SomewhatClose:
			return KindSlowDown
		default:
			return KindNone
		}
	}
	if d2 < t.PassingClose {
		return KindSlowDown
	}
	return KindNone
}

// ZoneModel classifies from the smoothed trend of the predecessor's distance
// to the current dock. The tracker is rebuilt whenever the dock changes.
type ZoneModel struct {
	stableTolerance float64
	reference       float64
	tracker         *tracking.ZoneDistanceTracker
}

// NewZoneModel creates a zone model. reference is the squared radius of the
// inner dock zone used when the proximity does not carry one; zero disables it.
func NewZoneModel(stableTolerance, reference float64) *ZoneModel {
	return &ZoneModel{stableTolerance: stableTolerance, reference: reference}
}

func (m *ZoneModel) Name() string { return "zone" }

func (m *ZoneModel) Classify(in Proximity, _ Kind) Kind {
	dock := in.DockPos.XY()
	if m.tracker == nil || m.tracker.FixedPos() != dock {
		m.tracker = tracking.NewZoneDistanceTracker(dock, m.stableTolerance)
		ref := m.reference
		if in.Reference > 0 {
			ref = in.Reference
		}
		if ref > 0 {
			m.tracker.SetReference(ref)
		}
	}

	trend, zone := m.tracker.Update(in.Self.XY(), in.Predecessor.XY())
	inside := zone == tracking.InsideReference || zone == tracking.InsideMyDistance

	switch {
	case trend == tracking.Docked && inside:
		return KindHold
	case trend == tracking.ApproachingDock && inside:
		return KindSlowDown
	case trend == tracking.DepartingDock && zone == tracking.InsideReference:
		return KindSlowDown
	default:
		return KindNone
	}
}
