package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/airship-atc/internal/config"
	"github.com/yegors/airship-atc/internal/physics"
)

func squareRoute() config.RouteConfig {
	return config.RouteConfig{
		ID:           7,
		Model:        "predecessor",
		CruiseHeight: 300,
		Legs: []config.LegConfig{
			{Site: "A", Dock: []float64{0, 0, 100}, Direction: []float64{0, 1}},
			{Site: "B", Dock: []float64{5000, 0, 100}, Direction: []float64{1, 0}},
			{Site: "C", Dock: []float64{5000, 5000, 100}, Direction: []float64{0, 1}},
			{Site: "D", Dock: []float64{0, 5000, 100}, Direction: []float64{-1, 0}},
		},
	}
}

func newNetwork(t *testing.T) *Network {
	t.Helper()
	r, err := Build(squareRoute())
	require.NoError(t, err)
	n, err := NewNetwork([]Route{r}, 60)
	require.NoError(t, err)
	return n
}

func TestBuildDerivesApproach(t *testing.T) {
	r, err := Build(squareRoute())
	require.NoError(t, err)
	require.Len(t, r.Legs, 4)

	// leg 1 flies from A (0,0) east to B (5000,0)
	b := r.Legs[1]
	assert.Equal(t, "B", b.SiteName)
	assert.Equal(t, physics.V3(5000, 0, 100), b.DockPos)
	assert.InDelta(t, 5000-TransitionDistance, b.TransitionPos.X, 1e-3)
	assert.InDelta(t, 0, b.TransitionPos.Y, 1e-3)
	assert.InDelta(t, 400, b.TransitionPos.Z, 1e-3)
	assert.InDelta(t, 5000-TransitionDistance-InitialDistance, b.InitialPos.X, 1e-3)
	// final point sits behind the docked heading
	assert.InDelta(t, 5000-FinalDistance, b.FinalPos.X, 1e-3)
	assert.InDelta(t, 250, b.FinalPos.Z, 1e-3)
	assert.Equal(t, physics.V2(1, 0), b.Direction)
	assert.InDelta(t, FinalDistance*FinalDistance, b.ZoneReference(), 1e-3)

	// leg 0 wraps: flies from D (0,5000) south to A
	a := r.Legs[0]
	assert.InDelta(t, TransitionDistance, a.TransitionPos.Y, 1e-3)
}

func TestBuildExplicitPoints(t *testing.T) {
	rc := squareRoute()
	rc.Legs[2].Transition = []float64{1, 2, 3}
	rc.Legs[2].Final = []float64{4, 5, 6}
	rc.Legs[2].Initial = []float64{7, 8, 9}
	r, err := Build(rc)
	require.NoError(t, err)
	assert.Equal(t, physics.V3(1, 2, 3), r.Legs[2].TransitionPos)
	assert.Equal(t, physics.V3(4, 5, 6), r.Legs[2].FinalPos)
	assert.Equal(t, physics.V3(7, 8, 9), r.Legs[2].InitialPos)
}

func TestNetworkLegs(t *testing.T) {
	n := newNetwork(t)

	t.Run("increment wraps", func(t *testing.T) {
		leg, err := n.IncrementLeg(7, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, leg)
		leg, err = n.IncrementLeg(7, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, leg)
	})

	t.Run("decrement wraps", func(t *testing.T) {
		leg, err := n.DecrementLeg(7, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, leg)
	})

	t.Run("route length", func(t *testing.T) {
		l, err := n.RouteLen(7)
		require.NoError(t, err)
		assert.Equal(t, 4, l)
	})

	t.Run("unknown route", func(t *testing.T) {
		_, err := n.ApproachFor(99, 0)
		assert.ErrorIs(t, err, ErrUnknownRoute)
		_, err = n.IncrementLeg(99, 0)
		assert.ErrorIs(t, err, ErrUnknownRoute)
		_, err = n.RouteLen(99)
		assert.ErrorIs(t, err, ErrUnknownRoute)
		_, err = n.NearestLeg(99, physics.V2(0, 0))
		assert.ErrorIs(t, err, ErrUnknownRoute)
	})

	t.Run("unknown leg", func(t *testing.T) {
		_, err := n.ApproachFor(7, 4)
		assert.ErrorIs(t, err, ErrUnknownLeg)
		_, err = n.ApproachFor(7, -1)
		assert.ErrorIs(t, err, ErrUnknownLeg)
		_, err = n.IncrementLeg(7, 12)
		assert.ErrorIs(t, err, ErrUnknownLeg)
	})

	t.Run("docking duration", func(t *testing.T) {
		assert.Equal(t, float32(60), n.DockingDuration())
	})
}

func TestNearestLeg(t *testing.T) {
	n := newNetwork(t)
	tests := []struct {
		pos  physics.Vec2
		want int
	}{
		{physics.V2(100, 100), 0},
		{physics.V2(4800, 50), 1},
		{physics.V2(5100, 4900), 2},
		{physics.V2(-50, 5200), 3},
	}
	for _, tt := range tests {
		leg, err := n.NearestLeg(7, tt.pos)
		require.NoError(t, err)
		assert.Equal(t, tt.want, leg, "pos %v", tt.pos)
	}
}

func TestNewNetworkRejects(t *testing.T) {
	r, err := Build(squareRoute())
	require.NoError(t, err)

	_, err = NewNetwork([]Route{r, r}, 60)
	assert.Error(t, err)

	short := Route{ID: 1, Legs: r.Legs[:1]}
	_, err = NewNetwork([]Route{short}, 60)
	assert.Error(t, err)

	zone := Route{ID: 2, Model: ModelZone, Legs: r.Legs}
	_, err = NewNetwork([]Route{zone}, 60)
	assert.Error(t, err)
}

func TestLegacy(t *testing.T) {
	rc := squareRoute()
	rc.Model = "zone"
	rc.Legs = rc.Legs[:2]
	r, err := Build(rc)
	require.NoError(t, err)
	n, err := NewNetwork([]Route{r}, 30)
	require.NoError(t, err)

	l, err := n.Legacy(7)
	require.NoError(t, err)
	assert.Equal(t, "A", l.Destination(0).SiteName)
	assert.Equal(t, "B", l.Origin(0).SiteName)
	assert.Equal(t, "B", l.Destination(1).SiteName)
	assert.Equal(t, "A", l.Origin(1).SiteName)
	assert.Equal(t, r, l.Route())

	model, err := n.Model(7)
	require.NoError(t, err)
	assert.Equal(t, ModelZone, model)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Airships: config.AirshipsConfig{DockingDurationSecs: 45},
		Routes:   []config.RouteConfig{squareRoute()},
	}
	n, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, float32(45), n.DockingDuration())
	require.Len(t, n.Routes(), 1)
	assert.Equal(t, 7, n.Routes()[0].ID)
}
