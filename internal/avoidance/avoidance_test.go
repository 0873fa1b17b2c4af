package avoidance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/airship-atc/internal/physics"
	"github.com/yegors/airship-atc/internal/tracking"
)

// smallThresholds scales the default thresholds down to a few tens of units
func smallThresholds() Thresholds {
	return Thresholds{
		CloseToDock:   20 * 20,
		VeryClose:     20 * 20,
		HoldMargin:    5 * 5,
		SomewhatClose: 50 * 50,
		PassingClose:  35 * 35,
	}
}

type fixedModel Kind

func (m fixedModel) Name() string                  { return "fixed" }
func (m fixedModel) Classify(Proximity, Kind) Kind { return Kind(m) }

func vec(x, y, z float32) *physics.Vec3 {
	v := physics.V3(x, y, z)
	return &v
}

func TestPredecessorModel(t *testing.T) {
	m := NewPredecessorModel(smallThresholds())
	dock := physics.V3(0, 0, 0)

	tests := []struct {
		name    string
		self    physics.Vec3
		pred    physics.Vec3
		current Kind
		want    Kind
	}{
		{"near dock and very close", physics.V3(0, -25, 0), physics.V3(0, -10, 0), KindNone, KindHold},
		{"near dock and somewhat close", physics.V3(0, -25, 0), physics.V3(0, 5, 0), KindNone, KindSlowDown},
		{"near dock and far", physics.V3(0, -60, 0), physics.V3(0, 5, 0), KindNone, KindNone},
		{"away from dock and passing", physics.V3(0, 60, 0), physics.V3(0, 30, 0), KindNone, KindSlowDown},
		{"away from dock and far", physics.V3(0, 90, 0), physics.V3(0, 30, 0), KindNone, KindNone},
		{"inside hold margin from none", physics.V3(20, 3, 0), physics.V3(0, 0, 0), KindNone, KindSlowDown},
		{"inside hold margin while holding", physics.V3(20, 3, 0), physics.V3(0, 0, 0), KindHold, KindHold},
		{"outside hold margin while holding", physics.V3(21, 3, 0), physics.V3(0, 0, 0), KindHold, KindSlowDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Classify(Proximity{Self: tt.self, Predecessor: tt.pred, DockPos: dock}, tt.current)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, 225.0*225.0, th.CloseToDock)
	assert.Equal(t, 400.0*400.0, th.VeryClose)
	assert.Equal(t, 50.0*50.0, th.HoldMargin)
	assert.Equal(t, 1000.0*1000.0, th.SomewhatClose)
	assert.Equal(t, 700.0*700.0, th.PassingClose)
}

func TestZoneModel(t *testing.T) {
	dock := physics.V3(0, 0, 0)
	self := physics.V3(0, 500, 0)

	t.Run("first sample is none then docked holds", func(t *testing.T) {
		m := NewZoneModel(100, 0)
		in := Proximity{Self: self, Predecessor: physics.V3(0, 3, 0), DockPos: dock}
		assert.Equal(t, KindNone, m.Classify(in, KindNone))
		assert.Equal(t, KindHold, m.Classify(in, KindNone))
	})

	t.Run("approaching inside my distance slows", func(t *testing.T) {
		m := NewZoneModel(100, 0)
		m.Classify(Proximity{Self: self, Predecessor: physics.V3(0, 400, 0), DockPos: dock}, KindNone)
		got := m.Classify(Proximity{Self: self, Predecessor: physics.V3(0, 300, 0), DockPos: dock}, KindNone)
		assert.Equal(t, KindSlowDown, got)
	})

	t.Run("departing inside reference slows", func(t *testing.T) {
		m := NewZoneModel(100, 100*100)
		m.Classify(Proximity{Self: self, Predecessor: physics.V3(0, 40, 0), DockPos: dock}, KindNone)
		got := m.Classify(Proximity{Self: self, Predecessor: physics.V3(0, 60, 0), DockPos: dock}, KindNone)
		assert.Equal(t, KindSlowDown, got)
	})

	t.Run("departing outside reference is clear", func(t *testing.T) {
		m := NewZoneModel(100, 100*100)
		m.Classify(Proximity{Self: self, Predecessor: physics.V3(0, 300, 0), DockPos: dock}, KindNone)
		got := m.Classify(Proximity{Self: self, Predecessor: physics.V3(0, 350, 0), DockPos: dock}, KindNone)
		assert.Equal(t, KindNone, got)
	})

	t.Run("new dock reseeds", func(t *testing.T) {
		m := NewZoneModel(100, 0)
		in := Proximity{Self: self, Predecessor: physics.V3(0, 3, 0), DockPos: dock}
		m.Classify(in, KindNone)
		in.DockPos = physics.V3(1000, 0, 0)
		assert.Equal(t, KindNone, m.Classify(in, KindNone))
	})
}

func TestEvaluateScenario(t *testing.T) {
	e := NewEngine(DefaultConfig())
	model := NewPredecessorModel(smallThresholds())
	s := NewState(5)
	s.SpeedFactor = 0.8

	in := Inputs{
		Self:        physics.V3(0, -25, 0),
		DockPos:     physics.V3(0, 0, 0),
		Predecessor: vec(0, -10, 0),
		Baseline:    0.8,
		Rand:        rand.New(rand.NewSource(1)),
	}

	d := e.Evaluate(&s, in, model, Params{})
	require.Equal(t, KindHold, d.Mode.Kind)
	assert.True(t, d.Changed)
	assert.Equal(t, KindNone, d.Previous)
	assert.True(t, s.DidHold)
	assert.False(t, s.HoldAnnounced)
	assert.GreaterOrEqual(t, s.HoldTimer, float32(4))
	assert.Less(t, s.HoldTimer, float32(7))
	assert.Equal(t, in.Self, d.Mode.HoldPos)
	assert.InDelta(t, 1.0, d.Mode.HoldDir.Y, 1e-6)

	in.Predecessor = vec(0, 5, 0)
	d = e.Evaluate(&s, in, model, Params{})
	require.Equal(t, KindSlowDown, d.Mode.Kind)
	assert.Equal(t, uint32(1), s.SlowCount)
	assert.InDelta(t, 0.24, s.SpeedFactor, 1e-6)

	in.Predecessor = vec(0, 35, 0)
	d = e.Evaluate(&s, in, model, Params{})
	require.Equal(t, KindNone, d.Mode.Kind)
	assert.True(t, d.Changed)
	assert.InDelta(t, 0.8, d.SpeedFactor, 1e-6)
	// counters carry over to dock bookkeeping
	assert.True(t, s.DidHold)
	assert.Equal(t, uint32(1), s.SlowCount)
}

func TestEvaluateHysteresis(t *testing.T) {
	e := NewEngine(DefaultConfig())
	model := NewPredecessorModel(smallThresholds())

	t.Run("hold side effects fire once", func(t *testing.T) {
		s := NewState(5)
		in := Inputs{
			Self:        physics.V3(0, -25, 0),
			Predecessor: vec(0, -10, 0),
			Baseline:    1,
			Rand:        rand.New(rand.NewSource(7)),
		}
		e.Evaluate(&s, in, model, Params{})
		require.Equal(t, KindHold, s.Mode.Kind)
		holdPos := s.Mode.HoldPos

		s.HoldTimer = 1.5
		s.HoldAnnounced = true
		s.DidHold = false
		in.Self = physics.V3(0, -24, 0)
		d := e.Evaluate(&s, in, model, Params{})

		assert.Equal(t, KindHold, d.Mode.Kind)
		assert.False(t, d.Changed)
		assert.Equal(t, float32(1.5), s.HoldTimer)
		assert.True(t, s.HoldAnnounced)
		assert.False(t, s.DidHold)
		assert.Equal(t, holdPos, s.Mode.HoldPos)
	})

	t.Run("slowdown counts once", func(t *testing.T) {
		s := NewState(5)
		in := Inputs{
			Self:        physics.V3(0, -25, 0),
			Predecessor: vec(0, 5, 0),
			Baseline:    1,
		}
		for i := 0; i < 4; i++ {
			e.Evaluate(&s, in, model, Params{})
		}
		assert.Equal(t, KindSlowDown, s.Mode.Kind)
		assert.Equal(t, uint32(1), s.SlowCount)
		assert.InDelta(t, 0.3, s.SpeedFactor, 1e-6)
	})

	t.Run("no predecessor is clear", func(t *testing.T) {
		s := NewState(5)
		s.Mode = SlowDown()
		d := e.Evaluate(&s, Inputs{Baseline: 0.4}, model, Params{})
		assert.Equal(t, KindNone, d.Mode.Kind)
		assert.InDelta(t, 0.4, s.SpeedFactor, 1e-6)
	})
}

func TestEvaluateStuck(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := NewState(5)
	s.EnableTrackers()

	in := Inputs{
		Self:        physics.V3(1000, 1000, 500),
		Target:      physics.V2(1000, 2000),
		Predecessor: vec(1000, 1010, 500),
		Cruise:      true,
		Baseline:    1,
	}

	var d Decision
	for i := 0; i < tracking.MaxPositionHistory; i++ {
		in.Time = float64(i)
		d = e.Evaluate(&s, in, fixedModel(KindSlowDown), Params{})
		if i < tracking.MaxPositionHistory-1 {
			assert.Equal(t, KindSlowDown, d.Mode.Kind)
		}
	}
	require.Equal(t, KindStuck, d.Mode.Kind)
	assert.InDelta(t, 900, d.Mode.BackoutTarget.Y, 1e-3)

	// reach both waypoints
	in.Self = d.Mode.BackoutTarget
	d = e.Evaluate(&s, in, fixedModel(KindSlowDown), Params{})
	require.Equal(t, KindStuck, d.Mode.Kind)
	in.Self = d.Mode.BackoutTarget
	d = e.Evaluate(&s, in, fixedModel(KindSlowDown), Params{})
	require.Equal(t, KindStuck, d.Mode.Kind)
	assert.InDelta(t, 700, d.Mode.BackoutTarget.Z, 1e-3)
	in.Self = d.Mode.BackoutTarget
	e.Evaluate(&s, in, fixedModel(KindSlowDown), Params{})

	// exhausted route hands control back to the model
	in.Self = in.Self.Add(physics.V3(0, 100, 0))
	d = e.Evaluate(&s, in, fixedModel(KindNone), Params{})
	assert.Equal(t, KindNone, d.Mode.Kind)
	assert.LessOrEqual(t, s.Position.HistoryLen(), 1)
}

func TestEvaluateHoldIsNotStuck(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := NewState(5)
	s.EnableTrackers()

	in := Inputs{
		Self:        physics.V3(1000, 1000, 500),
		Target:      physics.V2(1000, 2000),
		Predecessor: vec(1000, 1010, 500),
		Cruise:      true,
		Baseline:    1,
	}

	// stationary samples from before the hold starts
	for i := 0; i < tracking.MaxPositionHistory-2; i++ {
		in.Time = float64(i)
		e.Evaluate(&s, in, fixedModel(KindNone), Params{})
	}

	for i := 0; i < 40; i++ {
		in.Time = float64(tracking.MaxPositionHistory + i)
		d := e.Evaluate(&s, in, fixedModel(KindHold), Params{})
		require.Equal(t, KindHold, d.Mode.Kind, "evaluation %d", i)
	}
	assert.Equal(t, physics.V3(1000, 1000, 500), s.Mode.HoldPos)
	assert.Equal(t, 0, s.Position.HistoryLen())

	// released from the hold, detection starts from a clean history
	d := e.Evaluate(&s, in, fixedModel(KindNone), Params{})
	assert.Equal(t, KindNone, d.Mode.Kind)
	assert.Equal(t, 0, s.Position.HistoryLen())
	e.Evaluate(&s, in, fixedModel(KindNone), Params{})
	assert.Equal(t, 1, s.Position.HistoryLen())
}

func TestEvaluateSpeedMatching(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg)

	run := func(s *State, params Params, selfSpeed float32) Decision {
		var d Decision
		for i := 0; i < 5; i++ {
			in := Inputs{
				Time:        float64(i),
				Self:        physics.V3(selfSpeed*float32(i), 0, 500),
				Predecessor: vec(1000+24*float32(i), 0, 500),
				Cruise:      true,
				Baseline:    1,
			}
			d = e.Evaluate(s, in, fixedModel(KindNone), params)
		}
		return d
	}

	t.Run("matches cruising predecessor", func(t *testing.T) {
		s := NewState(cfg.AverageWindow)
		s.EnableTrackers()
		d := run(&s, Params{}, 20)
		assert.Equal(t, 4, s.PredecessorAverage.Count())
		assert.InDelta(t, e.MatchFactor(24), d.SpeedFactor, 1e-3)
		assert.InDelta(t, 1.0, d.SpeedFactor, 0.1)
	})

	t.Run("stationary self resets to baseline", func(t *testing.T) {
		s := NewState(cfg.AverageWindow)
		s.EnableTrackers()
		s.SpeedFactor = 0.5
		d := run(&s, Params{}, 0)
		assert.InDelta(t, 1.0, d.SpeedFactor, 1e-6)
	})

	t.Run("override wins", func(t *testing.T) {
		s := NewState(cfg.AverageWindow)
		s.EnableTrackers()
		d := run(&s, Params{Override: StaticOverride(0.5)}, 20)
		assert.InDelta(t, 0.5, d.SpeedFactor, 1e-6)
		assert.NoError(t, d.OverrideErr)
	})

	t.Run("unset shared override falls back silently", func(t *testing.T) {
		s := NewState(cfg.AverageWindow)
		s.EnableTrackers()
		d := run(&s, Params{Override: NewSharedOverride(nil)}, 20)
		assert.InDelta(t, e.MatchFactor(24), d.SpeedFactor, 1e-3)
		assert.NoError(t, d.OverrideErr)
	})

	t.Run("contended override falls back", func(t *testing.T) {
		s := NewState(cfg.AverageWindow)
		s.EnableTrackers()
		v := float32(0.2)
		o := NewSharedOverride(&v)
		o.mu.Lock()
		d := run(&s, Params{Override: o}, 20)
		o.mu.Unlock()
		assert.ErrorIs(t, d.OverrideErr, ErrOverrideUnavailable)
		assert.InDelta(t, e.MatchFactor(24), d.SpeedFactor, 1e-3)
	})

	t.Run("slow predecessor is not averaged", func(t *testing.T) {
		s := NewState(cfg.AverageWindow)
		s.EnableTrackers()
		s.SpeedFactor = 0.7
		for i := 0; i < 5; i++ {
			in := Inputs{
				Time:        float64(i),
				Self:        physics.V3(20*float32(i), 0, 500),
				Predecessor: vec(1000+5*float32(i), 0, 500),
				Cruise:      true,
				Baseline:    1,
			}
			e.Evaluate(&s, in, fixedModel(KindNone), Params{})
		}
		assert.Equal(t, 0, s.PredecessorAverage.Count())
		// only the first, stationary sample touched it
		assert.InDelta(t, 1.0, s.SpeedFactor, 1e-6)
	})
}

func TestSharedOverride(t *testing.T) {
	o := NewSharedOverride(nil)
	_, err := o.SpeedOverride()
	assert.ErrorIs(t, err, ErrNoOverride)

	o.Set(0.6)
	v, err := o.SpeedOverride()
	require.NoError(t, err)
	assert.Equal(t, float32(0.6), v)
	got, ok := o.Get()
	assert.True(t, ok)
	assert.Equal(t, float32(0.6), got)

	o.Clear()
	_, ok = o.Get()
	assert.False(t, ok)

	var nilOverride *SharedOverride
	_, err = nilOverride.SpeedOverride()
	assert.ErrorIs(t, err, ErrNoOverride)
}

func TestMatchFactor(t *testing.T) {
	e := NewEngine(DefaultConfig())
	assert.InDelta(t, -2.0173, e.MatchFactor(0), 1e-9)
	assert.Less(t, e.MatchFactor(5), 0.0)
	assert.InDelta(t, 1.037, e.MatchFactor(24), 1e-2)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "none", None().String())
	assert.Equal(t, "slow_down", SlowDown().String())
	assert.Equal(t, "hold(1,2,3)", Hold(physics.V3(1, 2, 3), physics.V2(0, 1)).String())
	assert.Equal(t, "stuck(4,5,6)", Stuck(physics.V3(4, 5, 6)).String())
}
