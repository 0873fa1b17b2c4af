package avoidance

import (
	"fmt"

	"github.com/yegors/airship-atc/internal/physics"
)

// Kind identifies the active avoidance behavior
type Kind int

const (
	KindNone Kind = iota
	KindHold
	KindSlowDown
	KindStuck
)

func (k Kind) String() string {
	switch k {
	case KindHold:
		return "hold"
	case KindSlowDown:
		return "slow_down"
	case KindStuck:
		return "stuck"
	default:
		return "none"
	}
}

// MarshalText lets Kind be used as a JSON value and map key
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Mode is the avoidance state of one airship. Only the payload fields that
// belong to Kind are meaningful.
type Mode struct {
	Kind          Kind         `json:"kind"`
	HoldPos       physics.Vec3 `json:"hold_pos"`
	HoldDir       physics.Vec2 `json:"hold_dir"`
	BackoutTarget physics.Vec3 `json:"backout_target"`
}

// None is normal flight
func None() Mode { return Mode{Kind: KindNone} }

// Hold keeps the airship at pos facing dir
func Hold(pos physics.Vec3, dir physics.Vec2) Mode {
	return Mode{Kind: KindHold, HoldPos: pos, HoldDir: dir}
}

// SlowDown keeps flying the route at reduced speed
func SlowDown() Mode { return Mode{Kind: KindSlowDown} }

// Stuck flies to target to get clear of an obstacle
func Stuck(target physics.Vec3) Mode {
	return Mode{Kind: KindStuck, BackoutTarget: target}
}

func (m Mode) String() string {
	switch m.Kind {
	case KindHold:
		return fmt.Sprintf("hold(%.0f,%.0f,%.0f)", m.HoldPos.X, m.HoldPos.Y, m.HoldPos.Z)
	case KindStuck:
		return fmt.Sprintf("stuck(%.0f,%.0f,%.0f)", m.BackoutTarget.X, m.BackoutTarget.Y, m.BackoutTarget.Z)
	default:
		return m.Kind.String()
	}
}
