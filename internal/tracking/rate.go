package tracking

import "github.com/yegors/airship-atc/internal/physics"

// RateTracker estimates horizontal speed from two successive samples
type RateTracker struct {
	lastPos  *physics.Vec2
	lastTime float64
}

// Update records a sample and returns the speed since the previous one.
// Zero is returned for the first sample or when time has not advanced.
func (r *RateTracker) Update(pos physics.Vec2, time float64) float32 {
	var speed float32
	if r.lastPos != nil {
		if dt := time - r.lastTime; dt > 0 {
			speed = float32(float64(pos.Distance(*r.lastPos)) / dt)
		}
	}
	p := pos
	r.lastPos = &p
	r.lastTime = time
	return speed
}

// Reset forgets the previous sample
func (r *RateTracker) Reset() {
	r.lastPos = nil
	r.lastTime = 0
}
