package physics

import "math"

// Vec2 is a horizontal world vector. X is east, Y is north.
type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Vec3 is a world position. Z is up.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// UnitZ points straight up
var UnitZ = Vec3{Z: 1}

func V2(x, y float32) Vec2    { return Vec2{X: x, Y: y} }
func V3(x, y, z float32) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (a Vec2) Add(b Vec2) Vec2        { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2        { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Scale(s float32) Vec2   { return Vec2{a.X * s, a.Y * s} }
func (a Vec2) Neg() Vec2              { return Vec2{-a.X, -a.Y} }
func (a Vec2) WithZ(z float32) Vec3   { return Vec3{a.X, a.Y, z} }
func (a Vec2) IsZero() bool           { return a.X == 0 && a.Y == 0 }
func (a Vec2) Length() float32        { return float32(math.Sqrt(a.LengthSquared())) }
func (a Vec2) LengthSquared() float64 { return float64(a.X)*float64(a.X) + float64(a.Y)*float64(a.Y) }

// DistanceSquared is computed in float64 so large world coordinates keep
// their precision when compared against squared thresholds.
func (a Vec2) DistanceSquared(b Vec2) float64 {
	dx := float64(a.X) - float64(b.X)
	dy := float64(a.Y) - float64(b.Y)
	return dx*dx + dy*dy
}

func (a Vec2) Distance(b Vec2) float32 { return float32(math.Sqrt(a.DistanceSquared(b))) }

// Normalized returns the unit vector and false when a has no usable length.
func (a Vec2) Normalized() (Vec2, bool) {
	l := a.Length()
	if l < 1e-6 || math.IsNaN(float64(l)) {
		return Vec2{}, false
	}
	return a.Scale(1 / l), true
}

// NormalizedOr is Normalized with a fallback for degenerate vectors.
func (a Vec2) NormalizedOr(fallback Vec2) Vec2 {
	if n, ok := a.Normalized(); ok {
		return n
	}
	return fallback
}

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) XY() Vec2             { return Vec2{a.X, a.Y} }
func (a Vec3) WithZ(z float32) Vec3 { return Vec3{a.X, a.Y, z} }
func (a Vec3) Length() float32 {
	return float32(math.Sqrt(float64(a.X)*float64(a.X) + float64(a.Y)*float64(a.Y) + float64(a.Z)*float64(a.Z)))
}

func (a Vec3) DistanceSquared(b Vec3) float64 {
	dx := float64(a.X) - float64(b.X)
	dy := float64(a.Y) - float64(b.Y)
	dz := float64(a.Z) - float64(b.Z)
	return dx*dx + dy*dy + dz*dz
}

func (a Vec3) Distance(b Vec3) float32 { return float32(math.Sqrt(a.DistanceSquared(b))) }
