package simulation

import (
	"math"

	"github.com/yegors/airship-atc/internal/config"
	"github.com/yegors/airship-atc/internal/physics"
)

// Terrain is a smooth rolling ground surface
type Terrain struct {
	Base       float32
	Amplitude  float32
	Wavelength float32
}

// NewTerrain builds the terrain described by the world configuration
func NewTerrain(cfg config.WorldConfig) Terrain {
	return Terrain{
		Base:       float32(cfg.TerrainBase),
		Amplitude:  float32(cfg.TerrainAmplitude),
		Wavelength: float32(cfg.TerrainWavelength),
	}
}

// Alt returns the ground altitude at p
func (t Terrain) Alt(p physics.Vec2) float32 {
	if t.Amplitude == 0 || t.Wavelength <= 0 {
		return t.Base
	}
	k := 2 * math.Pi / float64(t.Wavelength)
	return t.Base + t.Amplitude*float32(math.Sin(k*float64(p.X))*math.Cos(k*float64(p.Y)))
}
