package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	MetersPerDegreeLat = 111320.0 // Length of one degree of latitude
	FeetPerMeter       = 3.28084
)

// ------------------------------------------------------------------------------------------------
// NAVIGATION
// ------------------------------------------------------------------------------------------------

// HeadingToVector converts a compass heading (degrees) and magnitude to X/Y components
func HeadingToVector(headingDeg float64, magnitude float64) Vec2 {
	rad := (90 - headingDeg) * math.Pi / 180 // Convert compass heading to math angle
	return Vec2{
		X: float32(magnitude * math.Cos(rad)),
		Y: float32(magnitude * math.Sin(rad)),
	}
}

// VectorToHeading returns the compass heading (0 = north, clockwise) of v.
// A zero vector reads as north.
func VectorToHeading(v Vec2) float64 {
	if v.IsZero() {
		return 0
	}
	heading := 90 - math.Atan2(float64(v.Y), float64(v.X))*180/math.Pi
	return NormalizeHeading(heading)
}

// NormalizeHeading wraps a heading into [0, 360)
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h -= 360
	}
	return h
}

// Compass is one of the eight compass points
type Compass int

const (
	North Compass = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var compassNames = [...]string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}

func (c Compass) String() string {
	if c < North || c > NorthWest {
		return "north"
	}
	return compassNames[c]
}

// CompassFromHeading returns the nearest compass point for a heading in degrees
func CompassFromHeading(headingDeg float64) Compass {
	idx := int(math.Floor(NormalizeHeading(headingDeg)/45+0.5)) % 8
	return Compass(idx)
}

// CompassFromDir returns the nearest compass point for a direction vector
func CompassFromDir(v Vec2) Compass {
	return CompassFromHeading(VectorToHeading(v))
}

// ------------------------------------------------------------------------------------------------
// GEOREFERENCE
// ------------------------------------------------------------------------------------------------

// GeoRef ties the world origin to a point on the earth so world headings can be
// reported as magnetic headings. World units are meters.
type GeoRef struct {
	OriginLat float64
	OriginLon float64
}

// ToGeodetic converts a world position to latitude/longitude/altitude(ft)
// using a flat-earth approximation around the origin.
func (g GeoRef) ToGeodetic(p Vec3) (lat, lon, altFt float64) {
	lat = g.OriginLat + float64(p.Y)/MetersPerDegreeLat
	cosLat := math.Cos(g.OriginLat * math.Pi / 180)
	if math.Abs(cosLat) < 1e-9 {
		cosLat = 1e-9
	}
	lon = g.OriginLon + float64(p.X)/(MetersPerDegreeLat*cosLat)
	altFt = float64(p.Z) * FeetPerMeter
	return lat, lon, altFt
}

// MagneticHeading returns the magnetic heading of a world direction observed at p
func (g GeoRef) MagneticHeading(p Vec3, dir Vec2, date time.Time) float64 {
	lat, lon, altFt := g.ToGeodetic(p)
	variation := CalculateMagneticVariation(lat, lon, altFt, date)
	return NormalizeHeading(VectorToHeading(dir) - variation)
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	// Convert altitude to meters for WMM
	altM := altFt / FeetPerMeter

	// Create location from Geodetic coordinates
	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	// Calculate magnetic field
	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Return 0 for safety if calculation fails
		return 0.0
	}

	return mag.D() // Declination
}
