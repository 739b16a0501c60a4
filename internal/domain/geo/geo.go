package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean radius of Earth used for Haversine distance.
const EarthRadiusMeters = 6_371_000.0

// MaxRadiusKm caps a radius constraint at half the Earth's circumference.
const MaxRadiusKm = 20_038.0

// Constraint restricts results to points within RadiusKm of a center.
type Constraint struct {
	latitude  float64
	longitude float64
	radiusKm  float64
}

// NewConstraint validates and creates a geo constraint.
func NewConstraint(lat, lon, radiusKm float64) (Constraint, error) {
	if !ValidateCoordinates(lat, lon) {
		return Constraint{}, fmt.Errorf("coordinates out of range: lat=%g lon=%g", lat, lon)
	}
	if math.IsNaN(radiusKm) || radiusKm <= 0 {
		return Constraint{}, fmt.Errorf("radius_km must be positive, got %g", radiusKm)
	}
	if radiusKm > MaxRadiusKm {
		return Constraint{}, fmt.Errorf("radius_km must not exceed %g, got %g", MaxRadiusKm, radiusKm)
	}
	return Constraint{latitude: lat, longitude: lon, radiusKm: radiusKm}, nil
}

// Latitude returns the center latitude in degrees.
func (c Constraint) Latitude() float64 { return c.latitude }

// Longitude returns the center longitude in degrees.
func (c Constraint) Longitude() float64 { return c.longitude }

// RadiusKm returns the radius in kilometers.
func (c Constraint) RadiusKm() float64 { return c.radiusKm }

// RadiusMeters returns the radius in meters, the unit vector databases expect.
func (c Constraint) RadiusMeters() float64 { return c.radiusKm * 1000 }

// Contains reports whether a point lies within the constraint.
func (c Constraint) Contains(lat, lon float64) bool {
	return Haversine(c.latitude, c.longitude, lat, lon) <= c.RadiusMeters()
}

// Haversine returns the great-circle distance in meters between two points
// specified by latitude and longitude in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
