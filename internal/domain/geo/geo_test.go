package geo

import (
	"math"
	"testing"
)

func almost(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestHaversine_SamePoint(t *testing.T) {
	if d := Haversine(52.52, 13.405, 52.52, 13.405); d != 0 {
		t.Fatalf("distance to self = %f, want 0", d)
	}
}

func TestHaversine_BerlinMunich(t *testing.T) {
	// ~504 km great-circle distance
	d := Haversine(52.5200, 13.4050, 48.1351, 11.5820)
	if !almost(d, 504_000, 5_000) {
		t.Fatalf("Berlin-Munich = %.0f m, want ~504 km", d)
	}
}

func TestHaversine_QuarterMeridian(t *testing.T) {
	d := Haversine(0, 0, 90, 0)
	want := math.Pi / 2 * EarthRadiusMeters
	if !almost(d, want, 1) {
		t.Fatalf("equator to pole = %f, want %f", d, want)
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.1, 0, false},
		{0, -180.5, false},
	}
	for _, tt := range tests {
		if got := ValidateCoordinates(tt.lat, tt.lon); got != tt.want {
			t.Errorf("ValidateCoordinates(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
		}
	}
}

func TestNewConstraint_Valid(t *testing.T) {
	c, err := NewConstraint(52.52, 13.405, 2.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Latitude() != 52.52 || c.Longitude() != 13.405 {
		t.Errorf("center = (%v, %v)", c.Latitude(), c.Longitude())
	}
	if c.RadiusMeters() != 2500 {
		t.Errorf("RadiusMeters() = %v, want 2500", c.RadiusMeters())
	}
}

func TestNewConstraint_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		lat, lon, rad float64
	}{
		{"lat out of range", 91, 0, 1},
		{"lon out of range", 0, 181, 1},
		{"zero radius", 0, 0, 0},
		{"negative radius", 0, 0, -1},
		{"nan radius", 0, 0, math.NaN()},
		{"radius too large", 0, 0, MaxRadiusKm + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewConstraint(tt.lat, tt.lon, tt.rad); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestConstraint_Contains(t *testing.T) {
	c, _ := NewConstraint(52.5200, 13.4050, 1)
	if !c.Contains(52.5205, 13.4060) {
		t.Error("point ~90 m away should be inside 1 km")
	}
	if c.Contains(52.5300, 13.4050) {
		t.Error("point ~1.1 km away should be outside 1 km")
	}
}
