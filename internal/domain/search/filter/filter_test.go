package filter

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/discovery/internal/domain/geo"
	"github.com/kailas-cloud/discovery/internal/domain/point"
)

func mustConstraint(t *testing.T, lat, lon, km float64) geo.Constraint {
	t.Helper()
	c, err := geo.NewConstraint(lat, lon, km)
	if err != nil {
		t.Fatalf("geo.NewConstraint: %v", err)
	}
	return c
}

func TestCompile_NoLocation(t *testing.T) {
	expr, err := NewCompiler("").Compile(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !expr.IsEmpty() {
		t.Errorf("expected empty expression, got %d conditions", len(expr.Must()))
	}
	if !expr.Matches(point.Payload{}) {
		t.Error("empty expression should match everything")
	}
}

func TestCompile_GeoRadius(t *testing.T) {
	c := mustConstraint(t, 52.52, 13.405, 1.5)
	expr, err := NewCompiler("cafe.location").Compile(&c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(expr.Must()) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(expr.Must()))
	}
	cond := expr.Must()[0]
	if cond.Key() != "cafe.location" || !cond.IsGeoRadius() {
		t.Fatalf("unexpected condition: key=%q geo=%v", cond.Key(), cond.IsGeoRadius())
	}
	g := cond.GeoRadius()
	if g.Latitude() != 52.52 || g.Longitude() != 13.405 || g.RadiusMeters() != 1500 {
		t.Errorf("geo = (%v, %v, %v)", g.Latitude(), g.Longitude(), g.RadiusMeters())
	}
}

func TestCompiler_DefaultKey(t *testing.T) {
	if k := NewCompiler("").LocationKey(); k != DefaultLocationKey {
		t.Errorf("LocationKey() = %q, want %q", k, DefaultLocationKey)
	}
}

func TestExpression_Matches(t *testing.T) {
	c := mustConstraint(t, 52.5200, 13.4050, 1)
	expr, _ := NewCompiler("cafe.location").Compile(&c)

	near := point.Payload{"cafe": map[string]any{"location": map[string]any{"lat": 52.5205, "lon": 13.4060}}}
	far := point.Payload{"cafe": map[string]any{"location": map[string]any{"lat": 48.1351, "lon": 11.5820}}}
	missing := point.Payload{"cafe": map[string]any{"name": "no location"}}

	if !expr.Matches(near) {
		t.Error("near point should match")
	}
	if expr.Matches(far) {
		t.Error("far point should not match")
	}
	if expr.Matches(missing) {
		t.Error("point without location should not match")
	}
}

func TestNewGeoRadius_EmptyKey(t *testing.T) {
	_, err := NewGeoRadius("", mustConstraint(t, 0, 0, 1))
	if err == nil || !strings.Contains(err.Error(), "key is required") {
		t.Fatalf("expected key error, got %v", err)
	}
}

func TestNewExpression_TooMany(t *testing.T) {
	cond, _ := NewGeoRadius("loc", mustConstraint(t, 0, 0, 1))
	conds := make([]Condition, MaxConditions+1)
	for i := range conds {
		conds[i] = cond
	}
	if _, err := NewExpression(conds...); err == nil {
		t.Fatal("expected error for too many conditions")
	}
}
