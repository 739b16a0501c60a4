package filter

import (
	"fmt"

	"github.com/kailas-cloud/discovery/internal/domain/geo"
	"github.com/kailas-cloud/discovery/internal/domain/point"
)

// MaxConditions is the maximum number of conditions per expression.
const MaxConditions = 32

// DefaultLocationKey is the payload path holding an item's coordinates.
const DefaultLocationKey = "cafe.location"

// Expression is a pre-filter applied by the index before ranking.
// All conditions must hold. The zero value filters nothing.
type Expression struct {
	must []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must ...Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	return Expression{must: must}, nil
}

// Must returns the conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Matches evaluates the expression against a payload. Used by backends without native filtering.
func (e Expression) Matches(p point.Payload) bool {
	for _, c := range e.must {
		if !c.Matches(p) {
			return false
		}
	}
	return true
}

// Condition is a single filter clause on a payload field.
type Condition struct {
	key string
	geo *GeoRadius
}

// GeoRadius keeps points within a radius of a center.
type GeoRadius struct {
	constraint geo.Constraint
}

// NewGeoRadius creates a geo radius condition on the payload field key.
func NewGeoRadius(key string, c geo.Constraint) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, geo: &GeoRadius{constraint: c}}, nil
}

// Key returns the payload field path.
func (c Condition) Key() string { return c.key }

// GeoRadius returns the geo radius clause, or nil.
func (c Condition) GeoRadius() *GeoRadius { return c.geo }

// IsGeoRadius reports whether this is a geo radius condition.
func (c Condition) IsGeoRadius() bool { return c.geo != nil }

// Matches evaluates the condition against a payload. Points without the field never match.
func (c Condition) Matches(p point.Payload) bool {
	if c.geo == nil {
		return true
	}
	lat, lon, ok := p.GeoPoint(c.key)
	return ok && c.geo.constraint.Contains(lat, lon)
}

// Latitude returns the center latitude.
func (g *GeoRadius) Latitude() float64 { return g.constraint.Latitude() }

// Longitude returns the center longitude.
func (g *GeoRadius) Longitude() float64 { return g.constraint.Longitude() }

// RadiusMeters returns the radius in meters.
func (g *GeoRadius) RadiusMeters() float64 { return g.constraint.RadiusMeters() }

// Compiler turns a request's geo constraint into a filter expression.
// It is stateless; every request gets a fresh Expression.
type Compiler struct {
	locationKey string
}

// NewCompiler creates a compiler targeting the payload field locationKey.
func NewCompiler(locationKey string) Compiler {
	if locationKey == "" {
		locationKey = DefaultLocationKey
	}
	return Compiler{locationKey: locationKey}
}

// LocationKey returns the payload field the compiler filters on.
func (c Compiler) LocationKey() string { return c.locationKey }

// Compile returns an empty expression when loc is nil, otherwise a single geo radius condition.
func (c Compiler) Compile(loc *geo.Constraint) (Expression, error) {
	if loc == nil {
		return Expression{}, nil
	}
	cond, err := NewGeoRadius(c.locationKey, *loc)
	if err != nil {
		return Expression{}, fmt.Errorf("compile geo filter: %w", err)
	}
	return NewExpression(cond)
}
