// Package request defines the index-level query shapes every similarity index backend accepts.
package request

import (
	"fmt"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
)

// Search is a nearest-neighbour query around one vector.
type Search struct {
	Vector      []float32
	Filter      filter.Expression
	Limit       int
	WithVectors bool
}

// Validate checks the query before it reaches a backend.
func (s *Search) Validate() error {
	if len(s.Vector) == 0 {
		return fmt.Errorf("search vector is required: %w", domain.ErrInvalidQuery)
	}
	if s.Limit <= 0 {
		return fmt.Errorf("search limit must be positive, got %d: %w", s.Limit, domain.ErrInvalidLimit)
	}
	return nil
}

// Recommend ranks items by their similarity to positive examples and dissimilarity to negative ones.
type Recommend struct {
	Positive []point.Example
	Negative []point.Example
	Strategy strategy.Strategy
	Filter   filter.Expression
	Limit    int
}

// Validate checks the query before it reaches a backend.
func (r *Recommend) Validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("recommend limit must be positive, got %d: %w", r.Limit, domain.ErrInvalidLimit)
	}
	if !r.Strategy.IsValid() {
		return fmt.Errorf("unknown strategy %q: %w", r.Strategy, domain.ErrInvalidQuery)
	}
	if len(r.Positive) == 0 && len(r.Negative) == 0 {
		return fmt.Errorf("recommend needs at least one example: %w", domain.ErrInvalidQuery)
	}
	if len(r.Positive) == 0 && r.Strategy == strategy.AverageVector {
		return fmt.Errorf("average_vector needs a positive example: %w", domain.ErrInvalidQuery)
	}
	return nil
}

// ExampleIDs returns every item id referenced by the query's examples.
func (r *Recommend) ExampleIDs() []point.ID {
	return append(point.IDs(r.Positive), point.IDs(r.Negative)...)
}

// Group diversifies results by a payload field.
type Group struct {
	By   string
	Size int
}

// Enabled reports whether grouping is configured.
func (g Group) Enabled() bool { return g.By != "" && g.Size > 0 }
