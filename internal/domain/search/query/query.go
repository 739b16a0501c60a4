package query

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/geo"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
)

// Discovery request limits.
const (
	// MaxQueryLength is the maximum allowed free-text query length.
	MaxQueryLength = 4096
	MaxQueries     = 16
	MaxExamples    = 64
	DefaultLimit   = 12
	MaxLimit       = 100
)

// Path is the resolution path a query takes through the engine.
type Path string

// Resolution paths, in classification priority order.
const (
	PathText         Path = "text"
	PathRandom       Path = "random"
	PathNegativeOnly Path = "negative_only"
	PathRecommend    Path = "recommend"
)

// Limits bounds the result count of a query.
type Limits struct {
	Default int
	Max     int
}

// DefaultLimits returns the stock limits: 12 by default, at most 100.
func DefaultLimits() Limits {
	return Limits{Default: DefaultLimit, Max: MaxLimit}
}

// Params are the raw, unvalidated inputs of a discovery request.
type Params struct {
	Text     string
	Queries  []string
	Location *geo.Constraint
	Positive []point.Example
	Negative []point.Example
	Limit    int
	Strategy strategy.Strategy
}

// Query is a validated discovery request. Immutable once built.
type Query struct {
	text     string
	queries  []string
	location *geo.Constraint
	positive []point.Example
	negative []point.Example
	limit    int
	strategy strategy.Strategy
}

// New validates and normalizes a discovery request.
// A zero limit takes the default; anything outside [1, lim.Max] is rejected.
func New(p Params, lim Limits) (Query, error) {
	if lim.Default <= 0 {
		lim.Default = DefaultLimit
	}
	if lim.Max <= 0 {
		lim.Max = MaxLimit
	}

	limit := p.Limit
	if limit == 0 {
		limit = min(lim.Default, lim.Max)
	}
	if limit < 1 || limit > lim.Max {
		return Query{}, fmt.Errorf("limit must be between 1 and %d, got %d: %w", lim.Max, p.Limit, domain.ErrInvalidLimit)
	}

	text := strings.TrimSpace(p.Text)
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("query too long (max %d chars): %w", MaxQueryLength, domain.ErrInvalidQuery)
	}

	if len(p.Queries) > MaxQueries {
		return Query{}, fmt.Errorf("too many queries (max %d): %w", MaxQueries, domain.ErrInvalidQuery)
	}
	queries := make([]string, 0, len(p.Queries))
	for i, q := range p.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			return Query{}, fmt.Errorf("queries[%d] is empty: %w", i, domain.ErrInvalidQuery)
		}
		if len(q) > MaxQueryLength {
			return Query{}, fmt.Errorf("queries[%d] too long (max %d chars): %w", i, MaxQueryLength, domain.ErrInvalidQuery)
		}
		queries = append(queries, q)
	}

	if err := validateExamples("positive", p.Positive); err != nil {
		return Query{}, err
	}
	if err := validateExamples("negative", p.Negative); err != nil {
		return Query{}, err
	}

	s := p.Strategy
	if s == "" {
		s = strategy.Default
	}
	if !s.IsValid() {
		return Query{}, fmt.Errorf("unknown strategy %q: %w", s, domain.ErrInvalidQuery)
	}

	return Query{
		text:     text,
		queries:  queries,
		location: p.Location,
		positive: point.CloneExamples(p.Positive),
		negative: point.CloneExamples(p.Negative),
		limit:    limit,
		strategy: s,
	}, nil
}

func validateExamples(kind string, examples []point.Example) error {
	if len(examples) > MaxExamples {
		return fmt.Errorf("too many %s examples (max %d): %w", kind, MaxExamples, domain.ErrInvalidQuery)
	}
	dim := 0
	for i, e := range examples {
		if !e.IsVector() {
			if e.ID().IsZero() {
				return fmt.Errorf("%s[%d]: id is empty: %w", kind, i, domain.ErrInvalidQuery)
			}
			continue
		}
		if len(e.Vector()) == 0 {
			return fmt.Errorf("%s[%d]: vector is empty: %w", kind, i, domain.ErrInvalidQuery)
		}
		if dim != 0 && len(e.Vector()) != dim {
			return fmt.Errorf("%s[%d]: %d dims, want %d: %w", kind, i, len(e.Vector()), dim, domain.ErrVectorDimMismatch)
		}
		dim = len(e.Vector())
	}
	return nil
}

// Classify picks the resolution path. Pure; the priority is fixed:
// text, then random (no signal at all), then negative-only, then recommendation.
// Text queries count as positive signal because strategies fold them into the positives.
func (q *Query) Classify() Path {
	if q.text != "" {
		return PathText
	}
	hasPositive := len(q.positive) > 0 || len(q.queries) > 0
	switch {
	case !hasPositive && len(q.negative) == 0:
		return PathRandom
	case !hasPositive:
		return PathNegativeOnly
	default:
		return PathRecommend
	}
}

// Text returns the free-text query.
func (q *Query) Text() string { return q.text }

// Queries returns the text examples folded into the positives.
func (q *Query) Queries() []string { return q.queries }

// Location returns the geo constraint, or nil.
func (q *Query) Location() *geo.Constraint { return q.location }

// Positive returns the positive examples.
func (q *Query) Positive() []point.Example { return q.positive }

// Negative returns the negative examples.
func (q *Query) Negative() []point.Example { return q.negative }

// Limit returns the maximum number of results.
func (q *Query) Limit() int { return q.limit }

// Strategy returns the recommendation strategy.
func (q *Query) Strategy() strategy.Strategy { return q.strategy }
