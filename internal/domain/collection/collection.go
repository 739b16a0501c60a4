package collection

import (
	"fmt"
	"regexp"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Info describes the collection a similarity index serves (immutable value object).
type Info struct {
	name       string
	dimension  int
	pointCount uint64
}

// ValidateName checks that a collection name is usable as a Qdrant collection
// and as a Redis key segment.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

// New validates and creates collection info.
func New(name string, dimension int, pointCount uint64) (Info, error) {
	if err := ValidateName(name); err != nil {
		return Info{}, err
	}
	if dimension <= 0 {
		return Info{}, fmt.Errorf("collection %s: dimension must be positive, got %d", name, dimension)
	}
	return Info{name: name, dimension: dimension, pointCount: pointCount}, nil
}

// Name returns the collection name.
func (i Info) Name() string { return i.name }

// Dimension returns the vector dimension shared by every stored vector.
func (i Info) Dimension() int { return i.dimension }

// PointCount returns the number of stored points, or 0 when the backend does not report it.
func (i Info) PointCount() uint64 { return i.pointCount }
