package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound signals that the configured collection does not exist.
	// The engine treats it as an empty result.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrIndexUnavailable signals a similarity index failure.
	ErrIndexUnavailable = errors.New("similarity index unavailable")
	// ErrMapping signals a hit whose payload cannot be projected into a result.
	ErrMapping = errors.New("payload mapping failed")
	// ErrEmptyNegativeSet signals that none of the negative examples resolved to a vector.
	ErrEmptyNegativeSet = errors.New("no vectors resolved for negative examples")
	// ErrInvalidLimit signals a result limit outside the accepted range.
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrInvalidQuery signals a malformed search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnknownItem signals an example id that the index does not hold.
	ErrUnknownItem = errors.New("unknown item")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// MappingError wraps ErrMapping with the offending point and payload field.
type MappingError struct {
	PointID string
	Field   string
	Reason  string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: point %s: field %q %s", ErrMapping.Error(), e.PointID, e.Field, e.Reason)
}

func (e *MappingError) Unwrap() error { return ErrMapping }

// NewMappingError creates a mapping error for a missing or mistyped payload field.
func NewMappingError(pointID, field, reason string) error {
	return &MappingError{PointID: pointID, Field: field, Reason: reason}
}
