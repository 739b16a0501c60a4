package discovery

import (
	"errors"

	"github.com/kailas-cloud/discovery/internal/domain"
)

// ErrNoEmbedder is returned for text queries on a client built without
// WithEmbedder. It also matches ErrEmbeddingUnavailable.
var ErrNoEmbedder = errors.New("discovery: text queries need WithEmbedder")

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidLimit         = domain.ErrInvalidLimit
	ErrInvalidQuery         = domain.ErrInvalidQuery
	ErrUnknownItem          = domain.ErrUnknownItem
	ErrVectorDimMismatch    = domain.ErrVectorDimMismatch
	ErrEmbeddingUnavailable = domain.ErrEmbeddingUnavailable
	ErrIndexUnavailable     = domain.ErrIndexUnavailable
	ErrMapping              = domain.ErrMapping
)
