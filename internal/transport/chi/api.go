package chi

import (
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeUnauthorized         ErrorCode = "unauthorized"
	ErrorCodeInvalidLimit         ErrorCode = "invalid_limit"
	ErrorCodeValidationFailed     ErrorCode = "validation_failed"
	ErrorCodeUnknownItem          ErrorCode = "unknown_item"
	ErrorCodeVectorDimMismatch    ErrorCode = "vector_dim_mismatch"
	ErrorCodeEmbeddingUnavailable ErrorCode = "embedding_unavailable"
	ErrorCodeIndexUnavailable     ErrorCode = "index_unavailable"
	ErrorCodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /api/search. Every field is optional.
type SearchRequest struct {
	Query    *string           `json:"query,omitempty"`
	Queries  []string          `json:"queries,omitempty"`
	Location *LocationRequest  `json:"location,omitempty"`
	Positive []point.Example   `json:"positive,omitempty"`
	Negative []point.Example   `json:"negative,omitempty"`
	Limit    *int              `json:"limit,omitempty"`
	Strategy strategy.Strategy `json:"strategy,omitempty"`
}

// LocationRequest restricts results to a circle around a point.
type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
}

// SearchParams are the query-string parameters of POST /api/search.
type SearchParams struct {
	Limit *int `form:"limit,omitempty" json:"limit,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
