// Package chi serves the discovery HTTP API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/geo"
	"github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	discoveryuc "github.com/kailas-cloud/discovery/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/discovery/internal/usecase/health"
)

// maxBodyBytes bounds a search request body; raw vector examples make it larger than plain text.
const maxBodyBytes = 1 << 20

// Response headers.
const (
	HeaderDiscoveryPath   = "X-Discovery-Path"
	HeaderEmbeddingTokens = "X-Embedding-Tokens"
)

// Discoverer answers discovery queries.
type Discoverer interface {
	Discover(ctx context.Context, q *query.Query) (discoveryuc.Outcome, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the HTTP handlers.
type Server struct {
	discovery     Discoverer
	health        HealthChecker
	limits        query.Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(discovery Discoverer, health HealthChecker, limits query.Limits, logger *zap.Logger) *Server {
	s := &Server{
		discovery: discovery,
		health:    health,
		limits:    limits,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidLimit, http.StatusBadRequest, ErrorCodeInvalidLimit),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrUnknownItem, http.StatusBadRequest, ErrorCodeUnknownItem),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, ErrorCodeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, ErrorCodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, ErrorCodeIndexUnavailable),
	}
	return s
}

// Search handles POST /api/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var params SearchParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid limit parameter: "+err.Error())
		return
	}

	var req SearchRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q, err := queryFromRequest(&req, params, s.limits)
	if err != nil {
		code := ErrorCodeValidationFailed
		if errors.Is(err, domain.ErrInvalidLimit) {
			code = ErrorCodeInvalidLimit
		}
		writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	out, err := s.discovery.Discover(ctx, &q)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	items := out.Items
	if items == nil {
		items = []result.Product{}
	}
	w.Header().Set(HeaderDiscoveryPath, string(out.Path))
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, items)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// queryFromRequest merges body and query string into a validated query.
// A limit in the body wins over ?limit=.
func queryFromRequest(req *SearchRequest, params SearchParams, limits query.Limits) (query.Query, error) {
	p := query.Params{
		Queries:  req.Queries,
		Positive: req.Positive,
		Negative: req.Negative,
		Strategy: req.Strategy,
	}
	if req.Query != nil {
		p.Text = *req.Query
	}
	limit := req.Limit
	if limit == nil {
		limit = params.Limit
	}
	if limit != nil {
		// absent means default; an explicit zero is out of range
		if *limit < 1 {
			return query.Query{}, fmt.Errorf("limit must be at least 1, got %d: %w", *limit, domain.ErrInvalidLimit)
		}
		p.Limit = *limit
	}
	if loc := req.Location; loc != nil {
		c, err := geo.NewConstraint(loc.Latitude, loc.Longitude, loc.RadiusKm)
		if err != nil {
			return query.Query{}, fmt.Errorf("location: %w: %w", err, domain.ErrInvalidQuery)
		}
		p.Location = &c
	}

	q, err := query.New(p, limits)
	if err != nil {
		return query.Query{}, fmt.Errorf("build query: %w", err)
	}
	return q, nil
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if tokens, used := usage.Snapshot(); used {
		w.Header().Set(HeaderEmbeddingTokens, strconv.Itoa(tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidLimit,
		domain.ErrInvalidQuery,
		domain.ErrUnknownItem,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingUnavailable,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := s.requestLogger(ctx)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
