// Package index decorates a similarity index with metrics and logging.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/collection"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/metrics"
	"github.com/kailas-cloud/discovery/internal/usecase/discovery"
)

// Pinger checks index availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Instrumented wraps an index and records per-call duration by backend, operation and status.
type Instrumented struct {
	inner   discovery.Index
	backend string
	logger  *zap.Logger
}

// NewInstrumented wraps inner. backend labels the metrics (qdrant, redis, memory).
func NewInstrumented(inner discovery.Index, backend string, logger *zap.Logger) *Instrumented {
	return &Instrumented{inner: inner, backend: backend, logger: logger}
}

func observe[T any](ctx context.Context, d *Instrumented, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	duration := time.Since(start)

	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCollectionNotFound):
		status = "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = "canceled"
	default:
		status = "error"
	}
	metrics.IndexRequestDuration.WithLabelValues(d.backend, op, status).Observe(duration.Seconds())

	if err != nil && status == "error" {
		d.logger.Error("Index request failed",
			zap.String("backend", d.backend),
			zap.String("op", op),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return out, fmt.Errorf("%s: %w", op, err)
	}
	d.logger.Debug("Index request completed",
		zap.String("backend", d.backend),
		zap.String("op", op),
		zap.String("status", status),
		zap.Duration("duration", duration),
	)
	return out, err
}

// Search delegates to the wrapped index.
func (d *Instrumented) Search(ctx context.Context, req *request.Search) ([]point.ScoredPoint, error) {
	return observe(ctx, d, "search", func(ctx context.Context) ([]point.ScoredPoint, error) {
		return d.inner.Search(ctx, req)
	})
}

// SearchBatch delegates to the wrapped index.
func (d *Instrumented) SearchBatch(ctx context.Context, reqs []request.Search) ([][]point.ScoredPoint, error) {
	return observe(ctx, d, "search_batch", func(ctx context.Context) ([][]point.ScoredPoint, error) {
		return d.inner.SearchBatch(ctx, reqs)
	})
}

// SearchGroups delegates to the wrapped index.
func (d *Instrumented) SearchGroups(
	ctx context.Context, req *request.Search, group request.Group,
) ([]point.Group, error) {
	return observe(ctx, d, "search_groups", func(ctx context.Context) ([]point.Group, error) {
		return d.inner.SearchGroups(ctx, req, group)
	})
}

// Recommend delegates to the wrapped index.
func (d *Instrumented) Recommend(ctx context.Context, req *request.Recommend) ([]point.ScoredPoint, error) {
	return observe(ctx, d, "recommend", func(ctx context.Context) ([]point.ScoredPoint, error) {
		return d.inner.Recommend(ctx, req)
	})
}

// RecommendBatch delegates to the wrapped index.
func (d *Instrumented) RecommendBatch(
	ctx context.Context, reqs []request.Recommend,
) ([][]point.ScoredPoint, error) {
	return observe(ctx, d, "recommend_batch", func(ctx context.Context) ([][]point.ScoredPoint, error) {
		return d.inner.RecommendBatch(ctx, reqs)
	})
}

// RecommendGroups delegates to the wrapped index.
func (d *Instrumented) RecommendGroups(
	ctx context.Context, req *request.Recommend, group request.Group,
) ([]point.Group, error) {
	return observe(ctx, d, "recommend_groups", func(ctx context.Context) ([]point.Group, error) {
		return d.inner.RecommendGroups(ctx, req, group)
	})
}

// Retrieve delegates to the wrapped index.
func (d *Instrumented) Retrieve(ctx context.Context, ids []point.ID, withVectors bool) ([]point.Record, error) {
	return observe(ctx, d, "retrieve", func(ctx context.Context) ([]point.Record, error) {
		return d.inner.Retrieve(ctx, ids, withVectors)
	})
}

// ScrollByIDs delegates to the wrapped index.
func (d *Instrumented) ScrollByIDs(ctx context.Context, ids []point.ID) ([]point.Record, error) {
	return observe(ctx, d, "scroll", func(ctx context.Context) ([]point.Record, error) {
		return d.inner.ScrollByIDs(ctx, ids)
	})
}

// CollectionInfo delegates to the wrapped index.
func (d *Instrumented) CollectionInfo(ctx context.Context) (collection.Info, error) {
	return observe(ctx, d, "collection_info", func(ctx context.Context) (collection.Info, error) {
		return d.inner.CollectionInfo(ctx)
	})
}

// Ping checks the wrapped index when it supports it; otherwise it reads the collection info.
func (d *Instrumented) Ping(ctx context.Context) error {
	_, err := observe(ctx, d, "ping", func(ctx context.Context) (struct{}, error) {
		if p, ok := d.inner.(Pinger); ok {
			return struct{}{}, p.Ping(ctx)
		}
		_, err := d.inner.CollectionInfo(ctx)
		return struct{}{}, err
	})
	return err
}
