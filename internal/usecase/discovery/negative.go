package discovery

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/vector"
)

// negativeIndex is the part of Index the NegativeResolver needs.
type negativeIndex interface {
	PointReader
	Searcher
}

// NegativeResolver answers "far from everything I dislike": it searches around
// the negated mean of the negative examples.
type NegativeResolver struct {
	index negativeIndex
	group request.Group
}

// NewNegativeResolver creates a resolver. A zero group runs plain searches.
func NewNegativeResolver(idx negativeIndex, group request.Group) *NegativeResolver {
	return &NegativeResolver{index: idx, group: group}
}

// SyntheticQuery returns −mean(negative vectors). Ids are resolved in one lookup
// and unknown ids are skipped. Fails with domain.ErrEmptyNegativeSet when nothing resolves.
func (r *NegativeResolver) SyntheticQuery(ctx context.Context, negative []point.Example) ([]float32, error) {
	ids, vectors := point.Split(negative)
	if len(ids) > 0 {
		records, err := r.index.ScrollByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("fetch negative vectors: %w", err)
		}
		for _, rec := range records {
			if len(rec.Vector) > 0 {
				vectors = append(vectors, rec.Vector)
			}
		}
	}
	if len(vectors) == 0 {
		return nil, domain.ErrEmptyNegativeSet
	}

	mean, err := vector.Mean(vectors)
	if err != nil {
		return nil, fmt.Errorf("negative mean: %w", err)
	}
	return vector.Negate(mean), nil
}

// Resolve runs one search around the synthetic query.
func (r *NegativeResolver) Resolve(
	ctx context.Context, negative []point.Example, expr filter.Expression, limit int,
) ([]point.ScoredPoint, error) {
	q, err := r.SyntheticQuery(ctx, negative)
	if err != nil {
		return nil, err
	}
	return search(ctx, r.index, &request.Search{Vector: q, Filter: expr, Limit: limit}, r.group)
}
