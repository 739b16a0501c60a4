package discovery

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
)

type recommendInput struct {
	positive []point.Example
	negative []point.Example
	queries  []string
	filter   filter.Expression
	limit    int
}

type recommender interface {
	recommend(ctx context.Context, in recommendInput) ([]point.ScoredPoint, error)
}

func newStrategies(
	idx Recommender, embed Embedder, negative *NegativeResolver, group request.Group,
) map[strategy.Strategy]recommender {
	return map[strategy.Strategy]recommender{
		strategy.AverageVector: &averageVector{
			native:   native{index: idx, embed: embed, group: group, strategy: strategy.AverageVector},
			negative: negative,
		},
		strategy.BestScore: &bestScore{
			native: native{index: idx, embed: embed, group: group, strategy: strategy.BestScore},
		},
	}
}

// native delegates ranking to the index's recommend primitive.
type native struct {
	index    Recommender
	embed    Embedder
	group    request.Group
	strategy strategy.Strategy
}

// fold embeds the text queries and appends them to the positive examples.
func (n *native) fold(ctx context.Context, in recommendInput) ([]point.Example, error) {
	if len(in.queries) == 0 {
		return in.positive, nil
	}
	res, err := domain.EmbedAll(ctx, n.embed, in.queries)
	if err != nil {
		return nil, fmt.Errorf("vectorize queries: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	positive := make([]point.Example, 0, len(in.positive)+len(res.Embeddings))
	positive = append(positive, in.positive...)
	for _, emb := range res.Embeddings {
		positive = append(positive, point.FromVector(emb))
	}
	return positive, nil
}

// run issues one recommend call and flattens the groups in index order.
func (n *native) run(
	ctx context.Context, positive []point.Example, in recommendInput,
) ([]point.ScoredPoint, error) {
	req := &request.Recommend{
		Positive: positive,
		Negative: in.negative,
		Strategy: n.strategy,
		Filter:   in.filter,
		Limit:    in.limit,
	}
	if n.group.Enabled() {
		groups, err := n.index.RecommendGroups(ctx, req, n.group)
		if err != nil {
			return nil, fmt.Errorf("recommend groups (%s): %w", n.strategy, err)
		}
		return point.Flatten(groups, in.limit), nil
	}
	hits, err := n.index.Recommend(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("recommend (%s): %w", n.strategy, err)
	}
	return point.Truncate(hits, in.limit), nil
}

// averageVector ranks by the combined positive and negative means.
// It cannot rank without a positive example, so negative-only input goes to the NegativeResolver.
type averageVector struct {
	native
	negative *NegativeResolver
}

func (s *averageVector) recommend(ctx context.Context, in recommendInput) ([]point.ScoredPoint, error) {
	positive, err := s.fold(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(positive) == 0 {
		if len(in.negative) == 0 {
			return nil, fmt.Errorf("average_vector needs at least one example: %w", domain.ErrInvalidQuery)
		}
		return s.negative.Resolve(ctx, in.negative, in.filter, in.limit)
	}
	return s.run(ctx, positive, in)
}

// bestScore scores every candidate against each example separately.
// Negative-only input is passed to the index as is; it is never rerouted to the NegativeResolver.
type bestScore struct {
	native
}

func (s *bestScore) recommend(ctx context.Context, in recommendInput) ([]point.ScoredPoint, error) {
	positive, err := s.fold(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, positive, in)
}
