// Package discovery resolves a discovery request into products: it classifies
// the request, runs the matching resolution path against the similarity index
// and projects the hits.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
	"github.com/kailas-cloud/discovery/internal/logger"
	"github.com/kailas-cloud/discovery/internal/metrics"
)

// DefaultGroupBy is the payload field identifying the restaurant an item belongs to.
const DefaultGroupBy = "cafe.slug"

// DefaultGroup returns one hit per restaurant.
func DefaultGroup() request.Group {
	return request.Group{By: DefaultGroupBy, Size: 1}
}

// Outcome is the result of one discovery request.
type Outcome struct {
	Path  query.Path
	Items []result.Product
}

// Service is the discovery engine. Stateless; safe for concurrent use.
type Service struct {
	index      Index
	embed      Embedder
	sampler    Sampler
	negative   *NegativeResolver
	strategies map[strategy.Strategy]recommender
	compiler   filter.Compiler
	projector  *result.Projector
	group      request.Group
}

// Option configures a Service.
type Option func(*Service)

// WithSampler replaces the random discovery sampler. Defaults to a VectorSampler.
func WithSampler(s Sampler) Option {
	return func(svc *Service) { svc.sampler = s }
}

// WithGrouping sets the diversification key. A zero Group disables grouping.
func WithGrouping(g request.Group) Option {
	return func(svc *Service) { svc.group = g }
}

// WithCompiler sets the geo filter compiler.
func WithCompiler(c filter.Compiler) Option {
	return func(svc *Service) { svc.compiler = c }
}

// WithMapping sets the payload layout used to build products.
func WithMapping(m result.Mapping) Option {
	return func(svc *Service) { svc.projector = result.NewProjector(m) }
}

// New creates a discovery engine over idx.
func New(idx Index, embed Embedder, opts ...Option) *Service {
	s := &Service{
		index:     idx,
		embed:     embed,
		compiler:  filter.NewCompiler(filter.DefaultLocationKey),
		projector: result.NewProjector(result.DefaultMapping()),
		group:     DefaultGroup(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sampler == nil {
		s.sampler = NewVectorSampler(idx)
	}
	s.negative = NewNegativeResolver(idx, s.group)
	s.strategies = newStrategies(idx, embed, s.negative, s.group)
	return s
}

// Discover classifies q and runs the matching resolution path.
// A missing collection and an unresolvable negative set yield an empty outcome.
// Every other failure discards partial results.
func (s *Service) Discover(ctx context.Context, q *query.Query) (Outcome, error) {
	if q.Limit() < 1 {
		return Outcome{}, fmt.Errorf("limit must be positive, got %d: %w", q.Limit(), domain.ErrInvalidLimit)
	}

	path := q.Classify()
	log := logger.FromContext(ctx).With(zap.String("path", string(path)))

	expr, err := s.compiler.Compile(q.Location())
	if err != nil {
		return Outcome{Path: path}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}

	hits, err := s.resolve(ctx, path, q, expr)
	switch {
	case errors.Is(err, domain.ErrCollectionNotFound):
		log.Warn("Collection not found, returning empty result", zap.Error(err))
		hits, err = nil, nil
	case errors.Is(err, domain.ErrEmptyNegativeSet):
		log.Info("No negative example resolved, returning empty result")
		hits, err = nil, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		metrics.DiscoveryRequestsTotal.WithLabelValues(string(path), metrics.OutcomeError).Inc()
		return Outcome{Path: path}, fmt.Errorf("discover %s: %w", path, err)
	}

	hits = point.Truncate(hits, q.Limit())
	items, err := s.projector.ProjectAll(hits)
	if err != nil {
		metrics.DiscoveryRequestsTotal.WithLabelValues(string(path), metrics.OutcomeError).Inc()
		return Outcome{Path: path}, fmt.Errorf("discover %s: %w", path, err)
	}

	outcome := metrics.OutcomeOK
	if len(items) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.DiscoveryRequestsTotal.WithLabelValues(string(path), outcome).Inc()
	metrics.DiscoveryResults.WithLabelValues(string(path)).Observe(float64(len(items)))

	log.Debug("Discovery resolved",
		zap.String("strategy", string(q.Strategy())),
		zap.Int("limit", q.Limit()),
		zap.Int("results", len(items)),
	)
	return Outcome{Path: path, Items: items}, nil
}

func (s *Service) resolve(
	ctx context.Context, path query.Path, q *query.Query, expr filter.Expression,
) ([]point.ScoredPoint, error) {
	switch path {
	case query.PathText:
		return s.searchText(ctx, q.Text(), expr, q.Limit())
	case query.PathRandom:
		return s.sampler.Sample(ctx, expr, q.Limit())
	case query.PathNegativeOnly:
		// average_vector cannot rank without a positive example; best_score ranks natively.
		if q.Strategy().NegativeOnlyFallback() {
			return s.negative.Resolve(ctx, q.Negative(), expr, q.Limit())
		}
		return s.recommend(ctx, q, expr)
	case query.PathRecommend:
		return s.recommend(ctx, q, expr)
	default:
		return nil, fmt.Errorf("unsupported path %q: %w", path, domain.ErrInvalidQuery)
	}
}

func (s *Service) searchText(
	ctx context.Context, text string, expr filter.Expression, limit int,
) ([]point.ScoredPoint, error) {
	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	req := &request.Search{Vector: emb.Embedding, Filter: expr, Limit: limit}
	return search(ctx, s.index, req, s.group)
}

func (s *Service) recommend(
	ctx context.Context, q *query.Query, expr filter.Expression,
) ([]point.ScoredPoint, error) {
	r, ok := s.strategies[q.Strategy()]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q: %w", q.Strategy(), domain.ErrInvalidQuery)
	}
	return r.recommend(ctx, recommendInput{
		positive: q.Positive(),
		negative: q.Negative(),
		queries:  q.Queries(),
		filter:   expr,
		limit:    q.Limit(),
	})
}

// search runs a grouped query when grouping is enabled, a plain one otherwise.
func search(
	ctx context.Context, idx Searcher, req *request.Search, group request.Group,
) ([]point.ScoredPoint, error) {
	if group.Enabled() {
		groups, err := idx.SearchGroups(ctx, req, group)
		if err != nil {
			return nil, fmt.Errorf("search groups: %w", err)
		}
		return point.Flatten(groups, req.Limit), nil
	}
	hits, err := idx.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return point.Truncate(hits, req.Limit), nil
}
