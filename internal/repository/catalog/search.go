package catalog

import (
	"context"
	"fmt"
	"slices"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
	"github.com/kailas-cloud/discovery/internal/domain/vector"
)

const (
	// overFetch multiplies K when results are grouped or rescored client-side.
	overFetch = 8
	// maxK caps a single KNN query.
	maxK = 1000
)

// Search runs one KNN query.
func (r *Repo) Search(ctx context.Context, req *request.Search) ([]point.ScoredPoint, error) {
	if err := r.validateSearch(req); err != nil {
		return nil, err
	}
	hits, err := r.knn(ctx, r.knnQuery(req.Vector, req, req.Limit))
	if err != nil {
		return nil, err
	}
	return point.Truncate(hits, req.Limit), nil
}

// SearchBatch runs every query in one pipelined round-trip.
func (r *Repo) SearchBatch(ctx context.Context, reqs []request.Search) ([][]point.ScoredPoint, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	qs := make([]db.KNNQuery, len(reqs))
	for i := range reqs {
		if err := r.validateSearch(&reqs[i]); err != nil {
			return nil, fmt.Errorf("search batch [%d]: %w", i, err)
		}
		qs[i] = *r.knnQuery(reqs[i].Vector, &reqs[i], reqs[i].Limit)
	}
	results, err := r.knnMulti(ctx, qs)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i] = point.Truncate(results[i], reqs[i].Limit)
	}
	return results, nil
}

// SearchGroups over-fetches and diversifies hits by group.By.
func (r *Repo) SearchGroups(
	ctx context.Context, req *request.Search, group request.Group,
) ([]point.Group, error) {
	if err := r.validateSearch(req); err != nil {
		return nil, err
	}
	k := fetchSize(req.Limit, group, 0)
	hits, err := r.knn(ctx, r.knnQuery(req.Vector, req, k))
	if err != nil {
		return nil, err
	}
	return point.GroupHits(hits, group.By, group.Size, req.Limit), nil
}

// Recommend ranks items against the examples. Example ids never appear in the result.
func (r *Repo) Recommend(ctx context.Context, req *request.Recommend) ([]point.ScoredPoint, error) {
	ranked, err := r.RecommendBatch(ctx, []request.Recommend{*req})
	if err != nil {
		return nil, err
	}
	return ranked[0], nil
}

// RecommendBatch resolves every example id in one lookup and runs all KNN queries in one round-trip.
func (r *Repo) RecommendBatch(ctx context.Context, reqs []request.Recommend) ([][]point.ScoredPoint, error) {
	ranked, err := r.recommend(ctx, reqs, request.Group{})
	if err != nil {
		return nil, err
	}
	for i := range ranked {
		ranked[i] = point.Truncate(ranked[i], reqs[i].Limit)
	}
	return ranked, nil
}

// RecommendGroups ranks items against the examples and diversifies by group.By.
func (r *Repo) RecommendGroups(
	ctx context.Context, req *request.Recommend, group request.Group,
) ([]point.Group, error) {
	ranked, err := r.recommend(ctx, []request.Recommend{*req}, group)
	if err != nil {
		return nil, err
	}
	return point.GroupHits(ranked[0], group.By, group.Size, req.Limit), nil
}

// plan is the set of KNN queries answering one recommend request.
type plan struct {
	positive, negative [][]float32
	strategy           strategy.Strategy
	first, count       int // slice of the shared query list
}

func (r *Repo) recommend(
	ctx context.Context, reqs []request.Recommend, group request.Group,
) ([][]point.ScoredPoint, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, fmt.Errorf("recommend [%d]: %w", i, err)
		}
	}

	vectors, err := r.exampleVectors(ctx, reqs)
	if err != nil {
		return nil, err
	}

	plans := make([]plan, len(reqs))
	var qs []db.KNNQuery
	for i := range reqs {
		req := &reqs[i]
		p := plan{strategy: req.Strategy, first: len(qs)}
		if p.positive, err = r.resolve(req.Positive, vectors); err != nil {
			return nil, err
		}
		if p.negative, err = r.resolve(req.Negative, vectors); err != nil {
			return nil, err
		}

		k := fetchSize(req.Limit, group, len(req.ExampleIDs()))
		search := &request.Search{Filter: req.Filter, WithVectors: req.Strategy == strategy.BestScore}

		seeds, err := seedVectors(&p)
		if err != nil {
			return nil, fmt.Errorf("recommend [%d]: %w", i, err)
		}
		for _, seed := range seeds {
			qs = append(qs, *r.knnQuery(seed, search, k))
		}
		p.count = len(seeds)
		plans[i] = p
	}

	results, err := r.knnMulti(ctx, qs)
	if err != nil {
		return nil, err
	}

	out := make([][]point.ScoredPoint, len(reqs))
	for i, p := range plans {
		var hits []point.ScoredPoint
		for _, res := range results[p.first : p.first+p.count] {
			hits = append(hits, res...)
		}
		if p.strategy == strategy.BestScore {
			hits = point.Dedupe(hits)
			for n := range hits {
				hits[n].Score = vector.BestScore(hits[n].Vector, p.positive, p.negative)
				hits[n].Vector = nil
			}
			point.SortByScore(hits)
		}
		out[i] = point.Exclude(hits, reqs[i].ExampleIDs())
	}
	return out, nil
}

// seedVectors returns the query vectors whose neighbourhoods hold the candidates:
// the synthetic average for average_vector; every positive, or the negated
// negative mean when there are none, for best_score.
func seedVectors(p *plan) ([][]float32, error) {
	switch p.strategy {
	case strategy.AverageVector:
		q, err := vector.AverageQuery(p.positive, p.negative)
		if err != nil {
			return nil, err
		}
		return [][]float32{q}, nil
	case strategy.BestScore:
		if len(p.positive) > 0 {
			return p.positive, nil
		}
		mean, err := vector.Mean(p.negative)
		if err != nil {
			return nil, err
		}
		return [][]float32{vector.Negate(mean)}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: %w", p.strategy, domain.ErrInvalidQuery)
	}
}

// exampleVectors fetches the vectors of every example id across reqs in one round-trip.
func (r *Repo) exampleVectors(ctx context.Context, reqs []request.Recommend) (map[point.ID][]float32, error) {
	var ids []point.ID
	seen := make(map[point.ID]struct{})
	for i := range reqs {
		for _, id := range reqs[i].ExampleIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	recs, err := r.Retrieve(ctx, ids, true)
	if err != nil {
		return nil, err
	}
	out := make(map[point.ID][]float32, len(recs))
	for _, rec := range recs {
		out[rec.ID] = rec.Vector
	}
	return out, nil
}

// resolve turns examples into vectors. Unknown ids fail with domain.ErrUnknownItem.
func (r *Repo) resolve(examples []point.Example, stored map[point.ID][]float32) ([][]float32, error) {
	out := make([][]float32, 0, len(examples))
	for _, e := range examples {
		v := e.Vector()
		if !e.IsVector() {
			var ok bool
			if v, ok = stored[e.ID()]; !ok {
				return nil, fmt.Errorf("example %s: %w", e.ID(), domain.ErrUnknownItem)
			}
		}
		if err := r.checkDim(v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Repo) validateSearch(req *request.Search) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return r.checkDim(req.Vector)
}

func (r *Repo) checkDim(v []float32) error {
	if len(v) != r.cfg.Dimension {
		return fmt.Errorf("query has %d dims, want %d: %w", len(v), r.cfg.Dimension, domain.ErrVectorDimMismatch)
	}
	return nil
}

func (r *Repo) knnQuery(v []float32, req *request.Search, k int) *db.KNNQuery {
	fields := []string{fieldPayload, fieldScore}
	if req.WithVectors {
		fields = append(fields, fieldVector)
	}
	return &db.KNNQuery{
		IndexName:    r.index,
		Filters:      req.Filter,
		Vector:       v,
		K:            k,
		ReturnFields: fields,
	}
}

func (r *Repo) knn(ctx context.Context, q *db.KNNQuery) ([]point.ScoredPoint, error) {
	res, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, r.wrap("search", err)
	}
	return r.toPoints(res, slices.Contains(q.ReturnFields, fieldVector))
}

func (r *Repo) knnMulti(ctx context.Context, qs []db.KNNQuery) ([][]point.ScoredPoint, error) {
	results, err := r.store.SearchKNNMulti(ctx, qs)
	if err != nil {
		return nil, r.wrap("search batch", err)
	}
	if len(results) != len(qs) {
		return nil, fmt.Errorf("search batch returned %d results for %d queries: %w",
			len(results), len(qs), domain.ErrIndexUnavailable)
	}
	out := make([][]point.ScoredPoint, len(results))
	for i, res := range results {
		if out[i], err = r.toPoints(res, slices.Contains(qs[i].ReturnFields, fieldVector)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repo) toPoints(res *db.SearchResult, withVectors bool) ([]point.ScoredPoint, error) {
	if res == nil {
		return nil, nil
	}
	out := make([]point.ScoredPoint, 0, len(res.Entries))
	for _, e := range res.Entries {
		sp, err := r.entryToPoint(e, withVectors)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// fetchSize is the KNN depth needed to fill limit after grouping and excluding examples.
func fetchSize(limit int, group request.Group, excluded int) int {
	k := limit
	if group.Enabled() {
		k = limit * group.Size * overFetch
	}
	return min(k+excluded, maxK)
}
