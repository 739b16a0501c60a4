package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
)

// Search runs one nearest-neighbour query.
func (i *Index) Search(ctx context.Context, req *request.Search) ([]point.ScoredPoint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hits, err := i.client.Query(ctx, i.searchPoints(req))
	if err != nil {
		return nil, i.wrap("query", err)
	}
	return i.fromScored(hits), nil
}

// SearchBatch runs every query in one QueryBatch call.
func (i *Index) SearchBatch(ctx context.Context, reqs []request.Search) ([][]point.ScoredPoint, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	queries := make([]*qdrant.QueryPoints, len(reqs))
	for n := range reqs {
		if err := reqs[n].Validate(); err != nil {
			return nil, fmt.Errorf("search batch [%d]: %w", n, err)
		}
		queries[n] = i.searchPoints(&reqs[n])
	}
	return i.queryBatch(ctx, queries)
}

// SearchGroups runs one grouped nearest-neighbour query.
func (i *Index) SearchGroups(
	ctx context.Context, req *request.Search, group request.Group,
) ([]point.Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	groups, err := i.client.QueryGroups(ctx, &qdrant.QueryPointGroups{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Using:          i.using(),
		Filter:         toFilter(req.Filter),
		Limit:          qdrant.PtrOf(uint64(req.Limit)),
		GroupBy:        group.By,
		GroupSize:      qdrant.PtrOf(uint64(group.Size)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, i.wrap("query groups", err)
	}
	return i.fromGroups(groups), nil
}

// Recommend runs the native recommendation query with the request's strategy.
func (i *Index) Recommend(ctx context.Context, req *request.Recommend) ([]point.ScoredPoint, error) {
	q, err := i.recommendPoints(req)
	if err != nil {
		return nil, err
	}
	hits, err := i.client.Query(ctx, q)
	if err != nil {
		return nil, i.wrap("recommend", err)
	}
	return i.fromScored(hits), nil
}

// RecommendBatch runs every recommendation in one QueryBatch call.
func (i *Index) RecommendBatch(ctx context.Context, reqs []request.Recommend) ([][]point.ScoredPoint, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	queries := make([]*qdrant.QueryPoints, len(reqs))
	for n := range reqs {
		q, err := i.recommendPoints(&reqs[n])
		if err != nil {
			return nil, fmt.Errorf("recommend batch [%d]: %w", n, err)
		}
		queries[n] = q
	}
	return i.queryBatch(ctx, queries)
}

// RecommendGroups runs one grouped recommendation query.
func (i *Index) RecommendGroups(
	ctx context.Context, req *request.Recommend, group request.Group,
) ([]point.Group, error) {
	q, err := i.recommendPoints(req)
	if err != nil {
		return nil, err
	}
	groups, err := i.client.QueryGroups(ctx, &qdrant.QueryPointGroups{
		CollectionName: i.collection,
		Query:          q.Query,
		Using:          q.Using,
		Filter:         q.Filter,
		Limit:          q.Limit,
		GroupBy:        group.By,
		GroupSize:      qdrant.PtrOf(uint64(group.Size)),
		WithPayload:    q.WithPayload,
	})
	if err != nil {
		return nil, i.wrap("recommend groups", err)
	}
	return i.fromGroups(groups), nil
}

// Retrieve fetches points by id in request order. Missing ids are skipped.
func (i *Index) Retrieve(ctx context.Context, ids []point.ID, withVectors bool) ([]point.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pids, err := toPointIDs(ids)
	if err != nil {
		return nil, err
	}
	found, err := i.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: i.collection,
		Ids:            pids,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	})
	if err != nil {
		return nil, i.wrap("get", err)
	}
	return inOrder(pids, i.fromRetrieved(found)), nil
}

// ScrollByIDs pages through the points matching a HasId filter with their vectors.
func (i *Index) ScrollByIDs(ctx context.Context, ids []point.ID) ([]point.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pids, err := toPointIDs(ids)
	if err != nil {
		return nil, err
	}
	found, err := i.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: i.collection,
		Filter:         &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewHasID(pids...)}},
		Limit:          qdrant.PtrOf(uint32(len(pids))),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, i.wrap("scroll", err)
	}
	return inOrder(pids, i.fromRetrieved(found)), nil
}

func (i *Index) searchPoints(req *request.Search) *qdrant.QueryPoints {
	return &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Using:          i.using(),
		Filter:         toFilter(req.Filter),
		Limit:          qdrant.PtrOf(uint64(req.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(req.WithVectors),
	}
}

func (i *Index) recommendPoints(req *request.Recommend) (*qdrant.QueryPoints, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	positive, err := toVectorInputs(req.Positive)
	if err != nil {
		return nil, err
	}
	negative, err := toVectorInputs(req.Negative)
	if err != nil {
		return nil, err
	}
	strat, err := toStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	return &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query: qdrant.NewQueryRecommend(&qdrant.RecommendInput{
			Positive: positive,
			Negative: negative,
			Strategy: strat,
		}),
		Using:       i.using(),
		Filter:      toFilter(req.Filter),
		Limit:       qdrant.PtrOf(uint64(req.Limit)),
		WithPayload: qdrant.NewWithPayload(true),
	}, nil
}

func (i *Index) queryBatch(ctx context.Context, queries []*qdrant.QueryPoints) ([][]point.ScoredPoint, error) {
	results, err := i.client.QueryBatch(ctx, &qdrant.QueryBatchPoints{
		CollectionName: i.collection,
		QueryPoints:    queries,
	})
	if err != nil {
		return nil, i.wrap("query batch", err)
	}
	if len(results) != len(queries) {
		return nil, fmt.Errorf("qdrant query batch returned %d results for %d queries: %w",
			len(results), len(queries), domain.ErrIndexUnavailable)
	}
	out := make([][]point.ScoredPoint, len(results))
	for n, r := range results {
		out[n] = i.fromScored(r.GetResult())
	}
	return out, nil
}

// inOrder lays found records out in request order, once per id.
func inOrder(pids []*qdrant.PointId, found map[point.ID]point.Record) []point.Record {
	out := make([]point.Record, 0, len(found))
	for _, pid := range pids {
		id := fromPointID(pid)
		if rec, ok := found[id]; ok {
			out = append(out, rec)
			delete(found, id)
		}
	}
	return out
}
