// Package memory is a brute-force similarity index held in process memory.
// It backs local runs without a vector database and the engine's scenario tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/collection"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
	"github.com/kailas-cloud/discovery/internal/domain/vector"
)

// Index stores records in insertion order and scores every one of them per query.
type Index struct {
	mu        sync.RWMutex
	name      string
	dimension int
	records   map[point.ID]point.Record
	order     []point.ID
}

// New creates an empty index. A zero dimension is taken from the first upserted record;
// until then the collection reports as missing.
func New(name string, dimension int) *Index {
	return &Index{
		name:      name,
		dimension: dimension,
		records:   make(map[point.ID]point.Record),
	}
}

// Upsert inserts or replaces records. Every vector must match the collection dimension.
func (i *Index) Upsert(_ context.Context, records ...point.Record) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, rec := range records {
		if rec.ID.IsZero() {
			return fmt.Errorf("upsert: empty id: %w", domain.ErrInvalidQuery)
		}
		if i.dimension == 0 {
			i.dimension = len(rec.Vector)
		}
		if len(rec.Vector) != i.dimension {
			return fmt.Errorf("upsert %s: %d dims, want %d: %w",
				rec.ID, len(rec.Vector), i.dimension, domain.ErrVectorDimMismatch)
		}
		if _, ok := i.records[rec.ID]; !ok {
			i.order = append(i.order, rec.ID)
		}
		i.records[rec.ID] = rec
	}
	return nil
}

// Ping always succeeds.
func (i *Index) Ping(ctx context.Context) error {
	return ctx.Err()
}

// CollectionInfo reports the collection size and dimension.
func (i *Index) CollectionInfo(ctx context.Context) (collection.Info, error) {
	if err := ctx.Err(); err != nil {
		return collection.Info{}, err
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.dimension == 0 {
		return collection.Info{}, fmt.Errorf("collection %q: %w", i.name, domain.ErrCollectionNotFound)
	}
	info, err := collection.New(i.name, i.dimension, uint64(len(i.records)))
	if err != nil {
		return collection.Info{}, fmt.Errorf("collection info: %w", err)
	}
	return info, nil
}

// Search ranks every record by cosine similarity to req.Vector.
func (i *Index) Search(ctx context.Context, req *request.Search) ([]point.ScoredPoint, error) {
	ranked, err := i.rankSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	return point.Truncate(ranked, req.Limit), nil
}

// SearchBatch runs each query in turn.
func (i *Index) SearchBatch(ctx context.Context, reqs []request.Search) ([][]point.ScoredPoint, error) {
	out := make([][]point.ScoredPoint, len(reqs))
	for n := range reqs {
		hits, err := i.Search(ctx, &reqs[n])
		if err != nil {
			return nil, fmt.Errorf("search batch [%d]: %w", n, err)
		}
		out[n] = hits
	}
	return out, nil
}

// SearchGroups ranks every record and diversifies the ranking by group.By.
func (i *Index) SearchGroups(
	ctx context.Context, req *request.Search, group request.Group,
) ([]point.Group, error) {
	ranked, err := i.rankSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	return point.GroupHits(ranked, group.By, group.Size, req.Limit), nil
}

// Recommend ranks records against the examples. Example ids never appear in the result.
func (i *Index) Recommend(ctx context.Context, req *request.Recommend) ([]point.ScoredPoint, error) {
	ranked, err := i.rankRecommend(ctx, req)
	if err != nil {
		return nil, err
	}
	return point.Truncate(ranked, req.Limit), nil
}

// RecommendBatch runs each query in turn.
func (i *Index) RecommendBatch(ctx context.Context, reqs []request.Recommend) ([][]point.ScoredPoint, error) {
	out := make([][]point.ScoredPoint, len(reqs))
	for n := range reqs {
		hits, err := i.Recommend(ctx, &reqs[n])
		if err != nil {
			return nil, fmt.Errorf("recommend batch [%d]: %w", n, err)
		}
		out[n] = hits
	}
	return out, nil
}

// RecommendGroups ranks records against the examples and diversifies by group.By.
func (i *Index) RecommendGroups(
	ctx context.Context, req *request.Recommend, group request.Group,
) ([]point.Group, error) {
	ranked, err := i.rankRecommend(ctx, req)
	if err != nil {
		return nil, err
	}
	return point.GroupHits(ranked, group.By, group.Size, req.Limit), nil
}

// Retrieve returns the records of the known ids in request order.
func (i *Index) Retrieve(ctx context.Context, ids []point.ID, withVectors bool) ([]point.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]point.Record, 0, len(ids))
	for _, id := range ids {
		rec, ok := i.records[id]
		if !ok {
			continue
		}
		if !withVectors {
			rec.Vector = nil
		}
		out = append(out, rec)
	}
	return out, nil
}

// ScrollByIDs returns the records of the known ids with their vectors.
func (i *Index) ScrollByIDs(ctx context.Context, ids []point.ID) ([]point.Record, error) {
	return i.Retrieve(ctx, ids, true)
}

func (i *Index) rankSearch(ctx context.Context, req *request.Search) ([]point.ScoredPoint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	if err := i.checkDim(req.Vector); err != nil {
		return nil, err
	}
	return i.rank(func(rec point.Record) (float64, bool) {
		if !req.Filter.Matches(rec.Payload) {
			return 0, false
		}
		return vector.Cosine(req.Vector, rec.Vector), true
	}, req.WithVectors), nil
}

func (i *Index) rankRecommend(ctx context.Context, req *request.Recommend) ([]point.ScoredPoint, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.RLock()
	defer i.mu.RUnlock()

	positive, err := i.resolve(req.Positive)
	if err != nil {
		return nil, err
	}
	negative, err := i.resolve(req.Negative)
	if err != nil {
		return nil, err
	}

	excluded := make(map[point.ID]struct{})
	for _, id := range req.ExampleIDs() {
		excluded[id] = struct{}{}
	}
	keep := func(rec point.Record) bool {
		_, skip := excluded[rec.ID]
		return !skip && req.Filter.Matches(rec.Payload)
	}

	switch req.Strategy {
	case strategy.AverageVector:
		q, err := vector.AverageQuery(positive, negative)
		if err != nil {
			return nil, err
		}
		return i.rank(func(rec point.Record) (float64, bool) {
			if !keep(rec) {
				return 0, false
			}
			return vector.Cosine(q, rec.Vector), true
		}, false), nil
	case strategy.BestScore:
		return i.rank(func(rec point.Record) (float64, bool) {
			if !keep(rec) {
				return 0, false
			}
			return vector.BestScore(rec.Vector, positive, negative), true
		}, false), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: %w", req.Strategy, domain.ErrInvalidQuery)
	}
}

// resolve turns examples into vectors. Unknown ids fail with domain.ErrUnknownItem. Caller holds the lock.
func (i *Index) resolve(examples []point.Example) ([][]float32, error) {
	out := make([][]float32, 0, len(examples))
	for _, e := range examples {
		if e.IsVector() {
			if err := i.checkDim(e.Vector()); err != nil {
				return nil, err
			}
			out = append(out, e.Vector())
			continue
		}
		rec, ok := i.records[e.ID()]
		if !ok {
			return nil, fmt.Errorf("example %s: %w", e.ID(), domain.ErrUnknownItem)
		}
		out = append(out, rec.Vector)
	}
	return out, nil
}

func (i *Index) checkDim(v []float32) error {
	if i.dimension == 0 {
		return fmt.Errorf("collection %q: %w", i.name, domain.ErrCollectionNotFound)
	}
	if len(v) != i.dimension {
		return fmt.Errorf("query has %d dims, want %d: %w", len(v), i.dimension, domain.ErrVectorDimMismatch)
	}
	return nil
}

// rank scores the records accepted by score, best first. Caller holds the lock.
func (i *Index) rank(score func(point.Record) (float64, bool), withVectors bool) []point.ScoredPoint {
	out := make([]point.ScoredPoint, 0, len(i.order))
	for _, id := range i.order {
		rec := i.records[id]
		s, ok := score(rec)
		if !ok {
			continue
		}
		sp := point.ScoredPoint{ID: rec.ID, Score: s, Payload: rec.Payload}
		if withVectors {
			sp.Vector = slices.Clone(rec.Vector)
		}
		out = append(out, sp)
	}
	point.SortByScore(out)
	return out
}
