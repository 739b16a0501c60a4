package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
	"github.com/kailas-cloud/discovery/internal/domain/vector"
)

// Random sampler defaults.
const (
	DefaultPopulation = 100_000
	DefaultMaxRounds  = 10
	// oversample is the number of ids drawn per missing seed in each round.
	oversample = 2
)

type vectorIndex interface {
	CollectionInspector
	Searcher
}

// VectorSampler spreads results across the embedding space: it draws uniform
// vectors from [-1, 1]^dim and keeps the single nearest item of each.
type VectorSampler struct {
	index vectorIndex
	rnd   func() float64
}

// NewVectorSampler creates a sampler backed by math/rand/v2.
func NewVectorSampler(idx vectorIndex) *VectorSampler {
	return &VectorSampler{index: idx, rnd: rand.Float64}
}

// Sample issues all seed queries in one batch. Seeds landing on the same item
// collapse into one result, so fewer than limit items may come back.
func (s *VectorSampler) Sample(ctx context.Context, expr filter.Expression, limit int) ([]point.ScoredPoint, error) {
	info, err := s.index.CollectionInfo(ctx)
	if errors.Is(err, domain.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("collection info: %w", err)
	}
	if info.Dimension() <= 0 || limit <= 0 {
		return nil, nil
	}

	reqs := make([]request.Search, limit)
	for i := range reqs {
		reqs[i] = request.Search{
			Vector: vector.Uniform(info.Dimension(), s.rnd),
			Filter: expr,
			Limit:  1,
		}
	}

	batches, err := s.index.SearchBatch(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("search seeds: %w", err)
	}
	return firstOfEach(batches), nil
}

type idIndex interface {
	PointReader
	Recommender
}

// IDSampler draws random integer ids in [0, population), keeps the ones that
// exist and asks the index for one neighbour of each.
type IDSampler struct {
	index      idIndex
	population uint64
	maxRounds  int
	draw       func(n uint64) uint64
}

// NewIDSampler creates a sampler. Non-positive arguments take the defaults.
func NewIDSampler(idx idIndex, population uint64, maxRounds int) *IDSampler {
	if population == 0 {
		population = DefaultPopulation
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &IDSampler{index: idx, population: population, maxRounds: maxRounds, draw: rand.Uint64N}
}

// Sample collects up to limit distinct existing ids in at most maxRounds lookups,
// then recommends one item per seed in a single batch. Under-fill is not an error.
func (s *IDSampler) Sample(ctx context.Context, expr filter.Expression, limit int) ([]point.ScoredPoint, error) {
	seeds, err := s.seeds(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	reqs := make([]request.Recommend, len(seeds))
	for i, id := range seeds {
		reqs[i] = request.Recommend{
			Positive: []point.Example{point.FromID(id)},
			Strategy: strategy.AverageVector,
			Filter:   expr,
			Limit:    1,
		}
	}
	batches, err := s.index.RecommendBatch(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("recommend seeds: %w", err)
	}
	return firstOfEach(batches), nil
}

func (s *IDSampler) seeds(ctx context.Context, limit int) ([]point.ID, error) {
	found := make([]point.ID, 0, limit)
	seen := make(map[point.ID]struct{}, limit)

	for round := 0; round < s.maxRounds && len(found) < limit; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sample ids: %w", err)
		}

		want := oversample * (limit - len(found))
		candidates := make([]point.ID, 0, want)
		drawn := make(map[point.ID]struct{}, want)
		for range want {
			id := point.NumID(s.draw(s.population))
			if _, ok := seen[id]; ok {
				continue
			}
			if _, ok := drawn[id]; ok {
				continue
			}
			drawn[id] = struct{}{}
			candidates = append(candidates, id)
		}
		if len(candidates) == 0 {
			continue
		}

		records, err := s.index.Retrieve(ctx, candidates, false)
		if err != nil {
			return nil, fmt.Errorf("retrieve candidate ids: %w", err)
		}
		for _, rec := range records {
			if len(found) == limit {
				break
			}
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			seen[rec.ID] = struct{}{}
			found = append(found, rec.ID)
		}
	}
	return found, nil
}

// firstOfEach keeps the best hit of every seed query, dropping repeated items.
func firstOfEach(batches [][]point.ScoredPoint) []point.ScoredPoint {
	out := make([]point.ScoredPoint, 0, len(batches))
	for _, hits := range batches {
		if len(hits) > 0 {
			out = append(out, hits[0])
		}
	}
	return point.Dedupe(out)
}
