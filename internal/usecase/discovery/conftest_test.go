package discovery

import (
	"context"
	"sync"
	"testing"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/collection"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
)

// --- Mocks ---

// fakeIndex records every call and answers through optional function fields.
type fakeIndex struct {
	mu    sync.Mutex
	calls []string

	info    collection.Info
	infoErr error

	searchFn          func(req *request.Search) ([]point.ScoredPoint, error)
	searchBatchFn     func(reqs []request.Search) ([][]point.ScoredPoint, error)
	searchGroupsFn    func(req *request.Search, g request.Group) ([]point.Group, error)
	recommendFn       func(req *request.Recommend) ([]point.ScoredPoint, error)
	recommendBatchFn  func(reqs []request.Recommend) ([][]point.ScoredPoint, error)
	recommendGroupsFn func(req *request.Recommend, g request.Group) ([]point.Group, error)
	retrieveFn        func(ids []point.ID, withVectors bool) ([]point.Record, error)
	scrollFn          func(ids []point.ID) ([]point.Record, error)
}

func (f *fakeIndex) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeIndex) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeIndex) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeIndex) Search(_ context.Context, req *request.Search) ([]point.ScoredPoint, error) {
	f.record("Search")
	if f.searchFn != nil {
		return f.searchFn(req)
	}
	return nil, nil
}

func (f *fakeIndex) SearchBatch(_ context.Context, reqs []request.Search) ([][]point.ScoredPoint, error) {
	f.record("SearchBatch")
	if f.searchBatchFn != nil {
		return f.searchBatchFn(reqs)
	}
	return make([][]point.ScoredPoint, len(reqs)), nil
}

func (f *fakeIndex) SearchGroups(_ context.Context, req *request.Search, g request.Group) ([]point.Group, error) {
	f.record("SearchGroups")
	if f.searchGroupsFn != nil {
		return f.searchGroupsFn(req, g)
	}
	return nil, nil
}

func (f *fakeIndex) Recommend(_ context.Context, req *request.Recommend) ([]point.ScoredPoint, error) {
	f.record("Recommend")
	if f.recommendFn != nil {
		return f.recommendFn(req)
	}
	return nil, nil
}

func (f *fakeIndex) RecommendBatch(_ context.Context, reqs []request.Recommend) ([][]point.ScoredPoint, error) {
	f.record("RecommendBatch")
	if f.recommendBatchFn != nil {
		return f.recommendBatchFn(reqs)
	}
	return make([][]point.ScoredPoint, len(reqs)), nil
}

func (f *fakeIndex) RecommendGroups(
	_ context.Context, req *request.Recommend, g request.Group,
) ([]point.Group, error) {
	f.record("RecommendGroups")
	if f.recommendGroupsFn != nil {
		return f.recommendGroupsFn(req, g)
	}
	return nil, nil
}

func (f *fakeIndex) Retrieve(_ context.Context, ids []point.ID, withVectors bool) ([]point.Record, error) {
	f.record("Retrieve")
	if f.retrieveFn != nil {
		return f.retrieveFn(ids, withVectors)
	}
	return nil, nil
}

func (f *fakeIndex) ScrollByIDs(_ context.Context, ids []point.ID) ([]point.Record, error) {
	f.record("ScrollByIDs")
	if f.scrollFn != nil {
		return f.scrollFn(ids)
	}
	return nil, nil
}

func (f *fakeIndex) CollectionInfo(_ context.Context) (collection.Info, error) {
	f.record("CollectionInfo")
	return f.info, f.infoErr
}

type mockEmbedder struct {
	mu     sync.Mutex
	vec    []float32
	tokens int
	err    error
	texts  []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: m.tokens}, nil
}

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

// --- Helpers ---

func product(id uint64, slug string) point.ScoredPoint {
	return point.ScoredPoint{
		ID:      point.NumID(id),
		Score:   1,
		Payload: productPayload(slug),
	}
}

func productPayload(slug string) point.Payload {
	return point.Payload{
		"name":        "dish",
		"description": "tasty",
		"image":       "dish.jpg",
		"cafe": map[string]any{
			"name":     "cafe " + slug,
			"slug":     slug,
			"location": map[string]any{"lat": 52.52, "lon": 13.40},
		},
	}
}

func idExamples(ns ...uint64) []point.Example {
	out := make([]point.Example, len(ns))
	for i, n := range ns {
		out[i] = point.FromID(point.NumID(n))
	}
	return out
}

func mustQuery(t *testing.T, p query.Params) *query.Query {
	t.Helper()
	q, err := query.New(p, query.DefaultLimits())
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}

func mustInfo(t *testing.T, dim int, count uint64) collection.Info {
	t.Helper()
	info, err := collection.New("food", dim, count)
	if err != nil {
		t.Fatalf("collection.New: %v", err)
	}
	return info
}
