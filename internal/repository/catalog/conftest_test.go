package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain/geo"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	pingFn           func(ctx context.Context) error
	hsetMultiFn      func(ctx context.Context, items []db.HashSetItem) error
	hgetAllMultiFn   func(ctx context.Context, keys []string) ([]map[string]string, error)
	createIndexFn    func(ctx context.Context, schema *db.Schema) error
	dropIndexFn      func(ctx context.Context, name string) error
	indexExistsFn    func(ctx context.Context, name string) (bool, error)
	searchKNNFn      func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchKNNMultiFn func(ctx context.Context, qs []db.KNNQuery) ([]*db.SearchResult, error)
	searchCountFn    func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) CreateIndex(ctx context.Context, schema *db.Schema) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, schema)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchKNNMulti(ctx context.Context, qs []db.KNNQuery) ([]*db.SearchResult, error) {
	if m.searchKNNMultiFn != nil {
		return m.searchKNNMultiFn(ctx, qs)
	}
	out := make([]*db.SearchResult, len(qs))
	for i := range qs {
		out[i] = &db.SearchResult{}
	}
	return out, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func testConfig() Config {
	return Config{
		KeyPrefix:   "test:",
		Collection:  "food",
		Dimension:   2,
		LocationKey: "cafe.location",
		GroupKey:    "cafe.slug",
	}
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo, err := New(ms, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return repo, ms
}

// stored builds the hash of an item as Upsert writes it.
func stored(t *testing.T, v []float32, slug string) map[string]string {
	t.Helper()
	h, err := recordToHash(point.Record{Vector: v, Payload: payloadFor(slug)}, testConfig())
	if err != nil {
		t.Fatalf("recordToHash: %v", err)
	}
	return h
}

func payloadFor(slug string) point.Payload {
	return point.Payload{
		"name": "dish-" + slug,
		"cafe": map[string]any{
			"slug":     slug,
			"location": map[string]any{"lat": 52.5, "lon": 13.4},
		},
	}
}

// entry builds a KNN hit for item id with the given cosine similarity.
func entry(t *testing.T, id string, similarity float64, v []float32, slug string) db.SearchEntry {
	t.Helper()
	payload, err := json.Marshal(payloadFor(slug))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	fields := map[string]string{fieldPayload: string(payload)}
	if v != nil {
		fields[fieldVector] = db.VectorToBytes(v)
	}
	return db.SearchEntry{Key: "test:food:" + id, Score: similarity, Fields: fields}
}

func mustGeoFilter(t *testing.T) filter.Expression {
	t.Helper()
	c, err := geo.NewConstraint(52.5, 13.4, 1)
	if err != nil {
		t.Fatalf("NewConstraint: %v", err)
	}
	expr, err := filter.NewCompiler("cafe.location").Compile(&c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return expr
}
