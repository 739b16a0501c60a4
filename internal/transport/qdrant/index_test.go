package qdrant

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
)

func TestCollectionInfo(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.infoFn = func(name string) (*qdrant.CollectionInfo, error) {
		if name != "food" {
			t.Errorf("collection = %q", name)
		}
		return &qdrant.CollectionInfo{
			PointsCount: qdrant.PtrOf(uint64(7)),
			Config: &qdrant.CollectionConfig{Params: &qdrant.CollectionParams{
				VectorsConfig: &qdrant.VectorsConfig{Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{Size: 512, Distance: qdrant.Distance_Cosine},
				}},
			}},
		}, nil
	}

	info, err := idx.CollectionInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Dimension() != 512 || info.PointCount() != 7 || info.Name() != "food" {
		t.Errorf("info = %+v", info)
	}
}

func TestCollectionInfo_NoDenseVector(t *testing.T) {
	idx, _ := newTestIndex(t)
	_, err := idx.CollectionInfo(context.Background())
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestCollectionInfo_NamedVectors(t *testing.T) {
	info := namedCollection(map[string]uint64{"image": 4, "text": 8})

	tests := []struct {
		name    string
		vector  string
		wantDim int
		wantErr string
	}{
		{name: "configured name", vector: "image", wantDim: 4},
		{name: "other name", vector: "text", wantDim: 8},
		{name: "name not set", wantErr: "[image text]"},
		{name: "unknown name", vector: "audio", wantErr: `"audio"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, fc := newNamedTestIndex(t, tt.vector)
			fc.infoFn = func(string) (*qdrant.CollectionInfo, error) { return info, nil }

			got, err := idx.CollectionInfo(context.Background())
			if tt.wantErr != "" {
				if !errors.Is(err, domain.ErrIndexUnavailable) || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected ErrIndexUnavailable mentioning %s, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Dimension() != tt.wantDim {
				t.Errorf("dimension = %d, want %d", got.Dimension(), tt.wantDim)
			}
		})
	}
}

func TestNamedVector_QueriesAndReads(t *testing.T) {
	idx, fc := newNamedTestIndex(t, "image")
	fc.scrollFn = func(*qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
		return []*qdrant.RetrievedPoint{{
			Id: qdrant.NewIDNum(4),
			Vectors: namedVectors(map[string]*qdrant.VectorOutput{
				"image": dense(0.1, 0.2, 0.3, 0.4),
				"text":  dense(9, 9),
			}),
		}}, nil
	}
	var using []string
	fc.queryFn = func(req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
		using = append(using, req.GetUsing())
		return nil, nil
	}
	fc.queryGroupsFn = func(req *qdrant.QueryPointGroups) ([]*qdrant.PointGroup, error) {
		using = append(using, req.GetUsing())
		return nil, nil
	}

	recs, err := idx.ScrollByIDs(context.Background(), []point.ID{point.NumID(4)})
	if err != nil {
		t.Fatalf("ScrollByIDs: %v", err)
	}
	if len(recs) != 1 || len(recs[0].Vector) != 4 || recs[0].Vector[0] != 0.1 {
		t.Fatalf("records = %+v", recs)
	}

	ctx := context.Background()
	search := &request.Search{Vector: []float32{1, 0, 0, 0}, Limit: 1}
	rec := &request.Recommend{Positive: []point.Example{point.FromID(point.NumID(4))}, Limit: 1,
		Strategy: strategy.AverageVector}
	group := request.Group{By: "cafe.slug", Size: 1}
	if _, err := idx.Search(ctx, search); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, err := idx.SearchGroups(ctx, search, group); err != nil {
		t.Fatalf("SearchGroups: %v", err)
	}
	if _, err := idx.Recommend(ctx, rec); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if _, err := idx.RecommendGroups(ctx, rec, group); err != nil {
		t.Fatalf("RecommendGroups: %v", err)
	}
	if want := []string{"image", "image", "image", "image"}; !slices.Equal(using, want) {
		t.Errorf("using = %q, want %q", using, want)
	}
}

func TestUnnamedVector_LeavesUsingUnset(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.queryFn = func(req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
		if req.Using != nil {
			t.Errorf("using = %q, want unset", req.GetUsing())
		}
		return nil, nil
	}
	if _, err := idx.Search(context.Background(), &request.Search{Vector: []float32{1}, Limit: 1}); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing collection", status.Error(codes.NotFound, "Not found: Collection `food` doesn't exist!"),
			domain.ErrCollectionNotFound},
		{"missing point", status.Error(codes.NotFound, "Not found: No point with id 404 found"), domain.ErrUnknownItem},
		{"bad request", status.Error(codes.InvalidArgument, "Wrong input: Vector dimension error"), domain.ErrInvalidQuery},
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), domain.ErrIndexUnavailable},
		{"deadline", status.Error(codes.DeadlineExceeded, "deadline"), context.DeadlineExceeded},
		{"plain", errors.New("boom"), domain.ErrIndexUnavailable},
		{"canceled", context.Canceled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, fc := newTestIndex(t)
			fc.queryFn = func(*qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) { return nil, tt.err }

			_, err := idx.Search(context.Background(), &request.Search{Vector: []float32{1, 0}, Limit: 1})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPing(t *testing.T) {
	idx, fc := newTestIndex(t)
	if err := idx.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fc.healthFn = func() (*qdrant.HealthCheckReply, error) {
		return nil, status.Error(codes.Unavailable, "down")
	}
	if err := idx.Ping(context.Background()); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestSearch_BuildsQuery(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.queryFn = func(req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
		if req.GetCollectionName() != "food" || req.GetLimit() != 3 {
			t.Errorf("request = %v", req)
		}
		if got := req.GetQuery().GetNearest().GetDense().GetData(); len(got) != 2 || got[0] != 1 {
			t.Errorf("query vector = %v", got)
		}
		geoCond := req.GetFilter().GetMust()[0].GetField()
		if geoCond.GetKey() != "cafe.location" || geoCond.GetGeoRadius().GetRadius() != 2500 {
			t.Errorf("filter = %v", req.GetFilter())
		}
		return []*qdrant.ScoredPoint{scored(9, 0.75, "a")}, nil
	}

	hits, err := idx.Search(context.Background(), &request.Search{
		Vector: []float32{1, 0}, Filter: mustGeoFilter(t), Limit: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != point.NumID(9) || hits[0].Score != 0.75 {
		t.Fatalf("hits = %+v", hits)
	}
	if slug, _ := hits[0].Payload.String("cafe.slug"); slug != "a" {
		t.Errorf("payload = %v", hits[0].Payload)
	}
}

func TestSearch_InvalidRequest(t *testing.T) {
	idx, fc := newTestIndex(t)
	_, err := idx.Search(context.Background(), &request.Search{Vector: []float32{1}, Limit: 0})
	if !errors.Is(err, domain.ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if len(fc.calls) != 0 {
		t.Errorf("no call expected, got %v", fc.calls)
	}
}

func TestSearchBatch_OneCall(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.queryBatchFn = func(req *qdrant.QueryBatchPoints) ([]*qdrant.BatchResult, error) {
		if len(req.GetQueryPoints()) != 2 {
			t.Fatalf("queries = %d", len(req.GetQueryPoints()))
		}
		return []*qdrant.BatchResult{
			{Result: []*qdrant.ScoredPoint{scored(1, 0.9, "a")}},
			{Result: []*qdrant.ScoredPoint{scored(2, 0.8, "b")}},
		}, nil
	}

	res, err := idx.SearchBatch(context.Background(), []request.Search{
		{Vector: []float32{1, 0}, Limit: 1},
		{Vector: []float32{0, 1}, Limit: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc.calls) != 1 || res[0][0].ID != point.NumID(1) || res[1][0].ID != point.NumID(2) {
		t.Errorf("calls = %v results = %+v", fc.calls, res)
	}
}

func TestSearchBatch_ShortReply(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.queryBatchFn = func(*qdrant.QueryBatchPoints) ([]*qdrant.BatchResult, error) {
		return []*qdrant.BatchResult{{}}, nil
	}
	_, err := idx.SearchBatch(context.Background(), []request.Search{
		{Vector: []float32{1, 0}, Limit: 1},
		{Vector: []float32{0, 1}, Limit: 1},
	})
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestSearchGroups(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.queryGroupsFn = func(req *qdrant.QueryPointGroups) ([]*qdrant.PointGroup, error) {
		if req.GetGroupBy() != "cafe.slug" || req.GetGroupSize() != 1 || req.GetLimit() != 2 {
			t.Errorf("request = %v", req)
		}
		return []*qdrant.PointGroup{
			{Id: &qdrant.GroupId{Kind: &qdrant.GroupId_StringValue{StringValue: "a"}},
				Hits: []*qdrant.ScoredPoint{scored(1, 0.9, "a")}},
			{Id: &qdrant.GroupId{Kind: &qdrant.GroupId_UnsignedValue{UnsignedValue: 7}},
				Hits: []*qdrant.ScoredPoint{scored(2, 0.8, "b")}},
		}, nil
	}

	groups, err := idx.SearchGroups(context.Background(), &request.Search{Vector: []float32{1, 0}, Limit: 2},
		request.Group{By: "cafe.slug", Size: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 || groups[0].Key != "a" || groups[1].Key != "7" || groups[1].Hits[0].ID != point.NumID(2) {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestRecommend_NativeStrategy(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.queryFn = func(req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
		rec := req.GetQuery().GetRecommend()
		if rec == nil {
			t.Fatal("expected a recommend query")
		}
		if rec.GetStrategy() != qdrant.RecommendStrategy_BestScore {
			t.Errorf("strategy = %v", rec.GetStrategy())
		}
		if len(rec.GetPositive()) != 1 || rec.GetPositive()[0].GetId().GetNum() != 5 {
			t.Errorf("positive = %v", rec.GetPositive())
		}
		if len(rec.GetNegative()) != 1 || len(rec.GetNegative()[0].GetDense().GetData()) != 2 {
			t.Errorf("negative = %v", rec.GetNegative())
		}
		return []*qdrant.ScoredPoint{scored(6, 0.4, "c")}, nil
	}

	hits, err := idx.Recommend(context.Background(), &request.Recommend{
		Positive: []point.Example{point.FromID(point.NumID(5))},
		Negative: []point.Example{point.FromVector([]float32{0, 1})},
		Strategy: strategy.BestScore,
		Limit:    4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != point.NumID(6) {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestRecommend_InvalidID(t *testing.T) {
	idx, fc := newTestIndex(t)
	_, err := idx.Recommend(context.Background(), &request.Recommend{
		Positive: []point.Example{point.FromID(point.StrID("not-a-uuid"))},
		Strategy: strategy.AverageVector,
		Limit:    1,
	})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if len(fc.calls) != 0 {
		t.Errorf("no call expected, got %v", fc.calls)
	}
}

func TestRecommendBatch_AndGroups(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.queryGroupsFn = func(req *qdrant.QueryPointGroups) ([]*qdrant.PointGroup, error) {
		if req.GetQuery().GetRecommend().GetStrategy() != qdrant.RecommendStrategy_AverageVector {
			t.Errorf("query = %v", req.GetQuery())
		}
		return nil, nil
	}

	reqs := []request.Recommend{
		{Positive: []point.Example{point.FromID(point.NumID(1))}, Strategy: strategy.AverageVector, Limit: 1},
		{Positive: []point.Example{point.FromID(point.NumID(2))}, Strategy: strategy.AverageVector, Limit: 1},
	}
	res, err := idx.RecommendBatch(context.Background(), reqs)
	if err != nil || len(res) != 2 {
		t.Fatalf("RecommendBatch = %v, %v", res, err)
	}
	if _, err := idx.RecommendGroups(context.Background(), &reqs[0], request.Group{By: "cafe.slug", Size: 1}); err != nil {
		t.Fatalf("RecommendGroups: %v", err)
	}
	if len(fc.calls) != 2 || fc.calls[0] != "QueryBatch" || fc.calls[1] != "QueryGroups" {
		t.Errorf("calls = %v", fc.calls)
	}
}

func TestRetrieve_RequestOrder(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.getFn = func(req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error) {
		if len(req.GetIds()) != 3 {
			t.Errorf("ids = %v", req.GetIds())
		}
		return []*qdrant.RetrievedPoint{
			{Id: qdrant.NewIDNum(3), Payload: dishPayload("b")},
			{Id: qdrant.NewIDNum(1), Payload: dishPayload("a")},
		}, nil
	}

	recs, err := idx.Retrieve(context.Background(), []point.ID{point.NumID(1), point.NumID(2), point.NumID(3)}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != point.NumID(1) || recs[1].ID != point.NumID(3) {
		t.Fatalf("records = %+v", recs)
	}
}

func TestScrollByIDs_HasIDFilter(t *testing.T) {
	idx, fc := newTestIndex(t)
	fc.scrollFn = func(req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
		has := req.GetFilter().GetMust()[0].GetHasId().GetHasId()
		if len(has) != 2 || req.GetLimit() != 2 {
			t.Errorf("scroll = %v", req)
		}
		return []*qdrant.RetrievedPoint{{Id: qdrant.NewIDNum(4), Vectors: vectors(0.5, 0.5)}}, nil
	}

	recs, err := idx.ScrollByIDs(context.Background(), []point.ID{point.NumID(4), point.NumID(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || len(recs[0].Vector) != 2 {
		t.Fatalf("records = %+v", recs)
	}
}
