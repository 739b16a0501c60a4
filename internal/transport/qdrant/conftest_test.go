package qdrant

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain/geo"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
)

// fakeClient implements client with overridable calls.
type fakeClient struct {
	queryFn       func(req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	queryBatchFn  func(req *qdrant.QueryBatchPoints) ([]*qdrant.BatchResult, error)
	queryGroupsFn func(req *qdrant.QueryPointGroups) ([]*qdrant.PointGroup, error)
	getFn         func(req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	scrollFn      func(req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	infoFn        func(name string) (*qdrant.CollectionInfo, error)
	healthFn      func() (*qdrant.HealthCheckReply, error)
	calls         []string
}

func (f *fakeClient) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.calls = append(f.calls, "Query")
	if f.queryFn != nil {
		return f.queryFn(req)
	}
	return nil, nil
}

func (f *fakeClient) QueryBatch(_ context.Context, req *qdrant.QueryBatchPoints) ([]*qdrant.BatchResult, error) {
	f.calls = append(f.calls, "QueryBatch")
	if f.queryBatchFn != nil {
		return f.queryBatchFn(req)
	}
	out := make([]*qdrant.BatchResult, len(req.QueryPoints))
	for n := range out {
		out[n] = &qdrant.BatchResult{}
	}
	return out, nil
}

func (f *fakeClient) QueryGroups(_ context.Context, req *qdrant.QueryPointGroups) ([]*qdrant.PointGroup, error) {
	f.calls = append(f.calls, "QueryGroups")
	if f.queryGroupsFn != nil {
		return f.queryGroupsFn(req)
	}
	return nil, nil
}

func (f *fakeClient) Get(_ context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error) {
	f.calls = append(f.calls, "Get")
	if f.getFn != nil {
		return f.getFn(req)
	}
	return nil, nil
}

func (f *fakeClient) Scroll(_ context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error) {
	f.calls = append(f.calls, "Scroll")
	if f.scrollFn != nil {
		return f.scrollFn(req)
	}
	return nil, nil
}

func (f *fakeClient) GetCollectionInfo(_ context.Context, name string) (*qdrant.CollectionInfo, error) {
	f.calls = append(f.calls, "GetCollectionInfo")
	if f.infoFn != nil {
		return f.infoFn(name)
	}
	return &qdrant.CollectionInfo{}, nil
}

func (f *fakeClient) HealthCheck(context.Context) (*qdrant.HealthCheckReply, error) {
	f.calls = append(f.calls, "HealthCheck")
	if f.healthFn != nil {
		return f.healthFn()
	}
	return &qdrant.HealthCheckReply{Title: "qdrant", Version: "1.14.0"}, nil
}

func newTestIndex(t *testing.T) (*Index, *fakeClient) {
	t.Helper()
	return newNamedTestIndex(t, "")
}

// newNamedTestIndex queries the collection vector called vector.
func newNamedTestIndex(t *testing.T, vector string) (*Index, *fakeClient) {
	t.Helper()
	fc := &fakeClient{}
	return newIndex(fc, "food", vector, zap.NewNop()), fc
}

func str(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func num(f float64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: f}}
}

func object(fields map[string]*qdrant.Value) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}
}

// dishPayload is a stored product payload served by cafe slug.
func dishPayload(slug string) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"name": str("dish-" + slug),
		"cafe": object(map[string]*qdrant.Value{
			"slug":     str(slug),
			"location": object(map[string]*qdrant.Value{"lat": num(52.5), "lon": num(13.4)}),
		}),
	}
}

func vectors(v ...float32) *qdrant.VectorsOutput {
	return &qdrant.VectorsOutput{VectorsOptions: &qdrant.VectorsOutput_Vector{Vector: &qdrant.VectorOutput{Data: v}}}
}

func dense(v ...float32) *qdrant.VectorOutput {
	return &qdrant.VectorOutput{Vector: &qdrant.VectorOutput_Dense{Dense: &qdrant.DenseVector{Data: v}}}
}

func namedVectors(named map[string]*qdrant.VectorOutput) *qdrant.VectorsOutput {
	return &qdrant.VectorsOutput{VectorsOptions: &qdrant.VectorsOutput_Vectors{
		Vectors: &qdrant.NamedVectorsOutput{Vectors: named},
	}}
}

// namedCollection describes a collection whose only vectors are named.
func namedCollection(sizes map[string]uint64) *qdrant.CollectionInfo {
	m := make(map[string]*qdrant.VectorParams, len(sizes))
	for name, size := range sizes {
		m[name] = &qdrant.VectorParams{Size: size, Distance: qdrant.Distance_Cosine}
	}
	return &qdrant.CollectionInfo{
		PointsCount: qdrant.PtrOf(uint64(1)),
		Config: &qdrant.CollectionConfig{Params: &qdrant.CollectionParams{
			VectorsConfig: &qdrant.VectorsConfig{Config: &qdrant.VectorsConfig_ParamsMap{
				ParamsMap: &qdrant.VectorParamsMap{Map: m},
			}},
		}},
	}
}

func scored(id uint64, score float32, slug string) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{Id: qdrant.NewIDNum(id), Score: score, Payload: dishPayload(slug)}
}

func mustGeoFilter(t *testing.T) filter.Expression {
	t.Helper()
	c, err := geo.NewConstraint(52.52, 13.40, 2.5)
	if err != nil {
		t.Fatalf("NewConstraint: %v", err)
	}
	expr, err := filter.NewCompiler("cafe.location").Compile(&c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return expr
}
