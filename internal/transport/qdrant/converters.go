package qdrant

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
)

// toPointID maps numeric ids to Num and UUID strings to Uuid. Qdrant knows no other id kinds.
func toPointID(id point.ID) (*qdrant.PointId, error) {
	if id.IsNum() {
		return qdrant.NewIDNum(id.Num()), nil
	}
	u, err := uuid.Parse(id.String())
	if err != nil {
		return nil, fmt.Errorf("point id %q is neither unsigned nor a UUID: %w", id, domain.ErrInvalidQuery)
	}
	return qdrant.NewIDUUID(u.String()), nil
}

func toPointIDs(ids []point.ID) ([]*qdrant.PointId, error) {
	out := make([]*qdrant.PointId, len(ids))
	for n, id := range ids {
		pid, err := toPointID(id)
		if err != nil {
			return nil, err
		}
		out[n] = pid
	}
	return out, nil
}

func fromPointID(id *qdrant.PointId) point.ID {
	if u := id.GetUuid(); u != "" {
		return point.StrID(u)
	}
	return point.NumID(id.GetNum())
}

// toFilter converts an expression; the empty expression is no filter at all.
func toFilter(expr filter.Expression) *qdrant.Filter {
	if expr.IsEmpty() {
		return nil
	}
	f := &qdrant.Filter{}
	for _, c := range expr.Must() {
		if g := c.GeoRadius(); g != nil {
			f.Must = append(f.Must, qdrant.NewGeoRadius(c.Key(), g.Latitude(), g.Longitude(), float32(g.RadiusMeters())))
		}
	}
	return f
}

func toVectorInputs(examples []point.Example) ([]*qdrant.VectorInput, error) {
	out := make([]*qdrant.VectorInput, 0, len(examples))
	for _, e := range examples {
		if e.IsVector() {
			out = append(out, qdrant.NewVectorInput(e.Vector()...))
			continue
		}
		id, err := toPointID(e.ID())
		if err != nil {
			return nil, err
		}
		out = append(out, qdrant.NewVectorInputID(id))
	}
	return out, nil
}

func toStrategy(s strategy.Strategy) (*qdrant.RecommendStrategy, error) {
	switch s {
	case strategy.AverageVector:
		return qdrant.RecommendStrategy_AverageVector.Enum(), nil
	case strategy.BestScore:
		return qdrant.RecommendStrategy_BestScore.Enum(), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: %w", s, domain.ErrInvalidQuery)
	}
}

func fromPayload(m map[string]*qdrant.Value) point.Payload {
	if len(m) == 0 {
		return point.Payload{}
	}
	out := make(point.Payload, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

// fromValue unwraps a protobuf value into the shapes encoding/json produces.
func fromValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_IntegerValue:
		return float64(k.IntegerValue)
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		fields := k.StructValue.GetFields()
		m := make(map[string]any, len(fields))
		for name, fv := range fields {
			m[name] = fromValue(fv)
		}
		return m
	case *qdrant.Value_ListValue:
		values := k.ListValue.GetValues()
		list := make([]any, len(values))
		for n, lv := range values {
			list[n] = fromValue(lv)
		}
		return list
	default:
		return nil
	}
}

// denseVector picks the index's vector out of a point's vectors: the unnamed
// one, or the one called name. Nil when vectors were not requested.
func denseVector(v *qdrant.VectorsOutput, name string) []float32 {
	out := v.GetVector()
	if name != "" {
		out = v.GetVectors().GetVectors()[name]
	}
	if data := out.GetDense().GetData(); len(data) > 0 {
		return data
	}
	data := out.GetData() //nolint:staticcheck // older servers fill only the deprecated field
	if len(data) == 0 {
		return nil
	}
	return data
}

func (i *Index) fromScored(hits []*qdrant.ScoredPoint) []point.ScoredPoint {
	out := make([]point.ScoredPoint, 0, len(hits))
	for _, h := range hits {
		out = append(out, point.ScoredPoint{
			ID:      fromPointID(h.GetId()),
			Score:   float64(h.GetScore()),
			Vector:  denseVector(h.GetVectors(), i.vector),
			Payload: fromPayload(h.GetPayload()),
		})
	}
	return out
}

func (i *Index) fromGroups(groups []*qdrant.PointGroup) []point.Group {
	out := make([]point.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, point.Group{Key: groupKey(g.GetId()), Hits: i.fromScored(g.GetHits())})
	}
	return out
}

func groupKey(id *qdrant.GroupId) string {
	switch k := id.GetKind().(type) {
	case *qdrant.GroupId_StringValue:
		return k.StringValue
	case *qdrant.GroupId_IntegerValue:
		return fmt.Sprint(k.IntegerValue)
	case *qdrant.GroupId_UnsignedValue:
		return fmt.Sprint(k.UnsignedValue)
	default:
		return ""
	}
}

func (i *Index) fromRetrieved(points []*qdrant.RetrievedPoint) map[point.ID]point.Record {
	out := make(map[point.ID]point.Record, len(points))
	for _, p := range points {
		id := fromPointID(p.GetId())
		out[id] = point.Record{ID: id, Vector: denseVector(p.GetVectors(), i.vector), Payload: fromPayload(p.GetPayload())}
	}
	return out
}
