package redis

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain/geo"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
)

func isFTSearch(cmd []string) bool { return cmd[0] == "FT.SEARCH" }

// hit builds one [key, [field, value, ...]] pair of an FT.SEARCH reply.
func hit(key, distance string, kv ...string) []rueidis.RedisMessage {
	fields := []rueidis.RedisMessage{mock.RedisString(scoreField), mock.RedisString(distance)}
	for _, s := range kv {
		fields = append(fields, mock.RedisString(s))
	}
	return []rueidis.RedisMessage{mock.RedisString(key), mock.RedisArray(fields...)}
}

func reply(total int64, hits ...[]rueidis.RedisMessage) rueidis.RedisResult {
	msgs := []rueidis.RedisMessage{mock.RedisInt64(total)}
	for _, h := range hits {
		msgs = append(msgs, h...)
	}
	return mock.Result(mock.RedisArray(msgs...))
}

func berlinFilter(t *testing.T, key string) filter.Expression {
	t.Helper()
	c, err := geo.NewConstraint(52.52, 13.405, 2.5)
	if err != nil {
		t.Fatalf("NewConstraint: %v", err)
	}
	expr, err := filter.NewCompiler(key).Compile(&c)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return expr
}

func TestSearchKNN(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.MatchFn(isFTSearch)).
		Return(reply(2,
			hit("discovery:food:1", "0.1", "payload", `{"name":"Pad thai"}`),
			hit("discovery:food:2", "0.4"),
		))

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1, 0.2}, K: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || len(res.Entries) != 2 {
		t.Fatalf("result = %+v", res)
	}
	first := res.Entries[0]
	if first.Key != "discovery:food:1" || first.Fields["payload"] != `{"name":"Pad thai"}` {
		t.Errorf("first = %+v", first)
	}
	if first.Score < 0.899 || first.Score > 0.901 {
		t.Errorf("distance 0.1 must become similarity 0.9, got %f", first.Score)
	}
	if _, leaked := first.Fields[scoreField]; leaked {
		t.Error("score field must be stripped from Fields")
	}
}

func TestSearchKNN_Replies(t *testing.T) {
	tests := []struct {
		name    string
		reply   rueidis.RedisResult
		entries int
		wantErr error
	}{
		{"no hits", reply(0), 0, nil},
		{"empty array", mock.Result(mock.RedisArray()), 0, nil},
		{"unknown index", mock.Result(mock.RedisError("Unknown index name")), 0, db.ErrIndexNotFound},
		{"no such index", mock.Result(mock.RedisError("idx: no such index")), 0, db.ErrIndexNotFound},
		{"timeout", mock.ErrorResult(context.DeadlineExceeded), 0, context.DeadlineExceeded},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.MatchFn(isFTSearch)).Return(tc.reply)

			res, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 5})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Entries) != tc.entries {
				t.Errorf("entries = %d, want %d", len(res.Entries), tc.entries)
			}
		})
	}
}

func TestSearchKNN_InvalidQueryIsNotSent(t *testing.T) {
	s, _ := newMockStore(t)
	for _, q := range []db.KNNQuery{
		{Vector: []float32{1}, K: 1},
		{IndexName: "idx", K: 1},
		{IndexName: "idx", Vector: []float32{1}},
	} {
		if _, err := s.SearchKNN(context.Background(), &q); err == nil {
			t.Errorf("%+v: expected validation error", q)
		}
	}
}

func TestKNNArgs(t *testing.T) {
	args, err := knnArgs(&db.KNNQuery{
		IndexName:    "discovery:food:idx",
		Filters:      berlinFilter(t, "cafe.location"),
		Vector:       []float32{1, 0},
		K:            25,
		ReturnFields: []string{"payload", "vector"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"discovery:food:idx",
		"(@cafe_location:[13.405 52.52 2500 m])=>[KNN 25 @vector $BLOB]",
		"RETURN", "2", "payload", "vector",
		"SORTBY", scoreField,
		"LIMIT", "0", "25",
		"PARAMS", "2", "BLOB", db.VectorToBytes([]float32{1, 0}),
		"DIALECT", "2",
	}
	if !slices.Equal(args, want) {
		t.Errorf("args =\n%q\nwant\n%q", args, want)
	}
}

func TestKNNArgs_UnfilteredCustomField(t *testing.T) {
	args, err := knnArgs(&db.KNNQuery{IndexName: "idx", VectorField: "clip", Vector: []float32{1}, K: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[1] != "*=>[KNN 3 @clip $BLOB]" {
		t.Errorf("query = %q", args[1])
	}
	if slices.Contains(args, "RETURN") {
		t.Error("RETURN must be omitted without return fields")
	}
}

func TestBuildFilter(t *testing.T) {
	if got := buildFilter(filter.Expression{}); got != "" {
		t.Errorf("empty expression = %q", got)
	}
	if got := buildFilter(berlinFilter(t, "shop.geo")); got != "@shop_geo:[13.405 52.52 2500 m]" {
		t.Errorf("custom key = %q", got)
	}
}

func TestSearchKNNMulti(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(), mock.MatchFn(isFTSearch), mock.MatchFn(isFTSearch)).
		Return([]rueidis.RedisResult{
			reply(1, hit("discovery:food:1", "0.25")),
			reply(0),
		})

	results, err := s.SearchKNNMulti(context.Background(), []db.KNNQuery{
		{IndexName: "idx", Vector: []float32{1}, K: 1},
		{IndexName: "idx", Vector: []float32{-1}, K: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || len(results[0].Entries) != 1 || results[0].Entries[0].Score != 0.75 {
		t.Fatalf("results = %+v", results)
	}
	if len(results[1].Entries) != 0 {
		t.Errorf("second = %+v", results[1])
	}
}

func TestSearchKNNMulti_Errors(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{reply(0), mock.ErrorResult(context.DeadlineExceeded)})

	_, err := s.SearchKNNMulti(context.Background(), []db.KNNQuery{
		{IndexName: "idx", Vector: []float32{1}, K: 1},
		{IndexName: "idx", Vector: []float32{1}, K: 1},
	})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSearch {
		t.Errorf("expected FT.SEARCH db.Error, got %v", err)
	}

	if res, err := s.SearchKNNMulti(context.Background(), nil); err != nil || res != nil {
		t.Errorf("empty input: %v, %v", res, err)
	}
	if _, err := s.SearchKNNMulti(context.Background(), []db.KNNQuery{{IndexName: "idx"}}); err == nil {
		t.Error("expected validation error")
	}
}

func TestSearchCount(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("FT.SEARCH", "idx", "*", "LIMIT", "0", "0")).
			Return(mock.Result(mock.RedisArray(mock.RedisInt64(42)))),
		c.EXPECT().Do(gomock.Any(), mock.Match("FT.SEARCH", "idx", "*", "LIMIT", "0", "0")).
			Return(mock.Result(mock.RedisArray())),
	)

	if n, err := s.SearchCount(context.Background(), "idx", "*"); err != nil || n != 42 {
		t.Errorf("count = %d, %v", n, err)
	}
	if n, err := s.SearchCount(context.Background(), "idx", "*"); err != nil || n != 0 {
		t.Errorf("empty reply = %d, %v", n, err)
	}
}
