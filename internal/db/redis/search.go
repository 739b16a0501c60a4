package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
)

// scoreField is the alias FT.SEARCH gives the KNN distance.
const scoreField = "__vector_score"

// SearchKNN runs one FT.SEARCH KNN query.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	args, err := knnArgs(q)
	if err != nil {
		return nil, err
	}
	reply, err := s.do(ctx, s.ftSearch(args)).ToArray()
	if err != nil {
		return nil, searchErr(err)
	}
	return parseSearchReply(reply)
}

// SearchKNNMulti pipelines qs and returns results in the same order.
func (s *Store) SearchKNNMulti(ctx context.Context, qs []db.KNNQuery) ([]*db.SearchResult, error) {
	if len(qs) == 0 {
		return nil, nil
	}
	cmds := make([]rueidis.Completed, len(qs))
	for i := range qs {
		args, err := knnArgs(&qs[i])
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
		cmds[i] = s.ftSearch(args)
	}

	out := make([]*db.SearchResult, len(qs))
	err := s.doEach(ctx, cmds, func(i int, res rueidis.RedisResult) error {
		reply, err := res.ToArray()
		if err != nil {
			return fmt.Errorf("query %d: %w", i, searchErr(err))
		}
		if out[i], err = parseSearchReply(reply); err != nil {
			return fmt.Errorf("query %d: %w", i, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SearchCount returns how many hashes match query.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	reply, err := s.do(ctx, s.ftSearch([]string{index, query, "LIMIT", "0", "0"})).ToArray()
	if err != nil {
		return 0, searchErr(err)
	}
	if len(reply) == 0 {
		return 0, nil
	}
	n, err := reply[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("count: %w", err)}
	}
	return int(n), nil
}

func (s *Store) ftSearch(args []string) rueidis.Completed {
	return s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
}

func searchErr(err error) error {
	if isRedisErr(err, errUnknownIndex) || isRedisErr(err, "no such index") {
		return db.ErrIndexNotFound
	}
	return &db.Error{Op: db.OpSearch, Err: err}
}

// knnArgs renders
//
//	idx "(filter)=>[KNN k @vector $BLOB]" [RETURN n f...] SORTBY __vector_score LIMIT 0 k PARAMS 2 BLOB <bytes> DIALECT 2
//
// LIMIT is explicit because FT.SEARCH otherwise stops at 10 rows.
func knnArgs(q *db.KNNQuery) ([]string, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	k := strconv.Itoa(q.K)

	prefilter := "*"
	if f := buildFilter(q.Filters); f != "" {
		prefilter = "(" + f + ")"
	}
	args := []string{q.IndexName, prefilter + "=>[KNN " + k + " @" + q.Field() + " $BLOB]"}
	if n := len(q.ReturnFields); n > 0 {
		args = append(args, "RETURN", strconv.Itoa(n))
		args = append(args, q.ReturnFields...)
	}
	return append(args,
		"SORTBY", scoreField,
		"LIMIT", "0", k,
		"PARAMS", "2", "BLOB", db.VectorToBytes(q.Vector),
		"DIALECT", "2",
	), nil
}

// parseSearchReply reads the RESP2 reply [total, key, [field, value, ...], key, ...].
// Cosine distance is turned into similarity, 1 - d.
func parseSearchReply(reply []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(reply) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := reply[0].AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("total: %w", err)}
	}

	res := &db.SearchResult{Total: int(total)}
	for rest := reply[1:]; len(rest) >= 2; rest = rest[2:] {
		key, err := rest[0].ToString()
		if err != nil {
			continue
		}
		pairs, err := rest[1].ToArray()
		if err != nil {
			continue
		}
		entry := db.SearchEntry{Key: key, Fields: fieldMap(pairs)}
		if raw, ok := entry.Fields[scoreField]; ok {
			delete(entry.Fields, scoreField)
			if d, err := strconv.ParseFloat(raw, 64); err == nil {
				entry.Score = 1 - d
			}
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for ; len(pairs) >= 2; pairs = pairs[2:] {
		name, nerr := pairs[0].ToString()
		value, verr := pairs[1].ToString()
		if nerr == nil && verr == nil {
			m[name] = value
		}
	}
	return m
}

// buildFilter renders the pre-filter for expr. Conditions are ANDed; keys are
// payload paths mapped through db.FieldName. Unsupported conditions are skipped.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	var parts []string
	for _, cond := range expr.Must() {
		if !cond.IsGeoRadius() {
			continue
		}
		g := cond.GeoRadius()
		parts = append(parts, fmt.Sprintf("@%s:[%s %s %s m]", db.FieldName(cond.Key()),
			formatFloat(g.Longitude()), formatFloat(g.Latitude()), formatFloat(g.RadiusMeters())))
	}
	return strings.Join(parts, " ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
