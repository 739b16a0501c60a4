// Package point holds the item-level types shared by the engine and every index backend.
package point

import "sort"

// Record is a stored item as returned by point lookups.
type Record struct {
	ID      ID
	Vector  []float32
	Payload Payload
}

// ScoredPoint is a search hit. Higher scores rank first.
type ScoredPoint struct {
	ID      ID
	Score   float64
	Vector  []float32
	Payload Payload
}

// Group is a set of hits sharing the same value of the grouping key.
type Group struct {
	Key  string
	Hits []ScoredPoint
}

// SortByScore orders hits by descending score; ties keep their input order.
func SortByScore(points []ScoredPoint) {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Score > points[j].Score })
}

// GroupHits diversifies ranked hits: at most size hits per distinct value of the
// payload field by, at most limit groups, groups ordered by their best hit.
// Hits without the field are skipped. points must already be ranked.
func GroupHits(points []ScoredPoint, by string, size, limit int) []Group {
	if size <= 0 || limit <= 0 {
		return nil
	}
	var groups []Group
	index := make(map[string]int)
	for _, p := range points {
		key, ok := p.Payload.GroupKey(by)
		if !ok {
			continue
		}
		gi, seen := index[key]
		if !seen {
			if len(groups) == limit {
				continue
			}
			index[key] = len(groups)
			groups = append(groups, Group{Key: key, Hits: []ScoredPoint{p}})
			continue
		}
		if len(groups[gi].Hits) < size {
			groups[gi].Hits = append(groups[gi].Hits, p)
		}
	}
	return groups
}

// Flatten concatenates group hits in group order and caps the result at limit.
func Flatten(groups []Group, limit int) []ScoredPoint {
	out := make([]ScoredPoint, 0, max(limit, 0))
	for _, g := range groups {
		for _, h := range g.Hits {
			if len(out) == limit {
				return out
			}
			out = append(out, h)
		}
	}
	return out
}

// Dedupe drops repeated ids, keeping the first occurrence.
func Dedupe(points []ScoredPoint) []ScoredPoint {
	seen := make(map[ID]struct{}, len(points))
	out := points[:0:0]
	for _, p := range points {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Exclude drops hits whose id is in ids.
func Exclude(points []ScoredPoint, ids []ID) []ScoredPoint {
	if len(ids) == 0 {
		return points
	}
	skip := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		skip[id] = struct{}{}
	}
	out := points[:0:0]
	for _, p := range points {
		if _, ok := skip[p.ID]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Truncate caps points at limit.
func Truncate(points []ScoredPoint, limit int) []ScoredPoint {
	if len(points) > limit {
		return points[:limit]
	}
	return points
}
