package discovery

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/geo"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	"github.com/kailas-cloud/discovery/internal/domain/search/strategy"
)

func formatUint(n uint64) string { return strconv.FormatUint(n, 10) }

func toQuery(req *Request, limits query.Limits) (query.Query, error) {
	if req.Limit < 0 {
		return query.Query{}, fmt.Errorf("limit must be at least 1, got %d: %w", req.Limit, domain.ErrInvalidLimit)
	}
	p := query.Params{
		Text:     req.Text,
		Queries:  req.Queries,
		Positive: toExamples(req.Positive),
		Negative: toExamples(req.Negative),
		Limit:    req.Limit,
		Strategy: strategy.Strategy(req.Strategy),
	}
	if loc := req.Near; loc != nil {
		c, err := geo.NewConstraint(loc.Latitude, loc.Longitude, loc.RadiusKm)
		if err != nil {
			return query.Query{}, fmt.Errorf("location: %w: %w", err, domain.ErrInvalidQuery)
		}
		p.Location = &c
	}
	q, err := query.New(p, limits)
	if err != nil {
		return query.Query{}, fmt.Errorf("discovery: %w", err)
	}
	return q, nil
}

func toExamples(in []Example) []point.Example {
	if len(in) == 0 {
		return nil
	}
	out := make([]point.Example, len(in))
	for i, e := range in {
		if e.vector != nil {
			out[i] = point.FromVector(e.vector)
			continue
		}
		out[i] = point.FromID(point.ParseID(e.id))
	}
	return out
}

func fromProducts(in []result.Product) []Item {
	out := make([]Item, len(in))
	for i, p := range in {
		out[i] = Item{
			ID:          p.ID.String(),
			Name:        p.Name,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			Restaurant: Restaurant{
				Name:      p.Restaurant.Name,
				Slug:      p.Restaurant.Slug,
				Address:   p.Restaurant.Address,
				Rating:    p.Restaurant.Rating,
				Latitude:  p.Restaurant.Location.Latitude,
				Longitude: p.Restaurant.Location.Longitude,
			},
			Payload: p.Payload,
		}
	}
	return out
}

func toRecords(in []Record) ([]point.Record, error) {
	out := make([]point.Record, len(in))
	for i, r := range in {
		id := point.ParseID(r.ID)
		if id.IsZero() {
			return nil, fmt.Errorf("discovery: record %d has no id: %w", i, domain.ErrInvalidQuery)
		}
		out[i] = point.Record{ID: id, Vector: r.Vector, Payload: r.Payload}
	}
	return out, nil
}
