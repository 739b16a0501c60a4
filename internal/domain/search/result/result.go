// Package result projects raw index hits into the products returned to callers.
package result

import (
	"fmt"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
)

// Location is a restaurant position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Restaurant describes the owning group of a product.
type Restaurant struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
	Rating   *float64 `json:"rating,omitempty"`
	Slug     string   `json:"slug,omitempty"`
	Address  string   `json:"address,omitempty"`
}

// Product is one discovery result. Built once per hit and never mutated.
type Product struct {
	ID          point.ID      `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	ImageURL    string        `json:"image_url"`
	Restaurant  Restaurant    `json:"restaurant"`
	Payload     point.Payload `json:"payload"`
}

// Mapping names the payload paths the projector reads.
type Mapping struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Image         string `yaml:"image"`
	GroupName     string `yaml:"group_name"`
	GroupLocation string `yaml:"group_location"`
	GroupRating   string `yaml:"group_rating"`
	GroupSlug     string `yaml:"group_slug"`
	GroupAddress  string `yaml:"group_address"`
}

// DefaultMapping returns the payload layout of the food catalog.
func DefaultMapping() Mapping {
	return Mapping{
		Name:          "name",
		Description:   "description",
		Image:         "image",
		GroupName:     "cafe.name",
		GroupLocation: "cafe.location",
		GroupRating:   "cafe.rating",
		GroupSlug:     "cafe.slug",
		GroupAddress:  "cafe.address",
	}
}

// WithDefaults fills empty paths from DefaultMapping.
func (m Mapping) WithDefaults() Mapping {
	d := DefaultMapping()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.Name, d.Name)
	fill(&m.Description, d.Description)
	fill(&m.Image, d.Image)
	fill(&m.GroupName, d.GroupName)
	fill(&m.GroupLocation, d.GroupLocation)
	fill(&m.GroupRating, d.GroupRating)
	fill(&m.GroupSlug, d.GroupSlug)
	fill(&m.GroupAddress, d.GroupAddress)
	return m
}

// Projector maps scored points into products.
type Projector struct {
	mapping Mapping
}

// NewProjector creates a projector. Empty mapping paths take their defaults.
func NewProjector(m Mapping) *Projector {
	return &Projector{mapping: m.WithDefaults()}
}

// Project maps a hit. Missing or mistyped required fields yield a *domain.MappingError.
func (p *Projector) Project(sp point.ScoredPoint) (Product, error) {
	m := p.mapping
	id := sp.ID.String()

	name, err := requireString(sp.Payload, id, m.Name)
	if err != nil {
		return Product{}, err
	}
	description, err := requireString(sp.Payload, id, m.Description)
	if err != nil {
		return Product{}, err
	}
	image, err := requireString(sp.Payload, id, m.Image)
	if err != nil {
		return Product{}, err
	}
	groupName, err := requireString(sp.Payload, id, m.GroupName)
	if err != nil {
		return Product{}, err
	}
	lat, lon, ok := sp.Payload.GeoPoint(m.GroupLocation)
	if !ok {
		return Product{}, domain.NewMappingError(id, m.GroupLocation, "is missing or not a {lat, lon} object")
	}

	r := Restaurant{
		Name:     groupName,
		Location: Location{Latitude: lat, Longitude: lon},
	}
	if rating, ok := sp.Payload.Float(m.GroupRating); ok {
		r.Rating = &rating
	}
	r.Slug, _ = sp.Payload.String(m.GroupSlug)
	r.Address, _ = sp.Payload.String(m.GroupAddress)

	return Product{
		ID:          sp.ID,
		Name:        name,
		Description: description,
		ImageURL:    image,
		Restaurant:  r,
		Payload:     sp.Payload,
	}, nil
}

// ProjectAll maps hits in order and fails on the first bad payload.
func (p *Projector) ProjectAll(points []point.ScoredPoint) ([]Product, error) {
	out := make([]Product, 0, len(points))
	for _, sp := range points {
		prod, err := p.Project(sp)
		if err != nil {
			return nil, fmt.Errorf("project results: %w", err)
		}
		out = append(out, prod)
	}
	return out, nil
}

func requireString(payload point.Payload, id, path string) (string, error) {
	v, ok := payload.Lookup(path)
	if !ok {
		return "", domain.NewMappingError(id, path, "is missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", domain.NewMappingError(id, path, fmt.Sprintf("is %T, want string", v))
	}
	return s, nil
}
