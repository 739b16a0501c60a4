package discovery

// Strategy selects how positive and negative examples are combined.
type Strategy string

// Recommendation strategies.
const (
	AverageVector Strategy = "average_vector"
	BestScore     Strategy = "best_score"
)

// Path names how a request was resolved.
type Path string

// Resolution paths.
const (
	PathText         Path = "text"
	PathRandom       Path = "random"
	PathNegativeOnly Path = "negative_only"
	PathRecommend    Path = "recommend"
)

// Location restricts results to a radius around a point.
type Location struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// Example is a catalog item reference or a raw vector used as a positive or negative signal.
type Example struct {
	id     string
	vector []float32
}

// ItemID references a catalog item by its numeric id.
func ItemID(n uint64) Example {
	return Example{id: formatUint(n)}
}

// ItemKey references a catalog item by a string id (a UUID for Qdrant).
// Numeric strings are treated as numeric ids.
func ItemKey(s string) Example {
	return Example{id: s}
}

// Vector uses a raw embedding as the example.
func Vector(v []float32) Example {
	return Example{vector: v}
}

// Request is one discovery query. The zero value asks for a random selection.
type Request struct {
	Text     string
	Queries  []string
	Near     *Location
	Positive []Example
	Negative []Example
	Limit    int // 0 uses the client default
	Strategy Strategy
}

// Restaurant is the venue an item belongs to.
type Restaurant struct {
	Name      string
	Slug      string
	Address   string
	Rating    *float64
	Latitude  float64
	Longitude float64
}

// Item is one discovered product.
type Item struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	Restaurant  Restaurant
	Payload     map[string]any
}

// Result is the outcome of Discover.
type Result struct {
	Path  Path
	Items []Item
}

// Record is a catalog item loaded into the index by WithRecords.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // component -> "ok"/"error"
}
