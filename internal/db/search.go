package db

import (
	"errors"

	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
)

// DefaultVectorField is the hash attribute KNN queries rank on.
const DefaultVectorField = "vector"

// KNNQuery asks an FT index for the K nearest hashes to Vector,
// optionally pre-filtered by Filters.
type KNNQuery struct {
	IndexName    string
	VectorField  string // DefaultVectorField when empty
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// Validate reports a query that cannot be sent.
func (q *KNNQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return errors.New("knn: index name is required")
	case len(q.Vector) == 0:
		return errors.New("knn: query vector is empty")
	case q.K <= 0:
		return errors.New("knn: k must be positive")
	}
	return nil
}

// Field returns the vector attribute name.
func (q *KNNQuery) Field() string {
	if q.VectorField == "" {
		return DefaultVectorField
	}
	return q.VectorField
}

// SearchResult holds hits nearest first.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one hash returned by FT.SEARCH. Score is cosine similarity.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
