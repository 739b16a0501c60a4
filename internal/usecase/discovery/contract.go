package discovery

import (
	"context"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/collection"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
)

// Searcher runs nearest-neighbour queries.
type Searcher interface {
	Search(ctx context.Context, req *request.Search) ([]point.ScoredPoint, error)
	// SearchBatch runs every query in one round-trip. Result i answers reqs[i].
	SearchBatch(ctx context.Context, reqs []request.Search) ([][]point.ScoredPoint, error)
	SearchGroups(ctx context.Context, req *request.Search, group request.Group) ([]point.Group, error)
}

// Recommender ranks items against positive and negative examples.
type Recommender interface {
	Recommend(ctx context.Context, req *request.Recommend) ([]point.ScoredPoint, error)
	// RecommendBatch runs every query in one round-trip. Result i answers reqs[i].
	RecommendBatch(ctx context.Context, reqs []request.Recommend) ([][]point.ScoredPoint, error)
	RecommendGroups(ctx context.Context, req *request.Recommend, group request.Group) ([]point.Group, error)
}

// PointReader looks items up by id. Unknown ids are absent from the output, never an error.
type PointReader interface {
	Retrieve(ctx context.Context, ids []point.ID, withVectors bool) ([]point.Record, error)
	// ScrollByIDs returns the stored records of ids with their vectors.
	ScrollByIDs(ctx context.Context, ids []point.ID) ([]point.Record, error)
}

// CollectionInspector describes the backing collection.
// CollectionInfo fails with domain.ErrCollectionNotFound when it does not exist.
type CollectionInspector interface {
	CollectionInfo(ctx context.Context) (collection.Info, error)
}

// Index is the similarity index the engine queries. Implementations must be safe for concurrent use.
type Index interface {
	Searcher
	Recommender
	PointReader
	CollectionInspector
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Sampler returns up to limit diverse items when a request carries no signal.
type Sampler interface {
	Sample(ctx context.Context, expr filter.Expression, limit int) ([]point.ScoredPoint, error)
}
