// Package catalog is a similarity index over a Redis 8 FT index.
// Grouping and recommendation are emulated client-side on top of KNN search.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/collection"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
)

// DefaultKeyPrefix namespaces catalog keys when no prefix is configured.
const DefaultKeyPrefix = "discovery:"

// store is the consumer interface for the catalog (ISP).
//
//nolint:interfacebloat // catalog needs hash, index and search operations
type store interface {
	Ping(ctx context.Context) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	CreateIndex(ctx context.Context, schema *db.Schema) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchKNNMulti(ctx context.Context, qs []db.KNNQuery) ([]*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config describes one catalog collection.
type Config struct {
	KeyPrefix   string
	Collection  string
	Dimension   int
	LocationKey string // payload path indexed as GEO
	GroupKey    string // payload path indexed as TAG
	HNSW        HNSWConfig
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the discovery Index contract over a Redis store.
type Repo struct {
	store  store
	cfg    Config
	prefix string
	index  string
}

// New creates a catalog repository.
func New(s store, cfg Config) (*Repo, error) {
	if err := collection.ValidateName(cfg.Collection); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("catalog: dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.LocationKey == "" {
		cfg.LocationKey = filter.DefaultLocationKey
	}
	if cfg.HNSW.M <= 0 {
		cfg.HNSW.M = 16
	}
	if cfg.HNSW.EFConstruct <= 0 {
		cfg.HNSW.EFConstruct = 200
	}
	prefix := cfg.KeyPrefix + cfg.Collection + ":"
	return &Repo{store: s, cfg: cfg, prefix: prefix, index: prefix + "idx"}, nil
}

// Ping checks the underlying store.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return r.wrap("ping", err)
	}
	return nil
}

// EnsureIndex creates the FT index unless it exists. recreate drops an existing index first;
// stored hashes survive and are re-indexed.
func (r *Repo) EnsureIndex(ctx context.Context, recreate bool) error {
	exists, err := r.store.IndexExists(ctx, r.index)
	if err != nil {
		return r.wrap("index exists", err)
	}
	if exists && !recreate {
		return nil
	}
	if exists {
		if err := r.store.DropIndex(ctx, r.index); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return r.wrap("drop index", err)
		}
	}

	if err := r.store.CreateIndex(ctx, schema(r.index, r.prefix, r.cfg)); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return r.wrap("create index", err)
	}
	return nil
}

// Upsert stores records as hashes in one pipelined round-trip.
func (r *Repo) Upsert(ctx context.Context, records ...point.Record) error {
	items := make([]db.HashSetItem, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != r.cfg.Dimension {
			return fmt.Errorf("upsert %s: %d dims, want %d: %w",
				rec.ID, len(rec.Vector), r.cfg.Dimension, domain.ErrVectorDimMismatch)
		}
		fields, err := recordToHash(rec, r.cfg)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
		items = append(items, db.HashSetItem{Key: r.key(rec.ID), Fields: fields})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return r.wrap("upsert", err)
	}
	return nil
}

// CollectionInfo reports the configured dimension and the indexed document count.
func (r *Repo) CollectionInfo(ctx context.Context) (collection.Info, error) {
	exists, err := r.store.IndexExists(ctx, r.index)
	if err != nil {
		return collection.Info{}, r.wrap("collection info", err)
	}
	if !exists {
		return collection.Info{}, fmt.Errorf("collection %q: %w", r.cfg.Collection, domain.ErrCollectionNotFound)
	}
	count, err := r.store.SearchCount(ctx, r.index, "*")
	if err != nil {
		return collection.Info{}, r.wrap("collection info", err)
	}
	info, err := collection.New(r.cfg.Collection, r.cfg.Dimension, uint64(count))
	if err != nil {
		return collection.Info{}, fmt.Errorf("collection info: %w", err)
	}
	return info, nil
}

// Retrieve returns the stored records of ids in request order; missing ids are skipped.
func (r *Repo) Retrieve(ctx context.Context, ids []point.ID, withVectors bool) ([]point.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, r.wrap("retrieve", err)
	}

	out := make([]point.Record, 0, len(ids))
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		rec, err := hashToRecord(ids[i], h, withVectors)
		if err != nil {
			return nil, fmt.Errorf("retrieve %s: %w", ids[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ScrollByIDs returns the stored records of ids with their vectors.
func (r *Repo) ScrollByIDs(ctx context.Context, ids []point.ID) ([]point.Record, error) {
	return r.Retrieve(ctx, ids, true)
}

func (r *Repo) key(id point.ID) string {
	return r.prefix + id.String()
}

// wrap translates store failures into domain errors, keeping the cause.
func (r *Repo) wrap(op string, err error) error {
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("%s: collection %q: %w", op, r.cfg.Collection, domain.ErrCollectionNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
	}
}
