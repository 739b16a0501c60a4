// Package db defines the storage contract of the Redis-backed catalog index
// and embedding cache. Package db/redis implements it.
package db

import (
	"context"
	"time"
)

// Store is everything the redis package provides. Consumers declare the
// narrower subset they call.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one hash to write.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore reads and writes catalog items, one pipeline per call.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// KVStore holds opaque blobs such as cached embeddings.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// IndexManager owns the FT index lifecycle.
type IndexManager interface {
	CreateIndex(ctx context.Context, schema *Schema) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher queries FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchKNNMulti(ctx context.Context, qs []KNNQuery) ([]*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
