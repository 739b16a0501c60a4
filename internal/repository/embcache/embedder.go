// Package embcache memoizes query embeddings in Redis.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain"
)

// DefaultKeyPrefix is used when New receives an empty prefix.
const DefaultKeyPrefix = "discovery:emb_cache:"

// Cache outcomes recorded in the result label.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultCorrupt = "corrupt"
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedEmbedder serves repeated query texts from a key-value store.
// Keys hash the trimmed text under a prefix that must be scoped per model.
// Concurrent misses for the same text share one upstream call.
type CachedEmbedder struct {
	inner   domain.Embedder
	store   kv
	prefix  string
	results *prometheus.CounterVec
	logger  *zap.Logger
	flight  singleflight.Group
}

// New wraps inner. results may be nil; when set it must have a single "result" label.
func New(
	inner domain.Embedder,
	store kv,
	prefix string,
	results *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, store: store, prefix: prefix, results: results, logger: logger}
}

// Embed returns the stored vector with zero token usage, or embeds and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	// The shared call outlives any single caller; each caller waits on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		res, err := c.inner.Embed(shared, text)
		if err != nil {
			return nil, err
		}
		c.store1(shared, key, res.Embedding)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed uncached query: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed uncached query: %w", r.Err)
		}
		return r.Val.(domain.EmbeddingResult), nil
	}
}

// BatchEmbed resolves hits from the store and sends only the misses upstream, in one call.
// Token usage covers the misses.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	keys := make([]string, len(texts))
	var pending []int
	for i, text := range texts {
		keys[i] = c.key(text)
		if vec, ok := c.lookup(ctx, keys[i]); ok {
			out.Embeddings[i] = vec
		} else {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}

	misses := make([]string, len(pending))
	for j, i := range pending {
		misses[j] = texts[i]
	}
	res, err := domain.EmbedAll(ctx, c.inner, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d of %d queries: %w", len(misses), len(texts), err)
	}
	for j, i := range pending {
		out.Embeddings[i] = res.Embeddings[j]
		c.store1(ctx, keys[i], res.Embeddings[j])
	}
	out.PromptTokens, out.TotalTokens = res.PromptTokens, res.TotalTokens
	return out, nil
}

// HealthCheck checks the upstream embedder; the cache itself is optional.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := c.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	return hc.HealthCheck(ctx)
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return c.prefix + hex.EncodeToString(sum[:])
}

// lookup never fails the request: store errors and undecodable blobs count as misses.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound), err == nil && len(data) == 0:
		c.count(resultMiss)
		return nil, false
	case err != nil:
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		c.count(resultMiss)
		return nil, false
	}

	vec, err := db.BytesToVector(string(data))
	if err != nil {
		c.logger.Warn("Embedding cache entry is corrupt", zap.String("key", key), zap.Error(err))
		c.count(resultCorrupt)
		return nil, false
	}
	c.count(resultHit)
	return vec, true
}

func (c *CachedEmbedder) store1(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.Set(ctx, key, []byte(db.VectorToBytes(vec))); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.results != nil {
		c.results.WithLabelValues(result).Inc()
	}
}
