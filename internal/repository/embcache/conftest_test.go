package embcache

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain"
)

// countingEmbedder returns vec(text) and records every text it was asked for.
type countingEmbedder struct {
	mu      sync.Mutex
	seen    []string
	batches int
	err     error
	gate    chan struct{} // when set, Embed blocks until it is closed
	entered chan struct{} // when set, receives once per Embed before it blocks
}

func vec(text string) []float32 { return []float32{float32(len(text)), 1} }

func (m *countingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return domain.EmbeddingResult{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: vec(text), PromptTokens: 3, TotalTokens: 3}, nil
}

func (m *countingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.batches++
	m.mu.Unlock()
	return domain.BatchFallback(ctx, m, texts)
}

func (m *countingEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// mapStore is an in-memory kv with injectable failures.
type mapStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMapStore() *mapStore { return &mapStore{data: map[string][]byte{}} }

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *mapStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func newCache(t *testing.T, inner *countingEmbedder) (*CachedEmbedder, *mapStore) {
	t.Helper()
	store := newMapStore()
	return New(inner, store, "test:emb:", nil, zap.NewNop()), store
}
