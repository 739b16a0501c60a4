package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/discovery/internal/domain"
)

// Embedder vectorizes query text into the catalog's embedding space.
// Only text queries use it; example and random requests run without one.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult is one query vector and the tokens it cost.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// embedderAdapter lets a caller's Embedder drive the engine. Every failure
// is reported as ErrEmbeddingUnavailable.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	switch {
	case err == nil:
		return domain.EmbeddingResult(r), nil
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	default:
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}
}

// noopEmbedder stands in when no Embedder was configured.
type noopEmbedder struct{}

func (noopEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", ErrNoEmbedder, domain.ErrEmbeddingUnavailable)
}
