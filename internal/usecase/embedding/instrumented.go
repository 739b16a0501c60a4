// Package embedding wraps the embedding provider with a dimension guard and logging.
package embedding

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
)

// DefaultMaxAPIBatchSize caps how many texts go to the provider in one call.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder checks vector length against the index dimension and
// logs every call. Request and token metrics live in transport/openai.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	dimensions int
	logger     *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. With dimensions > 0 a vector of any
// other length fails with domain.ErrVectorDimMismatch.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, dimensions int, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:      inner,
		dimensions: dimensions,
		logger:     logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// Embed vectorizes one query text.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	if err == nil {
		err = p.checkDim(res.Embedding)
	}
	if err != nil {
		p.logger.Error("Embedding failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}

	p.logger.Debug("Embedded query",
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed vectorizes texts in provider-sized chunks, preserving order.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	start := time.Now()

	var out domain.BatchEmbeddingResult
	offset := 0
	for chunk := range slices.Chunk(texts, DefaultMaxAPIBatchSize) {
		res, err := domain.EmbedAll(ctx, p.inner, chunk)
		if err != nil {
			p.logger.Error("Batch embedding failed",
				zap.Int("offset", offset), zap.Int("chunk", len(chunk)), zap.Error(err))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embed queries %d..%d: %w", offset, offset+len(chunk), err)
		}
		for _, v := range res.Embeddings {
			if err := p.checkDim(v); err != nil {
				return domain.BatchEmbeddingResult{}, err
			}
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
		offset += len(chunk)
	}

	p.logger.Debug("Embedded queries",
		zap.Int("count", len(texts)),
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck forwards to the provider when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := p.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health: %w", err)
	}
	return nil
}

func (p *InstrumentedEmbedder) checkDim(v []float32) error {
	if p.dimensions > 0 && len(v) != p.dimensions {
		return fmt.Errorf("got %d dims, index expects %d: %w", len(v), p.dimensions, domain.ErrVectorDimMismatch)
	}
	return nil
}
