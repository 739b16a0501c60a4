package domain

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// fallbackParallelism bounds concurrent Embed calls when a provider has no batch endpoint.
const fallbackParallelism = 4

// Embedder turns query text into a vector in the catalog's embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is implemented by providers that accept many inputs per request.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker checks a provider without spending tokens where possible.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens billed for it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors in input order with summed usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

func (b *BatchEmbeddingResult) append(r EmbeddingResult) {
	b.Embeddings = append(b.Embeddings, r.Embedding)
	b.PromptTokens += r.PromptTokens
	b.TotalTokens += r.TotalTokens
}

// BatchFallback calls e.Embed per text, at most fallbackParallelism at a time.
// The first failure cancels the calls still running.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	single := make([]EmbeddingResult, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fallbackParallelism)
	for i := range texts {
		g.Go(func() (err error) {
			if single[i], err = e.Embed(gctx, texts[i]); err != nil {
				return fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchEmbeddingResult{}, err
	}

	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for _, r := range single {
		out.append(r)
	}
	return out, nil
}

// EmbedAll prefers the provider's batch endpoint and checks it answered every text.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{}, nil
	}
	be, ok := e.(BatchEmbedder)
	if !ok {
		return BatchFallback(ctx, e, texts)
	}

	res, err := be.BatchEmbed(ctx, texts)
	switch {
	case err != nil:
		return BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	case len(res.Embeddings) != len(texts):
		return BatchEmbeddingResult{}, fmt.Errorf("batch embed answered %d of %d texts: %w",
			len(res.Embeddings), len(texts), ErrEmbeddingUnavailable)
	}
	return res, nil
}

// InstructionEmbedder prefixes every query with a fixed prompt, e.g. "a photo of "
// for CLIP text towers.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder wraps inner. An empty instruction passes text through.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed vectorizes the prompted text.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.prompt(text))
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed prompted query: %w", err)
	}
	return res, nil
}

// BatchEmbed vectorizes every prompted text, keeping order.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prompted := make([]string, 0, len(texts))
	for _, t := range texts {
		prompted = append(prompted, e.prompt(t))
	}
	res, err := EmbedAll(ctx, e.inner, prompted)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("embed prompted queries: %w", err)
	}
	return res, nil
}

func (e *InstructionEmbedder) prompt(text string) string { return e.instruction + text }
