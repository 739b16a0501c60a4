// Package openai vectorizes text through an OpenAI-compatible embeddings API,
// such as a hosted CLIP model serving text and image vectors in one space.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/metrics"
	"github.com/kailas-cloud/discovery/internal/version"
)

// Values of the error_type metric label.
const (
	errRateLimited   = "rate_limited"
	errUnauthorized  = "unauthorized"
	errUpstream      = "upstream"
	errTransport     = "transport"
	errEmptyResponse = "empty_response"
	errCountMismatch = "count_mismatch"
)

// Config holds the provider settings.
type Config struct {
	APIKey     string
	BaseURL    string // empty means api.openai.com
	Model      string
	Dimensions int    // sent only when > 0
	User       string // end-user tag forwarded to the provider
	Provider   string // metric label, e.g. "openai" or "clip"
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Embedder calls POST /embeddings. Every failure wraps domain.ErrEmbeddingUnavailable.
type Embedder struct {
	client *openai.Client
	cfg    Config
	model  openai.EmbeddingModel
	logger *zap.Logger
}

// NewEmbedder builds a client for cfg.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: userAgent{next: http.DefaultTransport},
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    *cfg,
		model:  openai.EmbeddingModel(cfg.Model),
		logger: logger.With(zap.String("provider", cfg.Provider), zap.String("model", cfg.Model)),
	}
}

// Embed vectorizes one text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed vectorizes texts in one request. Vectors follow the order of texts.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	resp, err := e.create(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if len(resp.Data) != len(texts) {
		e.fail(errCountMismatch)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("provider returned %d vectors for %d texts: %w",
			len(resp.Data), len(texts), domain.ErrEmbeddingUnavailable)
	}

	slices.SortFunc(resp.Data, func(a, b openai.Embedding) int { return a.Index - b.Index })
	out := domain.BatchEmbeddingResult{
		Embeddings:   make([][]float32, 0, len(resp.Data)),
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	for _, d := range resp.Data {
		out.Embeddings = append(out.Embeddings, d.Embedding)
	}
	return out, nil
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

func (e *Embedder) create(ctx context.Context, input []string) (openai.EmbeddingResponse, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.cfg.User,
	}
	if e.cfg.Dimensions > 0 {
		req.Dimensions = e.cfg.Dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	elapsed := time.Since(start)

	switch {
	case err != nil && ctx.Err() != nil:
		return openai.EmbeddingResponse{}, fmt.Errorf("embedding request: %w", ctx.Err())
	case err != nil:
		kind, wrapped := classify(err)
		e.fail(kind)
		e.logger.Warn("Embedding API call failed",
			zap.String("error_type", kind),
			zap.Int("inputs", len(input)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return openai.EmbeddingResponse{}, wrapped
	case len(resp.Data) == 0:
		e.fail(errEmptyResponse)
		return openai.EmbeddingResponse{}, fmt.Errorf("provider returned no vectors: %w", domain.ErrEmbeddingUnavailable)
	}

	provider, model := e.cfg.Provider, e.cfg.Model
	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
	metrics.EmbeddingTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.EmbeddingTokensTotal.WithLabelValues(provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	return resp, nil
}

func (e *Embedder) fail(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, kind).Inc()
}

// classify names the failure for metrics and wraps it with the provider's
// status and message.
func classify(err error) (string, error) {
	status, msg := 0, ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status, msg = reqErr.HTTPStatusCode, bodyDetail(reqErr.Body)
	default:
		return errTransport, fmt.Errorf("embedding request: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	kind := errUpstream
	switch status {
	case http.StatusTooManyRequests:
		kind = errRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = errUnauthorized
	}
	return kind, fmt.Errorf("embedding API status %d: %s: %w", status, msg, domain.ErrEmbeddingUnavailable)
}

// bodyDetail extracts "detail" from FastAPI-style error bodies, else returns the raw body.
func bodyDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return string(body)
}

type userAgent struct{ next http.RoundTripper }

func (u userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", version.UserAgent())
	return u.next.RoundTrip(r)
}
