package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/discovery/internal/db/redis"
	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/repository/catalog"
	"github.com/kailas-cloud/discovery/internal/repository/memory"
	qdrantIndex "github.com/kailas-cloud/discovery/internal/transport/qdrant"
	discoveryuc "github.com/kailas-cloud/discovery/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/discovery/internal/usecase/health"
)

const (
	defaultCollection       = "food"
	defaultReadinessTimeout = 10 * time.Second
)

// Internal interfaces for substitution in tests.
type discoverUseCase interface {
	Discover(ctx context.Context, q *query.Query) (discoveryuc.Outcome, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the discovery SDK entry point. Safe for concurrent use.
type Client struct {
	engine  discoverUseCase
	health  healthUseCase
	limits  query.Limits
	closeFn func()
	obs     *observer
}

// New creates a Client and connects to the configured index.
// The provided context bounds connection setup and catalog seeding.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{collection: defaultCollection}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	idx, closeFn, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return wireClient(idx, closeFn, cfg, obs), nil
}

type sdkIndex interface {
	discoveryuc.Index
	healthuc.IndexPinger
}

func openIndex(ctx context.Context, cfg *clientConfig) (sdkIndex, func(), error) {
	records, err := loadRecords(cfg)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.driver {
	case driverQdrant:
		if cfg.qdrantHost == "" {
			return nil, nil, errors.New("discovery: qdrant host required")
		}
		if len(records) > 0 {
			return nil, nil, errors.New("discovery: records cannot be loaded into a qdrant collection")
		}
		idx, err := qdrantIndex.New(&qdrantIndex.Config{
			Host:       cfg.qdrantHost,
			Port:       cfg.qdrantPort,
			APIKey:     cfg.qdrantAPIKey,
			UseTLS:     cfg.qdrantTLS,
			Collection: cfg.collection,
			Vector:     cfg.qdrantVector,
			Logger:     zap.NewNop(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("discovery: %w", err)
		}
		return idx, func() { _ = idx.Close() }, nil

	case driverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.redisAddrs, Password: cfg.redisPassword})
		if err != nil {
			return nil, nil, fmt.Errorf("discovery: create redis store: %w", err)
		}
		repo, err := seedRedis(ctx, store, cfg, records)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		return repo, store.Close, nil

	case "", driverMemory:
		if len(records) == 0 {
			return nil, nil, errors.New("discovery: an index is required (use WithQdrant, WithRedis, WithRecords or WithFixture)")
		}
		idx := memory.New(cfg.collection, 0)
		if err := idx.Upsert(ctx, records...); err != nil {
			return nil, nil, fmt.Errorf("discovery: load records: %w", err)
		}
		return idx, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("discovery: unknown driver %q", cfg.driver)
	}
}

func loadRecords(cfg *clientConfig) ([]point.Record, error) {
	records, err := toRecords(cfg.records)
	if err != nil {
		return nil, err
	}
	if cfg.fixturePath != "" {
		fixture, err := memory.LoadFixture(cfg.fixturePath)
		if err != nil {
			return nil, fmt.Errorf("discovery: %w", err)
		}
		records = append(records, fixture...)
	}
	return records, nil
}

func seedRedis(ctx context.Context, store *dbRedis.Store, cfg *clientConfig, records []point.Record) (*catalog.Repo, error) {
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		return nil, fmt.Errorf("discovery: redis not ready: %w", err)
	}
	repo, err := catalog.New(store, catalog.Config{
		Collection:  cfg.collection,
		Dimension:   cfg.dimensions,
		LocationKey: cfg.locationKey,
		GroupKey:    cfg.groupBy,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	if err := repo.EnsureIndex(ctx, false); err != nil {
		return nil, fmt.Errorf("discovery: ensure index: %w", err)
	}
	if len(records) > 0 {
		if err := repo.Upsert(ctx, records...); err != nil {
			return nil, fmt.Errorf("discovery: upsert records: %w", err)
		}
	}
	return repo, nil
}

func wireClient(idx sdkIndex, closeFn func(), cfg *clientConfig, obs *observer) *Client {
	// noop unless configured: example and random requests need no embedder
	var embedder domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		embedder = &embedderAdapter{inner: cfg.embedder}
	}

	group := discoveryuc.DefaultGroup()
	if cfg.groupBy != "" {
		group = request.Group{By: cfg.groupBy, Size: max(cfg.groupSize, 1)}
	}
	if cfg.noGrouping {
		group = request.Group{}
	}

	var sampler discoveryuc.Sampler = discoveryuc.NewVectorSampler(idx)
	if cfg.idSampler {
		sampler = discoveryuc.NewIDSampler(idx, cfg.population, cfg.maxRounds)
	}

	engine := discoveryuc.New(idx, embedder,
		discoveryuc.WithSampler(sampler),
		discoveryuc.WithGrouping(group),
		discoveryuc.WithCompiler(filter.NewCompiler(cfg.locationKey)),
	)

	var embHealth healthuc.EmbeddingChecker
	if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
		embHealth = hc
	}

	return &Client{
		engine:  engine,
		health:  healthuc.New(idx, embHealth, healthuc.DefaultTimeout),
		limits:  query.Limits{Default: cfg.defaultLimit, Max: cfg.maxLimit},
		closeFn: closeFn,
		obs:     obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Discover validates req, resolves it against the catalog and returns the matching items.
// A missing collection yields an empty result, not an error.
func (c *Client) Discover(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("discover", string(res.Path), start, len(res.Items), err) }()

	q, err := toQuery(&req, c.limits)
	if err != nil {
		return Result{}, err
	}

	out, err := c.engine.Discover(ctx, &q)
	if err != nil {
		return Result{}, fmt.Errorf("discover: %w", err)
	}
	return Result{Path: Path(out.Path), Items: fromProducts(out.Items)}, nil
}

// Health checks the health of the index and the embedding provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.health.Check(ctx)

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	var err error
	if report.Status != healthuc.Healthy {
		err = fmt.Errorf("status %s", report.Status)
	}
	c.obs.observe("health", "", start, 0, err)

	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
