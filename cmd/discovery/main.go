package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/config"
	dbRedis "github.com/kailas-cloud/discovery/internal/db/redis"
	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/discovery/internal/logger"
	"github.com/kailas-cloud/discovery/internal/metrics"
	"github.com/kailas-cloud/discovery/internal/repository/catalog"
	"github.com/kailas-cloud/discovery/internal/repository/embcache"
	"github.com/kailas-cloud/discovery/internal/repository/memory"
	chiTransport "github.com/kailas-cloud/discovery/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/discovery/internal/transport/openai"
	qdrantIndex "github.com/kailas-cloud/discovery/internal/transport/qdrant"
	discoveryuc "github.com/kailas-cloud/discovery/internal/usecase/discovery"
	embeddinguc "github.com/kailas-cloud/discovery/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/discovery/internal/usecase/health"
	indexuc "github.com/kailas-cloud/discovery/internal/usecase/index"
	"github.com/kailas-cloud/discovery/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting discovery API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
		zap.String("collection", cfg.Index.Collection),
	)

	ctx := context.Background()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	idx, closeIndex, err := buildIndex(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create similarity index", zap.Error(err))
	}
	defer closeIndex()
	instrumented := indexuc.NewInstrumented(idx, cfg.Index.Driver, logger)

	// Embedding cache store is optional
	var cacheStore *dbRedis.Store
	if cfg.Cache.Enabled() {
		cacheStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create embedding cache store", zap.Error(err))
		}
		defer cacheStore.Close()
	}

	embedder, embeddingHealth := buildEmbedder(cfg.Embedding, cfg.Cache, cacheStore, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cacheStore != nil),
	)

	group := request.Group{By: cfg.Discovery.GroupBy, Size: cfg.Discovery.GroupSize}
	if cfg.Discovery.DisableGrouping {
		group = request.Group{}
	}
	var sampler discoveryuc.Sampler = discoveryuc.NewVectorSampler(instrumented)
	if cfg.Discovery.Random.Variant == config.RandomIDs {
		sampler = discoveryuc.NewIDSampler(instrumented, cfg.Discovery.Random.Population, cfg.Discovery.Random.MaxRounds)
	}

	discoverySvc := discoveryuc.New(instrumented, embedder,
		discoveryuc.WithSampler(sampler),
		discoveryuc.WithGrouping(group),
		discoveryuc.WithCompiler(filter.NewCompiler(cfg.Discovery.LocationKey)),
		discoveryuc.WithMapping(cfg.Discovery.Mapping),
	)
	healthSvc := healthuc.New(instrumented, embeddingHealth, healthuc.DefaultTimeout)

	limits := query.Limits{Default: cfg.Discovery.DefaultLimit, Max: cfg.Discovery.MaxLimit}
	server := chiTransport.NewServer(discoverySvc, healthSvc, limits, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:     cfg.Auth.APIKeys,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildIndex connects the configured backend. The returned func releases its resources.
func buildIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger) (discoveryuc.Index, func(), error) {
	readiness := time.Duration(cfg.Index.ReadinessTimeout) * time.Second

	switch cfg.Index.Driver {
	case config.DriverQdrant:
		q := cfg.Index.Qdrant
		idx, err := qdrantIndex.New(&qdrantIndex.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
			Collection: cfg.Index.Collection,
			Vector:     q.Vector,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("qdrant: %w", err)
		}
		closeFn := func() { _ = idx.Close() }
		pingCtx, cancel := context.WithTimeout(ctx, readiness)
		defer cancel()
		if err := idx.Ping(pingCtx); err != nil {
			// a down index degrades /health; the server still starts
			logger.Warn("Qdrant not reachable at startup", zap.Error(err))
		}
		return idx, closeFn, nil

	case config.DriverRedis:
		r := cfg.Index.Redis
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: r.Addrs, Password: r.Password})
		if err != nil {
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("redis not ready: %w", err)
		}
		repo, err := catalog.New(store, catalog.Config{
			KeyPrefix:   r.KeyPrefix,
			Collection:  cfg.Index.Collection,
			Dimension:   r.Dimensions,
			LocationKey: cfg.Discovery.LocationKey,
			GroupKey:    cfg.Discovery.GroupBy,
			HNSW:        catalog.HNSWConfig{M: r.HNSWM, EFConstruct: r.HNSWEFConstruct},
		})
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		if err := repo.EnsureIndex(ctx, r.RecreateIndex); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("ensure index: %w", err)
		}
		if r.FixturePath != "" {
			records, err := memory.LoadFixture(r.FixturePath)
			if err != nil {
				store.Close()
				return nil, nil, err
			}
			if err := repo.Upsert(ctx, records...); err != nil {
				store.Close()
				return nil, nil, fmt.Errorf("seed catalog: %w", err)
			}
			logger.Info("Catalog seeded", zap.Int("records", len(records)))
		}
		return repo, store.Close, nil

	case config.DriverMemory:
		m := cfg.Index.Memory
		records, err := memory.LoadFixture(m.FixturePath)
		if err != nil {
			return nil, nil, err
		}
		idx := memory.New(cfg.Index.Collection, m.Dimensions)
		if err := idx.Upsert(ctx, records...); err != nil {
			return nil, nil, fmt.Errorf("load fixture: %w", err)
		}
		logger.Info("In-memory index loaded", zap.Int("records", len(records)))
		return idx, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown index driver %q", cfg.Index.Driver)
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// The second result checks the provider for /health.
func buildEmbedder(
	embCfg config.EmbeddingConfig,
	cacheCfg config.CacheConfig,
	cacheStore *dbRedis.Store,
	logger *zap.Logger,
) (domain.Embedder, healthuc.EmbeddingChecker) {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     embCfg.APIKey,
		BaseURL:    embCfg.BaseURL,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		Provider:   embCfg.Provider,
		Timeout:    time.Duration(embCfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cacheStore != nil {
		// cache keys are scoped per model
		prefix := cacheCfg.KeyPrefix
		if prefix == "" {
			prefix = embcache.DefaultKeyPrefix
		}
		embedder = embcache.New(base, cacheStore, prefix+embCfg.Model+":", metrics.EmbeddingCacheTotal, logger)
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(
		embedder, embCfg.Provider, embCfg.Model, embCfg.Dimensions, logger,
	)

	// Instruction prefix (outermost, so the cache key includes it)
	if embCfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(instrumented, embCfg.QueryInstruction), instrumented
	}
	return instrumented, instrumented
}
