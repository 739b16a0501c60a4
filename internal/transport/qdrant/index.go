// Package qdrant is a similarity index over a Qdrant collection, spoken to through the gRPC client.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/collection"
	"github.com/kailas-cloud/discovery/internal/version"
)

// client is the subset of *qdrant.Client the index uses (ISP).
type client interface {
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	QueryBatch(ctx context.Context, req *qdrant.QueryBatchPoints) ([]*qdrant.BatchResult, error)
	QueryGroups(ctx context.Context, req *qdrant.QueryPointGroups) ([]*qdrant.PointGroup, error)
	Get(ctx context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Scroll(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
}

// Config holds the Qdrant connection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Vector     string // named vector to query; empty means the unnamed one
	Logger     *zap.Logger
}

// Index implements the discovery index contract over one Qdrant collection.
type Index struct {
	client     client
	collection string
	vector     string
	logger     *zap.Logger
	close      func() error
}

// New dials Qdrant. The connection is lazy; use Ping to check readiness.
func New(cfg *Config) (*Index, error) {
	if err := collection.ValidateName(cfg.Collection); err != nil {
		return nil, fmt.Errorf("qdrant: %w", err)
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithUserAgent(version.UserAgent()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	idx := newIndex(c, cfg.Collection, cfg.Vector, cfg.Logger)
	idx.close = c.Close
	return idx, nil
}

func newIndex(c client, name, vector string, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{client: c, collection: name, vector: vector, logger: logger, close: func() error { return nil }}
}

// Close releases the gRPC connection.
func (i *Index) Close() error {
	return i.close()
}

// Ping runs the Qdrant health check.
func (i *Index) Ping(ctx context.Context) error {
	reply, err := i.client.HealthCheck(ctx)
	if err != nil {
		return i.wrap("health check", err)
	}
	i.logger.Debug("Qdrant is reachable", zap.String("version", reply.GetVersion()))
	return nil
}

// CollectionInfo reports the dense vector size and the point count.
func (i *Index) CollectionInfo(ctx context.Context) (collection.Info, error) {
	info, err := i.client.GetCollectionInfo(ctx, i.collection)
	if err != nil {
		return collection.Info{}, i.wrap("collection info", err)
	}
	dim, err := vectorSize(info, i.vector)
	if err != nil {
		return collection.Info{}, fmt.Errorf("collection %q: %w", i.collection, err)
	}
	out, err := collection.New(i.collection, dim, info.GetPointsCount())
	if err != nil {
		return collection.Info{}, fmt.Errorf("collection info: %w", err)
	}
	return out, nil
}

// vectorSize reads the dimension of the vector the index queries. A collection
// with named vectors needs the name configured; the unnamed vector must not be.
func vectorSize(info *qdrant.CollectionInfo, name string) (int, error) {
	vc := info.GetConfig().GetParams().GetVectorsConfig()
	named := vc.GetParamsMap().GetMap()
	switch {
	case name == "" && vc.GetParams() != nil:
		return int(vc.GetParams().GetSize()), nil
	case name == "" && len(named) > 0:
		return 0, fmt.Errorf("collection has named vectors %v, set the vector name: %w",
			slices.Sorted(maps.Keys(named)), domain.ErrIndexUnavailable)
	case name != "":
		if p, ok := named[name]; ok {
			return int(p.GetSize()), nil
		}
		return 0, fmt.Errorf("collection has no vector named %q: %w", name, domain.ErrIndexUnavailable)
	}
	return 0, fmt.Errorf("collection has no dense vector: %w", domain.ErrIndexUnavailable)
}

// using names the queried vector for Query and QueryGroups; nil means unnamed.
func (i *Index) using() *string {
	if i.vector == "" {
		return nil
	}
	return qdrant.PtrOf(i.vector)
}

// wrap translates gRPC failures into domain errors, keeping the cause.
func (i *Index) wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("qdrant %s: %w", op, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("qdrant %s: %w: %w", op, domain.ErrIndexUnavailable, err)
	}
	switch st.Code() {
	case codes.NotFound:
		if strings.Contains(strings.ToLower(st.Message()), "collection") {
			return fmt.Errorf("qdrant %s: collection %q: %w", op, i.collection, domain.ErrCollectionNotFound)
		}
		return fmt.Errorf("qdrant %s: %s: %w", op, st.Message(), domain.ErrUnknownItem)
	case codes.Canceled:
		return fmt.Errorf("qdrant %s: %w", op, context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("qdrant %s: %w", op, context.DeadlineExceeded)
	case codes.InvalidArgument:
		return fmt.Errorf("qdrant %s: %s: %w", op, st.Message(), domain.ErrInvalidQuery)
	default:
		return fmt.Errorf("qdrant %s: %s: %w", op, st.Message(), domain.ErrIndexUnavailable)
	}
}
