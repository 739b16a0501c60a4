package health

import "context"

// IndexPinger is satisfied by every similarity index backend.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker is satisfied by embedders that support health checks.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
