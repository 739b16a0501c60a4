package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the overall verdict served on /health.
type Status string

const (
	Healthy  Status = "ok"
	Degraded Status = "degraded" // at least one check failed
)

// CheckResult is the verdict of a single check.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Probe names, the keys of Report.Checks.
const (
	CheckIndex     = "index"
	CheckEmbedding = "embedding"
)

// DefaultTimeout bounds one Check call.
const DefaultTimeout = 3 * time.Second

// Report is the outcome of one Check.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type checker struct {
	name string
	run  func(context.Context) error
}

// Service checks the index and, when configured, the embedding provider.
type Service struct {
	checkers []checker
	timeout  time.Duration
}

// New builds a Service. A nil embedding checker is left out of reports;
// timeout <= 0 means DefaultTimeout.
func New(index IndexPinger, embedding EmbeddingChecker, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Service{timeout: timeout, checkers: []checker{{CheckIndex, index.Ping}}}
	if embedding != nil {
		s.checkers = append(s.checkers, checker{CheckEmbedding, embedding.HealthCheck})
	}
	return s
}

// Check runs every checker concurrently under one deadline.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	failed := make([]bool, len(s.checkers))
	var g errgroup.Group
	for i, p := range s.checkers {
		g.Go(func() error {
			failed[i] = p.run(ctx) != nil
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.checkers))}
	for i, p := range s.checkers {
		rep.Checks[p.name] = CheckOK
		if failed[i] {
			rep.Checks[p.name] = CheckError
			rep.Status = Degraded
		}
	}
	return rep
}
