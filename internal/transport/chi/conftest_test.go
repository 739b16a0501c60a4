package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/point"
	"github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	discoveryuc "github.com/kailas-cloud/discovery/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/discovery/internal/usecase/health"
)

// mockDiscoverer records the last query and answers with discoverFn.
type mockDiscoverer struct {
	discoverFn func(ctx context.Context, q *query.Query) (discoveryuc.Outcome, error)
	last       *query.Query
	calls      int
}

func (m *mockDiscoverer) Discover(ctx context.Context, q *query.Query) (discoveryuc.Outcome, error) {
	m.calls++
	m.last = q
	if m.discoverFn != nil {
		return m.discoverFn(ctx, q)
	}
	return discoveryuc.Outcome{Path: q.Classify()}, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func healthyReport() healthuc.Report {
	return healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{
		healthuc.CheckIndex: healthuc.CheckOK,
	}}
}

func newTestServer() (*Server, *mockDiscoverer) {
	d := &mockDiscoverer{}
	return NewServer(d, &mockHealth{report: healthyReport()}, query.DefaultLimits(), zap.NewNop()), d
}

// textOutcome answers as the text path would, charging tokens to the request.
func textOutcome(ctx context.Context, q *query.Query) (discoveryuc.Outcome, error) {
	domain.UsageFromContext(ctx).AddTokens(5)
	return discoveryuc.Outcome{Path: q.Classify(), Items: []result.Product{{
		ID:   point.NumID(7),
		Name: "Pad thai",
		Restaurant: result.Restaurant{
			Name:     "Noodle Bar",
			Location: result.Location{Latitude: 52.5, Longitude: 13.4},
		},
	}}}, nil
}

func postSearch(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
