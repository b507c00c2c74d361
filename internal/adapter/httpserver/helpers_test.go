package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/config"
)

var testStart = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type testServerOption func(*Dependencies)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(d *Dependencies) { d.HealthChecks = checks }
}

func withViewerHandler(h http.Handler) testServerOption {
	return func(d *Dependencies) { d.ViewerHandler = h }
}

func withMetricsHandler(h http.Handler) testServerOption {
	return func(d *Dependencies) { d.MetricsHandler = h }
}

func withErrorCounter(c *prometheus.CounterVec) testServerOption {
	return func(d *Dependencies) { d.ErrorCounter = c }
}

func newTestServer(t *testing.T, opts ...testServerOption) (*Server, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testStart)
	deps := Dependencies{
		ViewerHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
		Clock: clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	cfg := &config.Config{AppEnv: "development", Host: "localhost", Port: 8765, SyntheticMode: true}
	return NewServer(cfg, deps), clock
}
