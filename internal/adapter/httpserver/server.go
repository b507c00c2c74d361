package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/metrics"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/config"
)

// Dependencies are the handlers and collectors the server mounts.
// ViewerHandler is required; the rest may be nil.
type Dependencies struct {
	ViewerHandler  http.Handler
	MetricsHandler http.Handler
	ErrorCounter   *prometheus.CounterVec
	HTTPMetrics    *metrics.HTTPMetrics
	HealthChecks   []HealthCheck
	Clock          clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	viewerHandler  http.Handler
	metricsHandler http.Handler
	errorCounter   *prometheus.CounterVec
	httpMetrics    *metrics.HTTPMetrics

	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	counter := deps.ErrorCounter
	if counter == nil {
		counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "http_errors_total"}, []string{"type"})
	}

	srv := &Server{
		echo:           e,
		config:         cfg,
		viewerHandler:  deps.ViewerHandler,
		metricsHandler: deps.MetricsHandler,
		errorCounter:   counter,
		httpMetrics:    deps.HTTPMetrics,
		healthChecks:   deps.HealthChecks,
		clock:          clock,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start blocks serving on the configured address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	slog.Info("Starting server", "addr", s.config.Addr())
	if err := s.echo.Start(s.config.Addr()); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
