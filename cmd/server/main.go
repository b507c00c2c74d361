package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/httpserver"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/metrics"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/redis"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/serial"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/websocket"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/app"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
	apperrors "github.com/sebbywestside/exercise-monitoring-vest/internal/errors"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/config"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/logging"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/version"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/synthetic"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupSource picks the synthetic generator or the serial relay. The returned
// health checks gate readiness on the source.
func setupSource(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) (domain.Source, []httpserver.HealthCheck) {
	if cfg.SyntheticMode {
		profile, err := synthetic.LoadProfile(cfg.ProfileFile)
		if err != nil {
			slog.Error("Failed to load synthetic profile", "path", cfg.ProfileFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Using synthetic telemetry", "interval", cfg.UpdateInterval, "cycle", cfg.SyntheticCycle)
		return synthetic.NewGenerator(profile, clock, cfg.UpdateInterval, cfg.SyntheticCycle, nil), nil
	}

	if devices, err := serial.ListDevices(); err == nil {
		slog.Debug("Available serial devices", "devices", devices)
	}

	opener := serial.DeviceOpener{BaudRate: cfg.BaudRate, ReadTimeout: cfg.SerialReadTimeout}
	link := serial.NewLink(cfg.SerialPort, opener, clock, cfg.SerialRetryDelay, metrics.NewSerialMetrics(reg))
	slog.Info("Using serial telemetry", "port", cfg.SerialPort, "baud", cfg.BaudRate)

	check := httpserver.HealthCheck{
		Name: "serial_link",
		Check: func(context.Context) error {
			if !link.Connected() {
				return apperrors.UpstreamError("serial link disconnected", nil).WithContext("port", cfg.SerialPort)
			}
			return nil
		},
	}
	return link, []httpserver.HealthCheck{check}
}

// setupMirror connects the optional Redis frame mirror.
func setupMirror(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*redis.Client, *redis.Mirror) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	mirrorMetrics := metrics.NewMirrorMetrics(reg)
	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.DefaultConnectPolicy, redis.NewMetricsHook(mirrorMetrics))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	mirror := redis.NewMirror(client, redis.MirrorConfig{Channel: cfg.RedisChannel}, mirrorMetrics)
	return client, mirror
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "addr", cfg.Addr(), "build", build)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	metrics.RegisterBuildInfo(reg, build.Version, build.Commit, build.GoVersion)
	bridgeMetrics := metrics.NewBridgeMetrics(reg)

	registry := app.NewRegistry(func(count int) {
		bridgeMetrics.ConnectedViewers.Set(float64(count))
	})

	source, healthChecks := setupSource(cfg, clock, reg)

	var (
		sinks []domain.FrameSink
		wg    sync.WaitGroup
	)
	redisClient, mirror := setupMirror(ctx, cfg, reg)
	if mirror != nil {
		defer func() { _ = redisClient.Close() }()
		sinks = append(sinks, mirror)
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "redis", Check: redisClient.Ping})
		wg.Add(1)
		go func() {
			defer wg.Done()
			mirror.Run(ctx)
		}()
	}

	bridge := app.NewBridge(source, registry, clock, bridgeMetrics, sinks...)

	acceptor := websocket.NewAcceptor(registry, websocket.AcceptorConfig{
		Limits:         websocket.NewConnectionLimits(clock, cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionsPerSecond, cfg.ConnectionBurst),
		CheckOrigin:    websocket.NewCheckOrigin(cfg.AllowedOrigins(), cfg.IsDevelopment()),
		Clock:          clock,
		Metrics:        metrics.NewWebSocketMetrics(reg),
		OnWriteFailure: bridge.ReportWriteFailure,
	})

	srv := httpserver.NewServer(cfg, httpserver.Dependencies{
		ViewerHandler:  acceptor,
		MetricsHandler: metrics.Handler(reg),
		ErrorCounter:   apperrors.NewErrorCounter(reg),
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		HealthChecks:   healthChecks,
		Clock:          clock,
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		bridge.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, cleaning up...")
	case err := <-serveErr:
		if err != nil {
			slog.Error("Server error", "error", err)
			exitCode = 1
		}
		stop()
	}

	if err := shutdown(srv, registry, &wg); err != nil {
		slog.Error("Shutdown incomplete", "error", err)
		exitCode = 1
	}
	slog.Info("Bridge exited", "broadcasts", bridge.Broadcasts())
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func shutdown(srv *httpserver.Server, registry *app.Registry, wg *sync.WaitGroup) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// stop accepting before closing the viewers already registered
	err := srv.Shutdown(shutdownCtx)

	closed := registry.CloseAll("Server shutting down")
	slog.Info("Closed viewer connections", "count", closed)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		err = errors.Join(err, fmt.Errorf("background workers: %w", shutdownCtx.Err()))
	}
	return err
}
