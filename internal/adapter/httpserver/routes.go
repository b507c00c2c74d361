package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/sebbywestside/exercise-monitoring-vest/internal/errors"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/version"
)

const (
	healthRatePerSecond = 5
	healthBurst         = 20
)

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(correlationMiddleware)
	s.echo.Use(apperrors.Middleware(s.errorCounter))
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}))

	viewer := echo.WrapHandler(s.viewerHandler)
	s.echo.GET("/ws", viewer)
	s.echo.GET("/", s.handleIndex(viewer))

	s.registerHealthRoutes(newRateLimiter(healthRatePerSecond, healthBurst))

	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

// handleIndex upgrades WebSocket handshakes on the root path, which is where
// existing dashboards point, and describes the service otherwise.
func (s *Server) handleIndex(viewer echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if websocket.IsWebSocketUpgrade(c.Request()) {
			return viewer(c)
		}

		mode := "hardware"
		if s.config.SyntheticMode {
			mode = "synthetic"
		}
		response := map[string]any{
			"service": "exercise-monitoring-vest",
			"mode":    mode,
			"viewer":  "/ws",
			"version": version.Version,
		}
		if err := c.JSON(http.StatusOK, response); err != nil {
			return fmt.Errorf("failed to write index response: %w", err)
		}
		return nil
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
