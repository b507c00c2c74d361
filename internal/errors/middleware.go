package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// NewErrorCounter creates and registers the http_errors_total counter.
func NewErrorCounter(reg prometheus.Registerer) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vest",
			Name:      "http_errors_total",
			Help:      "Total HTTP errors by error type",
		},
		[]string{"type"},
	)
	reg.MustRegister(counter)
	return counter
}

// Middleware returns an Echo middleware that handles structured errors.
// It catches errors returned by handlers and converts them to appropriate HTTP responses.
func Middleware(counter *prometheus.CounterVec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			// Echo's own errors keep their status code
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				counter.WithLabelValues(string(WrapHTTPError(httpErr).Type)).Inc()
				return err
			}

			return respond(c, counter, AsStructuredError(err))
		}
	}
}

// HandleError writes err as a structured JSON response.
func HandleError(c echo.Context, counter *prometheus.CounterVec, err error) error {
	if err == nil {
		return nil
	}
	return respond(c, counter, AsStructuredError(err))
}

func respond(c echo.Context, counter *prometheus.CounterVec, err *Error) error {
	counter.WithLabelValues(string(err.Type)).Inc()
	logError(c, err)

	if writeErr := c.JSON(err.HTTPStatus(), err.ToResponse()); writeErr != nil {
		return fmt.Errorf("failed to write error response: %w", writeErr)
	}
	return nil
}

// logError logs an error with request context.
func logError(c echo.Context, err *Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}

	switch err.Type {
	case TypeDecode, TypeNotFound:
		slog.Info("Request error", attrs...)
	case TypeRejected:
		slog.Warn("Request rejected", attrs...)
	case TypeUpstream:
		slog.Warn("Upstream unavailable", attrs...)
	default:
		slog.Error("Internal error", attrs...)
	}
}

// WrapHTTPError converts Echo's HTTPError to a structured error.
func WrapHTTPError(httpErr *echo.HTTPError) *Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok {
		message = msg
	}

	var errType ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest:
		errType = TypeDecode
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		errType = TypeNotFound
	case http.StatusTooManyRequests:
		errType = TypeRejected
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		errType = TypeUpstream
	default:
		errType = TypeInternal
	}

	err := newError(errType, message, httpErr.Internal)
	return err.WithStatus(httpErr.Code)
}
