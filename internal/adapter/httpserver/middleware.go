package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/correlation"
)

const correlationHeader = "X-Request-ID"

// correlationMiddleware tags the request context with an id, reusing the
// caller's X-Request-ID when present, and echoes it back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationHeader)
		if id == "" || len(id) > 64 {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlationHeader, id)
		return next(c)
	}
}
