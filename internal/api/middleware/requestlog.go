package middleware

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const requestIDHeader = "X-Request-ID"

// adminParams are the query parameters worth surfacing in request logs:
// they identify which keep, channel, or alert path an admin or simulate
// call touched, which is what an operator greps for after a bad alert.
var adminParams = []string{"action", "mode", "keep", "realm", "prev", "player"}

// RequestLog returns Echo middleware that logs requests with structured
// fields. It generates a request ID if none is provided and propagates it
// through the response header and echo context. Admin and simulate calls
// additionally log the target they acted on.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			c.Set("request_id", reqID)
			c.Response().Header().Set(requestIDHeader, reqID)

			err := next(c)

			fields := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			}
			for _, p := range adminParams {
				if v := c.QueryParam(p); v != "" {
					fields = append(fields, p, v)
				}
			}

			log.Info("request", fields...)

			return err
		}
	}
}
