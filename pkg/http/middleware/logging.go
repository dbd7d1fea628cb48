package middleware

import (
	"time"

	applogger "RegimeLab/pkg/logger"

	"github.com/labstack/echo/v4"
)

// quietRoutes are polled by probes and scrapers and not worth a log line.
var quietRoutes = map[string]bool{"/healthz": true, "/metrics": true}

// RequestLogging logs API requests at debug level with the route template
// and, when given, the symbol being analysed.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if quietRoutes[c.Path()] {
				return err
			}

			fields := []applogger.Field{
				applogger.String("method", c.Request().Method),
				applogger.String("route", c.Path()),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("duration_ms", time.Since(start)),
			}
			if sym := c.QueryParam("symbol"); sym != "" {
				fields = append(fields, applogger.String("symbol", sym))
			}
			l.Debug("http request", fields...)
			return err
		}
	}
}
