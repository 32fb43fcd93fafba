package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rcanpahali/BirdNet/internal/observability/metrics"
)

// unmatchedRoute labels requests that matched no registered route, keeping
// the route label bounded.
const unmatchedRoute = "unmatched"

// NewMetrics records request count, latency and in-flight requests by the
// registered route pattern.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			m.RequestStarted()
			defer m.RequestFinished()

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = unmatchedRoute
			}
			m.RecordHTTPRequest(c.Request().Method, route, responseStatus(c, err), time.Since(start).Seconds())
			return err
		}
	}
}

// responseStatus is the status the client will see. Errors returned by the
// handler have not been written yet.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusMethodNotAllowed {
			return http.StatusNotFound
		}
		return he.Code
	}
	return http.StatusInternalServerError
}
