package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// metricsHandler handles GET /metrics: the current Prometheus metric
// snapshot in the standard text exposition format.
func (s *Server) metricsHandler(c *echo.Context) error {
	if s.metrics == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "metrics not configured")
	}
	s.metrics.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
