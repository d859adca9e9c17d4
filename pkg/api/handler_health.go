package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nancy-knowledge/nancy/pkg/metrics"
)

// healthHandler handles GET /health: the aggregate health report over
// every wired brain plus the MCP host, if one is running.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	var mcpSnapshot metrics.MCPHealthSnapshot
	if s.healthMonitor != nil {
		mcpSnapshot = s.healthMonitor
	}

	report := metrics.Health(reqCtx, s.brainHealth, mcpSnapshot)

	if s.metrics != nil && s.healthMonitor != nil {
		statuses := s.healthMonitor.GetStatuses()
		healthy := 0
		for _, st := range statuses {
			if st.Healthy {
				healthy++
			}
		}
		s.metrics.SetMCPServerCounts(healthy, len(statuses))
	}

	httpStatus := http.StatusOK
	if report.Status == metrics.StatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	return c.JSON(httpStatus, report)
}
