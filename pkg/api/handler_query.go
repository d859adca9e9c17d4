package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/nancy-knowledge/nancy/pkg/query"
)

// queryHandler handles POST /query: runs the question through the Query
// Analyzer and Query Orchestrator and returns the synthesized answer with
// its supporting citations.
func (s *Server) queryHandler(c *echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	if s.metrics != nil {
		s.metrics.RecordQueryReceived()
	}

	opts := query.Options{
		K:            req.NResults,
		Filter:       req.Filter,
		MaxTokens:    req.MaxTokens,
		IncludeRaw:   req.IncludeRaw,
		PriorityHint: req.PriorityHint,
	}

	start := time.Now()
	resp, err := s.queryOrch.Query(c.Request().Context(), req.Question, opts)
	if s.metrics != nil {
		s.metrics.RecordQueryOutcome(resp.SynthesisDegraded, time.Since(start))
	}
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, resp)
}
