package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nancy-knowledge/nancy/pkg/config"
)

// getModeHandler handles GET /mode.
func (s *Server) getModeHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, ModeResponse{Mode: string(s.modeGate.Current())})
}

// setModeHandler handles POST /mode: switches the Mode Gate, draining
// in-flight ingests first. Returns 409 if the requested mode is unknown or
// the switch is rejected (cmd/nancy's exit code 3 is the CLI-level analogue
// of this same rejection).
func (s *Server) setModeHandler(c *echo.Context) error {
	var req SetModeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	next := config.Mode(req.Mode)
	if !next.IsValid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown mode: "+req.Mode)
	}

	if err := s.modeGate.Switch(c.Request().Context(), next); err != nil {
		return echo.NewHTTPError(http.StatusConflict, "mode transition rejected: "+err.Error())
	}

	return c.JSON(http.StatusOK, ModeResponse{Mode: string(s.modeGate.Current())})
}
