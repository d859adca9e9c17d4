package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// mapError maps a domain-layer error to an HTTP error response. Validation
// failures surface as 400s, context deadline/cancellation as 504, and
// everything else falls through as an opaque 500 after being logged.
func mapError(err error) *echo.HTTPError {
	var valErr *packet.ValidationError
	if errors.As(err, &valErr) {
		return echo.NewHTTPError(http.StatusBadRequest, valErr.Error())
	}
	if errors.Is(err, packet.ErrHashMismatch) ||
		errors.Is(err, packet.ErrValidation) ||
		errors.Is(err, packet.ErrEmptyContent) ||
		errors.Is(err, packet.ErrUnknownEnum) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return echo.NewHTTPError(http.StatusRequestTimeout, "request canceled")
	}

	slog.Error("unexpected api error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
