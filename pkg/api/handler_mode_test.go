package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/mode"
)

type zeroDrainer struct{}

func (zeroDrainer) InFlight() int { return 0 }

func newModeTestServer(initial config.Mode) *Server {
	return &Server{modeGate: mode.NewGate(initial, zeroDrainer{})}
}

func TestGetModeHandler(t *testing.T) {
	s := newModeTestServer(config.ModeHybrid)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/mode", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.getModeHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ModeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hybrid", resp.Mode)
}

func TestSetModeHandlerSwitchesMode(t *testing.T) {
	s := newModeTestServer(config.ModeLegacy)
	e := echo.New()
	body := strings.NewReader(`{"mode":"hybrid"}`)
	req := httptest.NewRequest(http.MethodPost, "/mode", body)
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.setModeHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.ModeHybrid, s.modeGate.Current())
}

func TestSetModeHandlerRejectsUnknownMode(t *testing.T) {
	s := newModeTestServer(config.ModeLegacy)
	e := echo.New()
	body := strings.NewReader(`{"mode":"bogus"}`)
	req := httptest.NewRequest(http.MethodPost, "/mode", body)
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.setModeHandler(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	assert.Equal(t, config.ModeLegacy, s.modeGate.Current())
}
