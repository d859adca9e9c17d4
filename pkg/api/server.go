// Package api provides the HTTP ingress for Nancy: Knowledge Packet and
// legacy ingestion, querying, mode control, health, and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/ingest"
	"github.com/nancy-knowledge/nancy/pkg/mcphost"
	"github.com/nancy-knowledge/nancy/pkg/metrics"
	"github.com/nancy-knowledge/nancy/pkg/mode"
	"github.com/nancy-knowledge/nancy/pkg/query"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        *config.Config

	ingestRouter *ingest.Router
	queryOrch    *query.Orchestrator
	modeGate     *mode.Gate
	metrics      *metrics.Metrics
	brainHealth  map[string]metrics.BrainChecker

	mcpHost       *mcphost.Host          // nil if MCP host not running
	healthMonitor *mcphost.HealthMonitor // nil if MCP host not running
}

// NewServer creates a new API server with Echo v5, wired against the
// already-constructed Ingestion Router, Query Orchestrator, and Mode Gate.
// The MCP host is optional and set later via SetMCPHost, since it only
// runs in hybrid/mcp mode.
func NewServer(
	cfg *config.Config,
	ingestRouter *ingest.Router,
	queryOrch *query.Orchestrator,
	modeGate *mode.Gate,
	m *metrics.Metrics,
	brainHealth map[string]metrics.BrainChecker,
) *Server {
	e := echo.New()

	s := &Server{
		echo:         e,
		cfg:          cfg,
		ingestRouter: ingestRouter,
		queryOrch:    queryOrch,
		modeGate:     modeGate,
		metrics:      m,
		brainHealth:  brainHealth,
	}

	s.setupRoutes()
	return s
}

// SetMCPHost wires the MCP Host and its HealthMonitor once the Mode Gate
// has started them (legacy mode never calls this).
func (s *Server) SetMCPHost(host *mcphost.Host, monitor *mcphost.HealthMonitor) {
	s.mcpHost = host
	s.healthMonitor = monitor
}

// ValidateWiring checks that every required collaborator was passed to
// NewServer. Call this after construction and before Start/StartWithListener
// so a wiring gap fails startup instead of surfacing as a 500 on first
// request. mcpHost/healthMonitor are legitimately optional (legacy mode
// never runs them) and are not checked here.
func (s *Server) ValidateWiring() error {
	var errs []error
	if s.ingestRouter == nil {
		errs = append(errs, fmt.Errorf("ingestRouter not set"))
	}
	if s.queryOrch == nil {
		errs = append(errs, fmt.Errorf("queryOrch not set"))
	}
	if s.modeGate == nil {
		errs = append(errs, fmt.Errorf("modeGate not set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("server wiring incomplete: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	// 10 MB covers the largest legacy document upload Nancy accepts;
	// Knowledge Packet/query JSON bodies are far smaller in practice.
	s.echo.Use(middleware.BodyLimit(10 * 1024 * 1024))

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", s.metricsHandler)
	s.echo.GET("/mode", s.getModeHandler)
	s.echo.POST("/mode", s.setModeHandler)

	s.echo.POST("/ingest/knowledge-packet", s.ingestKnowledgePacketHandler)
	s.echo.POST("/ingest/legacy", s.ingestLegacyHandler)
	s.echo.POST("/ingest/directory", s.ingestDirectoryHandler)

	s.echo.POST("/query", s.queryHandler)
}

// Start starts the HTTP server on the given address (non-blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

const healthCheckTimeout = 5 * time.Second
