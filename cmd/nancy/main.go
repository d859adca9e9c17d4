// Nancy Orchestration Core server: Knowledge Packet ingestion, querying
// across the vector/analytical/graph/LLM brains, MCP host supervision, and
// the runtime mode gate, exposed over HTTP.
package main

import (
	"context"
	stdsql "database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/nancy-knowledge/nancy/pkg/api"
	"github.com/nancy-knowledge/nancy/pkg/brains/analytical"
	"github.com/nancy-knowledge/nancy/pkg/brains/graph"
	"github.com/nancy-knowledge/nancy/pkg/brains/llm"
	"github.com/nancy-knowledge/nancy/pkg/brains/vector"
	"github.com/nancy-knowledge/nancy/pkg/cleanup"
	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/database"
	"github.com/nancy-knowledge/nancy/pkg/ingest"
	"github.com/nancy-knowledge/nancy/pkg/mcphost"
	"github.com/nancy-knowledge/nancy/pkg/metrics"
	"github.com/nancy-knowledge/nancy/pkg/mode"
	"github.com/nancy-knowledge/nancy/pkg/query"
	"github.com/nancy-knowledge/nancy/pkg/sanitize"
	"github.com/nancy-knowledge/nancy/pkg/services"
	"github.com/nancy-knowledge/nancy/pkg/version"
)

// Exit codes per the external interface contract: 0 success, 1 startup
// failure, 2 configuration invalid, 3 mode-transition rejected. cmd/nancy
// itself never calls Gate.Switch at cold start (it always boots directly
// into NancyCore.Mode), so 3 is reserved for future CLI-driven transitions
// and is not emitted by this binary today.
const (
	exitOK             = 0
	exitStartupFailure = 1
	exitConfigInvalid  = 2
	exitModeRejected   = 3
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	httpAddr := flag.String("http-addr", getEnv("HTTP_ADDR", ":8080"), "HTTP listen address")
	flag.Parse()

	logger := slog.Default()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		logger.Info("loaded environment", "path", envPath)
	}

	logger.Info("starting nancy", "version", version.Full(), "config_dir", *configDir, "http_addr", *httpAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitConfigInvalid
	}
	stats := cfg.Stats()
	logger.Info("configuration loaded", "mode", stats.Mode, "mcp_servers", stats.MCPServers)

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		logger.Error("invalid database configuration", "error", err)
		return exitConfigInvalid
	}

	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return exitStartupFailure
	}
	defer dbClient.Close()
	logger.Info("connected to postgres")

	wired, err := wireBrains(cfg.Brains, dbClient.Pool, dbClient.DB())
	if err != nil {
		logger.Error("failed to wire brain adapters", "error", err)
		return exitStartupFailure
	}

	recordStore := ingest.NewPostgresStore(dbClient.Pool)
	ingestRouter := ingest.NewRouter(ingest.Brains{
		Vector:     wired.vector,
		Analytical: wired.analytical,
		Graph:      wired.graph,
	}, recordStore, cfg.Limits, nil)

	evidenceCfg := sanitize.EvidenceSanitizationConfig{Enabled: cfg.Sanitize.Enabled}
	if len(cfg.Sanitize.PatternGroups) > 0 {
		evidenceCfg.PatternGroup = cfg.Sanitize.PatternGroups[0]
	}
	sanitizeSvc := sanitize.NewSanitizationService(cfg.MCPServerRegistry, evidenceCfg)

	analyzer := query.NewAnalyzer(wired.llm, cfg.Orchestration)
	queryOrch := query.NewOrchestrator(query.Brains{
		Vector:     wired.vector,
		Analytical: wired.analytical,
		Graph:      wired.graph,
		LLM:        wired.llm,
	}, analyzer, sanitizeSvc, cfg.Orchestration)

	modeGate := mode.NewGate(cfg.NancyCore.Mode, ingestRouter)
	metricsSvc := metrics.New()

	brainHealth := map[string]metrics.BrainChecker{
		"vector":     wired.vector,
		"analytical": wired.analytical,
		"graph":      wired.graph,
		"llm":        wired.llm,
	}

	apiServer := api.NewServer(cfg, ingestRouter, queryOrch, modeGate, metricsSvc, brainHealth)

	var healthMonitor *mcphost.HealthMonitor
	if modeGate.RunsMCPHost() {
		factory := mcphost.NewClientFactory(cfg.MCPServerRegistry, sanitizeSvc)
		client, err := factory.CreateClient(ctx, cfg.MCPServerRegistry.ServerIDs())
		if err != nil {
			logger.Error("failed to initialize mcp host client", "error", err)
			return exitStartupFailure
		}
		defer func() { _ = client.Close() }()

		warningsSvc := services.NewSystemWarningsService()
		healthMonitor = mcphost.NewHealthMonitor(factory, cfg.MCPServerRegistry, warningsSvc)
		healthMonitor.Start(ctx)
		defer healthMonitor.Stop()

		host := mcphost.NewHost(client, cfg.MCPServerRegistry, healthMonitor, ingestRouter)
		apiServer.SetMCPHost(host, healthMonitor)
		logger.Info("mcp host started", "servers", len(cfg.MCPServerRegistry.GetAll()))
	}

	cleanupSvc := cleanup.NewService(cfg.Retention, recordStore)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	if err := apiServer.ValidateWiring(); err != nil {
		logger.Error("server wiring incomplete", "error", err)
		return exitStartupFailure
	}

	ln, err := net.Listen("tcp", *httpAddr)
	if err != nil {
		logger.Error("failed to bind http address", "address", *httpAddr, "error", err)
		return exitStartupFailure
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "address", *httpAddr)
		serveErr <- apiServer.StartWithListener(ln)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			return exitStartupFailure
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return exitStartupFailure
	}

	return exitOK
}

type wiredBrains struct {
	vector     vector.Store
	analytical analytical.Store
	graph      graph.Store
	llm        llm.Brain
}

// wireBrains constructs each of the four brain adapters per its configured
// Backend, sharing the server's single postgres connection pool.
func wireBrains(cfg *config.BrainsConfig, pool *pgxpool.Pool, db *stdsql.DB) (wiredBrains, error) {
	var w wiredBrains

	switch cfg.Vector.Backend {
	case config.BrainBackendMemory:
		w.vector = vector.NewMemoryStore(nil)
	case config.BrainBackendPostgres:
		w.vector = vector.NewPostgresStore(pool, nil)
	default:
		return w, fmt.Errorf("vector brain: unsupported backend %q", cfg.Vector.Backend)
	}

	switch cfg.Analytical.Backend {
	case config.BrainBackendMemory:
		w.analytical = analytical.NewMemoryStore()
	case config.BrainBackendPostgres:
		w.analytical = analytical.NewPostgresStore(sqlx.NewDb(db, "pgx"))
	default:
		return w, fmt.Errorf("analytical brain: unsupported backend %q", cfg.Analytical.Backend)
	}

	switch cfg.Graph.Backend {
	case config.BrainBackendMemory:
		w.graph = graph.NewMemoryStore()
	case config.BrainBackendPostgres:
		w.graph = graph.NewPostgresStore(pool)
	default:
		return w, fmt.Errorf("graph brain: unsupported backend %q", cfg.Graph.Backend)
	}

	switch cfg.LLM.Backend {
	case config.BrainBackendMemory:
		w.llm = llm.NewExtractiveBrain()
	case config.BrainBackendAnthropic:
		anthropicBrain, err := llm.NewAnthropicBrain(cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.APIKeyEnv)
		if err != nil {
			return w, fmt.Errorf("llm brain: %w", err)
		}
		w.llm = anthropicBrain
	default:
		return w, fmt.Errorf("llm brain: unsupported backend %q", cfg.LLM.Backend)
	}

	return w, nil
}
