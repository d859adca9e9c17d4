package mcphost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/services"
)

// HealthStatus is one content-processor server's most recent heartbeat
// result. Serialized verbatim into GET /health's "mcp.servers" map
// (pkg/metrics.MCPReport), so its fields are part of that API's shape.
type HealthStatus struct {
	ServerID  string    `json:"server_id"`
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
	ToolCount int       `json:"tool_count"`
}

// HealthMonitor runs the C4 heartbeat/restart state machine: a background
// loop that pings every configured content-processor server on an
// interval, demotes a server to unhealthy after a missed heartbeat attempts
// one session restart, and raises a SystemWarning when the restart doesn't
// bring it back. cmd/nancy starts one instance alongside the MCP Host and
// pkg/metrics polls GetStatuses/IsHealthy for the aggregate /health report.
type HealthMonitor struct {
	factory        *ClientFactory
	registry       *config.MCPServerRegistry
	warningService *services.SystemWarningsService

	checkInterval time.Duration
	pingTimeout   time.Duration

	// client is the monitor's own long-lived connection set, separate from
	// any Client a Host uses for RouteIngest, so a slow ingest call never
	// delays the heartbeat and vice versa. Recreated wholesale if it's ever
	// nil when a sweep starts (ensureClient).
	client   *Client
	clientMu sync.Mutex

	// toolCache mirrors the last healthy heartbeat's tool list per server,
	// for callers (e.g. a capabilities endpoint) that want the tool set
	// without waiting on the next sweep.
	toolCache   map[string][]*mcpsdk.Tool
	toolCacheMu sync.RWMutex

	statuses   map[string]*HealthStatus
	statusesMu sync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// NewHealthMonitor builds a HealthMonitor. Call Start to begin sweeping.
func NewHealthMonitor(
	factory *ClientFactory,
	registry *config.MCPServerRegistry,
	warningService *services.SystemWarningsService,
) *HealthMonitor {
	return &HealthMonitor{
		factory:        factory,
		registry:       registry,
		warningService: warningService,
		checkInterval:  MCPHealthInterval,
		pingTimeout:    MCPHealthPingTimeout,
		toolCache:      make(map[string][]*mcpsdk.Tool),
		statuses:       make(map[string]*HealthStatus),
		logger:         slog.Default(),
	}
}

// Start launches the background sweep loop. A no-op if already running.
func (m *HealthMonitor) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	m.clientMu.Lock()
	serverIDs := m.registry.ServerIDs()
	client, err := m.factory.CreateClient(ctx, serverIDs)
	if err != nil {
		m.logger.Warn("health monitor: failed to create initial client", "error", err)
	}
	m.client = client
	m.clientMu.Unlock()

	go m.loop(ctx)
}

// Stop halts the sweep loop and closes the monitor's connections. Start may
// be called again afterward, beginning from a clean slate (so IsHealthy
// doesn't report on servers that no longer exist after a registry reload).
func (m *HealthMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
	m.clientMu.Lock()
	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
	}
	m.clientMu.Unlock()

	m.statusesMu.Lock()
	m.statuses = make(map[string]*HealthStatus)
	m.statusesMu.Unlock()

	m.toolCacheMu.Lock()
	m.toolCache = make(map[string][]*mcpsdk.Tool)
	m.toolCacheMu.Unlock()

	m.cancel = nil
	m.done = nil
}

func (m *HealthMonitor) loop(ctx context.Context) {
	defer close(m.done)

	m.ensureClient(ctx)
	m.sweep(ctx)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ensureClient(ctx)
			m.sweep(ctx)
		}
	}
}

// ensureClient rebuilds the monitor's Client if a prior CreateClient failure
// left it nil, so a transient failure at Start doesn't permanently disable
// heartbeats.
func (m *HealthMonitor) ensureClient(ctx context.Context) {
	m.clientMu.Lock()
	defer m.clientMu.Unlock()

	if m.client != nil {
		return
	}

	serverIDs := m.registry.ServerIDs()
	client, err := m.factory.CreateClient(ctx, serverIDs)
	if err != nil {
		m.logger.Warn("health monitor: failed to recreate client", "error", err)
		return
	}
	m.client = client
	m.logger.Info("health monitor: client recovered")
}

// sweep pings every configured server once.
func (m *HealthMonitor) sweep(ctx context.Context) {
	for _, serverID := range m.registry.ServerIDs() {
		m.heartbeat(ctx, serverID)
	}
}

// heartbeat runs the per-server state transition: ping via ListTools: on
// success the server is healthy and its warning (if any) clears; on failure
// it restarts the session and retries once before declaring the server
// unhealthy and raising a SystemWarning.
func (m *HealthMonitor) heartbeat(ctx context.Context, serverID string) {
	m.clientMu.Lock()
	client := m.client
	m.clientMu.Unlock()

	if client == nil {
		m.setStatus(serverID, false, "health client not initialized", 0)
		return
	}

	// Invalidate first: a cache hit would make ListTools a no-op and the
	// heartbeat would never actually touch the connection.
	client.InvalidateToolCache(serverID)

	pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
	defer cancel()

	tools, err := client.ListTools(pingCtx, serverID)
	if err != nil {
		m.logger.Debug("heartbeat missed, restarting session", "server", serverID, "error", err)

		restartCtx, restartCancel := context.WithTimeout(ctx, m.pingTimeout)
		defer restartCancel()

		if restartErr := client.recreateSession(restartCtx, serverID); restartErr != nil {
			m.markUnhealthy(client, serverID, err)
			return
		}

		retryCtx, retryCancel := context.WithTimeout(ctx, m.pingTimeout)
		defer retryCancel()

		tools, err = client.ListTools(retryCtx, serverID)
		if err != nil {
			m.markUnhealthy(client, serverID, err)
			return
		}
	}

	m.setStatus(serverID, true, "", len(tools))

	m.toolCacheMu.Lock()
	m.toolCache[serverID] = tools
	m.toolCacheMu.Unlock()

	m.warningService.ClearByServerID(services.WarningCategoryMCPHealth, serverID)
}

// markUnhealthy records serverID as unhealthy and raises a SystemWarning,
// redacting err's text through client's sanitizer first since a broken
// content processor's error output is otherwise unvetted.
func (m *HealthMonitor) markUnhealthy(client *Client, serverID string, err error) {
	redacted := client.redactErrorText(serverID, err)
	m.setStatus(serverID, false, fmt.Sprintf("heartbeat failed: %s", redacted), 0)
	m.warningService.AddWarning(
		services.WarningCategoryMCPHealth,
		fmt.Sprintf("content processor %q is unhealthy", serverID),
		redacted, serverID)
}

func (m *HealthMonitor) setStatus(serverID string, healthy bool, errMsg string, toolCount int) {
	m.statusesMu.Lock()
	defer m.statusesMu.Unlock()
	m.statuses[serverID] = &HealthStatus{
		ServerID:  serverID,
		Healthy:   healthy,
		LastCheck: time.Now(),
		Error:     errMsg,
		ToolCount: toolCount,
	}
}

// GetStatuses returns a snapshot of every monitored server's last heartbeat
// result.
func (m *HealthMonitor) GetStatuses() map[string]*HealthStatus {
	m.statusesMu.RLock()
	defer m.statusesMu.RUnlock()
	result := make(map[string]*HealthStatus, len(m.statuses))
	for k, v := range m.statuses {
		cp := *v
		result[k] = &cp
	}
	return result
}

// GetCachedTools returns each server's tool list as of its last healthy
// heartbeat. The returned slices are shared with the monitor's cache and
// must not be mutated.
func (m *HealthMonitor) GetCachedTools() map[string][]*mcpsdk.Tool {
	m.toolCacheMu.RLock()
	defer m.toolCacheMu.RUnlock()
	result := make(map[string][]*mcpsdk.Tool, len(m.toolCache))
	for k, v := range m.toolCache {
		result[k] = v
	}
	return result
}

// IsHealthy reports whether every monitored server's last heartbeat
// succeeded. False before the first sweep completes.
func (m *HealthMonitor) IsHealthy() bool {
	m.statusesMu.RLock()
	defer m.statusesMu.RUnlock()
	if len(m.statuses) == 0 {
		return false
	}
	for _, s := range m.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
