package mcphost

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/sanitize"
	"github.com/nancy-knowledge/nancy/pkg/version"
)

// Client holds one MCP SDK session per connected content-processor server.
// A ClientFactory hands one out per caller — the Host routing an ingest
// call, or the HealthMonitor's heartbeat loop — so a wedged or recreated
// session on one server never blocks work headed to another. Safe for
// concurrent use: RouteIngest and the health sweep both reach into it from
// separate goroutines.
type Client struct {
	registry    *config.MCPServerRegistry
	sanitizeSvc *sanitize.SanitizationService

	mu            sync.RWMutex
	sessions      map[string]*mcpsdk.ClientSession // serverID -> live session
	clients       map[string]*mcpsdk.Client        // serverID -> client, kept for reconnection
	failedServers map[string]string                // serverID -> last connect error

	// toolCache is populated lazily on first ListTools and never expires on
	// its own; a Client's lifetime is short enough (one session, or one
	// HealthMonitor generation) that staleness isn't a concern. health.go
	// invalidates a server's entry explicitly around each heartbeat.
	toolCache   map[string][]*mcpsdk.Tool
	toolCacheMu sync.RWMutex

	// reinitMu holds one *sync.Mutex per serverID so two goroutines racing
	// to (re)connect the same server serialize instead of both dialing.
	reinitMu sync.Map

	logger *slog.Logger
}

func newClient(registry *config.MCPServerRegistry) *Client {
	return &Client{
		registry:      registry,
		sessions:      make(map[string]*mcpsdk.ClientSession),
		clients:       make(map[string]*mcpsdk.Client),
		failedServers: make(map[string]string),
		toolCache:     make(map[string][]*mcpsdk.Tool),
		logger:        slog.Default(),
	}
}

// redactErrorText returns err's message passed through the sanitization
// service configured for serverID, if one is wired. A content processor
// that fails to connect can echo raw environment output (stack traces,
// connection strings) in its error text, and that text ends up stored in
// failedServers and HealthStatus.Error, both surfaced over the /health
// endpoint — so it gets the same server-scoped redaction as the content
// the server would otherwise have returned successfully.
func (c *Client) redactErrorText(serverID string, err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if c.sanitizeSvc == nil {
		return msg
	}
	return c.sanitizeSvc.SanitizeSourceContent(msg, serverID)
}

// Initialize connects every serverID in order, recording any that fail in
// failedServers rather than aborting — a partially-initialized Client is
// usable (RouteIngest just has fewer candidate servers), and
// ClientFactory.CreateClient decides whether that's acceptable for its
// caller. Always returns nil today; the error return stays so future
// policy (e.g. failing outright when every server is down) can use it
// without changing the signature.
func (c *Client) Initialize(ctx context.Context, serverIDs []string) error {
	for _, serverID := range serverIDs {
		if err := c.InitializeServer(ctx, serverID); err != nil {
			redacted := c.redactErrorText(serverID, err)
			c.mu.Lock()
			c.failedServers[serverID] = redacted
			c.mu.Unlock()
			c.logger.Warn("content processor failed to initialize", "server", serverID, "error", redacted)
		}
	}
	return nil
}

// InitializeServer connects a single server, or returns nil if it's already
// connected. Serializes per-server via reinitMu so concurrent callers don't
// both dial the same server.
func (c *Client) InitializeServer(ctx context.Context, serverID string) error {
	muI, _ := c.reinitMu.LoadOrStore(serverID, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	return c.initializeServerLocked(ctx, serverID)
}

// initializeServerLocked does the actual dial. Caller must hold serverID's
// reinitMu entry.
func (c *Client) initializeServerLocked(ctx context.Context, serverID string) error {
	c.mu.RLock()
	_, exists := c.sessions[serverID]
	c.mu.RUnlock()
	if exists {
		return nil
	}

	serverCfg, err := c.registry.Get(serverID)
	if err != nil {
		return fmt.Errorf("content processor %q not found in registry: %w", serverID, err)
	}

	transport, err := createTransport(serverCfg.Transport)
	if err != nil {
		return fmt.Errorf("build transport for %q: %w", serverID, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, MCPInitTimeout)
	defer cancel()

	sdkClient := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)

	session, err := sdkClient.Connect(initCtx, transport, nil)
	if err != nil {
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return fmt.Errorf("connect to %q: %w", serverID, err)
	}

	c.mu.Lock()
	c.sessions[serverID] = session
	c.clients[serverID] = sdkClient
	delete(c.failedServers, serverID)
	c.mu.Unlock()

	c.logger.Info("content processor connected", "server", serverID)
	return nil
}

// ListTools returns serverID's tool list, from cache when available.
func (c *Client) ListTools(ctx context.Context, serverID string) ([]*mcpsdk.Tool, error) {
	c.toolCacheMu.RLock()
	if cached, ok := c.toolCache[serverID]; ok {
		c.toolCacheMu.RUnlock()
		return cached, nil
	}
	c.toolCacheMu.RUnlock()

	c.mu.RLock()
	session, exists := c.sessions[serverID]
	c.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("no session for content processor %q", serverID)
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	result, err := session.ListTools(opCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools from %q: %w", serverID, err)
	}

	tools := result.Tools
	if tools == nil {
		tools = []*mcpsdk.Tool{}
	}
	c.toolCacheMu.Lock()
	c.toolCache[serverID] = tools
	c.toolCacheMu.Unlock()

	return tools, nil
}

// ListAllTools returns every connected server's tools, tolerating
// individual failures; it only errors out when no server answered at all.
func (c *Client) ListAllTools(ctx context.Context) (map[string][]*mcpsdk.Tool, error) {
	c.mu.RLock()
	serverIDs := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		serverIDs = append(serverIDs, id)
	}
	c.mu.RUnlock()

	result := make(map[string][]*mcpsdk.Tool)
	var lastErr error
	for _, id := range serverIDs {
		tools, err := c.ListTools(ctx, id)
		if err != nil {
			lastErr = err
			c.logger.Warn("failed to list tools from content processor", "server", id, "error", err)
			continue
		}
		result[id] = tools
	}

	if len(result) == 0 && lastErr != nil {
		return nil, fmt.Errorf("every content processor failed to list tools: %w", lastErr)
	}
	return result, nil
}

// CallTool invokes toolName on serverID, used by Host.RouteIngest to hand a
// raw artifact to a content processor and get a Knowledge Packet back. A
// transport-level failure gets one retry, after a jittered backoff and
// (when ClassifyError says the session itself is bad) a session recreation;
// anything ClassifyError calls non-retryable is returned immediately.
func (c *Client) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	params := &mcpsdk.CallToolParams{Name: toolName, Arguments: args}

	result, err := c.callToolOnce(ctx, serverID, params)
	if err == nil {
		return result, nil
	}

	action := ClassifyError(err)
	if action == NoRetry {
		return nil, err
	}

	c.logger.Info("content processor call failed, retrying",
		"server", serverID, "tool", toolName, "action", action, "error", err)

	backoff := RetryBackoffMin + time.Duration(rand.Int64N(int64(RetryBackoffMax-RetryBackoffMin)))
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if action == RetryNewSession {
		if err := c.recreateSession(ctx, serverID); err != nil {
			return nil, fmt.Errorf("recreate session for %q: %w", serverID, err)
		}
	}

	result, err = c.callToolOnce(ctx, serverID, params)
	if err != nil {
		return nil, fmt.Errorf("retry failed for %q.%s: %w", serverID, toolName, err)
	}
	return result, nil
}

func (c *Client) callToolOnce(ctx context.Context, serverID string, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error) {
	c.mu.RLock()
	session, exists := c.sessions[serverID]
	c.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("no session for content processor %q", serverID)
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	return session.CallTool(opCtx, params)
}

// recreateSession closes and reconnects serverID's session. Two goroutines
// racing in here both see the broken session and both pay for a fresh
// reconnect; a generation counter would let the loser skip its redundant
// reconnect, but RouteIngest/health traffic never races this hard enough to
// make the extra connect attempt worth the complexity.
func (c *Client) recreateSession(ctx context.Context, serverID string) error {
	muI, _ := c.reinitMu.LoadOrStore(serverID, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	c.mu.Lock()
	if session, exists := c.sessions[serverID]; exists {
		_ = session.Close()
		delete(c.sessions, serverID)
		delete(c.clients, serverID)
	}
	c.mu.Unlock()

	c.InvalidateToolCache(serverID)

	reinitCtx, cancel := context.WithTimeout(ctx, ReinitTimeout)
	defer cancel()

	return c.initializeServerLocked(reinitCtx, serverID)
}

// Close tears down every session. Safe to call on an already-closed Client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for id, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %q: %w", id, err)
		}
	}

	c.sessions = make(map[string]*mcpsdk.ClientSession)
	c.clients = make(map[string]*mcpsdk.Client)
	c.failedServers = make(map[string]string)

	c.toolCacheMu.Lock()
	c.toolCache = make(map[string][]*mcpsdk.Tool)
	c.toolCacheMu.Unlock()

	return firstErr
}

// InvalidateToolCache drops serverID's cached tool list, forcing the next
// ListTools to re-probe the server.
func (c *Client) InvalidateToolCache(serverID string) {
	c.toolCacheMu.Lock()
	delete(c.toolCache, serverID)
	c.toolCacheMu.Unlock()
}

// HasSession reports whether serverID currently has a live session.
func (c *Client) HasSession(serverID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.sessions[serverID]
	return exists
}

// FailedServers returns a copy of the serverID -> redacted-error map built
// up by Initialize.
func (c *Client) FailedServers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]string, len(c.failedServers))
	for k, v := range c.failedServers {
		result[k] = v
	}
	return result
}
