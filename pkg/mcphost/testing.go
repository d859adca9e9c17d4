package mcphost

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nancy-knowledge/nancy/pkg/config"
)

// InjectSession wires a pre-connected MCP SDK session directly into a
// Client, for tests that stand up an in-memory content-processor server and
// need a Client pointed at it without going through the real
// Initialize()/createTransport dial path.
func (c *Client) InjectSession(serverID string, sdkClient *mcpsdk.Client, session *mcpsdk.ClientSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[serverID] = session
	c.clients[serverID] = sdkClient
}

// NewTestClientFactory builds a ClientFactory whose CreateClient calls
// injectFn on a freshly-constructed Client instead of dialing real
// transports, so RouteIngest/HealthMonitor tests can exercise the host
// against in-memory MCP sessions.
func NewTestClientFactory(registry *config.MCPServerRegistry, injectFn func(c *Client)) *ClientFactory {
	return &ClientFactory{
		registry: registry,
		createClientFn: func(_ context.Context, _ []string) (*Client, error) {
			c := newClient(registry)
			injectFn(c)
			return c, nil
		},
	}
}
