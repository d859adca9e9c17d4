package mcphost

import (
	"context"

	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/sanitize"
)

// ClientFactory builds Client instances wired with this deployment's
// registry and sanitization service, so every Client it produces redacts
// connect-failure text the same way regardless of which caller requested it.
type ClientFactory struct {
	registry    *config.MCPServerRegistry
	sanitizeSvc *sanitize.SanitizationService

	// createClientFn overrides Client construction when set. Used by test
	// infrastructure (NewTestClientFactory) to inject pre-wired in-memory
	// sessions instead of dialing real transports.
	createClientFn func(ctx context.Context, serverIDs []string) (*Client, error)
}

// NewClientFactory creates a new factory. sanitizeSvc may be nil, which
// leaves every Client it produces with redaction disabled.
func NewClientFactory(registry *config.MCPServerRegistry, sanitizeSvc *sanitize.SanitizationService) *ClientFactory {
	return &ClientFactory{registry: registry, sanitizeSvc: sanitizeSvc}
}

// CreateClient builds a Client and connects it to serverIDs. The caller owns
// the returned Client and must call Close() when done with it.
func (f *ClientFactory) CreateClient(ctx context.Context, serverIDs []string) (*Client, error) {
	if f.createClientFn != nil {
		return f.createClientFn(ctx, serverIDs)
	}

	client := newClient(f.registry)
	client.sanitizeSvc = f.sanitizeSvc
	if err := client.Initialize(ctx, serverIDs); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
