package mcphost

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/ingest"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// toolIngest, toolHealthCheck, and toolCapabilities are the standard MCP
// tool names every content-processor server exposes. ListTools doubles as
// the capability advertisement fetch, so toolCapabilities is informational
// only; Host never calls it directly.
const (
	toolIngest       = "ingest"
	toolHealthCheck  = "health_check"
	toolCapabilities = "capabilities"
)

// Host is the MCP Host (C4): it supervises content-processor servers
// through Client/ClientFactory/HealthMonitor and routes ingestion requests
// to the right one by content type, handing the resulting Knowledge
// Packet to the Ingestion Router.
type Host struct {
	client   *Client
	registry *config.MCPServerRegistry
	health   *HealthMonitor
	ingest   *ingest.Router
}

// NewHost wires a Host from an already-connected Client, the server
// registry it was built from, a running HealthMonitor, and the Ingestion
// Router packets get handed to once routed.
func NewHost(client *Client, registry *config.MCPServerRegistry, health *HealthMonitor, ingestRouter *ingest.Router) *Host {
	return &Host{client: client, registry: registry, health: health, ingest: ingestRouter}
}

// SelectServer picks the server that should handle contentType: every
// registered server declaring that content type, ordered by descending
// priority, with ties broken by whichever candidate's HealthMonitor
// heartbeat is most recent. A candidate the health monitor has never
// checked (LastCheck is zero) sorts behind one that has.
func (h *Host) SelectServer(contentType string) (string, error) {
	candidates := h.registry.ByContentType(contentType)
	if len(candidates) == 0 {
		return "", fmt.Errorf("mcphost: no server registered for content type %q", contentType)
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	statuses := h.health.GetStatuses()
	priorities := make(map[string]int, len(candidates))
	for _, id := range candidates {
		if server, err := h.registry.Get(id); err == nil {
			priorities[id] = server.Priority
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		pi, pj := priorities[candidates[i]], priorities[candidates[j]]
		if pi != pj {
			return pi > pj
		}
		si, sj := statuses[candidates[i]], statuses[candidates[j]]
		if si == nil || sj == nil {
			return si != nil
		}
		return si.LastCheck.After(sj.LastCheck)
	})
	return candidates[0], nil
}

// RouteIngest selects a server for contentType, invokes its "ingest" tool
// with args, unmarshals the resulting Knowledge Packet, and hands it to
// the Ingestion Router. The selected server ID is returned alongside the
// router's result so callers can log or meter per-server outcomes.
func (h *Host) RouteIngest(ctx context.Context, contentType string, args map[string]any) (serverID string, result ingest.Result, err error) {
	serverID, err = h.SelectServer(contentType)
	if err != nil {
		return "", ingest.Result{}, err
	}

	toolResult, err := h.client.CallTool(ctx, serverID, toolIngest, args)
	if err != nil {
		return serverID, ingest.Result{}, fmt.Errorf("mcphost: ingest call to %q failed: %w", serverID, err)
	}

	pkt, err := packetFromToolResult(toolResult)
	if err != nil {
		return serverID, ingest.Result{}, fmt.Errorf("mcphost: decode ingest response from %q: %w", serverID, err)
	}

	result, err = h.ingest.Ingest(ctx, pkt)
	return serverID, result, err
}

// HealthCheckServer invokes contentType server's own "health_check" tool,
// independent of the HealthMonitor's ListTools-based probing. Servers that
// don't implement it are expected to return an MCP tool-not-found error,
// which callers should treat the same as an unhealthy heartbeat.
func (h *Host) HealthCheckServer(ctx context.Context, serverID string) error {
	result, err := h.client.CallTool(ctx, serverID, toolHealthCheck, nil)
	if err != nil {
		return err
	}
	if result.IsError {
		return fmt.Errorf("mcphost: server %q reports unhealthy", serverID)
	}
	return nil
}

// packetFromToolResult extracts the JSON Knowledge Packet document from an
// MCP tool call result. Content-processor servers return it as a single
// text content block; a result with no text block or malformed JSON is a
// protocol violation on the server's part.
func packetFromToolResult(result *mcpsdk.CallToolResult) (*packet.Packet, error) {
	if result == nil {
		return nil, fmt.Errorf("empty tool result")
	}
	if result.IsError {
		return nil, fmt.Errorf("tool reported an error result")
	}
	for _, block := range result.Content {
		text, ok := block.(*mcpsdk.TextContent)
		if !ok {
			continue
		}
		var pkt packet.Packet
		if err := json.Unmarshal([]byte(text.Text), &pkt); err != nil {
			return nil, fmt.Errorf("unmarshal knowledge packet: %w", err)
		}
		return &pkt, nil
	}
	return nil, fmt.Errorf("no text content block in tool result")
}
