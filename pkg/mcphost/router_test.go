package mcphost

import (
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nancy-knowledge/nancy/pkg/config"
)

func newTestRegistry(servers map[string]*config.MCPServerConfig) *config.MCPServerRegistry {
	return config.NewMCPServerRegistry(servers)
}

func TestSelectServerSingleCandidate(t *testing.T) {
	registry := newTestRegistry(map[string]*config.MCPServerConfig{
		"pdf-server": {ContentTypes: []string{"pdf"}},
	})
	h := &Host{registry: registry, health: NewHealthMonitor(nil, registry, nil)}

	serverID, err := h.SelectServer("pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-server", serverID)
}

func TestSelectServerNoCandidateErrors(t *testing.T) {
	registry := newTestRegistry(map[string]*config.MCPServerConfig{
		"pdf-server": {ContentTypes: []string{"pdf"}},
	})
	h := &Host{registry: registry, health: NewHealthMonitor(nil, registry, nil)}

	_, err := h.SelectServer("spreadsheet")
	assert.Error(t, err)
}

func TestSelectServerBreaksTiesByPriority(t *testing.T) {
	registry := newTestRegistry(map[string]*config.MCPServerConfig{
		"low":  {ContentTypes: []string{"pdf"}, Priority: 1},
		"high": {ContentTypes: []string{"pdf"}, Priority: 10},
	})
	h := &Host{registry: registry, health: NewHealthMonitor(nil, registry, nil)}

	serverID, err := h.SelectServer("pdf")
	require.NoError(t, err)
	assert.Equal(t, "high", serverID)
}

func TestSelectServerBreaksEqualPriorityTiesByHeartbeat(t *testing.T) {
	registry := newTestRegistry(map[string]*config.MCPServerConfig{
		"stale":  {ContentTypes: []string{"pdf"}, Priority: 5},
		"recent": {ContentTypes: []string{"pdf"}, Priority: 5},
	})
	monitor := NewHealthMonitor(nil, registry, nil)
	monitor.setStatus("stale", true, "", 3)
	time.Sleep(time.Millisecond)
	monitor.setStatus("recent", true, "", 3)

	h := &Host{registry: registry, health: monitor}

	serverID, err := h.SelectServer("pdf")
	require.NoError(t, err)
	assert.Equal(t, "recent", serverID)
}

func TestSelectServerPrefersCheckedOverUnchecked(t *testing.T) {
	registry := newTestRegistry(map[string]*config.MCPServerConfig{
		"unchecked": {ContentTypes: []string{"pdf"}, Priority: 5},
		"checked":   {ContentTypes: []string{"pdf"}, Priority: 5},
	})
	monitor := NewHealthMonitor(nil, registry, nil)
	monitor.setStatus("checked", true, "", 1)

	h := &Host{registry: registry, health: monitor}

	serverID, err := h.SelectServer("pdf")
	require.NoError(t, err)
	assert.Equal(t, "checked", serverID)
}

func textToolResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

func TestPacketFromToolResultDecodesPacket(t *testing.T) {
	result := textToolResult(`{
		"packet_version": "1.0",
		"packet_id": "` + "abcd" + `",
		"source": {"mcp_server_name": "pdf-server", "content_type": "pdf"},
		"metadata": {"title": "doc"},
		"content": {"vector_data": {"chunks": [{"chunk_id": "c1", "text": "hello"}]}}
	}`)

	pkt, err := packetFromToolResult(result)
	require.NoError(t, err)
	assert.Equal(t, "pdf-server", pkt.Source.MCPServerName)
	assert.True(t, pkt.HasVectorData())
}

func TestPacketFromToolResultRejectsErrorResult(t *testing.T) {
	result := textToolResult(`{}`)
	result.IsError = true

	_, err := packetFromToolResult(result)
	assert.Error(t, err)
}

func TestPacketFromToolResultRejectsMissingTextBlock(t *testing.T) {
	result := &mcpsdk.CallToolResult{}
	_, err := packetFromToolResult(result)
	assert.Error(t, err)
}

func TestPacketFromToolResultRejectsMalformedJSON(t *testing.T) {
	result := textToolResult(`not json`)
	_, err := packetFromToolResult(result)
	assert.Error(t, err)
}
