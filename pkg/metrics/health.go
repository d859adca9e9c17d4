package metrics

import (
	"context"
	"time"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/mcphost"
)

// Status is the aggregate health verdict reported at GET /health.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// BrainChecker is the subset of a brain adapter's contract Health() needs.
// Each of the four brain adapters (vector, analytical, graph, llm) already
// implements this.
type BrainChecker interface {
	Health(ctx context.Context) brains.HealthStatus
}

// MCPHealthSnapshot is the subset of pkg/mcphost.HealthMonitor's public
// surface Health() needs; *mcphost.HealthMonitor satisfies it directly.
type MCPHealthSnapshot interface {
	IsHealthy() bool
	GetStatuses() map[string]*mcphost.HealthStatus
}

// BrainReport is one brain adapter's contribution to a HealthReport.
type BrainReport struct {
	Name       string        `json:"name"`
	Status     brains.Status `json:"status"`
	LatencyP50 time.Duration `json:"latency_p50"`
	LastError  string        `json:"last_error,omitempty"`
}

// MCPReport is the MCP host's contribution to a HealthReport.
type MCPReport struct {
	Healthy bool                             `json:"healthy"`
	Servers map[string]*mcphost.HealthStatus `json:"servers"`
}

// HealthReport is the full aggregate health snapshot: an overall Status
// plus per-component detail, assembled synchronously from
// already-cached component state (each brain's own Health() call and the
// MCP host's background-polled cache) rather than live cross-goroutine
// RPCs, so a single slow or wedged component can never block the handler.
type HealthReport struct {
	Status Status        `json:"status"`
	Brains []BrainReport `json:"brains"`
	MCP    *MCPReport    `json:"mcp,omitempty"`
}

// Health assembles a HealthReport from the given brains (nil entries are
// skipped, reflecting a brain that was never wired for this deployment) and
// an optional MCP health snapshot (nil when the Mode Gate is in legacy
// mode and no MCP host is running).
//
// Overall status: healthy when every wired brain is
// healthy, degraded when at least one wired brain is healthy but at least
// one is not, unhealthy when every wired brain is unhealthy. An MCP host
// reporting unhealthy degrades an otherwise-healthy report rather than
// marking it unhealthy outright, since MCP content processors are
// supplementary to the four brains' own read/write paths.
func Health(ctx context.Context, wired map[string]BrainChecker, mcp MCPHealthSnapshot) HealthReport {
	report := HealthReport{}

	var healthyCount, unhealthyCount int
	for _, name := range orderedBrainNames(wired) {
		checker := wired[name]
		if checker == nil {
			continue
		}
		hs := checker.Health(ctx)
		report.Brains = append(report.Brains, BrainReport{
			Name:       name,
			Status:     hs.Status,
			LatencyP50: hs.LatencyP50,
			LastError:  hs.LastError,
		})
		switch hs.Status {
		case brains.StatusHealthy:
			healthyCount++
		default:
			unhealthyCount++
		}
	}

	switch {
	case healthyCount == 0 && unhealthyCount == 0:
		report.Status = StatusUnhealthy
	case unhealthyCount == 0:
		report.Status = StatusHealthy
	case healthyCount == 0:
		report.Status = StatusUnhealthy
	default:
		report.Status = StatusDegraded
	}

	if mcp != nil {
		report.MCP = &MCPReport{
			Healthy: mcp.IsHealthy(),
			Servers: mcp.GetStatuses(),
		}
		if !mcp.IsHealthy() && report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	return report
}

// orderedBrainNames returns wired's keys in the canonical C2 ordering
// (vector, analytical, graph, llm) followed by any unrecognized keys, so
// HealthReport.Brains has a stable, deterministic order across calls.
func orderedBrainNames(wired map[string]BrainChecker) []string {
	canonical := []string{"vector", "analytical", "graph", "llm"}
	seen := make(map[string]bool, len(canonical))
	ordered := make([]string, 0, len(wired))
	for _, name := range canonical {
		if _, ok := wired[name]; ok {
			ordered = append(ordered, name)
			seen[name] = true
		}
	}
	for name := range wired {
		if !seen[name] {
			ordered = append(ordered, name)
		}
	}
	return ordered
}
