package brains

import "time"

// Status is the coarse health state every brain adapter and the MCP host
// report through Health().
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusDegraded    Status = "degraded"
	StatusUnhealthy   Status = "unhealthy"
)

// HealthStatus is the uniform shape Health() returns across all four brain
// adapters.
type HealthStatus struct {
	Status    Status        `json:"status"`
	LatencyP50 time.Duration `json:"latency_p50"`
	LastError string        `json:"last_error,omitempty"`
}
