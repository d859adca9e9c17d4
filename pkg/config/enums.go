package config

// Mode is the global ingestion/query policy selector.
type Mode string

const (
	// ModeLegacy accepts only legacy file uploads, converted internally
	// into Knowledge Packets by a built-in minimal processor. The MCP
	// host is not started.
	ModeLegacy Mode = "legacy"
	// ModeHybrid accepts both legacy uploads and Knowledge Packets.
	ModeHybrid Mode = "hybrid"
	// ModeMCP accepts ingestion only as Knowledge Packets via the MCP host.
	ModeMCP Mode = "mcp"
)

// IsValid reports whether the mode is one of the closed set.
func (m Mode) IsValid() bool {
	switch m {
	case ModeLegacy, ModeHybrid, ModeMCP:
		return true
	default:
		return false
	}
}

// TransportType defines MCP server transport types.
type TransportType string

const (
	// TransportTypeStdio uses subprocess communication via stdin/stdout.
	TransportTypeStdio TransportType = "stdio"
	// TransportTypeHTTP uses HTTP/HTTPS JSON-RPC (streamable).
	TransportTypeHTTP TransportType = "http"
	// TransportTypeSSE uses HTTP with Server-Sent Events streaming.
	TransportTypeSSE TransportType = "sse"
	// TransportTypeSocket uses a local Unix domain socket.
	TransportTypeSocket TransportType = "socket"
)

// IsValid checks if the transport type is valid.
func (t TransportType) IsValid() bool {
	switch t {
	case TransportTypeStdio, TransportTypeHTTP, TransportTypeSSE, TransportTypeSocket:
		return true
	default:
		return false
	}
}

// BrainBackend identifies the concrete backend wired behind a brain adapter.
type BrainBackend string

const (
	BrainBackendPostgres BrainBackend = "postgres"
	BrainBackendMemory   BrainBackend = "memory"
	BrainBackendAnthropic BrainBackend = "anthropic"
)

// IsValid reports whether the backend identifier is recognized.
func (b BrainBackend) IsValid() bool {
	switch b {
	case BrainBackendPostgres, BrainBackendMemory, BrainBackendAnthropic:
		return true
	default:
		return false
	}
}

// DistanceMetric selects the similarity function used by the vector brain.
type DistanceMetric string

const (
	DistanceMetricCosine DistanceMetric = "cosine"
	DistanceMetricL2     DistanceMetric = "l2"
	DistanceMetricDot    DistanceMetric = "dot"
)

// IsValid reports whether the distance metric is one of the supported set.
func (d DistanceMetric) IsValid() bool {
	switch d {
	case DistanceMetricCosine, DistanceMetricL2, DistanceMetricDot:
		return true
	default:
		return false
	}
}

// DefaultStrategy is the Query Orchestrator's fallback routing strategy,
// used when the Query Analyzer's classification confidence is too low to
// pick a specific strategy.
type DefaultStrategy string

const (
	DefaultStrategySemantic DefaultStrategy = "semantic"
	DefaultStrategyHybrid   DefaultStrategy = "hybrid"
)

// IsValid reports whether the strategy is recognized.
func (s DefaultStrategy) IsValid() bool {
	return s == DefaultStrategySemantic || s == DefaultStrategyHybrid
}
