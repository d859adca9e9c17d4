package config

import (
	"fmt"
	"os"
)

// Validator validates configuration comprehensively with clear error messages
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *Validator) ValidateAll() error {
	if err := v.validateNancyCore(); err != nil {
		return fmt.Errorf("nancy_core validation failed: %w", err)
	}

	if err := v.validateOrchestration(); err != nil {
		return fmt.Errorf("orchestration validation failed: %w", err)
	}

	if err := v.validateBrains(); err != nil {
		return fmt.Errorf("brain validation failed: %w", err)
	}

	if err := v.validateLimits(); err != nil {
		return fmt.Errorf("limits validation failed: %w", err)
	}

	if err := v.validateMCPServers(); err != nil {
		return fmt.Errorf("MCP server validation failed: %w", err)
	}

	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateNancyCore() error {
	core := v.cfg.NancyCore
	if core == nil {
		return fmt.Errorf("nancy_core configuration is nil")
	}
	if !core.Mode.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidMode, core.Mode)
	}
	return nil
}

func (v *Validator) validateOrchestration() error {
	o := v.cfg.Orchestration
	if o == nil {
		return fmt.Errorf("orchestration configuration is nil")
	}
	if o.DefaultStrategy != "" && !o.DefaultStrategy.IsValid() {
		return NewValidationError("orchestration", "", "default_strategy", fmt.Errorf("invalid strategy: %s", o.DefaultStrategy))
	}
	if o.PerBrainTimeoutMS <= 0 {
		return NewValidationError("orchestration", "", "per_brain_timeout_ms", fmt.Errorf("must be positive, got %d", o.PerBrainTimeoutMS))
	}
	if o.TotalTimeoutMS <= 0 {
		return NewValidationError("orchestration", "", "total_timeout_ms", fmt.Errorf("must be positive, got %d", o.TotalTimeoutMS))
	}
	if o.TotalTimeoutMS < o.PerBrainTimeoutMS {
		return NewValidationError("orchestration", "", "total_timeout_ms", fmt.Errorf("must be >= per_brain_timeout_ms (%d), got %d", o.PerBrainTimeoutMS, o.TotalTimeoutMS))
	}
	if o.MaxEvidencePerBrain <= 0 {
		return NewValidationError("orchestration", "", "max_evidence_per_brain", fmt.Errorf("must be positive, got %d", o.MaxEvidencePerBrain))
	}
	if o.IntentConfidenceThreshold < 0 || o.IntentConfidenceThreshold > 1 {
		return NewValidationError("orchestration", "", "intent_confidence_threshold", fmt.Errorf("must be in [0,1], got %f", o.IntentConfidenceThreshold))
	}
	return nil
}

func (v *Validator) validateBrains() error {
	b := v.cfg.Brains
	if b == nil {
		return fmt.Errorf("brains configuration is nil")
	}

	if err := v.validateBrain("vector", b.Vector, true); err != nil {
		return err
	}
	if err := v.validateBrain("analytical", b.Analytical, false); err != nil {
		return err
	}
	if err := v.validateBrain("graph", b.Graph, false); err != nil {
		return err
	}
	if err := v.validateBrain("llm", b.LLM, false); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateBrain(name string, b *BrainConfig, isVector bool) error {
	if b == nil {
		return NewValidationError("brains", name, "", fmt.Errorf("%w", ErrBrainNotConfigured))
	}
	if !b.Backend.IsValid() {
		return NewValidationError("brains", name, "backend", fmt.Errorf("invalid backend: %s", b.Backend))
	}
	if b.Backend == BrainBackendPostgres && b.DSN == "" {
		return NewValidationError("brains", name, "dsn", fmt.Errorf("dsn required for postgres backend"))
	}
	if b.Backend == BrainBackendAnthropic {
		if b.Model == "" {
			return NewValidationError("brains", name, "model", fmt.Errorf("model required for anthropic backend"))
		}
		if b.APIKeyEnv != "" {
			if val := os.Getenv(b.APIKeyEnv); val == "" {
				return NewValidationError("brains", name, "api_key_env", fmt.Errorf("environment variable %s is not set", b.APIKeyEnv))
			}
		}
	}
	if isVector {
		if b.DistanceMetric != "" && !b.DistanceMetric.IsValid() {
			return NewValidationError("brains", name, "distance_metric", fmt.Errorf("invalid distance metric: %s", b.DistanceMetric))
		}
		if b.EmbeddingDimensions < 0 {
			return NewValidationError("brains", name, "embedding_dimensions", fmt.Errorf("must be non-negative"))
		}
	}
	return nil
}

func (v *Validator) validateLimits() error {
	l := v.cfg.Limits
	if l == nil {
		return fmt.Errorf("limits configuration is nil")
	}
	if l.IngestInFlight < 1 {
		return NewValidationError("limits", "", "ingest_in_flight", fmt.Errorf("must be at least 1"))
	}
	if l.QueryInFlight < 1 {
		return NewValidationError("limits", "", "query_in_flight", fmt.Errorf("must be at least 1"))
	}
	if l.PerBrainInFlight < 1 {
		return NewValidationError("limits", "", "per_brain_in_flight", fmt.Errorf("must be at least 1"))
	}
	return nil
}

func (v *Validator) validateMCPServers() error {
	for serverID, server := range v.cfg.MCPServerRegistry.GetAll() {
		if !server.Transport.Type.IsValid() {
			return NewValidationError("mcp_server", serverID, "transport.type", fmt.Errorf("invalid transport type: %s", server.Transport.Type))
		}

		switch server.Transport.Type {
		case TransportTypeStdio:
			if server.Transport.Command == "" {
				return NewValidationError("mcp_server", serverID, "transport.command", fmt.Errorf("command required for stdio transport"))
			}
		case TransportTypeHTTP, TransportTypeSSE:
			if server.Transport.URL == "" {
				return NewValidationError("mcp_server", serverID, "transport.url", fmt.Errorf("url required for %s transport", server.Transport.Type))
			}
		case TransportTypeSocket:
			if server.Transport.SocketPath == "" {
				return NewValidationError("mcp_server", serverID, "transport.socket_path", fmt.Errorf("socket_path required for socket transport"))
			}
		}

		if len(server.ContentTypes) == 0 {
			return NewValidationError("mcp_server", serverID, "content_types", fmt.Errorf("at least one content type required"))
		}

		if server.Summarization != nil && server.Summarization.Enabled {
			if server.Summarization.SizeThresholdTokens < 100 {
				return NewValidationError("mcp_server", serverID, "summarization.size_threshold_tokens", fmt.Errorf("must be at least 100"))
			}
			if server.Summarization.SummaryMaxTokenLimit > 0 && server.Summarization.SummaryMaxTokenLimit < 50 {
				return NewValidationError("mcp_server", serverID, "summarization.summary_max_token_limit", fmt.Errorf("must be at least 50 if specified"))
			}
		}

		if server.DataMasking != nil {
			for i, pattern := range server.DataMasking.CustomPatterns {
				if pattern.Pattern == "" {
					return NewValidationError("mcp_server", serverID, fmt.Sprintf("data_masking.custom_patterns[%d].pattern", i), fmt.Errorf("pattern required"))
				}
				if pattern.Replacement == "" {
					return NewValidationError("mcp_server", serverID, fmt.Sprintf("data_masking.custom_patterns[%d].replacement", i), fmt.Errorf("replacement required"))
				}
			}
		}
	}

	return nil
}

func (v *Validator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return nil
	}
	if r.IngestRecordRetentionDays < 0 {
		return fmt.Errorf("retention.ingest_record_retention_days must be non-negative, got %d", r.IngestRecordRetentionDays)
	}
	if r.CleanupInterval <= 0 {
		return fmt.Errorf("retention.cleanup_interval must be positive, got %v", r.CleanupInterval)
	}
	return nil
}
