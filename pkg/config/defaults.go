package config

// OrchestrationConfig controls how the Query Orchestrator fans queries out
// across brains and folds the results back into a synthesized answer.
type OrchestrationConfig struct {
	// DefaultStrategy is used when the Query Analyzer's intent
	// classification confidence falls below its threshold.
	DefaultStrategy DefaultStrategy `yaml:"default_strategy,omitempty"`

	// PerBrainTimeoutMS bounds a single brain sub-query.
	PerBrainTimeoutMS int `yaml:"per_brain_timeout_ms,omitempty" validate:"omitempty,min=1"`

	// TotalTimeoutMS bounds the whole fan-out/fan-in round, including synthesis.
	TotalTimeoutMS int `yaml:"total_timeout_ms,omitempty" validate:"omitempty,min=1"`

	// MaxEvidencePerBrain caps how many evidence items a single brain may
	// contribute to the merged bundle handed to synthesis.
	MaxEvidencePerBrain int `yaml:"max_evidence_per_brain,omitempty" validate:"omitempty,min=1"`

	// IntentConfidenceThreshold is the minimum rule-based classifier score
	// before the analyzer falls back to LLMBrain.ClassifyIntent.
	IntentConfidenceThreshold float64 `yaml:"intent_confidence_threshold,omitempty"`

	// MaxEvidenceExcerptTokens bounds each evidence item's text before it is
	// handed to LLMBrain.Synthesize, independent of Options.MaxTokens (which
	// only bounds the synthesis call's output). Guards against a single
	// oversized chunk/row/entity excerpt crowding out the rest of the bundle.
	MaxEvidenceExcerptTokens int `yaml:"max_evidence_excerpt_tokens,omitempty" validate:"omitempty,min=1"`
}

// LimitsConfig bounds in-flight concurrency across the system.
type LimitsConfig struct {
	// IngestInFlight caps concurrent packets processed by the Ingestion Router.
	IngestInFlight int `yaml:"ingest_in_flight,omitempty" validate:"omitempty,min=1"`

	// QueryInFlight caps concurrent queries accepted by the orchestrator.
	QueryInFlight int `yaml:"query_in_flight,omitempty" validate:"omitempty,min=1"`

	// PerBrainInFlight caps concurrent requests a single brain adapter
	// will accept at once, regardless of how many packets/queries are
	// in flight overall.
	PerBrainInFlight int `yaml:"per_brain_in_flight,omitempty" validate:"omitempty,min=1"`
}

// DefaultOrchestrationConfig returns the built-in orchestration defaults.
func DefaultOrchestrationConfig() *OrchestrationConfig {
	return &OrchestrationConfig{
		DefaultStrategy:           DefaultStrategyHybrid,
		PerBrainTimeoutMS:         10000,
		TotalTimeoutMS:            30000,
		MaxEvidencePerBrain:       20,
		IntentConfidenceThreshold: 0.6,
		MaxEvidenceExcerptTokens:  2000,
	}
}

// DefaultLimitsConfig returns the built-in concurrency limits.
func DefaultLimitsConfig() *LimitsConfig {
	return &LimitsConfig{
		IngestInFlight:   16,
		QueryInFlight:    32,
		PerBrainInFlight: 8,
	}
}
