// Package query implements the Query Analyzer (intent classification,
// entity extraction, target-brain selection) and the Query Orchestrator
// (concurrent sub-query dispatch, evidence merge/rank/dedup, synthesis).
package query

import "time"

// Intent enumerates the kinds of question the analyzer recognizes.
type Intent string

const (
	IntentSemantic   Intent = "semantic"
	IntentStructured Intent = "structured"
	IntentRelational Intent = "relational"
	IntentAuthor     Intent = "author"
	IntentTimeline   Intent = "timeline"
	IntentCausal     Intent = "causal"
	IntentHybrid     Intent = "hybrid"
)

// SynthesisMode selects how the orchestrator turns an evidence bundle into
// an answer.
type SynthesisMode string

const (
	SynthesisExtractive  SynthesisMode = "extractive"
	SynthesisAbstractive SynthesisMode = "abstractive"
	SynthesisTabular     SynthesisMode = "tabular"
)

// QueryIntent is the Query Analyzer's classification of a natural-language
// question: its intent label, confidence, extracted entities, the brains
// it should be routed to, and the synthesis mode the orchestrator should
// use once evidence comes back.
type QueryIntent struct {
	Label          Intent
	Confidence     float64
	RuleBased      bool // true if the rule pass alone decided Label, false if LLM fallback was consulted
	Entities       []string
	TargetBrains   []string // subset of "vector", "analytical", "graph"
	SynthesisMode  SynthesisMode
}

// Options customizes a single Query call.
type Options struct {
	K            int            // top-k results per brain; zero uses the brain's default
	Filter       map[string]any // passed through to VectorBrain.Search
	MaxTokens    int            // passed through to LLMBrain.Synthesize
	IncludeRaw   bool           // when true, QueryResponse.RawEvidence is populated
	PriorityHint string         // overrides target-brain selection, from processing_hints.priority_brain
}

// Evidence is a single piece of supporting material pulled from one brain,
// already scored on the orchestrator's normalized [0,1] scale.
type Evidence struct {
	Brain      string // "vector", "analytical", or "graph"
	PacketID   string
	DedupKey   string // (packet_id, chunk_id|entity_id|row_id) — used to drop duplicates across brains
	Text       string
	Score      float64
	Classification string
}

// Citation resolves a synthesis-time CitationID back to the packet/chunk/
// entity reference it was drawn from.
type Citation struct {
	CitationID string `json:"citation_id"`
	Brain      string `json:"brain"`
	PacketID   string `json:"packet_id"`
}

// BrainTiming records how long a single sub-query took and whether it
// succeeded.
type BrainTiming struct {
	Brain    string        `json:"brain"`
	Duration time.Duration `json:"duration"`
	Degraded bool          `json:"degraded"`
	Error    string        `json:"error,omitempty"`
}

// QueryResponse is the Query Orchestrator's result.
type QueryResponse struct {
	AnswerText     string        `json:"answer_text"`
	Citations      []Citation    `json:"citations"`
	Intent         QueryIntent   `json:"intent"`
	BrainTimings   []BrainTiming `json:"brain_timings"`
	BrainsUsed     []string      `json:"brains_used"`
	DegradedBrains []string      `json:"degraded_brains,omitempty"`
	SynthesisDegraded bool       `json:"synthesis_degraded"`
	RawEvidence    []Evidence    `json:"raw_evidence,omitempty"`
}
