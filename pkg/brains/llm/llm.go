// Package llm implements the LLMBrain adapter: evidence synthesis with
// citation echo-back, and a classification fallback the Query Analyzer
// calls when its rule-based heuristics score below confidence threshold.
package llm

import (
	"context"

	"github.com/nancy-knowledge/nancy/pkg/brains"
)

// Brain is the LLMBrain contract. Unlike the other three brains it has no
// persistent store: every call is a stateless round trip to the underlying
// model provider.
type Brain interface {
	// Synthesize folds an evidence bundle into a streamed answer. The
	// returned channel is closed when the stream completes; a failed or
	// refused generation surfaces as an ErrorChunk rather than a non-nil
	// error return, mirroring how the rest of the chunk stream reports
	// problems mid-flight.
	Synthesize(ctx context.Context, input SynthesizeInput) (<-chan Chunk, error)

	// ClassifyIntent asks the model to pick a query intent when the Query
	// Analyzer's rule-based classifier falls below its confidence
	// threshold. Returns the chosen intent and the model's confidence.
	ClassifyIntent(ctx context.Context, query string, candidates []string) (Intent, error)

	Health(ctx context.Context) brains.HealthStatus
}

// EvidenceItem is one piece of supporting material handed to synthesis,
// already merged, ranked, and deduplicated by the Query Orchestrator.
type EvidenceItem struct {
	CitationID string // echoed back verbatim in Citation.CitationID
	Brain      string // "vector", "analytical", or "graph"
	Text       string
	Score      float64
}

// SynthesizeInput carries the original query and its merged evidence bundle.
type SynthesizeInput struct {
	Query    string
	Evidence []EvidenceItem
	MaxTokens int
}

// Intent is the result of intent classification, rule-based or model-based.
type Intent struct {
	Label      string
	Confidence float64
}

// ChunkType identifies the kind of streaming chunk Synthesize emits.
type ChunkType string

const (
	ChunkTypeText     ChunkType = "text"
	ChunkTypeCitation ChunkType = "citation"
	ChunkTypeUsage    ChunkType = "usage"
	ChunkTypeError    ChunkType = "error"
)

// Chunk is the interface for all streaming chunk types Synthesize emits.
type Chunk interface {
	chunkType() ChunkType
}

// TextChunk is a chunk of the synthesized answer's text.
type TextChunk struct{ Content string }

// CitationChunk echoes an EvidenceItem.CitationID the answer drew on, in
// the order synthesis referenced it.
type CitationChunk struct {
	CitationID string
	Brain      string
}

// UsageChunk reports token consumption for the synthesis call.
type UsageChunk struct{ InputTokens, OutputTokens int }

// ErrorChunk signals a provider error or refusal mid-stream. Errors
// wrapping brains.ErrSafetyRefusal are not retried by the caller; errors
// wrapping brains.ErrModelUnavailable or brains.ErrContextOverflow are.
type ErrorChunk struct {
	Err error
}

func (c *TextChunk) chunkType() ChunkType     { return ChunkTypeText }
func (c *CitationChunk) chunkType() ChunkType { return ChunkTypeCitation }
func (c *UsageChunk) chunkType() ChunkType    { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType    { return ChunkTypeError }
