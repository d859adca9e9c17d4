package llm

import (
	"context"
	"strings"

	"github.com/nancy-knowledge/nancy/pkg/brains"
)

// ExtractiveBrain is a dependency-free Brain: Synthesize concatenates the
// top-scored evidence verbatim instead of calling a model, and
// ClassifyIntent picks the candidate with the most keyword overlap with
// the query. It is the degradation target the Query Orchestrator falls
// back to when the configured model brain is unavailable, and doubles as
// the brain used in tests and local development without API credentials.
type ExtractiveBrain struct{}

// NewExtractiveBrain returns a ready-to-use ExtractiveBrain.
func NewExtractiveBrain() *ExtractiveBrain {
	return &ExtractiveBrain{}
}

// Synthesize implements Brain.
func (b *ExtractiveBrain) Synthesize(ctx context.Context, input SynthesizeInput) (<-chan Chunk, error) {
	out := make(chan Chunk, len(input.Evidence)+1)
	defer close(out)

	if len(input.Evidence) == 0 {
		out <- &TextChunk{Content: "No evidence was found to answer this question."}
		return out, nil
	}

	var sb strings.Builder
	sb.WriteString("Based on the available evidence:\n")
	for _, e := range input.Evidence {
		sb.WriteString("- ")
		sb.WriteString(e.Text)
		sb.WriteString(" [")
		sb.WriteString(e.CitationID)
		sb.WriteString("]\n")
	}
	out <- &TextChunk{Content: sb.String()}
	for _, e := range input.Evidence {
		out <- &CitationChunk{CitationID: e.CitationID, Brain: e.Brain}
	}
	return out, nil
}

// ClassifyIntent implements Brain using simple keyword overlap; it never
// returns an error, since it has no external dependency to fail against.
func (b *ExtractiveBrain) ClassifyIntent(ctx context.Context, query string, candidates []string) (Intent, error) {
	if len(candidates) == 0 {
		return Intent{}, nil
	}
	queryTokens := tokenSet(query)

	best := candidates[0]
	bestScore := -1
	for _, c := range candidates {
		score := overlap(queryTokens, tokenSet(c))
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	confidence := 0.5
	if bestScore > 0 {
		confidence = 0.6
	}
	return Intent{Label: best, Confidence: confidence}, nil
}

// Health implements Brain; the extractive brain has no backend to report on.
func (b *ExtractiveBrain) Health(ctx context.Context) brains.HealthStatus {
	return brains.HealthStatus{Status: brains.StatusHealthy}
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = true
	}
	return set
}

func overlap(a, b map[string]bool) int {
	n := 0
	for tok := range a {
		if b[tok] {
			n++
		}
	}
	return n
}
