package query

import (
	"context"
	"regexp"
	"strings"

	"github.com/nancy-knowledge/nancy/pkg/brains/llm"
	"github.com/nancy-knowledge/nancy/pkg/config"
)

// Analyzer is the Query Analyzer (C5): a hybrid rule-based/LLM classifier
// that turns a natural-language question into a QueryIntent.
type Analyzer struct {
	llmBrain llm.Brain

	// confidenceThreshold is the minimum rule-based score before the
	// analyzer consults llmBrain.ClassifyIntent.
	confidenceThreshold float64

	// entityNames are the graph entity names the exact-match pass checks
	// against, refreshed periodically by the caller (e.g. the orchestrator,
	// polling GraphBrain.FindByProperty results or a cached listing).
	entityNames []string
}

// NewAnalyzer builds an Analyzer. llmBrain may be nil only in tests that
// never exercise the LLM fallback path; production wiring always supplies
// one so low-confidence rule passes have somewhere to fall back to.
func NewAnalyzer(llmBrain llm.Brain, cfg *config.OrchestrationConfig) *Analyzer {
	threshold := 0.6
	if cfg != nil && cfg.IntentConfidenceThreshold > 0 {
		threshold = cfg.IntentConfidenceThreshold
	}
	return &Analyzer{llmBrain: llmBrain, confidenceThreshold: threshold}
}

// SetEntityNames replaces the candidate set the exact-match entity
// extraction pass checks a query's tokens against.
func (a *Analyzer) SetEntityNames(names []string) {
	a.entityNames = names
}

// Rule-based classification heuristics, one compiled pattern per intent
// kind, checked in priority order from most specific to least. The
// semantic default never needs a pattern: it's what's left after every
// other heuristic misses.
var (
	authorPattern   = regexp.MustCompile(`(?i)\b(who wrote|authored by|author of|written by)\b`)
	timelinePattern = regexp.MustCompile(`(?i)\b(when|timeline|sequence|before|after|chronolog\w*)\b`)
	causalPattern   = regexp.MustCompile(`(?i)\b(because|led to|caused|resulted in|why did)\b`)
	relationalPattern = regexp.MustCompile(`(?i)\b(related to|connected to|depends on|dependency|associated with)\b`)
	structuredPattern = regexp.MustCompile(`(?i)\b(how many|average|count|sum|total|maximum|minimum)\b`)
)

// classification pairs a compiled heuristic with the intent it signals and
// the confidence a direct match reports, reflecting that some phrasings
// (author attribution) are less ambiguous than others (causal language,
// which overlaps with plain narrative text).
type classification struct {
	pattern    *regexp.Regexp
	intent     Intent
	confidence float64
}

var classifications = []classification{
	{authorPattern, IntentAuthor, 0.9},
	{structuredPattern, IntentStructured, 0.85},
	{timelinePattern, IntentTimeline, 0.8},
	{relationalPattern, IntentRelational, 0.8},
	{causalPattern, IntentCausal, 0.7},
}

// Analyze classifies question into a QueryIntent, following the analyzer's
// hybrid strategy: a fast rule-based pass, an LLM fallback when that pass
// is inconclusive, entity extraction, target-brain selection, and
// synthesis-mode selection.
func (a *Analyzer) Analyze(ctx context.Context, question string, hint string) (QueryIntent, error) {
	label, confidence, ruleBased := a.classifyRuleBased(question)

	if confidence < a.confidenceThreshold && a.llmBrain != nil {
		candidates := []string{
			string(IntentSemantic), string(IntentStructured), string(IntentRelational),
			string(IntentAuthor), string(IntentTimeline), string(IntentCausal), string(IntentHybrid),
		}
		result, err := a.llmBrain.ClassifyIntent(ctx, question, candidates)
		if err == nil && result.Label != "" {
			label = Intent(result.Label)
			confidence = result.Confidence
			ruleBased = false
		}
		// On LLM classification failure, fall through with the rule-based
		// guess rather than failing the query outright: a low-confidence
		// semantic default still produces a usable (if broader) answer.
	}

	entities := a.extractEntities(question)
	targets := targetBrains(label)
	if hint != "" {
		targets = applyPriorityHint(targets, hint)
	}

	return QueryIntent{
		Label:         label,
		Confidence:    confidence,
		RuleBased:     ruleBased,
		Entities:      entities,
		TargetBrains:  targets,
		SynthesisMode: synthesisMode(label),
	}, nil
}

// classifyRuleBased runs the compiled heuristics in priority order and
// returns the first match. No match defaults to semantic with a
// deliberately low confidence so the LLM fallback engages for genuinely
// ambiguous phrasing rather than forcing every miss through vector search.
func (a *Analyzer) classifyRuleBased(question string) (Intent, float64, bool) {
	for _, c := range classifications {
		if c.pattern.MatchString(question) {
			return c.intent, c.confidence, true
		}
	}
	return IntentSemantic, 0.5, true
}

// extractEntities finds candidate entity names in question by exact match
// against the known graph entity set, falling back to a capitalized-word
// heuristic (a cheap stand-in for a full named-entity recognizer) when the
// entity set is empty or nothing matches.
func (a *Analyzer) extractEntities(question string) []string {
	var found []string
	lower := strings.ToLower(question)

	for _, name := range a.entityNames {
		if name == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(name)) {
			found = append(found, name)
		}
	}
	if len(found) > 0 {
		return found
	}

	for _, word := range strings.Fields(question) {
		trimmed := strings.Trim(word, ".,?!:;\"'()")
		if len(trimmed) > 1 && isCapitalized(trimmed) {
			found = append(found, trimmed)
		}
	}
	return found
}

func isCapitalized(s string) bool {
	r := s[0]
	return r >= 'A' && r <= 'Z'
}

// targetBrains maps an intent label onto the set of brains the
// orchestrator should dispatch sub-queries to.
func targetBrains(label Intent) []string {
	switch label {
	case IntentSemantic:
		return []string{"vector"}
	case IntentStructured:
		return []string{"analytical"}
	case IntentRelational, IntentAuthor, IntentTimeline, IntentCausal:
		return []string{"graph", "vector"}
	case IntentHybrid:
		return []string{"vector", "analytical", "graph"}
	default:
		return []string{"vector"}
	}
}

// applyPriorityHint moves a caller-suggested brain to the front of the
// target list, adding it if the rule-based selection hadn't included it.
// "auto" leaves the selection untouched.
func applyPriorityHint(targets []string, hint string) []string {
	if hint == "" || hint == "auto" {
		return targets
	}
	reordered := []string{hint}
	for _, t := range targets {
		if t != hint {
			reordered = append(reordered, t)
		}
	}
	return reordered
}

// synthesisMode maps an intent label onto the synthesis strategy the
// orchestrator uses once evidence is in hand.
func synthesisMode(label Intent) SynthesisMode {
	switch label {
	case IntentStructured:
		return SynthesisTabular
	case IntentSemantic:
		return SynthesisExtractive
	default:
		return SynthesisAbstractive
	}
}
