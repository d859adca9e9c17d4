package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nancy-knowledge/nancy/pkg/brains/analytical"
	"github.com/nancy-knowledge/nancy/pkg/brains/graph"
	"github.com/nancy-knowledge/nancy/pkg/brains/llm"
	"github.com/nancy-knowledge/nancy/pkg/brains/vector"
	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/packet"
	"github.com/nancy-knowledge/nancy/pkg/sanitize"
)

// Brains groups the four brain adapters the orchestrator fans sub-queries
// out to and calls for synthesis.
type Brains struct {
	Vector     vector.Store
	Analytical analytical.Store
	Graph      graph.Store
	LLM        llm.Brain
}

// Orchestrator is the Query Orchestrator (C6): it runs the Analyzer, fans
// sub-queries out to the brains the analyzer selected, merges and ranks
// the evidence, and calls the LLM adapter to synthesize an answer.
type Orchestrator struct {
	brains   Brains
	analyzer *Analyzer
	sanitize *sanitize.SanitizationService

	perBrainTimeout  time.Duration
	totalTimeout     time.Duration
	maxEvidence      int
	maxExcerptTokens int

	mu       sync.Mutex
	inFlight int
	cancels  map[string]context.CancelFunc // query ID -> cancel, mirrors a worker pool's session registry
}

// NewOrchestrator builds an Orchestrator. sanitizeSvc may be nil, which
// disables evidence-bundle redaction entirely (equivalent to
// sanitize.EvidenceSanitizationConfig{Enabled: false}).
func NewOrchestrator(b Brains, analyzer *Analyzer, sanitizeSvc *sanitize.SanitizationService, cfg *config.OrchestrationConfig) *Orchestrator {
	perBrainMS, totalMS, maxEvidence, maxExcerptTokens := 10000, 30000, 20, 2000
	if cfg != nil {
		if cfg.PerBrainTimeoutMS > 0 {
			perBrainMS = cfg.PerBrainTimeoutMS
		}
		if cfg.TotalTimeoutMS > 0 {
			totalMS = cfg.TotalTimeoutMS
		}
		if cfg.MaxEvidencePerBrain > 0 {
			maxEvidence = cfg.MaxEvidencePerBrain
		}
		if cfg.MaxEvidenceExcerptTokens > 0 {
			maxExcerptTokens = cfg.MaxEvidenceExcerptTokens
		}
	}
	return &Orchestrator{
		brains:           b,
		analyzer:         analyzer,
		sanitize:         sanitizeSvc,
		perBrainTimeout:  time.Duration(perBrainMS) * time.Millisecond,
		totalTimeout:     time.Duration(totalMS) * time.Millisecond,
		maxEvidence:      maxEvidence,
		maxExcerptTokens: maxExcerptTokens,
		cancels:          make(map[string]context.CancelFunc),
	}
}

// InFlight reports how many queries are currently executing. The Mode
// Gate's Drainer interface is satisfied by the Ingestion Router, not this
// type — queries are read-only and never need to drain across a mode
// switch — but callers building an aggregate health/metrics view use this
// the same way.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// Cancel cancels an in-flight query by ID, propagating cancellation to
// every sub-query still running. Returns true if queryID was found.
func (o *Orchestrator) Cancel(queryID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cancel, ok := o.cancels[queryID]; ok {
		cancel()
		return true
	}
	return false
}

// Query executes the full C5+C6 pipeline: analyze, dispatch sub-queries
// concurrently, merge evidence, synthesize, and assemble a QueryResponse.
func (o *Orchestrator) Query(ctx context.Context, question string, opts Options) (QueryResponse, error) {
	queryID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, o.totalTimeout)
	o.registerQuery(queryID, cancel)
	defer o.unregisterQuery(queryID, cancel)

	intent, err := o.analyzer.Analyze(ctx, question, opts.PriorityHint)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("query: analyze: %w", err)
	}

	evidence, timings, degraded := o.dispatch(ctx, question, intent, opts)
	if len(degraded) == len(intent.TargetBrains) {
		return QueryResponse{}, fmt.Errorf("query: all target brains failed: %v", degraded)
	}

	merged := mergeEvidence(evidence, o.maxEvidence)

	resp, err := o.synthesize(ctx, question, intent, merged)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("query: synthesize: %w", err)
	}

	resp.Intent = intent
	resp.BrainTimings = timings
	resp.BrainsUsed = brainsUsed(timings, degraded)
	resp.DegradedBrains = degraded
	if opts.IncludeRaw {
		resp.RawEvidence = merged
	}

	return resp, nil
}

func (o *Orchestrator) registerQuery(queryID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight++
	o.cancels[queryID] = cancel
}

func (o *Orchestrator) unregisterQuery(queryID string, cancel context.CancelFunc) {
	cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--
	delete(o.cancels, queryID)
}

// dispatch runs one sub-query per target brain concurrently, each bounded
// by perBrainTimeout, and collects whichever results came back before the
// total-timeout context expires. A brain sub-query's failure or timeout is
// recorded in timings/degraded but never fails the call: only the caller
// in Query decides whether "all targets failed" should fail the request.
func (o *Orchestrator) dispatch(ctx context.Context, question string, intent QueryIntent, opts Options) ([]Evidence, []BrainTiming, []string) {
	var mu sync.Mutex
	var evidence []Evidence
	var timings []BrainTiming
	var degraded []string

	record := func(t BrainTiming, items []Evidence) {
		mu.Lock()
		defer mu.Unlock()
		timings = append(timings, t)
		if t.Degraded {
			degraded = append(degraded, t.Brain)
		}
		evidence = append(evidence, items...)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, brainName := range intent.TargetBrains {
		brainName := brainName
		g.Go(func() error {
			subCtx, cancel := context.WithTimeout(gctx, o.perBrainTimeout)
			defer cancel()

			start := time.Now()
			items, err := o.runSubQuery(subCtx, brainName, question, intent, opts)
			elapsed := time.Since(start)

			if err != nil {
				record(BrainTiming{Brain: brainName, Duration: elapsed, Degraded: true, Error: err.Error()}, nil)
				return nil // a single brain's failure never aborts the errgroup
			}
			record(BrainTiming{Brain: brainName, Duration: elapsed}, items)
			return nil
		})
	}
	_ = g.Wait()

	return evidence, timings, degraded
}

// runSubQuery dispatches to the one concrete adapter call a given brain
// name maps to, parameterized by the analyzer's extracted entities and the
// caller's options.
func (o *Orchestrator) runSubQuery(ctx context.Context, brainName, question string, intent QueryIntent, opts Options) ([]Evidence, error) {
	k := opts.K
	if k <= 0 {
		k = 10
	}

	switch brainName {
	case "vector":
		if o.brains.Vector == nil {
			return nil, fmt.Errorf("vector brain not wired")
		}
		results, err := o.brains.Vector.Search(ctx, question, k, opts.Filter)
		if err != nil {
			return nil, err
		}
		items := make([]Evidence, 0, len(results))
		for _, r := range results {
			items = append(items, Evidence{
				Brain:    "vector",
				PacketID: r.PacketID,
				DedupKey: r.PacketID + "|" + r.ChunkID,
				Text:     r.Text,
				Score:    r.Score, // already a cosine-similarity score in [0,1]
			})
		}
		return items, nil

	case "analytical":
		if o.brains.Analytical == nil {
			return nil, fmt.Errorf("analytical brain not wired")
		}
		q := analytical.Query{Limit: k}
		result, err := o.brains.Analytical.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		items := make([]Evidence, 0, len(result.Rows))
		for i, row := range result.Rows {
			pid, _ := row["packet_id"].(string)
			items = append(items, Evidence{
				Brain:    "analytical",
				PacketID: pid,
				DedupKey: fmt.Sprintf("%s|row:%d", pid, i),
				Text:     formatRow(result.Columns, row),
				Score:    1.0, // flat relevance: the query supplied no ordering
			})
		}
		return items, nil

	case "graph":
		if o.brains.Graph == nil {
			return nil, fmt.Errorf("graph brain not wired")
		}
		var items []Evidence
		for _, entityName := range intent.Entities {
			refs, err := o.brains.Graph.FindByProperty(ctx, "", "name", entityName)
			if err != nil || len(refs) == 0 {
				continue
			}
			for _, ref := range refs {
				sub, err := o.brains.Graph.Neighbors(ctx, ref, 1, nil)
				if err != nil {
					continue
				}
				items = append(items, graphSubgraphToEvidence(sub)...)
			}
		}
		return items, nil

	default:
		return nil, fmt.Errorf("unknown brain %q", brainName)
	}
}

// graphSubgraphToEvidence scores each relationship by
// 1/(1+path_length) * confidence — a Neighbors
// expansion at depth 1 has path_length 1 for every returned edge.
func graphSubgraphToEvidence(sub graph.Subgraph) []Evidence {
	items := make([]Evidence, 0, len(sub.Relationships))
	for _, edge := range sub.Relationships {
		score := (1.0 / float64(2)) * edge.Confidence
		if edge.Confidence == 0 {
			score = 1.0 / 2.0
		}
		text := fmt.Sprintf("%s %s %s", edge.Source.Name, edge.Relationship, edge.Target.Name)
		items = append(items, Evidence{
			Brain:    "graph",
			DedupKey: fmt.Sprintf("%s:%s:%s", edge.Source.Name, edge.Relationship, edge.Target.Name),
			Text:     text,
			Score:    score,
		})
	}
	return items
}

func formatRow(columns []string, row map[string]any) string {
	var b strings.Builder
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", col, row[col])
	}
	return b.String()
}

// mergeEvidence deduplicates by DedupKey (keeping the highest-scoring
// instance) and sorts by (score desc, dedup key asc) for a stable,
// deterministic ordering, then caps the result at maxPerBrain items per
// brain so one talkative brain can't crowd the bundle synthesis sees.
func mergeEvidence(items []Evidence, maxPerBrain int) []Evidence {
	best := make(map[string]Evidence, len(items))
	for _, it := range items {
		key := it.DedupKey
		if key == "" {
			key = it.Brain + "|" + it.Text
		}
		if existing, ok := best[key]; !ok || it.Score > existing.Score {
			best[key] = it
		}
	}

	deduped := make([]Evidence, 0, len(best))
	for _, it := range best {
		deduped = append(deduped, it)
	}
	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].Score != deduped[j].Score {
			return deduped[i].Score > deduped[j].Score
		}
		return deduped[i].DedupKey < deduped[j].DedupKey
	})

	perBrainCount := make(map[string]int)
	capped := make([]Evidence, 0, len(deduped))
	for _, it := range deduped {
		if perBrainCount[it.Brain] >= maxPerBrain {
			continue
		}
		perBrainCount[it.Brain]++
		capped = append(capped, it)
	}
	return capped
}

// synthesize calls LLMBrain.Synthesize over the merged evidence bundle,
// applying classification-gated redaction first, and falls back to
// extractive synthesis (concatenated top evidence, no model call) on an
// LLM failure, per the orchestrator's degrade-rather-than-fail policy.
func (o *Orchestrator) synthesize(ctx context.Context, question string, intent QueryIntent, evidence []Evidence) (QueryResponse, error) {
	sanitized := o.boundExcerpts(o.sanitizeEvidence(evidence))

	if o.brains.LLM == nil || intent.SynthesisMode == SynthesisTabular {
		return extractiveSynthesis(sanitized), nil
	}

	input := llm.SynthesizeInput{Query: question, Evidence: toLLMEvidence(sanitized)}
	stream, err := o.brains.LLM.Synthesize(ctx, input)
	if err != nil {
		slog.Warn("Synthesis call failed, degrading to extractive", "error", err)
		return extractiveSynthesis(sanitized), nil
	}

	return collectStream(stream, sanitized), nil
}

func (o *Orchestrator) sanitizeEvidence(evidence []Evidence) []Evidence {
	if o.sanitize == nil {
		return evidence
	}
	out := make([]Evidence, len(evidence))
	for i, e := range evidence {
		e.Text = o.sanitize.SanitizeEvidence(e.Text, packet.Classification(e.Classification))
		out[i] = e
	}
	return out
}

// boundExcerpts truncates each evidence item's text to maxExcerptTokens, so
// one oversized chunk/row/entity can't crowd the rest of the bundle out of
// the synthesis prompt. This bounds input size; Options.MaxTokens separately
// bounds the synthesis call's output.
func (o *Orchestrator) boundExcerpts(evidence []Evidence) []Evidence {
	if o.maxExcerptTokens <= 0 {
		return evidence
	}
	out := make([]Evidence, len(evidence))
	for i, e := range evidence {
		e.Text = truncateExcerptToTokens(e.Text, o.maxExcerptTokens)
		out[i] = e
	}
	return out
}

func toLLMEvidence(evidence []Evidence) []llm.EvidenceItem {
	items := make([]llm.EvidenceItem, 0, len(evidence))
	for i, e := range evidence {
		items = append(items, llm.EvidenceItem{
			CitationID: fmt.Sprintf("c%d", i+1),
			Brain:      e.Brain,
			Text:       e.Text,
			Score:      e.Score,
		})
	}
	return items
}

// collectStream drains a Synthesize stream into a QueryResponse, echoing
// citation chunks back to the evidence item each CitationID indexes.
func collectStream(stream <-chan llm.Chunk, evidence []Evidence) QueryResponse {
	citationIndex := make(map[string]Evidence, len(evidence))
	for i, e := range evidence {
		citationIndex[fmt.Sprintf("c%d", i+1)] = e
	}

	var text strings.Builder
	var citations []Citation
	degraded := false

	for chunk := range stream {
		switch c := chunk.(type) {
		case *llm.TextChunk:
			text.WriteString(c.Content)
		case *llm.CitationChunk:
			if e, ok := citationIndex[c.CitationID]; ok {
				citations = append(citations, Citation{CitationID: c.CitationID, Brain: e.Brain, PacketID: e.PacketID})
			}
		case *llm.ErrorChunk:
			slog.Warn("Synthesis stream reported an error chunk, degrading to extractive", "error", c.Err)
			degraded = true
		}
	}

	if degraded || text.Len() == 0 {
		resp := extractiveSynthesis(evidence)
		return resp
	}

	return QueryResponse{AnswerText: text.String(), Citations: citations}
}

// extractiveSynthesis stitches the top-ranked evidence items together
// verbatim with inline citations, used when the LLM brain is unwired,
// fails, or the synthesis mode calls for it directly (tabular queries
// present rows, not prose).
func extractiveSynthesis(evidence []Evidence) QueryResponse {
	var text strings.Builder
	var citations []Citation
	for i, e := range evidence {
		cid := fmt.Sprintf("c%d", i+1)
		if i > 0 {
			text.WriteString("\n")
		}
		fmt.Fprintf(&text, "[%s] %s", cid, e.Text)
		citations = append(citations, Citation{CitationID: cid, Brain: e.Brain, PacketID: e.PacketID})
	}
	return QueryResponse{
		AnswerText:        text.String(),
		Citations:         citations,
		SynthesisDegraded: true,
	}
}

func brainsUsed(timings []BrainTiming, degraded []string) []string {
	degradedSet := make(map[string]bool, len(degraded))
	for _, d := range degraded {
		degradedSet[d] = true
	}
	var used []string
	for _, t := range timings {
		if !degradedSet[t.Brain] {
			used = append(used, t.Brain)
		}
	}
	return used
}
