package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/brains/analytical"
	"github.com/nancy-knowledge/nancy/pkg/brains/graph"
	"github.com/nancy-knowledge/nancy/pkg/brains/vector"
	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// Router is the Ingestion Router: it validates, deduplicates, and fans a
// packet out to the brains its content targets.
type Router struct {
	vector     vector.Store
	analytical analytical.Store
	graph      graph.Store
	records    Store

	retry RetryConfig

	// Per-brain semaphores bound how many in-flight writes a single brain
	// will accept at once, independent of how many packets are being
	// ingested concurrently.
	vectorSem     chan struct{}
	analyticalSem chan struct{}
	graphSem      chan struct{}

	mu        sync.Mutex
	inFlight  int
}

// RetryConfig aliases brains.RetryConfig so callers configuring a Router
// don't need to import pkg/brains directly.
type RetryConfig = brains.RetryConfig

// Brains groups the three store-backed brain adapters the router fans
// packets out to. The LLM brain is not wired here: it has no ingest-side
// role, only query-time synthesis and classification.
type Brains struct {
	Vector     vector.Store
	Analytical analytical.Store
	Graph      graph.Store
}

// NewRouter builds a Router. A nil retry falls back to
// brains.DefaultRetryConfig.
func NewRouter(b Brains, records Store, limits *config.LimitsConfig, retry *RetryConfig) *Router {
	perBrain := 8
	if limits != nil && limits.PerBrainInFlight > 0 {
		perBrain = limits.PerBrainInFlight
	}
	cfg := brains.DefaultRetryConfig()
	if retry != nil {
		cfg = *retry
	}
	return &Router{
		vector:        b.Vector,
		analytical:    b.Analytical,
		graph:         b.Graph,
		records:       records,
		retry:         cfg,
		vectorSem:     make(chan struct{}, perBrain),
		analyticalSem: make(chan struct{}, perBrain),
		graphSem:      make(chan struct{}, perBrain),
	}
}

// InFlight reports how many packets are currently being fanned out. The
// Mode Gate polls this before switching modes so it can drain in-flight
// ingests first.
func (r *Router) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// Ingest validates, deduplicates, and fans pkt out to its target brains.
// A packet already recorded as ingested is a no-op returning
// OutcomeSkipped; every other outcome records an updated Record before
// returning, even on total failure, so the audit trail always reflects
// the most recent attempt.
func (r *Router) Ingest(ctx context.Context, pkt *packet.Packet) (Result, error) {
	if _, err := packet.Validate(pkt); err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	existing, err := r.records.Get(ctx, pkt.PacketID)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: check idempotence: %w", err)
	}
	if existing != nil && existing.Outcome == OutcomeIngested {
		return Result{PacketID: pkt.PacketID, Outcome: OutcomeSkipped, Duplicate: true, PerBrainStatus: existing.PerBrainStatus}, nil
	}

	r.mu.Lock()
	r.inFlight++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	receivedAt := pkt.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	rec := &Record{
		PacketID:     pkt.PacketID,
		SourceServer: pkt.Source.MCPServerName,
		ContentType:  string(pkt.Source.ContentType),
		Title:        pkt.Metadata.Title,
		ReceivedAt:   receivedAt,
	}

	statuses := r.fanOut(ctx, pkt)
	rec.PerBrainStatus = statuses
	rec.Outcome = overallOutcome(statuses)
	var errTrail []string
	for brainName, st := range statuses {
		if st.Outcome == BrainOutcomeFailed {
			errTrail = append(errTrail, fmt.Sprintf("%s: %s", brainName, st.LastError))
		}
	}
	rec.ErrorTrail = errTrail
	now := time.Now()
	rec.CompletedAt = &now

	if err := r.records.Put(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("ingest: record outcome: %w", err)
	}

	return Result{PacketID: pkt.PacketID, Outcome: rec.Outcome, PerBrainStatus: statuses}, nil
}

// fanOut dispatches pkt's sub-payloads to their brains concurrently,
// bounded by each brain's semaphore, and returns every targeted brain's
// outcome. A brain with no corresponding sub-payload is reported skipped
// rather than omitted, so callers can see the full set of brains this
// packet's content type is normally expected to reach.
func (r *Router) fanOut(ctx context.Context, pkt *packet.Packet) map[string]BrainStatus {
	var wg sync.WaitGroup
	var mu sync.Mutex
	statuses := make(map[string]BrainStatus, 3)

	set := func(name string, st BrainStatus) {
		mu.Lock()
		statuses[name] = st
		mu.Unlock()
	}

	if pkt.HasVectorData() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.vectorSem <- struct{}{}
			defer func() { <-r.vectorSem }()
			set("vector", r.ingestVector(ctx, pkt))
		}()
	} else {
		set("vector", BrainStatus{Outcome: BrainOutcomeSkipped})
	}

	if pkt.HasAnalyticalData() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.analyticalSem <- struct{}{}
			defer func() { <-r.analyticalSem }()
			set("analytical", r.ingestAnalytical(ctx, pkt))
		}()
	} else {
		set("analytical", BrainStatus{Outcome: BrainOutcomeSkipped})
	}

	if pkt.HasGraphData() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.graphSem <- struct{}{}
			defer func() { <-r.graphSem }()
			set("graph", r.ingestGraph(ctx, pkt))
		}()
	} else {
		set("graph", BrainStatus{Outcome: BrainOutcomeSkipped})
	}

	wg.Wait()
	return statuses
}

func (r *Router) ingestVector(ctx context.Context, pkt *packet.Packet) BrainStatus {
	vd := pkt.Content.VectorData
	var ack brains.Ack
	err := brains.WithRetry(ctx, r.retry, func(ctx context.Context) error {
		var err error
		ack, err = r.vector.UpsertChunks(ctx, pkt.PacketID, vd.Chunks, vd.EmbeddingModel)
		return err
	})
	if err != nil {
		return BrainStatus{Outcome: BrainOutcomeFailed, LastError: err.Error()}
	}
	return BrainStatus{Outcome: BrainOutcomeOK, Count: ack.Count}
}

func (r *Router) ingestAnalytical(ctx context.Context, pkt *packet.Packet) BrainStatus {
	ad := pkt.Content.AnalyticalData
	total := 0
	var lastErr error

	if len(ad.StructuredFields) > 0 {
		err := brains.WithRetry(ctx, r.retry, func(ctx context.Context) error {
			ack, err := r.analytical.UpsertStructured(ctx, pkt.PacketID, ad.StructuredFields)
			total += ack.Count
			return err
		})
		if err != nil {
			lastErr = err
		}
	}
	for _, table := range ad.TableData {
		table := table
		err := brains.WithRetry(ctx, r.retry, func(ctx context.Context) error {
			ack, err := r.analytical.UpsertTable(ctx, pkt.PacketID, table)
			total += ack.Count
			return err
		})
		if err != nil {
			lastErr = err
		}
	}

	if lastErr != nil {
		return BrainStatus{Outcome: BrainOutcomeFailed, Count: total, LastError: lastErr.Error()}
	}
	return BrainStatus{Outcome: BrainOutcomeOK, Count: total}
}

// ingestGraph upserts entities before relationships, per the
// entities-before-relationships ordering invariant: a relationship naming
// an entity this same packet introduces must never race its entity's
// insert.
func (r *Router) ingestGraph(ctx context.Context, pkt *packet.Packet) BrainStatus {
	gd := pkt.Content.GraphData
	total := 0

	if len(gd.Entities) > 0 {
		err := brains.WithRetry(ctx, r.retry, func(ctx context.Context) error {
			ids, err := r.graph.UpsertEntities(ctx, gd.Entities, pkt.PacketID)
			total += len(ids)
			return err
		})
		if err != nil {
			return BrainStatus{Outcome: BrainOutcomeFailed, Count: total, LastError: err.Error()}
		}
	}

	if len(gd.Relationships) > 0 {
		err := brains.WithRetry(ctx, r.retry, func(ctx context.Context) error {
			ack, err := r.graph.UpsertRelationships(ctx, gd.Relationships, pkt.PacketID)
			total += ack.Count
			return err
		})
		if err != nil {
			return BrainStatus{Outcome: BrainOutcomeFailed, Count: total, LastError: err.Error()}
		}
	}

	return BrainStatus{Outcome: BrainOutcomeOK, Count: total}
}

func overallOutcome(statuses map[string]BrainStatus) Outcome {
	okCount, failCount, attempted := 0, 0, 0
	for _, st := range statuses {
		switch st.Outcome {
		case BrainOutcomeOK:
			okCount++
			attempted++
		case BrainOutcomeFailed:
			failCount++
			attempted++
		}
	}
	switch {
	case attempted == 0:
		return OutcomeFailed
	case failCount == 0:
		return OutcomeIngested
	case okCount == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}
