// Package mode implements the Mode Gate: the atomic legacy/hybrid/mcp
// ingestion policy switch operators flip at runtime through POST /mode.
package mode

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nancy-knowledge/nancy/pkg/config"
)

// Drainer reports how many ingests are currently in flight. Switching
// away from a mode that accepts a given submission shape waits for
// in-flight work to finish first, so no packet submitted under the old
// mode is abandoned mid-fan-out.
type Drainer interface {
	InFlight() int
}

// Gate holds the current Mode behind an atomic.Value so readers (the API
// layer deciding whether to accept a request) never block on a mutex held
// by a slow switch.
type Gate struct {
	current atomic.Value // config.Mode

	drain Drainer

	// DrainTimeout bounds how long Switch waits for in-flight ingests to
	// finish before giving up and switching anyway. Zero means wait
	// indefinitely.
	DrainTimeout time.Duration

	// DrainPollInterval controls how often Switch re-checks Drainer.InFlight.
	DrainPollInterval time.Duration
}

// NewGate creates a Gate starting in initial.
func NewGate(initial config.Mode, drain Drainer) *Gate {
	g := &Gate{drain: drain, DrainPollInterval: 50 * time.Millisecond}
	g.current.Store(initial)
	return g
}

// Current returns the active mode. Safe for concurrent use, lock-free.
func (g *Gate) Current() config.Mode {
	return g.current.Load().(config.Mode)
}

// Switch transitions to next, first draining in-flight ingests so
// submissions accepted under the old mode are never abandoned mid-fan-out.
// It returns ctx.Err() if ctx is canceled before draining completes, and
// never mutates the mode in that case.
func (g *Gate) Switch(ctx context.Context, next config.Mode) error {
	if !next.IsValid() {
		return fmt.Errorf("mode: unknown mode %q", next)
	}
	if g.Current() == next {
		return nil
	}

	if err := g.drainBeforeSwitch(ctx); err != nil {
		return err
	}

	g.current.Store(next)
	return nil
}

func (g *Gate) drainBeforeSwitch(ctx context.Context) error {
	if g.drain == nil {
		return nil
	}

	var deadline <-chan time.Time
	if g.DrainTimeout > 0 {
		timer := time.NewTimer(g.DrainTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	interval := g.DrainPollInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if g.drain.InFlight() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil // drain timed out; switch anyway rather than block the gate forever
		case <-ticker.C:
		}
	}
}

// AcceptsLegacyUploads reports whether the current mode accepts legacy
// file uploads converted internally into Knowledge Packets.
func (g *Gate) AcceptsLegacyUploads() bool {
	switch g.Current() {
	case config.ModeLegacy, config.ModeHybrid:
		return true
	default:
		return false
	}
}

// AcceptsKnowledgePackets reports whether the current mode accepts
// Knowledge Packets submitted directly (from an MCP server or API caller).
func (g *Gate) AcceptsKnowledgePackets() bool {
	switch g.Current() {
	case config.ModeHybrid, config.ModeMCP:
		return true
	default:
		return false
	}
}

// RunsMCPHost reports whether the current mode starts the MCP host.
func (g *Gate) RunsMCPHost() bool {
	return g.Current() == config.ModeMCP
}
