// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/nancy-knowledge/nancy/pkg/config"
)

// RecordPruner removes IngestRecord rows whose CompletedAt timestamp is
// older than the given cutoff. Implemented by pkg/ingest's Postgres-backed
// record store; declared here so cleanup doesn't import ingest's full
// dependency graph for a single method.
type RecordPruner interface {
	PruneCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically enforces retention policy on the Ingestion Router's
// audit trail: completed IngestRecord rows past their retention window are
// deleted. Operations are idempotent and safe to run from multiple replicas.
type Service struct {
	config  *config.RetentionConfig
	records RecordPruner

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, records RecordPruner) *Service {
	return &Service{
		config:  cfg,
		records: records,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"ingest_record_retention_days", s.config.IngestRecordRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.IngestRecordRetentionDays)

	count, err := s.records.PruneCompletedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: ingest record prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned ingest records", "count", count, "cutoff", cutoff)
	}
}
