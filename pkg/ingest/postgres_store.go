package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production Store backend, backed by the
// ingest_records table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, packetID string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT packet_id, source_server, content_type, title, received_at, completed_at,
		       outcome, per_brain_status, error_trail
		FROM ingest_records WHERE packet_id = $1
	`, packetID)

	var rec Record
	var perBrainRaw, errorTrailRaw []byte
	err := row.Scan(&rec.PacketID, &rec.SourceServer, &rec.ContentType, &rec.Title,
		&rec.ReceivedAt, &rec.CompletedAt, &rec.Outcome, &perBrainRaw, &errorTrailRaw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query ingest record: %w", err)
	}

	var perBrain map[string]BrainStatus
	if err := json.Unmarshal(perBrainRaw, &perBrain); err != nil {
		return nil, fmt.Errorf("unmarshal per_brain_status: %w", err)
	}
	rec.PerBrainStatus = perBrain

	var errorTrail []string
	if err := json.Unmarshal(errorTrailRaw, &errorTrail); err != nil {
		return nil, fmt.Errorf("unmarshal error_trail: %w", err)
	}
	rec.ErrorTrail = errorTrail

	return &rec, nil
}

// Put implements Store.
func (s *PostgresStore) Put(ctx context.Context, rec *Record) error {
	perBrain, err := json.Marshal(rec.PerBrainStatus)
	if err != nil {
		return fmt.Errorf("marshal per_brain_status: %w", err)
	}
	errorTrail, err := json.Marshal(rec.ErrorTrail)
	if err != nil {
		return fmt.Errorf("marshal error_trail: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ingest_records
			(packet_id, source_server, content_type, title, received_at, completed_at, outcome, per_brain_status, error_trail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (packet_id) DO UPDATE SET
			completed_at = EXCLUDED.completed_at,
			outcome = EXCLUDED.outcome,
			per_brain_status = EXCLUDED.per_brain_status,
			error_trail = EXCLUDED.error_trail
	`, rec.PacketID, rec.SourceServer, rec.ContentType, rec.Title, rec.ReceivedAt,
		rec.CompletedAt, rec.Outcome, perBrain, errorTrail)
	if err != nil {
		return fmt.Errorf("upsert ingest record: %w", err)
	}
	return nil
}

// PruneCompletedBefore implements Store and cleanup.RecordPruner.
func (s *PostgresStore) PruneCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ingest_records WHERE completed_at IS NOT NULL AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune ingest records: %w", err)
	}
	return tag.RowsAffected(), nil
}
