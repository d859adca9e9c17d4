package analytical

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// PostgresStore is the production AnalyticalBrain backend. table_data rows
// and structured_fields are stored as JSONB; Query materializes the
// relevant rows into Go and applies filter/join/aggregate/order there,
// which keeps the query language's semantics identical between backends
// without hand-compiling it to SQL per call shape.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing sqlx handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertStructured implements Store.
func (s *PostgresStore) UpsertStructured(ctx context.Context, packetID string, fields map[string]any) (brains.Ack, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return brains.Ack{}, fmt.Errorf("%w: begin tx: %v", brains.ErrBackendWrite, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for k, v := range fields {
		encoded, err := json.Marshal(v)
		if err != nil {
			return brains.Ack{}, fmt.Errorf("%w: marshal field %s: %v", brains.ErrBackendWrite, k, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO analytical_fields (packet_id, field_key, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (packet_id, field_key) DO UPDATE SET value = EXCLUDED.value
		`, packetID, k, encoded)
		if err != nil {
			return brains.Ack{}, fmt.Errorf("%w: upsert field %s: %v", brains.ErrBackendWrite, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return brains.Ack{}, fmt.Errorf("%w: commit: %v", brains.ErrBackendWrite, err)
	}
	return brains.Ack{Count: len(fields)}, nil
}

// UpsertTable implements Store.
func (s *PostgresStore) UpsertTable(ctx context.Context, packetID string, table packet.Table) (brains.Ack, error) {
	columns, err := json.Marshal(table.Columns)
	if err != nil {
		return brains.Ack{}, fmt.Errorf("%w: marshal columns: %v", brains.ErrBackendWrite, err)
	}
	columnTypes, err := json.Marshal(table.ColumnTypes)
	if err != nil {
		return brains.Ack{}, fmt.Errorf("%w: marshal column_types: %v", brains.ErrBackendWrite, err)
	}
	rows, err := json.Marshal(rowsAsRecords(table))
	if err != nil {
		return brains.Ack{}, fmt.Errorf("%w: marshal rows: %v", brains.ErrBackendWrite, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analytical_tables (packet_id, table_name, columns, column_types, rows)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (packet_id, table_name) DO UPDATE SET
			columns = EXCLUDED.columns,
			column_types = EXCLUDED.column_types,
			rows = EXCLUDED.rows
	`, packetID, table.TableName, columns, columnTypes, rows)
	if err != nil {
		return brains.Ack{}, fmt.Errorf("%w: upsert table %s: %v", brains.ErrBackendWrite, table.TableName, err)
	}
	return brains.Ack{Count: len(table.Rows)}, nil
}

func rowsAsRecords(table packet.Table) []map[string]any {
	records := make([]map[string]any, len(table.Rows))
	for i, row := range table.Rows {
		r := make(map[string]any, len(table.Columns))
		for ci, col := range table.Columns {
			if ci < len(row) {
				r[col] = row[ci]
			}
		}
		r["_row_index"] = i
		records[i] = r
	}
	return records
}

// Query implements Store by pulling the named table's rows (and the join
// table's, if requested) into memory and running them through the same
// filter/join/aggregate/order engine MemoryStore uses.
func (s *PostgresStore) Query(ctx context.Context, q Query) (ResultSet, error) {
	rows, err := s.fetchTableRows(ctx, q.Table, q.PacketID)
	if err != nil {
		return ResultSet{}, err
	}

	if q.Join != nil {
		joinRowsSet, err := s.fetchTableRows(ctx, q.Join.Table, "")
		if err != nil {
			return ResultSet{}, err
		}
		rows, err = joinRows(rows, joinRowsSet, q.Join.On)
		if err != nil {
			return ResultSet{}, err
		}
	}

	rows = filterRows(rows, q.Filters)
	if q.Aggregate != nil {
		rows = aggregateRows(rows, *q.Aggregate)
	}
	sortRows(rows, q.OrderBy)
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return ResultSet{Columns: columnsOf(rows), Rows: rows}, nil
}

func (s *PostgresStore) fetchTableRows(ctx context.Context, tableName, packetID string) ([]map[string]any, error) {
	query := `SELECT packet_id, rows FROM analytical_tables WHERE table_name = $1`
	args := []any{tableName}
	if packetID != "" {
		query += ` AND packet_id = $2`
		args = append(args, packetID)
	}

	sqlRows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", brains.ErrBackendRead, err)
	}
	defer sqlRows.Close()

	var allRows []map[string]any
	for sqlRows.Next() {
		var pid string
		var raw []byte
		if err := sqlRows.Scan(&pid, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", brains.ErrBackendRead, err)
		}
		var records []map[string]any
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("%w: unmarshal rows: %v", brains.ErrBackendRead, err)
		}
		for _, r := range records {
			r["_packet_id"] = pid
			allRows = append(allRows, r)
		}
	}
	if err := sqlRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", brains.ErrBackendRead, err)
	}
	return allRows, nil
}

// Health implements Store.
func (s *PostgresStore) Health(ctx context.Context) brains.HealthStatus {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return brains.HealthStatus{Status: brains.StatusUnhealthy, LastError: err.Error()}
	}
	return brains.HealthStatus{Status: brains.StatusHealthy, LatencyP50: time.Since(start)}
}
