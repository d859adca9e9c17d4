package analytical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nancy-knowledge/nancy/pkg/packet"
)

func TestMemoryStoreQueryDefaultOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertTable(ctx, "p2", packet.Table{
		TableName: "metrics",
		Columns:   []string{"name", "value"},
		Rows:      [][]any{{"b", 2.0}},
	})
	require.NoError(t, err)
	_, err = store.UpsertTable(ctx, "p1", packet.Table{
		TableName: "metrics",
		Columns:   []string{"name", "value"},
		Rows:      [][]any{{"a", 1.0}, {"c", 3.0}},
	})
	require.NoError(t, err)

	rs, err := store.Query(ctx, Query{Table: "metrics"})
	require.NoError(t, err)
	require.Len(t, rs.Rows, 3)
	assert.Equal(t, "p1", rs.Rows[0]["_packet_id"])
	assert.Equal(t, "p1", rs.Rows[1]["_packet_id"])
	assert.Equal(t, "p2", rs.Rows[2]["_packet_id"])
}

func TestMemoryStoreQueryFiltersByRange(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.UpsertTable(ctx, "p1", packet.Table{
		TableName: "metrics",
		Columns:   []string{"name", "value"},
		Rows:      [][]any{{"a", 1.0}, {"b", 5.0}, {"c", 10.0}},
	})
	require.NoError(t, err)

	rs, err := store.Query(ctx, Query{
		Table:   "metrics",
		Filters: []Filter{{Column: "value", Op: OpGreaterEqual, Value: 5.0}},
	})
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 2)
}

func TestMemoryStoreQueryAggregatesWithGroupBy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.UpsertTable(ctx, "p1", packet.Table{
		TableName: "sales",
		Columns:   []string{"region", "amount"},
		Rows:      [][]any{{"east", 10.0}, {"east", 20.0}, {"west", 5.0}},
	})
	require.NoError(t, err)

	rs, err := store.Query(ctx, Query{
		Table:     "sales",
		Aggregate: &Aggregate{Func: AggregateSum, Column: "amount", GroupBy: []string{"region"}},
		OrderBy:   []OrderBy{{Column: "region"}},
	})
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "east", rs.Rows[0]["region"])
	assert.Equal(t, 30.0, rs.Rows[0]["sum_amount"])
	assert.Equal(t, "west", rs.Rows[1]["region"])
	assert.Equal(t, 5.0, rs.Rows[1]["sum_amount"])
}

func TestMemoryStoreUpsertStructuredLastWriteWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.UpsertStructured(ctx, "p1", map[string]any{"status": "draft"})
	require.NoError(t, err)
	_, err = store.UpsertStructured(ctx, "p1", map[string]any{"status": "final"})
	require.NoError(t, err)
	assert.Equal(t, "final", store.fields["p1"]["status"])
}
