// Package analytical implements the AnalyticalBrain adapter: structured
// fields, named tables, and time series scoped to a packet, queried
// through a small filter/join/aggregate query language.
package analytical

import (
	"context"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// Store is the AnalyticalBrain contract.
type Store interface {
	// UpsertStructured stores structured_fields keyed by packetID. Last
	// write wins per field.
	UpsertStructured(ctx context.Context, packetID string, fields map[string]any) (brains.Ack, error)

	// UpsertTable creates or replaces a named table scoped to packetID.
	UpsertTable(ctx context.Context, packetID string, table packet.Table) (brains.Ack, error)

	// Query executes a structured query and returns its result set.
	Query(ctx context.Context, q Query) (ResultSet, error)

	Health(ctx context.Context) brains.HealthStatus
}

// Op enumerates the comparison operators Filter supports.
type Op string

const (
	OpEqual        Op = "eq"
	OpNotEqual     Op = "neq"
	OpGreaterThan  Op = "gt"
	OpGreaterEqual Op = "gte"
	OpLessThan     Op = "lt"
	OpLessEqual    Op = "lte"
)

// Filter restricts rows by comparing a column to a literal value.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// OrderBy is a single sort key; Desc reverses it.
type OrderBy struct {
	Column string
	Desc   bool
}

// AggregateFunc enumerates the supported aggregate functions.
type AggregateFunc string

const (
	AggregateCount AggregateFunc = "count"
	AggregateSum   AggregateFunc = "sum"
	AggregateAvg   AggregateFunc = "avg"
	AggregateMin   AggregateFunc = "min"
	AggregateMax   AggregateFunc = "max"
)

// Aggregate requests a single aggregate computed over Column, grouped by
// GroupBy if non-empty.
type Aggregate struct {
	Func    AggregateFunc
	Column  string
	GroupBy []string
}

// Join pairs this query's primary table with a second table scoped to the
// same packet, equating the two tables' values in On.
type Join struct {
	Table string
	On    string // column name present in both tables
}

// Query is the AnalyticalBrain query language: filter-by-field, range
// (via OpGreaterThan/OpLessThan filters), join across packet tables, and
// aggregation.
type Query struct {
	PacketID  string // optional: scope to a single packet
	Table     string // table_data table name to query
	Filters   []Filter
	Join      *Join
	Aggregate *Aggregate
	OrderBy   []OrderBy
	Limit     int
}

// ResultSet is the uniform shape Query returns. Rows are ordered by
// (packet_id, row_index) when the query supplies no OrderBy, per the
// deterministic-ordering requirement.
type ResultSet struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}
