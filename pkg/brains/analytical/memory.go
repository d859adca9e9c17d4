package analytical

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

type storedTable struct {
	packetID string
	columns  []string
	rows     []map[string]any // each carries "_packet_id" and "_row_index"
}

// MemoryStore is an in-process AnalyticalBrain backend.
type MemoryStore struct {
	mu     sync.RWMutex
	fields map[string]map[string]any       // packetID -> field -> value
	tables map[string]map[string]*storedTable // tableName -> packetID -> table
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fields: make(map[string]map[string]any),
		tables: make(map[string]map[string]*storedTable),
	}
}

// UpsertStructured implements Store.
func (s *MemoryStore) UpsertStructured(ctx context.Context, packetID string, fields map[string]any) (brains.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fields[packetID] == nil {
		s.fields[packetID] = make(map[string]any)
	}
	for k, v := range fields {
		s.fields[packetID][k] = v
	}
	return brains.Ack{Count: len(fields)}, nil
}

// UpsertTable implements Store.
func (s *MemoryStore) UpsertTable(ctx context.Context, packetID string, table packet.Table) (brains.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]map[string]any, 0, len(table.Rows))
	for i, row := range table.Rows {
		r := make(map[string]any, len(table.Columns)+2)
		for ci, col := range table.Columns {
			if ci < len(row) {
				r[col] = row[ci]
			}
		}
		r["_packet_id"] = packetID
		r["_row_index"] = i
		rows = append(rows, r)
	}

	if s.tables[table.TableName] == nil {
		s.tables[table.TableName] = make(map[string]*storedTable)
	}
	s.tables[table.TableName][packetID] = &storedTable{
		packetID: packetID,
		columns:  table.Columns,
		rows:     rows,
	}
	return brains.Ack{Count: len(rows)}, nil
}

// Query implements Store.
func (s *MemoryStore) Query(ctx context.Context, q Query) (ResultSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.baseRows(q)
	if err != nil {
		return ResultSet{}, err
	}

	if q.Join != nil {
		rows, err = joinRows(rows, s.allRows(q.Join.Table), q.Join.On)
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

func (s *MemoryStore) baseRows(q Query) ([]map[string]any, error) {
	byPacket, ok := s.tables[q.Table]
	if !ok {
		return nil, nil
	}
	var rows []map[string]any
	for packetID, t := range byPacket {
		if q.PacketID != "" && packetID != q.PacketID {
			continue
		}
		rows = append(rows, t.rows...)
	}
	return rows, nil
}

func (s *MemoryStore) allRows(tableName string) []map[string]any {
	var rows []map[string]any
	for _, t := range s.tables[tableName] {
		rows = append(rows, t.rows...)
	}
	return rows
}

func joinRows(left, right []map[string]any, on string) ([]map[string]any, error) {
	if on == "" {
		return nil, fmt.Errorf("join requires an On column")
	}
	var joined []map[string]any
	for _, l := range left {
		for _, r := range right {
			if fmt.Sprint(l[on]) != fmt.Sprint(r[on]) {
				continue
			}
			merged := make(map[string]any, len(l)+len(r))
			for k, v := range l {
				merged[k] = v
			}
			for k, v := range r {
				if _, exists := merged[k]; exists && k != on {
					continue // left columns take precedence on name collision
				}
				merged[k] = v
			}
			joined = append(joined, merged)
		}
	}
	return joined, nil
}

func filterRows(rows []map[string]any, filters []Filter) []map[string]any {
	if len(filters) == 0 {
		return rows
	}
	var out []map[string]any
	for _, row := range rows {
		if matchesAll(row, filters) {
			out = append(out, row)
		}
	}
	return out
}

func matchesAll(row map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matchesFilter(row[f.Column], f) {
			return false
		}
	}
	return true
}

func matchesFilter(value any, f Filter) bool {
	lv, rv, ok := asFloats(value, f.Value)
	if ok {
		switch f.Op {
		case OpEqual:
			return lv == rv
		case OpNotEqual:
			return lv != rv
		case OpGreaterThan:
			return lv > rv
		case OpGreaterEqual:
			return lv >= rv
		case OpLessThan:
			return lv < rv
		case OpLessEqual:
			return lv <= rv
		}
	}
	ls, rs := fmt.Sprint(value), fmt.Sprint(f.Value)
	switch f.Op {
	case OpEqual:
		return ls == rs
	case OpNotEqual:
		return ls != rs
	default:
		return false // ordering ops are undefined on non-numeric values
	}
}

func asFloats(a, b any) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func aggregateRows(rows []map[string]any, agg Aggregate) []map[string]any {
	type group struct {
		key    map[string]any
		values []float64
		count  int
	}
	groups := make(map[string]*group)
	var order []string

	for _, row := range rows {
		key := make(map[string]any, len(agg.GroupBy))
		keyStr := ""
		for _, g := range agg.GroupBy {
			key[g] = row[g]
			keyStr += fmt.Sprintf("|%v", row[g])
		}
		grp, ok := groups[keyStr]
		if !ok {
			grp = &group{key: key}
			groups[keyStr] = grp
			order = append(order, keyStr)
		}
		grp.count++
		if f, ok := toFloat(row[agg.Column]); ok {
			grp.values = append(grp.values, f)
		}
	}

	resultCol := string(agg.Func)
	if agg.Column != "" && agg.Func != AggregateCount {
		resultCol = string(agg.Func) + "_" + agg.Column
	}

	out := make([]map[string]any, 0, len(order))
	for _, k := range order {
		grp := groups[k]
		result := make(map[string]any, len(grp.key)+1)
		for gk, gv := range grp.key {
			result[gk] = gv
		}
		result[resultCol] = computeAggregate(agg.Func, grp.values, grp.count)
		out = append(out, result)
	}
	return out
}

func computeAggregate(fn AggregateFunc, values []float64, count int) float64 {
	switch fn {
	case AggregateCount:
		return float64(count)
	case AggregateSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case AggregateAvg:
		if len(values) == 0 {
			return 0
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case AggregateMin:
		if len(values) == 0 {
			return 0
		}
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case AggregateMax:
		if len(values) == 0 {
			return 0
		}
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	default:
		return 0
	}
}

func sortRows(rows []map[string]any, orderBy []OrderBy) {
	if len(orderBy) == 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			pi, pj := fmt.Sprint(rows[i]["_packet_id"]), fmt.Sprint(rows[j]["_packet_id"])
			if pi != pj {
				return pi < pj
			}
			ri, _ := toFloat(rows[i]["_row_index"])
			rj, _ := toFloat(rows[j]["_row_index"])
			return ri < rj
		})
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ob := range orderBy {
			vi, vj := rows[i][ob.Column], rows[j][ob.Column]
			fi, fiok := toFloat(vi)
			fj, fjok := toFloat(vj)
			var less, greater bool
			if fiok && fjok {
				less, greater = fi < fj, fi > fj
			} else {
				si, sj := fmt.Sprint(vi), fmt.Sprint(vj)
				less, greater = si < sj, si > sj
			}
			if !less && !greater {
				continue
			}
			if ob.Desc {
				return greater
			}
			return less
		}
		return false
	})
}

func columnsOf(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for k := range row {
			if k == "_packet_id" || k == "_row_index" {
				continue
			}
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// Health implements Store. MemoryStore has no backend to fail against.
func (s *MemoryStore) Health(ctx context.Context) brains.HealthStatus {
	return brains.HealthStatus{Status: brains.StatusHealthy, LatencyP50: time.Microsecond}
}
