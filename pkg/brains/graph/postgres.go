package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// PostgresStore is the production GraphBrain backend. Neighbors and
// ShortestPath walk the adjacency with a recursive CTE over
// graph_relationships rather than pulling the whole graph into the
// application, so expansion depth is bounded server-side.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// UpsertEntities implements Store.
func (s *PostgresStore) UpsertEntities(ctx context.Context, entities []packet.Entity, sourcePacket string) ([]EntityID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", brains.ErrBackendWrite, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ids := make([]EntityID, 0, len(entities))
	for _, e := range entities {
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal properties: %v", brains.ErrBackendWrite, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO graph_entities (entity_type, name, properties, confidence, source_packets)
			VALUES ($1, $2, $3, $4, ARRAY[$5::text])
			ON CONFLICT (entity_type, name) DO UPDATE SET
				properties = graph_entities.properties || EXCLUDED.properties,
				confidence = EXCLUDED.confidence,
				source_packets = CASE
					WHEN $5 = ANY(graph_entities.source_packets) THEN graph_entities.source_packets
					ELSE array_append(graph_entities.source_packets, $5::text)
				END,
				updated_at = now()
		`, string(e.Type), e.Name, props, e.Confidence, sourcePacket)
		if err != nil {
			return nil, fmt.Errorf("%w: upsert entity %s/%s: %v", brains.ErrBackendWrite, e.Type, e.Name, err)
		}
		ids = append(ids, EntityID{Type: string(e.Type), Name: e.Name})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", brains.ErrBackendWrite, err)
	}
	return ids, nil
}

// UpsertRelationships implements Store.
func (s *PostgresStore) UpsertRelationships(ctx context.Context, rels []packet.Relationship, sourcePacket string) (brains.Ack, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return brains.Ack{}, fmt.Errorf("%w: begin tx: %v", brains.ErrBackendWrite, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range rels {
		props, err := json.Marshal(r.Properties)
		if err != nil {
			return brains.Ack{}, fmt.Errorf("%w: marshal properties: %v", brains.ErrBackendWrite, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO graph_relationships
				(source_type, source_name, relationship, target_type, target_name, properties, confidence, observation_count, source_packet)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
			ON CONFLICT (source_type, source_name, relationship, target_type, target_name) DO UPDATE SET
				properties = graph_relationships.properties || EXCLUDED.properties,
				confidence = EXCLUDED.confidence,
				observation_count = graph_relationships.observation_count + 1,
				updated_at = now()
		`, r.Source.Type, r.Source.Name, string(r.Relationship), r.Target.Type, r.Target.Name, props, r.Confidence, sourcePacket)
		if err != nil {
			return brains.Ack{}, fmt.Errorf("%w: upsert relationship: %v", brains.ErrBackendWrite, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return brains.Ack{}, fmt.Errorf("%w: commit: %v", brains.ErrBackendWrite, err)
	}
	return brains.Ack{Count: len(rels)}, nil
}

// Neighbors implements Store with a recursive CTE bounded to depth hops.
func (s *PostgresStore) Neighbors(ctx context.Context, ref EntityID, depth int, relFilter []packet.RelationshipType) (Subgraph, error) {
	if depth <= 0 {
		depth = 1
	}
	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE walk(source_type, source_name, relationship, target_type, target_name, depth) AS (
			SELECT source_type, source_name, relationship, target_type, target_name, 1
			FROM graph_relationships
			WHERE source_type = $1 AND source_name = $2
			  AND ($3::text[] IS NULL OR relationship = ANY($3::text[]))
			UNION ALL
			SELECT r.source_type, r.source_name, r.relationship, r.target_type, r.target_name, w.depth + 1
			FROM graph_relationships r
			JOIN walk w ON r.source_type = w.target_type AND r.source_name = w.target_name
			WHERE w.depth < $4
			  AND ($3::text[] IS NULL OR r.relationship = ANY($3::text[]))
		)
		SELECT DISTINCT source_type, source_name, relationship, target_type, target_name FROM walk
	`, ref.Type, ref.Name, relFilterArg(relFilter), depth)
	if err != nil {
		return Subgraph{}, fmt.Errorf("%w: %v", brains.ErrBackendRead, err)
	}
	defer rows.Close()

	var sub Subgraph
	entityIDs := map[EntityID]bool{ref: true}
	var edgeKeys []edgeKey
	for rows.Next() {
		var srcType, srcName, rel, dstType, dstName string
		if err := rows.Scan(&srcType, &srcName, &rel, &dstType, &dstName); err != nil {
			return Subgraph{}, fmt.Errorf("%w: scan: %v", brains.ErrBackendRead, err)
		}
		src := EntityID{Type: srcType, Name: srcName}
		dst := EntityID{Type: dstType, Name: dstName}
		entityIDs[src] = true
		entityIDs[dst] = true
		edgeKeys = append(edgeKeys, edgeKey{source: src, relationship: packet.RelationshipType(rel), target: dst})
	}
	if err := rows.Err(); err != nil {
		return Subgraph{}, fmt.Errorf("%w: %v", brains.ErrBackendRead, err)
	}

	entities, err := s.fetchEntities(ctx, entityIDs)
	if err != nil {
		return Subgraph{}, err
	}
	sub.Entities = entities

	edges, err := s.fetchEdges(ctx, edgeKeys)
	if err != nil {
		return Subgraph{}, err
	}
	sub.Relationships = edges
	return sub, nil
}

// ShortestPath implements Store with a recursive CTE that accumulates the
// path itself, stopping at the first row that reaches b. Postgres returns
// rows from a recursive CTE in breadth-first discovery order when no
// ORDER BY is applied to the outer SELECT, so LIMIT 1 picks a shortest
// (not merely "a") path.
func (s *PostgresStore) ShortestPath(ctx context.Context, a, b EntityID, relFilter []packet.RelationshipType) (*Path, error) {
	if a == b {
		return &Path{Entities: []EntityID{a}}, nil
	}

	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE walk(target_type, target_name, path_types, path_names, depth) AS (
			SELECT source_type, source_name, ARRAY[source_type], ARRAY[source_name], 0
			FROM graph_entities WHERE entity_type = $1 AND name = $2
			UNION ALL
			SELECT r.target_type, r.target_name,
			       w.path_types || r.target_type, w.path_names || r.target_name, w.depth + 1
			FROM graph_relationships r
			JOIN walk w ON r.source_type = w.target_type AND r.source_name = w.target_name
			WHERE NOT (r.target_type = ANY(w.path_types) AND r.target_name = ANY(w.path_names))
			  AND w.depth < 20
			  AND ($5::text[] IS NULL OR r.relationship = ANY($5::text[]))
		)
		SELECT path_types, path_names FROM walk
		WHERE target_type = $3 AND target_name = $4
		ORDER BY depth ASC
		LIMIT 1
	`, a.Type, a.Name, b.Type, b.Name, relFilterArg(relFilter))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", brains.ErrBackendRead, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", brains.ErrBackendRead, err)
		}
		return nil, nil
	}

	var pathTypes, pathNames []string
	if err := rows.Scan(&pathTypes, &pathNames); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", brains.ErrBackendRead, err)
	}

	entities := make([]EntityID, len(pathTypes))
	for i := range pathTypes {
		entities[i] = EntityID{Type: pathTypes[i], Name: pathNames[i]}
	}

	var edgeKeys []edgeKey
	for i := 0; i+1 < len(entities); i++ {
		edgeKeys = append(edgeKeys, edgeKey{source: entities[i], target: entities[i+1]})
	}
	edges, err := s.fetchEdgesIgnoringRelationship(ctx, edgeKeys)
	if err != nil {
		return nil, err
	}
	return &Path{Entities: entities, Edges: edges}, nil
}

// FindByProperty implements Store. prop == "name" is a direct key lookup;
// anything else queries the JSONB properties column.
func (s *PostgresStore) FindByProperty(ctx context.Context, entityType packet.EntityType, prop string, value any) ([]EntityID, error) {
	var rows pgx.Rows
	var err error
	if prop == "name" {
		rows, err = s.pool.Query(ctx, `
			SELECT entity_type, name FROM graph_entities
			WHERE ($1 = '' OR entity_type = $1) AND name = $2
		`, string(entityType), toString(value))
	} else {
		valJSON, merr := json.Marshal(value)
		if merr != nil {
			return nil, fmt.Errorf("%w: marshal value: %v", brains.ErrBackendRead, merr)
		}
		rows, err = s.pool.Query(ctx, `
			SELECT entity_type, name FROM graph_entities
			WHERE ($1 = '' OR entity_type = $1) AND properties -> $2 = $3::jsonb
		`, string(entityType), prop, string(valJSON))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", brains.ErrBackendRead, err)
	}
	defer rows.Close()

	var ids []EntityID
	for rows.Next() {
		var t, n string
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", brains.ErrBackendRead, err)
		}
		ids = append(ids, EntityID{Type: t, Name: n})
	}
	return ids, rows.Err()
}

// Health implements Store.
func (s *PostgresStore) Health(ctx context.Context) brains.HealthStatus {
	start := time.Now()
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return brains.HealthStatus{Status: brains.StatusUnhealthy, LastError: err.Error()}
	}
	defer conn.Release()

	if err := conn.Ping(ctx); err != nil {
		return brains.HealthStatus{Status: brains.StatusUnhealthy, LastError: err.Error()}
	}
	return brains.HealthStatus{Status: brains.StatusHealthy, LatencyP50: time.Since(start)}
}

func (s *PostgresStore) fetchEntities(ctx context.Context, ids map[EntityID]bool) ([]Entity, error) {
	var entities []Entity
	for id := range ids {
		row := s.pool.QueryRow(ctx, `
			SELECT properties, confidence, source_packets FROM graph_entities
			WHERE entity_type = $1 AND name = $2
		`, id.Type, id.Name)
		var propsRaw []byte
		var confidence float64
		var sourcePackets []string
		if err := row.Scan(&propsRaw, &confidence, &sourcePackets); err != nil {
			if err == pgx.ErrNoRows {
				continue
			}
			return nil, fmt.Errorf("%w: scan entity: %v", brains.ErrBackendRead, err)
		}
		var props map[string]any
		_ = json.Unmarshal(propsRaw, &props)
		entities = append(entities, Entity{ID: id, Properties: props, Confidence: confidence, SourcePackets: sourcePackets})
	}
	return entities, nil
}

func (s *PostgresStore) fetchEdges(ctx context.Context, keys []edgeKey) ([]Edge, error) {
	var edges []Edge
	for _, k := range keys {
		row := s.pool.QueryRow(ctx, `
			SELECT properties, confidence, observation_count FROM graph_relationships
			WHERE source_type = $1 AND source_name = $2 AND relationship = $3 AND target_type = $4 AND target_name = $5
		`, k.source.Type, k.source.Name, string(k.relationship), k.target.Type, k.target.Name)
		var propsRaw []byte
		var confidence float64
		var observationCount int
		if err := row.Scan(&propsRaw, &confidence, &observationCount); err != nil {
			if err == pgx.ErrNoRows {
				continue
			}
			return nil, fmt.Errorf("%w: scan edge: %v", brains.ErrBackendRead, err)
		}
		var props map[string]any
		_ = json.Unmarshal(propsRaw, &props)
		edges = append(edges, Edge{
			Source: k.source, Relationship: k.relationship, Target: k.target,
			Properties: props, Confidence: confidence, ObservationCount: observationCount,
		})
	}
	return edges, nil
}

// fetchEdgesIgnoringRelationship looks up the edge between two entities
// regardless of relationship type, for reconstructing a ShortestPath whose
// CTE didn't carry the relationship label along the path.
func (s *PostgresStore) fetchEdgesIgnoringRelationship(ctx context.Context, keys []edgeKey) ([]Edge, error) {
	var edges []Edge
	for _, k := range keys {
		row := s.pool.QueryRow(ctx, `
			SELECT relationship, properties, confidence, observation_count FROM graph_relationships
			WHERE source_type = $1 AND source_name = $2 AND target_type = $3 AND target_name = $4
			LIMIT 1
		`, k.source.Type, k.source.Name, k.target.Type, k.target.Name)
		var rel string
		var propsRaw []byte
		var confidence float64
		var observationCount int
		if err := row.Scan(&rel, &propsRaw, &confidence, &observationCount); err != nil {
			if err == pgx.ErrNoRows {
				continue
			}
			return nil, fmt.Errorf("%w: scan edge: %v", brains.ErrBackendRead, err)
		}
		var props map[string]any
		_ = json.Unmarshal(propsRaw, &props)
		edges = append(edges, Edge{
			Source: k.source, Relationship: packet.RelationshipType(rel), Target: k.target,
			Properties: props, Confidence: confidence, ObservationCount: observationCount,
		})
	}
	return edges, nil
}

func relFilterArg(filter []packet.RelationshipType) []string {
	if len(filter) == 0 {
		return nil
	}
	out := make([]string, len(filter))
	for i, f := range filter {
		out[i] = string(f)
	}
	return out
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
