// Package graph implements the GraphBrain adapter: entities identified by
// (type, name) and the relationships between them, queried by
// neighborhood expansion, shortest path, and property lookup.
package graph

import (
	"context"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// EntityID is an entity's natural key: (type, name). It doubles as the
// wire-level reference callers pass back into Neighbors/ShortestPath.
type EntityID = packet.EntityRef

// Store is the GraphBrain contract.
type Store interface {
	// UpsertEntities upserts entities keyed by (type, name); re-upsert
	// merges properties with new values winning, provenance logged.
	UpsertEntities(ctx context.Context, entities []packet.Entity, sourcePacket string) ([]EntityID, error)

	// UpsertRelationships upserts relationships keyed by
	// (source, relationship, target); duplicates coalesce and increment
	// observation_count.
	UpsertRelationships(ctx context.Context, rels []packet.Relationship, sourcePacket string) (brains.Ack, error)

	Neighbors(ctx context.Context, ref EntityID, depth int, relFilter []packet.RelationshipType) (Subgraph, error)
	ShortestPath(ctx context.Context, a, b EntityID, relFilter []packet.RelationshipType) (*Path, error)
	FindByProperty(ctx context.Context, entityType packet.EntityType, prop string, value any) ([]EntityID, error)

	Health(ctx context.Context) brains.HealthStatus
}

// Entity is a stored graph node, enriched with the provenance and
// confidence bookkeeping the wire-level packet.Entity doesn't carry.
type Entity struct {
	ID            EntityID
	Properties    map[string]any
	Confidence    float64
	SourcePackets []string
}

// Edge is a stored relationship between two entities.
type Edge struct {
	Source           EntityID
	Relationship     packet.RelationshipType
	Target           EntityID
	Properties       map[string]any
	Confidence       float64
	ObservationCount int
}

// Subgraph is the result of a Neighbors expansion.
type Subgraph struct {
	Entities      []Entity
	Relationships []Edge
}

// Path is a ShortestPath result: an alternating sequence of entities and
// the edges connecting them, Entities[i] -- Edges[i] --> Entities[i+1].
type Path struct {
	Entities []EntityID
	Edges    []Edge
}
