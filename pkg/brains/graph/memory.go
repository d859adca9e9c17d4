package graph

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

type edgeKey struct {
	source       EntityID
	relationship packet.RelationshipType
	target       EntityID
}

// MemoryStore is an in-process GraphBrain backend: an adjacency map keyed
// by entity id, walked with plain BFS for Neighbors and ShortestPath.
type MemoryStore struct {
	mu        sync.RWMutex
	entities  map[EntityID]*Entity
	edges     map[edgeKey]*Edge
	outAdj    map[EntityID][]edgeKey // source -> outgoing edge keys
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[EntityID]*Entity),
		edges:    make(map[edgeKey]*Edge),
		outAdj:   make(map[EntityID][]edgeKey),
	}
}

// UpsertEntities implements Store.
func (s *MemoryStore) UpsertEntities(ctx context.Context, entities []packet.Entity, sourcePacket string) ([]EntityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]EntityID, 0, len(entities))
	for _, e := range entities {
		id := EntityID{Type: string(e.Type), Name: e.Name}
		existing, ok := s.entities[id]
		if !ok {
			s.entities[id] = &Entity{
				ID:            id,
				Properties:    cloneProps(e.Properties),
				Confidence:    e.Confidence,
				SourcePackets: []string{sourcePacket},
			}
		} else {
			for k, v := range e.Properties {
				existing.Properties[k] = v // new wins on conflict
			}
			existing.Confidence = e.Confidence
			existing.SourcePackets = appendProvenance(existing.SourcePackets, sourcePacket)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpsertRelationships implements Store.
func (s *MemoryStore) UpsertRelationships(ctx context.Context, rels []packet.Relationship, sourcePacket string) (brains.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rels {
		src := EntityID{Type: r.Source.Type, Name: r.Source.Name}
		dst := EntityID{Type: r.Target.Type, Name: r.Target.Name}
		key := edgeKey{source: src, relationship: r.Relationship, target: dst}

		if existing, ok := s.edges[key]; ok {
			existing.ObservationCount++
			for k, v := range r.Properties {
				existing.Properties[k] = v // new wins, per relationship merge policy
			}
			existing.Confidence = r.Confidence
			continue
		}

		s.edges[key] = &Edge{
			Source:           src,
			Relationship:     r.Relationship,
			Target:           dst,
			Properties:       cloneProps(r.Properties),
			Confidence:       r.Confidence,
			ObservationCount: 1,
		}
		s.outAdj[src] = append(s.outAdj[src], key)
	}
	return brains.Ack{Count: len(rels)}, nil
}

// Neighbors implements Store with breadth-first expansion up to depth hops.
func (s *MemoryStore) Neighbors(ctx context.Context, ref EntityID, depth int, relFilter []packet.RelationshipType) (Subgraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := map[EntityID]bool{ref: true}
	var sub Subgraph
	if e, ok := s.entities[ref]; ok {
		sub.Entities = append(sub.Entities, *e)
	}

	frontier := []EntityID{ref}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []EntityID
		for _, from := range frontier {
			for _, key := range s.outAdj[from] {
				if !relationshipAllowed(key.relationship, relFilter) {
					continue
				}
				edge := s.edges[key]
				sub.Relationships = append(sub.Relationships, *edge)
				if !visited[key.target] {
					visited[key.target] = true
					if e, ok := s.entities[key.target]; ok {
						sub.Entities = append(sub.Entities, *e)
					}
					next = append(next, key.target)
				}
			}
		}
		frontier = next
	}
	return sub, nil
}

// ShortestPath implements Store with unweighted BFS over outgoing edges.
func (s *MemoryStore) ShortestPath(ctx context.Context, a, b EntityID, relFilter []packet.RelationshipType) (*Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a == b {
		return &Path{Entities: []EntityID{a}}, nil
	}

	type step struct {
		id       EntityID
		viaEdge  *Edge
		parent   *step
	}
	visited := map[EntityID]bool{a: true}
	queue := list.New()
	queue.PushBack(&step{id: a})

	for queue.Len() > 0 {
		front := queue.Remove(queue.Front()).(*step)
		for _, key := range s.outAdj[front.id] {
			if !relationshipAllowed(key.relationship, relFilter) {
				continue
			}
			if visited[key.target] {
				continue
			}
			visited[key.target] = true
			edge := s.edges[key]
			next := &step{id: key.target, viaEdge: edge, parent: front}
			if key.target == b {
				return reconstructPath(next), nil
			}
			queue.PushBack(next)
		}
	}
	return nil, nil
}

func reconstructPath(end *step) *Path {
	var entities []EntityID
	var edges []Edge
	for s := end; s != nil; s = s.parent {
		entities = append([]EntityID{s.id}, entities...)
		if s.viaEdge != nil {
			edges = append([]Edge{*s.viaEdge}, edges...)
		}
	}
	return &Path{Entities: entities, Edges: edges}
}

// FindByProperty implements Store.
func (s *MemoryStore) FindByProperty(ctx context.Context, entityType packet.EntityType, prop string, value any) ([]EntityID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []EntityID
	for id, e := range s.entities {
		if entityType != "" && id.Type != string(entityType) {
			continue
		}
		if prop == "name" {
			if id.Name == toString(value) {
				ids = append(ids, id)
			}
			continue
		}
		if v, ok := e.Properties[prop]; ok && equalValue(v, value) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Health implements Store. MemoryStore has no backend to fail against.
func (s *MemoryStore) Health(ctx context.Context) brains.HealthStatus {
	return brains.HealthStatus{Status: brains.StatusHealthy, LatencyP50: time.Microsecond}
}

func relationshipAllowed(rel packet.RelationshipType, filter []packet.RelationshipType) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == rel {
			return true
		}
	}
	return false
}

func cloneProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func appendProvenance(existing []string, sourcePacket string) []string {
	for _, p := range existing {
		if p == sourcePacket {
			return existing
		}
	}
	return append(existing, sourcePacket)
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func equalValue(a, b any) bool {
	return toString(a) == toString(b) || a == b
}
