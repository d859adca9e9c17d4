// Package vector implements the VectorBrain adapter: embeddable text
// chunks, stored with metadata linking back to the owning packet, searched
// by cosine similarity.
package vector

import (
	"context"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// Store is the VectorBrain contract. Implementations are shared,
// thread-safe, and stateless beyond the backend handle.
type Store interface {
	// UpsertChunks embeds and stores chunks under packetID. Re-upsert of
	// the same chunk_id overwrites.
	UpsertChunks(ctx context.Context, packetID string, chunks []packet.Chunk, embeddingModel string) (brains.Ack, error)

	// Search returns the top-k nearest chunks by cosine distance. Ties
	// break by chunk insertion order.
	Search(ctx context.Context, text string, k int, filter map[string]any) ([]ScoredChunk, error)

	Health(ctx context.Context) brains.HealthStatus
}

// ScoredChunk is a single Search result.
type ScoredChunk struct {
	PacketID string         `json:"packet_id"`
	ChunkID  string         `json:"chunk_id"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Embedder turns text into a fixed-width vector. Brain adapters depend on
// this narrow interface rather than a concrete embedding client so tests
// can substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
