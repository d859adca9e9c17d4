package vector

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

type storedChunk struct {
	packetID  string
	chunkID   string
	text      string
	embedding []float64
	metadata  map[string]any
	seq       int // insertion order, for tie-breaking
}

// MemoryStore is an in-process VectorBrain backend. It is the default for
// development and tests; production deployments configure the postgres
// backend instead.
type MemoryStore struct {
	mu       sync.RWMutex
	embedder Embedder
	chunks   map[string]*storedChunk // keyed by chunk_id
	seq      int
}

// NewMemoryStore creates an empty MemoryStore. embedder may be nil, in
// which case a HashingEmbedder is used.
func NewMemoryStore(embedder Embedder) *MemoryStore {
	if embedder == nil {
		embedder = NewHashingEmbedder()
	}
	return &MemoryStore{
		embedder: embedder,
		chunks:   make(map[string]*storedChunk),
	}
}

// UpsertChunks implements Store.
func (s *MemoryStore) UpsertChunks(ctx context.Context, packetID string, chunks []packet.Chunk, embeddingModel string) (brains.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		vec, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			return brains.Ack{}, err
		}
		existing, ok := s.chunks[c.ChunkID]
		seq := s.seq
		if ok {
			seq = existing.seq // re-upsert keeps its original insertion order
		} else {
			s.seq++
		}
		s.chunks[c.ChunkID] = &storedChunk{
			packetID:  packetID,
			chunkID:   c.ChunkID,
			text:      c.Text,
			embedding: vec,
			metadata:  c.ChunkMetadata,
			seq:       seq,
		}
	}
	return brains.Ack{Count: len(chunks)}, nil
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, text string, k int, filter map[string]any) ([]ScoredChunk, error) {
	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk *storedChunk
		score float64
	}
	var candidates []scored
	for _, c := range s.chunks {
		if !matchesFilter(c, filter) {
			continue
		}
		candidates = append(candidates, scored{chunk: c, score: cosineSimilarity(queryVec, c.embedding)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunk.seq < candidates[j].chunk.seq
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, ScoredChunk{
			PacketID: c.chunk.packetID,
			ChunkID:  c.chunk.chunkID,
			Text:     c.chunk.text,
			Score:    c.score,
			Metadata: c.chunk.metadata,
		})
	}
	return results, nil
}

func matchesFilter(c *storedChunk, filter map[string]any) bool {
	if packetID, ok := filter["packet_id"]; ok {
		if s, ok := packetID.(string); ok && s != c.packetID {
			return false
		}
	}
	return true
}

// Health implements Store. MemoryStore has no backend to fail against.
func (s *MemoryStore) Health(ctx context.Context) brains.HealthStatus {
	return brains.HealthStatus{Status: brains.StatusHealthy, LatencyP50: time.Microsecond}
}
