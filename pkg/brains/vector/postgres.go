package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nancy-knowledge/nancy/pkg/brains"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// PostgresStore is the production VectorBrain backend. Embeddings are
// stored as a double-precision array and ranked application-side on
// Search; this trades index-accelerated nearest-neighbor lookup (which
// would need the pgvector extension) for a dependency the rest of this
// module does not otherwise require.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

// NewPostgresStore wraps an existing pool. embedder may be nil, in which
// case a HashingEmbedder is used.
func NewPostgresStore(pool *pgxpool.Pool, embedder Embedder) *PostgresStore {
	if embedder == nil {
		embedder = NewHashingEmbedder()
	}
	return &PostgresStore{pool: pool, embedder: embedder}
}

// UpsertChunks implements Store.
func (s *PostgresStore) UpsertChunks(ctx context.Context, packetID string, chunks []packet.Chunk, embeddingModel string) (brains.Ack, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return brains.Ack{}, fmt.Errorf("%w: begin tx: %v", brains.ErrBackendWrite, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, c := range chunks {
		vec, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			return brains.Ack{}, fmt.Errorf("%w: %v", brains.ErrEmbeddingUnavailable, err)
		}
		metadata, err := json.Marshal(c.ChunkMetadata)
		if err != nil {
			return brains.Ack{}, fmt.Errorf("%w: marshal metadata: %v", brains.ErrBackendWrite, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO vector_chunks (chunk_id, packet_id, text, embedding, embedding_model, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (chunk_id) DO UPDATE SET
				packet_id = EXCLUDED.packet_id,
				text = EXCLUDED.text,
				embedding = EXCLUDED.embedding,
				embedding_model = EXCLUDED.embedding_model,
				metadata = EXCLUDED.metadata
		`, c.ChunkID, packetID, c.Text, vec, embeddingModel, metadata)
		if err != nil {
			return brains.Ack{}, fmt.Errorf("%w: upsert chunk %s: %v", brains.ErrBackendWrite, c.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return brains.Ack{}, fmt.Errorf("%w: commit: %v", brains.ErrBackendWrite, err)
	}
	return brains.Ack{Count: len(chunks)}, nil
}

// Search implements Store.
func (s *PostgresStore) Search(ctx context.Context, text string, k int, filter map[string]any) ([]ScoredChunk, error) {
	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", brains.ErrEmbeddingUnavailable, err)
	}

	query := `SELECT chunk_id, packet_id, text, embedding, metadata FROM vector_chunks`
	args := []any{}
	if packetID, ok := filter["packet_id"].(string); ok && packetID != "" {
		query += ` WHERE packet_id = $1`
		args = append(args, packetID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", brains.ErrBackendRead, err)
	}
	defer rows.Close()

	type candidate struct {
		chunk ScoredChunk
		vec   []float64
		seq   int
	}
	var candidates []candidate
	seq := 0
	for rows.Next() {
		var chunkID, packetID, chunkText string
		var embedding []float64
		var metadataRaw []byte
		if err := rows.Scan(&chunkID, &packetID, &chunkText, &embedding, &metadataRaw); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", brains.ErrBackendRead, err)
		}
		var metadata map[string]any
		_ = json.Unmarshal(metadataRaw, &metadata)

		candidates = append(candidates, candidate{
			chunk: ScoredChunk{PacketID: packetID, ChunkID: chunkID, Text: chunkText, Metadata: metadata},
			vec:   embedding,
			seq:   seq,
		})
		seq++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", brains.ErrBackendRead, err)
	}

	for i := range candidates {
		candidates[i].chunk.Score = cosineSimilarity(queryVec, candidates[i].vec)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].chunk.Score != candidates[j].chunk.Score {
			return candidates[i].chunk.Score > candidates[j].chunk.Score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	results := make([]ScoredChunk, len(candidates))
	for i, c := range candidates {
		results[i] = c.chunk
	}
	return results, nil
}

// Health implements Store.
func (s *PostgresStore) Health(ctx context.Context) brains.HealthStatus {
	start := time.Now()
	var conn *pgxpool.Conn
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
