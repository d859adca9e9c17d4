package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nancy-knowledge/nancy/pkg/packet"
)

func TestMemoryStoreSearchRanksByCosineSimilarity(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	_, err := store.UpsertChunks(ctx, "p1", []packet.Chunk{
		{ChunkID: "c1", Text: "Thermal constraints: max 85C operating temperature"},
		{ChunkID: "c2", Text: "Quarterly revenue grew by twelve percent"},
	}, "test-model")
	require.NoError(t, err)

	results, err := store.Search(ctx, "thermal constraints temperature", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, "p1", results[0].PacketID)
}

func TestMemoryStoreUpsertOverwritesByChunkID(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	_, err := store.UpsertChunks(ctx, "p1", []packet.Chunk{{ChunkID: "c1", Text: "original"}}, "m")
	require.NoError(t, err)
	_, err = store.UpsertChunks(ctx, "p1", []packet.Chunk{{ChunkID: "c1", Text: "updated"}}, "m")
	require.NoError(t, err)

	results, err := store.Search(ctx, "updated", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "updated", results[0].Text)
}

func TestMemoryStoreSearchFiltersByPacketID(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	_, err := store.UpsertChunks(ctx, "p1", []packet.Chunk{{ChunkID: "c1", Text: "alpha beta"}}, "m")
	require.NoError(t, err)
	_, err = store.UpsertChunks(ctx, "p2", []packet.Chunk{{ChunkID: "c2", Text: "alpha beta"}}, "m")
	require.NoError(t, err)

	results, err := store.Search(ctx, "alpha beta", 5, map[string]any{"packet_id": "p1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].PacketID)
}

func TestMemoryStoreHealthIsAlwaysHealthy(t *testing.T) {
	store := NewMemoryStore(nil)
	status := store.Health(context.Background())
	assert.Equal(t, "healthy", string(status.Status))
}
