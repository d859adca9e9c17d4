package packet

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPacket(t *testing.T) *Packet {
	t.Helper()
	p := &Packet{
		PacketVersion: "1.0",
		Timestamp:     time.Now(),
		Source: Source{
			MCPServerName: "docs-server",
			ContentType:   ContentTypeDocument,
		},
		Metadata: Metadata{Title: "Thermal Constraints"},
		Content: Content{
			VectorData: &VectorData{
				Chunks: []Chunk{{ChunkID: "c1", Text: "Thermal constraints: max 85C"}},
			},
		},
	}
	hash, err := ComputeHash(p.Content)
	require.NoError(t, err)
	p.PacketID = hash
	return p
}

func TestValidatePassesWellFormedPacket(t *testing.T) {
	p := validPacket(t)
	got, err := Validate(p)
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestValidateHashMismatch(t *testing.T) {
	p := validPacket(t)
	p.PacketID = "a" + p.PacketID[1:]

	_, err := Validate(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHashMismatch))
}

func TestValidateRejectsUnknownEnum(t *testing.T) {
	p := validPacket(t)
	p.Source.ContentType = "not_a_real_type"

	_, err := Validate(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	found := false
	for _, fe := range ve.Errors {
		if fe.Path == "/source/content_type" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateRejectsEmptyContent(t *testing.T) {
	p := validPacket(t)
	p.Content = Content{}
	hash, err := ComputeHash(p.Content)
	require.NoError(t, err)
	p.PacketID = hash

	errs := ValidationErrors(p)
	require.NotEmpty(t, errs)
	assert.True(t, errors.Is(errs[0].Err, ErrEmptyContent))
}

func TestValidateRequiresPacketIDLength(t *testing.T) {
	p := validPacket(t)
	p.PacketID = "deadbeef"

	errs := ValidationErrors(p)
	require.NotEmpty(t, errs)
	assert.Equal(t, "/packet_id", errs[0].Path)
}

func TestCanonicalizeIsOrderIndependent(t *testing.T) {
	c1 := Content{
		AnalyticalData: &AnalyticalData{
			StructuredFields: map[string]any{"b": 1, "a": 2},
		},
	}
	c2 := Content{
		AnalyticalData: &AnalyticalData{
			StructuredFields: map[string]any{"a": 2, "b": 1},
		},
	}

	b1, err := Canonicalize(c1)
	require.NoError(t, err)
	b2, err := Canonicalize(c2)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))

	h1, err := ComputeHash(c1)
	require.NoError(t, err)
	h2, err := ComputeHash(c2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, packetIDLength)
}

func TestEntitiesIdentityKeyIsTypeAndName(t *testing.T) {
	p := validPacket(t)
	p.Content.GraphData = &GraphData{
		Entities: []Entity{
			{Type: EntityTypePerson, Name: "Sarah Chen"},
			{Type: EntityTypeDocument, Name: "thermal.md"},
		},
		Relationships: []Relationship{
			{
				Source:       EntityRef{Type: "Person", Name: "Sarah Chen"},
				Relationship: RelationshipAuthored,
				Target:       EntityRef{Type: "Document", Name: "thermal.md"},
			},
		},
	}
	hash, err := ComputeHash(p.Content)
	require.NoError(t, err)
	p.PacketID = hash

	_, err = Validate(p)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vector", "graph"}, p.TargetBrains())
}
