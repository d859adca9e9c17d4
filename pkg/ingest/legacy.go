package ingest

import (
	"time"

	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// LegacyUpload is the parsed form of a POST /ingest/legacy multipart
// submission, before it is converted into a Knowledge Packet.
type LegacyUpload struct {
	Filename   string
	Author     string
	Text       string
	Department string
	Project    string
	Tags       []string
}

// PacketFromLegacyUpload converts a legacy file upload into a single-chunk
// Knowledge Packet targeting the vector brain only: the legacy path never
// carried structured or graph data, so converting it to a Knowledge Packet
// internally reduces to one vector_data chunk plus the metadata the
// multipart fields supplied. PacketID is computed here rather
// than by the caller, since a legacy upload has no MCP server to stamp one.
func PacketFromLegacyUpload(u LegacyUpload) (*packet.Packet, error) {
	content := packet.Content{
		VectorData: &packet.VectorData{
			Chunks: []packet.Chunk{{ChunkID: "legacy-0", Text: u.Text}},
		},
	}

	packetID, err := packet.ComputeHash(content)
	if err != nil {
		return nil, err
	}

	return &packet.Packet{
		PacketVersion: "1.0",
		PacketID:      packetID,
		Timestamp:     time.Now().UTC(),
		Source: packet.Source{
			MCPServerName:    "legacy-upload",
			OriginalLocation: u.Filename,
			ContentType:      packet.ContentTypeDocument,
			ExtractionMethod: "legacy_plaintext",
		},
		Metadata: packet.Metadata{
			Title:      u.Filename,
			Author:     u.Author,
			Department: u.Department,
			Project:    u.Project,
			Tags:       u.Tags,
		},
		Content: content,
	}, nil
}
