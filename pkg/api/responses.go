package api

import "github.com/nancy-knowledge/nancy/pkg/ingest"

// ModeResponse is returned by GET /mode and POST /mode.
type ModeResponse struct {
	Mode string `json:"mode"`
}

// IngestResponse is returned by POST /ingest/knowledge-packet and
// POST /ingest/legacy.
type IngestResponse struct {
	Outcome  string                         `json:"outcome"`
	PacketID string                         `json:"packet_id"`
	PerBrain map[string]ingest.BrainStatus  `json:"per_brain,omitempty"`
}

// IngestDirectoryResponse is returned by POST /ingest/directory: one
// IngestResponse per file submitted.
type IngestDirectoryResponse struct {
	Results []IngestResponse `json:"results"`
}
