// Package packet defines the Knowledge Packet wire format: the canonical
// unit Nancy's Ingestion Router accepts from MCP servers and legacy
// uploads, and the validation/hashing rules every packet must satisfy
// before it is fanned out to the brain adapters.
package packet

import "time"

// Packet is the canonical unit of ingestion.
type Packet struct {
	PacketVersion   string           `json:"packet_version"`
	PacketID        string           `json:"packet_id"`
	Timestamp       time.Time        `json:"timestamp"`
	Source          Source           `json:"source"`
	Metadata        Metadata         `json:"metadata"`
	Content         Content          `json:"content"`
	ProcessingHints *ProcessingHints `json:"processing_hints,omitempty"`
	QualityMetrics  *QualityMetrics  `json:"quality_metrics,omitempty"`
}

// Source describes the MCP server that produced a packet and the
// original artifact it was extracted from.
type Source struct {
	MCPServerName    string      `json:"mcp_server_name"`
	ServerVersion    string      `json:"server_version"`
	OriginalLocation string      `json:"original_location"`
	ContentType      ContentType `json:"content_type"`
	ExtractionMethod string      `json:"extraction_method,omitempty"`
}

// Metadata carries descriptive and governance fields about the packet.
type Metadata struct {
	Title          string         `json:"title"`
	Author         string         `json:"author,omitempty"`
	Contributors   []string       `json:"contributors,omitempty"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
	ModifiedAt     *time.Time     `json:"modified_at,omitempty"`
	FileSize       int64          `json:"file_size,omitempty"`
	ContentHash    string         `json:"content_hash,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Department     string         `json:"department,omitempty"`
	Project        string         `json:"project,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	Language       string         `json:"language,omitempty"`
}

// Content is the composite payload: up to three sub-payloads, any of
// which may be absent. At least one must be present for a packet to validate.
type Content struct {
	VectorData     *VectorData     `json:"vector_data,omitempty"`
	AnalyticalData *AnalyticalData `json:"analytical_data,omitempty"`
	GraphData      *GraphData      `json:"graph_data,omitempty"`
}

// VectorData is the sub-payload routed to the VectorBrain.
type VectorData struct {
	Chunks         []Chunk       `json:"chunks"`
	EmbeddingModel string        `json:"embedding_model,omitempty"`
	ChunkStrategy  ChunkStrategy `json:"chunk_strategy,omitempty"`
	ChunkSize      int           `json:"chunk_size,omitempty"`
	ChunkOverlap   int           `json:"chunk_overlap,omitempty"`
}

// Chunk is a single unit of embeddable text within VectorData.
type Chunk struct {
	ChunkID       string         `json:"chunk_id"`
	Text          string         `json:"text"`
	ChunkMetadata map[string]any `json:"chunk_metadata,omitempty"`
}

// AnalyticalData is the sub-payload routed to the AnalyticalBrain.
type AnalyticalData struct {
	StructuredFields map[string]any    `json:"structured_fields,omitempty"`
	TableData        []Table           `json:"table_data,omitempty"`
	TimeSeries       []TimeSeriesPoint `json:"time_series,omitempty"`
	Statistics       map[string]any    `json:"statistics,omitempty"`
}

// Table is a named, typed table scoped to the owning packet.
type Table struct {
	TableName   string       `json:"table_name"`
	Columns     []string     `json:"columns"`
	Rows        [][]any      `json:"rows"`
	ColumnTypes []ColumnType `json:"column_types,omitempty"`
}

// TimeSeriesPoint is a single observation within AnalyticalData.TimeSeries.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Metric    string    `json:"metric,omitempty"`
	Unit      string    `json:"unit,omitempty"`
}

// GraphData is the sub-payload routed to the GraphBrain.
type GraphData struct {
	Entities      []Entity       `json:"entities,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

// Entity is a node the packet contributes to the graph brain. Identity is
// (Type, Name); re-upsert merges Properties with new values winning.
type Entity struct {
	Type       EntityType     `json:"type"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
}

// EntityRef identifies an entity by its natural key, used to reference
// entities from within a Relationship without re-declaring them.
type EntityRef struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Relationship is an edge the packet contributes to the graph brain.
// Identity is (Source, Relationship, Target); duplicates coalesce.
type Relationship struct {
	Source       EntityRef        `json:"source"`
	Relationship RelationshipType `json:"relationship"`
	Target       EntityRef        `json:"target"`
	Properties   map[string]any   `json:"properties,omitempty"`
	Confidence   float64          `json:"confidence,omitempty"`
}

// ProcessingHints are optional routing hints a submitter may attach.
type ProcessingHints struct {
	PriorityBrain          PriorityBrain    `json:"priority_brain,omitempty"`
	SemanticWeight         float64          `json:"semantic_weight,omitempty"`
	RelationshipImportance float64          `json:"relationship_importance,omitempty"`
	RequiresExpertRouting  bool             `json:"requires_expert_routing,omitempty"`
	ContentClassification  string           `json:"content_classification,omitempty"`
	IndexingPriority       IndexingPriority `json:"indexing_priority,omitempty"`
}

// QualityMetrics are optional extraction-quality scores an MCP server may attach.
type QualityMetrics struct {
	ExtractionConfidence float64           `json:"extraction_confidence,omitempty"`
	ContentCompleteness  float64           `json:"content_completeness,omitempty"`
	RelationshipAccuracy float64           `json:"relationship_accuracy,omitempty"`
	TextQualityScore     float64           `json:"text_quality_score,omitempty"`
	MetadataRichness     float64           `json:"metadata_richness,omitempty"`
	ProcessingErrors     []ProcessingError `json:"processing_errors,omitempty"`
}

// ProcessingError records a non-fatal issue an MCP server hit during extraction.
type ProcessingError struct {
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Severity     string `json:"severity,omitempty"`
	Component    string `json:"component,omitempty"`
}

// HasVectorData reports whether the packet carries a vector_data sub-payload.
func (p *Packet) HasVectorData() bool { return p.Content.VectorData != nil }

// HasAnalyticalData reports whether the packet carries an analytical_data sub-payload.
func (p *Packet) HasAnalyticalData() bool { return p.Content.AnalyticalData != nil }

// HasGraphData reports whether the packet carries a graph_data sub-payload.
func (p *Packet) HasGraphData() bool { return p.Content.GraphData != nil }

// TargetBrains returns the priority-ordered set of brain names that should
// receive this packet's content, per the presence of each sub-payload.
func (p *Packet) TargetBrains() []string {
	var brains []string
	if p.HasVectorData() {
		brains = append(brains, "vector")
	}
	if p.HasAnalyticalData() {
		brains = append(brains, "analytical")
	}
	if p.HasGraphData() {
		brains = append(brains, "graph")
	}
	return brains
}
