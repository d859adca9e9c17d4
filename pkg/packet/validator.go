package packet

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const packetIDLength = 64 // hex-encoded SHA-256

// Validate checks schema conformance, then recomputes the content hash and
// compares it to packet_id. It returns the packet unchanged on success. On
// failure it returns a *ValidationError wrapping ErrHashMismatch when the
// only problem is a hash mismatch, or ErrValidation otherwise.
func Validate(p *Packet) (*Packet, error) {
	errs := ValidationErrors(p)
	if len(errs) == 0 {
		return p, nil
	}

	ve := &ValidationError{Errors: errs}
	if len(errs) == 1 && errs[0].Err == ErrHashMismatch {
		return nil, fmt.Errorf("%w: %w", ErrHashMismatch, ve)
	}
	return nil, fmt.Errorf("%w: %w", ErrValidation, ve)
}

// ValidationErrors is the non-raising variant: it reports every violation
// found, each tagged with a JSON-Pointer-like path into the submitted
// document. An empty slice means the packet is valid.
func ValidationErrors(p *Packet) []*FieldError {
	var errs []*FieldError

	if p == nil {
		return []*FieldError{newFieldError("", fmt.Errorf("packet is nil"))}
	}

	if p.PacketVersion == "" {
		errs = append(errs, newFieldError("/packet_version", fmt.Errorf("required")))
	}
	errs = append(errs, validatePacketID(p.PacketID)...)
	if p.Timestamp.IsZero() {
		errs = append(errs, newFieldError("/timestamp", fmt.Errorf("required")))
	}

	errs = append(errs, validateSource(&p.Source)...)
	errs = append(errs, validateMetadata(&p.Metadata)...)
	errs = append(errs, validateContent(&p.Content)...)
	if p.ProcessingHints != nil {
		errs = append(errs, validateProcessingHints(p.ProcessingHints)...)
	}
	if p.QualityMetrics != nil {
		errs = append(errs, validateQualityMetrics(p.QualityMetrics)...)
	}

	// Hash verification only makes sense once packet_id's shape and content
	// are individually well-formed; otherwise the FieldError above already
	// explains the problem and a spurious hash mismatch would just be noise.
	if len(errs) == 0 {
		computed, err := ComputeHash(p.Content)
		if err != nil {
			errs = append(errs, newFieldError("/content", fmt.Errorf("hashing content: %w", err)))
		} else if computed != p.PacketID {
			errs = append(errs, newFieldError("/packet_id", ErrHashMismatch))
		}
	}

	return errs
}

func validatePacketID(id string) []*FieldError {
	if id == "" {
		return []*FieldError{newFieldError("/packet_id", fmt.Errorf("required"))}
	}
	if len(id) != packetIDLength {
		return []*FieldError{newFieldError("/packet_id", fmt.Errorf("must be %d hex characters, got %d", packetIDLength, len(id)))}
	}
	if _, err := hex.DecodeString(id); err != nil {
		return []*FieldError{newFieldError("/packet_id", fmt.Errorf("must be hex-encoded: %w", err))}
	}
	return nil
}

func validateSource(s *Source) []*FieldError {
	var errs []*FieldError
	if s.MCPServerName == "" {
		errs = append(errs, newFieldError("/source/mcp_server_name", fmt.Errorf("required")))
	}
	if s.ContentType == "" {
		errs = append(errs, newFieldError("/source/content_type", fmt.Errorf("required")))
	} else if !s.ContentType.IsValid() {
		errs = append(errs, newFieldError("/source/content_type", fmt.Errorf("%w: %q", ErrUnknownEnum, s.ContentType)))
	}
	return errs
}

func validateMetadata(m *Metadata) []*FieldError {
	var errs []*FieldError
	if m.Title == "" {
		errs = append(errs, newFieldError("/metadata/title", fmt.Errorf("required")))
	}
	if m.Classification != "" && !m.Classification.IsValid() {
		errs = append(errs, newFieldError("/metadata/classification", fmt.Errorf("%w: %q", ErrUnknownEnum, m.Classification)))
	}
	if m.FileSize < 0 {
		errs = append(errs, newFieldError("/metadata/file_size", fmt.Errorf("must be non-negative")))
	}
	return errs
}

func validateContent(c *Content) []*FieldError {
	var errs []*FieldError

	if c.VectorData == nil && c.AnalyticalData == nil && c.GraphData == nil {
		errs = append(errs, newFieldError("/content", ErrEmptyContent))
	}

	if c.VectorData != nil {
		errs = append(errs, validateVectorData(c.VectorData)...)
	}
	if c.AnalyticalData != nil {
		errs = append(errs, validateAnalyticalData(c.AnalyticalData)...)
	}
	if c.GraphData != nil {
		errs = append(errs, validateGraphData(c.GraphData)...)
	}
	return errs
}

func validateVectorData(v *VectorData) []*FieldError {
	var errs []*FieldError
	if len(v.Chunks) == 0 {
		errs = append(errs, newFieldError("/content/vector_data/chunks", fmt.Errorf("must have at least one chunk")))
	}
	seen := make(map[string]bool, len(v.Chunks))
	for i, chunk := range v.Chunks {
		path := fmt.Sprintf("/content/vector_data/chunks/%d", i)
		if chunk.ChunkID == "" {
			errs = append(errs, newFieldError(path+"/chunk_id", fmt.Errorf("required")))
		} else if seen[chunk.ChunkID] {
			errs = append(errs, newFieldError(path+"/chunk_id", fmt.Errorf("duplicate chunk_id %q within packet", chunk.ChunkID)))
		}
		seen[chunk.ChunkID] = true
		if strings.TrimSpace(chunk.Text) == "" {
			errs = append(errs, newFieldError(path+"/text", fmt.Errorf("must not be empty")))
		}
	}
	if v.ChunkStrategy != "" && !v.ChunkStrategy.IsValid() {
		errs = append(errs, newFieldError("/content/vector_data/chunk_strategy", fmt.Errorf("%w: %q", ErrUnknownEnum, v.ChunkStrategy)))
	}
	if v.ChunkSize < 0 {
		errs = append(errs, newFieldError("/content/vector_data/chunk_size", fmt.Errorf("must be non-negative")))
	}
	if v.ChunkOverlap < 0 {
		errs = append(errs, newFieldError("/content/vector_data/chunk_overlap", fmt.Errorf("must be non-negative")))
	}
	return errs
}

func validateAnalyticalData(a *AnalyticalData) []*FieldError {
	var errs []*FieldError
	for i, table := range a.TableData {
		path := fmt.Sprintf("/content/analytical_data/table_data/%d", i)
		if table.TableName == "" {
			errs = append(errs, newFieldError(path+"/table_name", fmt.Errorf("required")))
		}
		if len(table.Columns) == 0 {
			errs = append(errs, newFieldError(path+"/columns", fmt.Errorf("must have at least one column")))
		}
		for _, ct := range table.ColumnTypes {
			if !ct.IsValid() {
				errs = append(errs, newFieldError(path+"/column_types", fmt.Errorf("%w: %q", ErrUnknownEnum, ct)))
				break
			}
		}
		for r, row := range table.Rows {
			if len(row) != len(table.Columns) {
				errs = append(errs, newFieldError(fmt.Sprintf("%s/rows/%d", path, r), fmt.Errorf("row has %d values, expected %d columns", len(row), len(table.Columns))))
			}
		}
	}
	for i, ts := range a.TimeSeries {
		if ts.Timestamp.IsZero() {
			errs = append(errs, newFieldError(fmt.Sprintf("/content/analytical_data/time_series/%d/timestamp", i), fmt.Errorf("required")))
		}
	}
	return errs
}

func validateGraphData(g *GraphData) []*FieldError {
	var errs []*FieldError
	known := make(map[EntityRef]bool, len(g.Entities))
	for i, e := range g.Entities {
		path := fmt.Sprintf("/content/graph_data/entities/%d", i)
		if e.Type == "" {
			errs = append(errs, newFieldError(path+"/type", fmt.Errorf("required")))
		} else if !e.Type.IsValid() {
			errs = append(errs, newFieldError(path+"/type", fmt.Errorf("%w: %q", ErrUnknownEnum, e.Type)))
		}
		if e.Name == "" {
			errs = append(errs, newFieldError(path+"/name", fmt.Errorf("required")))
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			errs = append(errs, newFieldError(path+"/confidence", fmt.Errorf("must be in [0,1]")))
		}
		known[EntityRef{Type: string(e.Type), Name: e.Name}] = true
	}

	for i, r := range g.Relationships {
		path := fmt.Sprintf("/content/graph_data/relationships/%d", i)
		if r.Relationship == "" {
			errs = append(errs, newFieldError(path+"/relationship", fmt.Errorf("required")))
		} else if !r.Relationship.IsValid() && !strings.HasPrefix(string(r.Relationship), "CUSTOM:") {
			errs = append(errs, newFieldError(path+"/relationship", fmt.Errorf("%w: %q", ErrUnknownEnum, r.Relationship)))
		}
		if r.Source.Type == "" || r.Source.Name == "" {
			errs = append(errs, newFieldError(path+"/source", fmt.Errorf("type and name required")))
		}
		if r.Target.Type == "" || r.Target.Name == "" {
			errs = append(errs, newFieldError(path+"/target", fmt.Errorf("type and name required")))
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			errs = append(errs, newFieldError(path+"/confidence", fmt.Errorf("must be in [0,1]")))
		}
	}
	return errs
}

func validateProcessingHints(h *ProcessingHints) []*FieldError {
	var errs []*FieldError
	if h.PriorityBrain != "" && !h.PriorityBrain.IsValid() {
		errs = append(errs, newFieldError("/processing_hints/priority_brain", fmt.Errorf("%w: %q", ErrUnknownEnum, h.PriorityBrain)))
	}
	if h.IndexingPriority != "" && !h.IndexingPriority.IsValid() {
		errs = append(errs, newFieldError("/processing_hints/indexing_priority", fmt.Errorf("%w: %q", ErrUnknownEnum, h.IndexingPriority)))
	}
	if h.SemanticWeight < 0 || h.SemanticWeight > 1 {
		errs = append(errs, newFieldError("/processing_hints/semantic_weight", fmt.Errorf("must be in [0,1]")))
	}
	if h.RelationshipImportance < 0 || h.RelationshipImportance > 1 {
		errs = append(errs, newFieldError("/processing_hints/relationship_importance", fmt.Errorf("must be in [0,1]")))
	}
	return errs
}

func validateQualityMetrics(q *QualityMetrics) []*FieldError {
	var errs []*FieldError
	checks := map[string]float64{
		"extraction_confidence": q.ExtractionConfidence,
		"content_completeness":  q.ContentCompleteness,
		"relationship_accuracy": q.RelationshipAccuracy,
		"text_quality_score":    q.TextQualityScore,
		"metadata_richness":     q.MetadataRichness,
	}
	for name, v := range checks {
		if v < 0 || v > 1 {
			errs = append(errs, newFieldError("/quality_metrics/"+name, fmt.Errorf("must be in [0,1]")))
		}
	}
	return errs
}
