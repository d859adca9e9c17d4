package config

import "time"

// RetentionConfig controls data retention and cleanup behavior for the
// Ingestion Router's audit trail.
type RetentionConfig struct {
	// IngestRecordRetentionDays is how many days to keep completed
	// IngestRecord rows before they are pruned by the cleanup loop.
	IngestRecordRetentionDays int `yaml:"ingest_record_retention_days"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		IngestRecordRetentionDays: 90,
		CleanupInterval:           12 * time.Hour,
	}
}
