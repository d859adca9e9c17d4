package config

// NancyCoreConfig carries top-level identity and policy settings for the
// orchestration core.
type NancyCoreConfig struct {
	// Version is the config schema version, independent of the build version
	// reported by pkg/version.
	Version string `yaml:"version"`

	// Mode is the initial Mode Gate setting at startup. Operators flip it at
	// runtime through POST /mode; this value only governs cold start.
	Mode Mode `yaml:"mode"`
}

// SanitizeConfig controls redaction of classified evidence before synthesis.
// Applied uniformly across brains, independent of any single MCP server's
// own DataMasking block, as a last line of defense.
type SanitizeConfig struct {
	Enabled bool `yaml:"enabled"`

	// RestrictedClassifications lists metadata.classification values that
	// must never reach LLMBrain.Synthesize unredacted.
	RestrictedClassifications []string `yaml:"restricted_classifications,omitempty"`

	PatternGroups []string `yaml:"pattern_groups,omitempty"`
}

// DefaultNancyCoreConfig returns the built-in core defaults.
func DefaultNancyCoreConfig() *NancyCoreConfig {
	return &NancyCoreConfig{
		Version: "1.0",
		Mode:    ModeHybrid,
	}
}

// DefaultSanitizeConfig returns the built-in sanitize defaults.
func DefaultSanitizeConfig() *SanitizeConfig {
	return &SanitizeConfig{
		Enabled:                    true,
		RestrictedClassifications: []string{"confidential", "restricted"},
		PatternGroups:              []string{"secrets", "pii"},
	}
}
