package sanitize

import (
	"log/slog"

	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// EvidenceSanitizationConfig controls the redaction pass the Query
// Orchestrator applies to evidence-bundle excerpts before handing them to
// LLMBrain.Synthesize. It is gated on packet.Classification rather than a
// single on/off flag: nothing requires this more broadly, so it only ever
// touches evidence sourced from a restricted packet, leaving public/internal/
// confidential evidence untouched.
type EvidenceSanitizationConfig struct {
	Enabled      bool
	PatternGroup string
}

// SanitizationService applies pattern-group redaction to two distinct
// surfaces: content an MCP server returns before it is folded into a
// Knowledge Packet (server-scoped, via MCPServerConfig.DataMasking), and
// evidence excerpts sourced from restricted packets before synthesis
// (classification-scoped, via EvidenceSanitizationConfig). Created once at
// startup (singleton). Thread-safe and stateless aside from compiled
// patterns.
type SanitizationService struct {
	registry             *config.MCPServerRegistry
	patterns             map[string]*CompiledPattern // Built-in + custom compiled patterns
	patternGroups        map[string][]string         // Group name → pattern names
	codeMaskers          map[string]Masker           // Registered code-based maskers
	evidenceSanitization EvidenceSanitizationConfig  // Evidence-bundle redaction settings
	serverCustomPatterns map[string][]string         // serverID → custom pattern keys
}

// NewSanitizationService creates a sanitization service with compiled
// patterns and registered maskers. All patterns are compiled eagerly at
// creation time. Invalid patterns are logged and skipped.
func NewSanitizationService(
	registry *config.MCPServerRegistry,
	evidenceCfg EvidenceSanitizationConfig,
) *SanitizationService {
	s := &SanitizationService{
		registry:             registry,
		patterns:             make(map[string]*CompiledPattern),
		patternGroups:        config.GetBuiltinConfig().PatternGroups,
		codeMaskers:          make(map[string]Masker),
		evidenceSanitization: evidenceCfg,
		serverCustomPatterns: make(map[string][]string),
	}

	// 1. Compile all built-in regex patterns
	s.compileBuiltinPatterns()

	// 2. Compile custom patterns from all MCP server configs
	s.compileCustomPatterns()

	// 3. Register code-based maskers
	s.registerMasker(&ManifestSecretMasker{})

	slog.Info("Sanitization service initialized",
		"builtin_patterns", len(config.GetBuiltinConfig().MaskingPatterns),
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers),
		"evidence_sanitization_enabled", evidenceCfg.Enabled)

	return s
}

// SanitizeSourceContent applies server-specific redaction to raw content an
// MCP server returned, before the Ingestion Router or legacy processor folds
// it into a Knowledge Packet. Returns masked content. On masking failure,
// returns a redaction notice (fail-closed: a packet that can't be safely
// sanitized must not carry the unmasked original forward).
func (s *SanitizationService) SanitizeSourceContent(content string, serverID string) string {
	if content == "" {
		return content
	}

	serverCfg, err := s.registry.Get(serverID)
	if err != nil || serverCfg.DataMasking == nil || !serverCfg.DataMasking.Enabled {
		return content // No masking configured for this server
	}

	resolved := s.resolvePatternsForServer(serverCfg.DataMasking, serverID)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return content
	}

	masked, err := s.applyMasking(content, resolved)
	if err != nil {
		slog.Error("Sanitization failed, redacting content (fail-closed)",
			"server", serverID, "error", err)
		return "[REDACTED: sanitization failure — source content could not be safely processed]"
	}

	return masked
}

// SanitizeEvidence applies the configured pattern group to a single evidence
// excerpt when its source packet's classification is restricted. Evidence
// from public/internal/confidential packets passes through unchanged — this
// is a defense-in-depth supplement, not a strict requirement, so it only acts
// where the stakes are highest. On masking failure, returns the original
// text (fail-open: dropping or mangling an answer's evidence is worse than
// an unredacted excerpt the orchestrator already decided to surface).
func (s *SanitizationService) SanitizeEvidence(text string, classification packet.Classification) string {
	if !s.evidenceSanitization.Enabled || text == "" {
		return text
	}

	resolved := s.resolvePatternsForClassification(classification)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return text
	}

	masked, err := s.applyMasking(text, resolved)
	if err != nil {
		slog.Error("Evidence sanitization failed, continuing with unmasked excerpt (fail-open)",
			"error", err)
		return text
	}

	return masked
}

// applyMasking applies code-based maskers then regex patterns to content.
func (s *SanitizationService) applyMasking(content string, resolved *resolvedPatterns) (string, error) {
	masked := content

	// Phase 1: Code-based maskers (more specific, structural awareness)
	for _, maskerName := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[maskerName]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	// Phase 2: Regex patterns (general sweep)
	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked, nil
}

// registerMasker registers a code-based masker by its name.
func (s *SanitizationService) registerMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
