package sanitize

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// Masker is a code-based redactor for content a regex sweep can't reliably
// parse on its own, such as structured manifests embedded in a content
// processor's output. Registered maskers run before the regex patterns in
// applyMasking.
type Masker interface {
	// Name is the masker's registry key, matched against
	// config.BuiltinConfig.CodeMaskers.
	Name() string

	// AppliesTo is a cheap pre-check (substring, not a parse) deciding
	// whether Mask is worth running on data.
	AppliesTo(data string) bool

	// Mask returns data with structured secrets redacted. Must return data
	// unchanged on any parse error rather than panic or drop content.
	Mask(data string) string
}

// CompiledPattern pairs a compiled regex with the replacement text and
// description from its config.MaskingPattern.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// resolvedPatterns is the expanded, deduplicated set of maskers and regexes
// one call to applyMasking should run.
type resolvedPatterns struct {
	codeMaskerNames []string
	regexPatterns   []*CompiledPattern
}

// compileBuiltinPatterns compiles every built-in masking pattern once at
// startup. A pattern that fails to compile is logged and left out of
// s.patterns rather than aborting the whole service.
func (s *SanitizationService) compileBuiltinPatterns() {
	for name, pattern := range config.GetBuiltinConfig().MaskingPatterns {
		compiled, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			slog.Error("sanitize: skipping built-in pattern, failed to compile", "pattern", name, "error", err)
			continue
		}
		s.patterns[name] = &CompiledPattern{
			Name:        name,
			Regex:       compiled,
			Replacement: pattern.Replacement,
			Description: pattern.Description,
		}
	}
}

// compileCustomPatterns compiles the DataMasking.CustomPatterns declared on
// each MCP content processor's registry entry, keyed "custom:{serverID}:{i}"
// so two servers can each define a pattern named the same thing without
// colliding in s.patterns.
func (s *SanitizationService) compileCustomPatterns() {
	for serverID, serverCfg := range s.registry.GetAll() {
		if serverCfg.DataMasking == nil || !serverCfg.DataMasking.Enabled {
			continue
		}
		for i, pattern := range serverCfg.DataMasking.CustomPatterns {
			name := fmt.Sprintf("custom:%s:%d", serverID, i)
			compiled, err := regexp.Compile(pattern.Pattern)
			if err != nil {
				slog.Error("sanitize: skipping custom pattern, failed to compile",
					"pattern", name, "server", serverID, "error", err)
				continue
			}
			s.patterns[name] = &CompiledPattern{
				Name:        name,
				Regex:       compiled,
				Replacement: pattern.Replacement,
				Description: pattern.Description,
			}
			s.serverCustomPatterns[serverID] = append(s.serverCustomPatterns[serverID], name)
		}
	}
}

// resolvePatternsForServer expands a content processor's DataMasking config
// into the maskers and patterns SanitizeSourceContent should run: its
// pattern groups, its individually-named patterns, and its own custom
// patterns, each added at most once.
func (s *SanitizationService) resolvePatternsForServer(cfg *config.MaskingConfig, serverID string) *resolvedPatterns {
	seen := make(map[string]bool)
	resolved := &resolvedPatterns{}
	builtin := config.GetBuiltinConfig()

	for _, groupName := range cfg.PatternGroups {
		for _, name := range s.patternGroups[groupName] {
			if seen[name] {
				continue
			}
			seen[name] = true
			s.addToResolved(resolved, name, builtin)
		}
	}

	for _, name := range cfg.Patterns {
		if seen[name] {
			continue
		}
		seen[name] = true
		s.addToResolved(resolved, name, builtin)
	}

	for _, name := range s.serverCustomPatterns[serverID] {
		if seen[name] {
			continue
		}
		seen[name] = true
		if cp, ok := s.patterns[name]; ok {
			resolved.regexPatterns = append(resolved.regexPatterns, cp)
		}
	}

	return resolved
}

// resolvePatternsForClassification expands the evidence-sanitization pattern
// group into a resolvedPatterns, but only for a restricted packet's
// classification — every other classification resolves to nothing, which is
// what lets SanitizeEvidence call this unconditionally instead of gating on
// classification itself.
func (s *SanitizationService) resolvePatternsForClassification(classification packet.Classification) *resolvedPatterns {
	resolved := &resolvedPatterns{}
	if classification != packet.ClassificationRestricted {
		return resolved
	}

	builtin := config.GetBuiltinConfig()
	seen := make(map[string]bool)
	for _, name := range s.patternGroups[s.evidenceSanitization.PatternGroup] {
		if seen[name] {
			continue
		}
		seen[name] = true
		s.addToResolved(resolved, name, builtin)
	}
	return resolved
}

// addToResolved classifies a resolved pattern name as either a registered
// code masker or a compiled regex and appends it to the matching slice.
func (s *SanitizationService) addToResolved(resolved *resolvedPatterns, name string, builtin *config.BuiltinConfig) {
	if slices.Contains(builtin.CodeMaskers, name) {
		resolved.codeMaskerNames = append(resolved.codeMaskerNames, name)
		return
	}
	if cp, ok := s.patterns[name]; ok {
		resolved.regexPatterns = append(resolved.regexPatterns, cp)
	}
}
