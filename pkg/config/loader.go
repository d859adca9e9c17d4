package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// NancyYAMLConfig represents the complete nancy.yaml file structure.
type NancyYAMLConfig struct {
	NancyCore     *NancyCoreConfig           `yaml:"nancy_core"`
	Orchestration *OrchestrationConfig       `yaml:"orchestration"`
	Brains        *BrainsConfig              `yaml:"brains"`
	Limits        *LimitsConfig              `yaml:"limits"`
	Retention     *RetentionConfig           `yaml:"retention"`
	Sanitize      *SanitizeConfig            `yaml:"sanitize"`
	MCPServers    map[string]MCPServerConfig `yaml:"mcp_servers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load nancy.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined MCP servers
//  5. Apply defaults for any unset sections
//  6. Build in-memory registries
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"mode", stats.Mode,
		"mcp_servers", stats.MCPServers)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadNancyYAML()
	if err != nil {
		return nil, NewLoadError("nancy.yaml", err)
	}

	builtin := GetBuiltinConfig()
	mcpServers := mergeMCPServers(builtin.MCPServers, yamlCfg.MCPServers)

	for _, server := range mcpServers {
		if server.Summarization != nil && server.Summarization.Enabled && server.Summarization.SizeThresholdTokens == 0 {
			server.Summarization.SizeThresholdTokens = DefaultSizeThresholdTokens
		}
	}

	core := yamlCfg.NancyCore
	if core == nil {
		core = DefaultNancyCoreConfig()
	} else if err := mergo.Merge(core, DefaultNancyCoreConfig()); err != nil {
		return nil, fmt.Errorf("failed to merge nancy_core config: %w", err)
	}

	orchestration := DefaultOrchestrationConfig()
	if yamlCfg.Orchestration != nil {
		if err := mergo.Merge(orchestration, yamlCfg.Orchestration, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge orchestration config: %w", err)
		}
	}

	limits := DefaultLimitsConfig()
	if yamlCfg.Limits != nil {
		if err := mergo.Merge(limits, yamlCfg.Limits, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge limits config: %w", err)
		}
	}

	retention := DefaultRetentionConfig()
	if yamlCfg.Retention != nil {
		if err := mergo.Merge(retention, yamlCfg.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	sanitize := DefaultSanitizeConfig()
	if yamlCfg.Sanitize != nil {
		if err := mergo.Merge(sanitize, yamlCfg.Sanitize, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge sanitize config: %w", err)
		}
	}

	brains := yamlCfg.Brains
	if brains == nil {
		brains = &BrainsConfig{}
	}

	return &Config{
		configDir:         configDir,
		NancyCore:         core,
		Orchestration:     orchestration,
		Brains:            brains,
		Limits:            limits,
		Retention:         retention,
		Sanitize:          sanitize,
		MCPServerRegistry: NewMCPServerRegistry(mcpServers),
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

// DefaultSizeThresholdTokens is the fallback response-size threshold, in
// tokens, past which an MCP server's summarization config kicks in if no
// explicit value was set.
const DefaultSizeThresholdTokens = 4000

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand ${VAR}/$VAR references before parsing so secrets never live in
	// the YAML file itself.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadNancyYAML() (*NancyYAMLConfig, error) {
	var cfg NancyYAMLConfig
	cfg.MCPServers = make(map[string]MCPServerConfig)

	if err := l.loadYAML("nancy.yaml", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
