package config

// Config is the umbrella configuration object that encapsulates all
// registries, defaults, and configuration state. This is the primary object
// returned by Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	NancyCore     *NancyCoreConfig
	Orchestration *OrchestrationConfig
	Brains        *BrainsConfig
	Limits        *LimitsConfig
	Retention     *RetentionConfig
	Sanitize      *SanitizeConfig

	MCPServerRegistry *MCPServerRegistry
}

// Initialize is defined in loader.go

// ConfigStats contains statistics about loaded configuration
type ConfigStats struct {
	MCPServers int
	Mode       Mode
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		MCPServers: len(c.MCPServerRegistry.GetAll()),
		Mode:       c.NancyCore.Mode,
	}
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetMCPServer retrieves an MCP server configuration by ID.
func (c *Config) GetMCPServer(serverID string) (*MCPServerConfig, error) {
	return c.MCPServerRegistry.Get(serverID)
}
