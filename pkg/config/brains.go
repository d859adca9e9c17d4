package config

// BrainConfig configures a single brain adapter's backend connection. Not
// every field applies to every brain; validation enforces the subset each
// backend actually needs.
type BrainConfig struct {
	// Backend selects the concrete implementation wired behind the brain
	// interface (postgres for vector/analytical/graph, anthropic for llm,
	// memory for tests and local development).
	Backend BrainBackend `yaml:"backend" validate:"required"`

	// DSN is the connection string for postgres-backed brains.
	DSN string `yaml:"dsn,omitempty"`

	// DistanceMetric selects similarity scoring; vector brain only.
	DistanceMetric DistanceMetric `yaml:"distance_metric,omitempty"`

	// EmbeddingDimensions is the fixed vector width stored/queried; vector
	// brain only.
	EmbeddingDimensions int `yaml:"embedding_dimensions,omitempty"`

	// Model selects the LLM model identifier; llm brain only.
	Model string `yaml:"model,omitempty"`

	// APIKeyEnv names the environment variable holding the provider API key;
	// llm brain only.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// MaxTokens bounds a single synthesis/classification call; llm brain only.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// MaxOpenConns bounds the connection pool for postgres-backed brains.
	MaxOpenConns int `yaml:"max_open_conns,omitempty"`
}

// BrainsConfig groups the four brain adapter configurations.
type BrainsConfig struct {
	Vector     *BrainConfig `yaml:"vector"`
	Analytical *BrainConfig `yaml:"analytical"`
	Graph      *BrainConfig `yaml:"graph"`
	LLM        *BrainConfig `yaml:"llm"`
}
