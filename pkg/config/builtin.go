package config

// BuiltinConfig holds configuration shipped with the binary, merged with
// user-supplied YAML at load time. Nancy ships no built-in MCP servers —
// content processors are always operator-supplied — but the merge step is
// kept so a future release can add one without changing the loader.
type BuiltinConfig struct {
	MCPServers map[string]MCPServerConfig

	// MaskingPatterns are the built-in regex redaction patterns available
	// to pkg/sanitize by name.
	MaskingPatterns map[string]MaskingPattern

	// PatternGroups names convenient bundles of the patterns above, plus
	// the code-based maskers, referenced from data_masking.pattern_groups.
	PatternGroups map[string][]string

	// CodeMaskers lists the names of structurally-aware maskers (as opposed
	// to plain regex) that pkg/sanitize registers at startup.
	CodeMaskers []string
}

// GetBuiltinConfig returns the configuration baked into the binary.
func GetBuiltinConfig() *BuiltinConfig {
	patterns := map[string]MaskingPattern{
		"api_key": {
			Pattern:     `(?i)(api[_-]?key|apikey)["']?\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}`,
			Replacement: "[MASKED_API_KEY]",
			Description: "Generic API key assignment",
		},
		"password": {
			Pattern:     `(?i)(password|passwd|pwd)["']?\s*[:=]\s*["']?\S+`,
			Replacement: "[MASKED_PASSWORD]",
			Description: "Generic password assignment",
		},
		"token": {
			Pattern:     `(?i)(token|bearer)["']?\s*[:=]\s*["']?[A-Za-z0-9_\-\.]{16,}`,
			Replacement: "[MASKED_TOKEN]",
			Description: "Generic bearer/auth token",
		},
		"private_key": {
			Pattern:     `-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----[\s\S]+?-----END (RSA |EC |OPENSSH )?PRIVATE KEY-----`,
			Replacement: "[MASKED_PRIVATE_KEY]",
			Description: "PEM-encoded private key block",
		},
		"secret_key": {
			Pattern:     `(?i)(secret[_-]?key|secretkey)["']?\s*[:=]\s*["']?[A-Za-z0-9/+=]{16,}`,
			Replacement: "[MASKED_SECRET_KEY]",
			Description: "Generic secret key assignment",
		},
		"email": {
			Pattern:     `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
			Replacement: "[MASKED_EMAIL]",
			Description: "Email address",
		},
		"certificate_authority_data": {
			Pattern:     `(?i)certificate-authority-data:\s*[A-Za-z0-9+/=]{40,}`,
			Replacement: "certificate-authority-data: [MASKED_CERT_DATA]",
			Description: "Base64-encoded CA certificate data (kubeconfig-style)",
		},
		"aws_access_key": {
			Pattern:     `AKIA[0-9A-Z]{16}`,
			Replacement: "[MASKED_AWS_ACCESS_KEY]",
			Description: "AWS access key ID",
		},
		"aws_secret_key": {
			Pattern:     `(?i)aws_secret_access_key["']?\s*[:=]\s*["']?[A-Za-z0-9/+=]{40}`,
			Replacement: "[MASKED_AWS_SECRET_KEY]",
			Description: "AWS secret access key",
		},
		"gcp_api_key": {
			Pattern:     `AIza[0-9A-Za-z_\-]{35}`,
			Replacement: "[MASKED_GCP_API_KEY]",
			Description: "Google Cloud API key",
		},
		"azure_key": {
			Pattern:     `(?i)(azure[_-]?(client[_-]?secret|storage[_-]?key))["']?\s*[:=]\s*["']?[A-Za-z0-9/+=]{32,}`,
			Replacement: "[MASKED_AZURE_KEY]",
			Description: "Azure client secret or storage key",
		},
		"jwt": {
			Pattern:     `eyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`,
			Replacement: "[MASKED_JWT]",
			Description: "JSON Web Token",
		},
		"ssh_key": {
			Pattern:     `ssh-(rsa|ed25519|dss) [A-Za-z0-9+/]+={0,2}(\s+\S+)?`,
			Replacement: "[MASKED_SSH_KEY]",
			Description: "SSH public key",
		},
		"connection_string": {
			Pattern:     `(?i)(postgres|postgresql|mysql|mongodb|redis)://[^:\s]+:[^@\s]+@\S+`,
			Replacement: "[MASKED_CONNECTION_STRING]",
			Description: "Database connection string with embedded credentials",
		},
		"basic_auth_header": {
			Pattern:     `(?i)Authorization:\s*Basic\s+[A-Za-z0-9+/=]+`,
			Replacement: "Authorization: Basic [MASKED]",
			Description: "HTTP Basic auth header",
		},
	}

	return &BuiltinConfig{
		MCPServers:      map[string]MCPServerConfig{},
		MaskingPatterns: patterns,
		PatternGroups: map[string][]string{
			"basic":      {"api_key", "password"},
			"secrets":    {"api_key", "password", "token", "private_key", "secret_key"},
			"security":   {"api_key", "password", "token", "private_key", "secret_key", "email", "certificate_authority_data"},
			"manifests":  {"api_key", "password", "certificate_authority_data", "manifest_secret"},
			"cloud":      {"aws_access_key", "aws_secret_key", "gcp_api_key", "azure_key"},
			"pii":        {"email"},
			"all": {
				"api_key", "password", "token", "private_key", "secret_key", "email",
				"certificate_authority_data", "aws_access_key", "aws_secret_key",
				"gcp_api_key", "azure_key", "jwt", "ssh_key", "connection_string",
				"basic_auth_header",
			},
		},
		CodeMaskers: []string{"manifest_secret"},
	}
}
