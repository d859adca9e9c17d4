package api

// SetModeRequest is the HTTP request body for POST /mode.
type SetModeRequest struct {
	Mode string `json:"mode"`
}

// QueryRequest is the HTTP request body for POST /query.
type QueryRequest struct {
	Question     string         `json:"question"`
	NResults     int            `json:"n_results,omitempty"`
	Filter       map[string]any `json:"filter,omitempty"`
	MaxTokens    int            `json:"max_tokens,omitempty"`
	IncludeRaw   bool           `json:"include_raw,omitempty"`
	PriorityHint string         `json:"priority_hint,omitempty"`
}

// IngestDirectoryRequest is the HTTP request body for POST /ingest/directory.
type IngestDirectoryRequest struct {
	Directory string `json:"directory"`
	Author    string `json:"author,omitempty"`
}
