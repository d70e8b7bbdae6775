package config

// RunnerConfig configures the reasoning CLI runner used when no runner is
// injected programmatically.
type RunnerConfig struct {
	Command      string `json:"command"`                 // CLI binary name (e.g. "claude")
	Model        string `json:"model,omitempty"`         // Model override
	SystemPrompt string `json:"system_prompt,omitempty"` // Extra system prompt appended to the per-type prompt
}

// RoutingConfig controls task-type to capability resolution.
type RoutingConfig struct {
	// Capabilities maps well-known task types to capability names.
	// Entries here override the built-in table.
	Capabilities map[string]string `json:"capabilities,omitempty"`
	// Default is the capability used when routing cannot resolve one.
	Default string `json:"default,omitempty"`
}

// RetryConfig configures the exponential-backoff retry wrapper around the
// reasoning transport. Durations are milliseconds for JSON friendliness.
type RetryConfig struct {
	InitialIntervalMS   int     `json:"initial_interval_ms,omitempty"`
	MaxIntervalMS       int     `json:"max_interval_ms,omitempty"`
	MaxElapsedMS        int     `json:"max_elapsed_ms,omitempty"`
	Multiplier          float64 `json:"multiplier,omitempty"`
	RandomizationFactor float64 `json:"randomization_factor,omitempty"`
}

// Config is the top-level service configuration.
type Config struct {
	HTTPAddr    string            `json:"http_addr,omitempty"`   // Listen address for the REST API
	DBPath      string            `json:"db_path,omitempty"`     // SQLite path; empty keeps records in memory
	Concurrency int               `json:"concurrency,omitempty"` // Max concurrent background task dispatches
	Runner      RunnerConfig      `json:"runner"`
	Routing     RoutingConfig     `json:"routing"`
	Prompts     map[string]string `json:"prompts,omitempty"` // Task type -> system prompt overrides
	Retry       RetryConfig       `json:"retry"`
}
