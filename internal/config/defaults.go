package config

// DefaultConfig returns the default configuration with the built-in routing
// table and per-type system prompts.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:    ":8321",
		Concurrency: 4,
		Runner: RunnerConfig{
			Command: "claude",
		},
		Routing: RoutingConfig{
			Capabilities: map[string]string{
				"thinking":     "thinking_agent",
				"coding":       "developer_agent",
				"frontend":     "frontend_agent",
				"backend":      "backend_agent",
				"review":       "reviewer_agent",
				"execution":    "execution_agent",
				"conversation": "conversation_agent",
				"research":     "research_agent",
				"planning":     "planning_agent",
			},
			Default: "thinking_agent",
		},
		Prompts: map[string]string{
			"default":      "You are a capable general-purpose agent. Complete the task and report the result.",
			"thinking":     "You reason carefully about hard problems and explain your conclusions.",
			"coding":       "You implement features and write production code.",
			"frontend":     "You build user interfaces and client-side behavior.",
			"backend":      "You design and implement server-side services and APIs.",
			"review":       "You review code for correctness, style, and best practices.",
			"execution":    "You execute concrete instructions and report the outcome.",
			"conversation": "You hold a helpful, focused conversation with the user.",
			"research":     "You gather and synthesize information about a topic.",
			"planning":     "You break goals into ordered, actionable plans.",
		},
		Retry: RetryConfig{
			InitialIntervalMS:   100,
			MaxIntervalMS:       10000,
			MaxElapsedMS:        120000,
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
	}
}
