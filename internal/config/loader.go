package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Merge global config if exists
	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Merge project config if exists (highest precedence)
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.conductor/config.json
// Project: .conductor/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".conductor", "config.json")
	projectPath := filepath.Join(".conductor", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *Config, path string) error {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Parse JSON
	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	merge(base, &loaded)
	return nil
}

// merge overlays non-zero fields of loaded onto base. Maps merge per key.
func merge(base, loaded *Config) {
	if loaded.HTTPAddr != "" {
		base.HTTPAddr = loaded.HTTPAddr
	}
	if loaded.DBPath != "" {
		base.DBPath = loaded.DBPath
	}
	if loaded.Concurrency > 0 {
		base.Concurrency = loaded.Concurrency
	}
	if loaded.Runner.Command != "" {
		base.Runner.Command = loaded.Runner.Command
	}
	if loaded.Runner.Model != "" {
		base.Runner.Model = loaded.Runner.Model
	}
	if loaded.Runner.SystemPrompt != "" {
		base.Runner.SystemPrompt = loaded.Runner.SystemPrompt
	}
	for key, capability := range loaded.Routing.Capabilities {
		base.Routing.Capabilities[key] = capability
	}
	if loaded.Routing.Default != "" {
		base.Routing.Default = loaded.Routing.Default
	}
	for key, prompt := range loaded.Prompts {
		base.Prompts[key] = prompt
	}
	if loaded.Retry.InitialIntervalMS > 0 {
		base.Retry.InitialIntervalMS = loaded.Retry.InitialIntervalMS
	}
	if loaded.Retry.MaxIntervalMS > 0 {
		base.Retry.MaxIntervalMS = loaded.Retry.MaxIntervalMS
	}
	if loaded.Retry.MaxElapsedMS > 0 {
		base.Retry.MaxElapsedMS = loaded.Retry.MaxElapsedMS
	}
	if loaded.Retry.Multiplier > 0 {
		base.Retry.Multiplier = loaded.Retry.Multiplier
	}
	if loaded.Retry.RandomizationFactor > 0 {
		base.Retry.RandomizationFactor = loaded.Retry.RandomizationFactor
	}
}
