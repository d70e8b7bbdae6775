package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.HTTPAddr = ":9999"
	cfg.Routing.Capabilities["triage"] = "planning_agent"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	// File must exist and round-trip
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("saved config is not valid JSON: %v", err)
	}
	if loaded.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q, want :9999", loaded.HTTPAddr)
	}
	if loaded.Routing.Capabilities["triage"] != "planning_agent" {
		t.Errorf("triage capability = %q, want planning_agent", loaded.Routing.Capabilities["triage"])
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.Concurrency = 8
	cfg.Runner.Model = "opus-4"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", loaded.Concurrency)
	}
	if loaded.Runner.Model != "opus-4" {
		t.Errorf("Runner.Model = %q, want opus-4", loaded.Runner.Model)
	}
}
