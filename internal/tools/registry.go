// Package tools provides the tool registry consumed by the task executor.
// Tools are named callables the reasoning collaborator may invoke while
// working on a task.
package tools

import (
	"context"
	"sort"
	"sync"
)

// Tool is a named callable with an opaque key/value contract.
type Tool struct {
	Name        string
	Description string
	Invoke      func(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Registry is a concurrency-safe registry of tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds or replaces a tool under its name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Resolve returns the tool registered under name.
// The second return value is false when no such tool exists; callers that
// assemble tool sets for a task drop unresolvable names silently.
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// ResolveAll returns the tools for the given names, skipping unknown names.
func (r *Registry) ResolveAll(names []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved := make([]Tool, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			resolved = append(resolved, tool)
		}
	}
	return resolved
}

// List returns the registered tool names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
