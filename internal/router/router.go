// Package router decides which agent handles a task. Known task types map
// through a static routing table; unknown types fall back to asking the
// reasoning runner to classify the task. Capability resolution never fails:
// any error or unusable answer lands on the default capability. Assignment
// can: a capability nobody registered for leaves the task unassigned.
package router

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/aristath/conductor/internal/config"
	"github.com/aristath/conductor/internal/engine"
	"github.com/aristath/conductor/internal/persistence"
	"github.com/aristath/conductor/internal/reasoning"
)

// Router resolves a task to the agent that should execute it.
type Router struct {
	table    map[string]string
	fallback string
	runner   reasoning.Runner
	agents   persistence.AgentDirectory
}

// New creates a router from the routing configuration. The runner is used
// only to classify unknown task types and may be nil; the agent directory is
// consulted to prefer a registered active agent for the routed capability and
// may also be nil.
func New(cfg config.RoutingConfig, runner reasoning.Runner, agents persistence.AgentDirectory) *Router {
	table := make(map[string]string, len(cfg.Capabilities))
	for taskType, agent := range cfg.Capabilities {
		table[taskType] = agent
	}
	return &Router{
		table:    table,
		fallback: cfg.Default,
		runner:   runner,
		agents:   agents,
	}
}

// Route returns the agent ID for the task, or "" when no registered active
// agent advertises the routed capability (the task is created unassigned).
// Capability lookup order: static table by task type, then reasoning-based
// classification, then the default capability.
func (r *Router) Route(ctx context.Context, task *engine.Task) string {
	return r.pickAgent(ctx, r.Capability(ctx, task))
}

// Capability resolves the capability a task needs, without consulting the
// agent directory.
func (r *Router) Capability(ctx context.Context, task *engine.Task) string {
	if agent, ok := r.table[task.Type]; ok {
		return agent
	}

	if r.runner != nil {
		if agent, ok := r.classify(ctx, task); ok {
			return agent
		}
	}

	return r.fallback
}

// classify asks the runner to map an unknown task type onto a known one.
// Any error or answer outside the table is treated as unclassifiable.
func (r *Router) classify(ctx context.Context, task *engine.Task) (string, bool) {
	known := make([]string, 0, len(r.table))
	for taskType := range r.table {
		known = append(known, taskType)
	}
	sort.Strings(known)

	result, err := r.runner.Run(ctx, reasoning.Request{
		SystemPrompt: "You classify tasks. Reply with exactly one word from the allowed list.",
		Input: map[string]any{
			"task_type":     task.Type,
			"task_input":    task.Input,
			"allowed_types": known,
		},
	})
	if err != nil {
		log.Printf("Routing classification for task %s failed: %v", task.ID, err)
		return "", false
	}

	answer, ok := result.Output.(string)
	if !ok {
		answer = fmt.Sprintf("%v", result.Output)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))

	agent, ok := r.table[answer]
	return agent, ok
}

// pickAgent assigns the first registered active agent advertising the
// capability. When none is registered the task stays unassigned.
func (r *Router) pickAgent(ctx context.Context, capability string) string {
	if r.agents == nil {
		return ""
	}

	registered, err := r.agents.ListAgents(ctx, persistence.AgentFilter{
		Capability: capability,
		Status:     engine.AgentActive,
	})
	if err != nil || len(registered) == 0 {
		return ""
	}
	return registered[0].ID
}
