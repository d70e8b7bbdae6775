// Package executor runs a single task through the reasoning runner and drives
// its lifecycle transitions. Retry policy lives in the reasoning layer; the
// executor attempts each task exactly once.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aristath/conductor/internal/engine"
	"github.com/aristath/conductor/internal/events"
	"github.com/aristath/conductor/internal/memory"
	"github.com/aristath/conductor/internal/persistence"
	"github.com/aristath/conductor/internal/reasoning"
	"github.com/aristath/conductor/internal/tools"
)

// Executor executes tasks against a reasoning runner.
type Executor struct {
	store   persistence.TaskStore
	tools   *tools.Registry
	memory  memory.Provider
	runner  reasoning.Runner
	prompts map[string]string
	bus     *events.EventBus
}

// New creates an executor. The memory provider and event bus may be nil.
func New(store persistence.TaskStore, registry *tools.Registry, mem memory.Provider, runner reasoning.Runner, prompts map[string]string, bus *events.EventBus) *Executor {
	return &Executor{
		store:   store,
		tools:   registry,
		memory:  mem,
		runner:  runner,
		prompts: prompts,
		bus:     bus,
	}
}

// Execute runs the task to a terminal state and returns the final record.
// A task that is no longer pending (cancelled, or claimed by another worker)
// is returned as-is. Runner failures are recorded on the task, not returned
// as errors; the error return is for infrastructure problems only.
func (e *Executor) Execute(ctx context.Context, taskID string) (*engine.Task, error) {
	task, err := e.store.UpdateTaskStatus(ctx, taskID, engine.TaskProcessing, nil, "")
	if errors.Is(err, engine.ErrInvalidTransition) {
		// Cancelled before execution started, or already claimed
		return e.store.GetTask(ctx, taskID)
	}
	if err != nil {
		return nil, err
	}

	start := time.Now()
	e.publish(events.TopicTask, events.TaskStartedEvent{
		ID:        task.ID,
		Type:      task.Type,
		AgentID:   task.AgentID,
		Timestamp: start,
	})

	result, runErr := e.runner.Run(ctx, e.buildRequest(ctx, task))
	if runErr != nil {
		return e.fail(ctx, task, runErr, start)
	}

	return e.complete(ctx, task, result, start)
}

// genericPrompt is the last-resort system prompt for task types the prompt
// table does not cover.
const genericPrompt = "You are a capable general-purpose agent. Complete the task and report the result."

// buildRequest assembles the reasoning request: resolved tools, loaded memory,
// and the per-type system prompt. Unknown tool names are dropped and a missing
// memory ref yields an empty history; neither blocks execution.
func (e *Executor) buildRequest(ctx context.Context, task *engine.Task) reasoning.Request {
	req := reasoning.Request{
		SystemPrompt: e.systemPrompt(task.Type),
		Input:        task.Input,
		Context:      task.Context,
	}

	if e.tools != nil {
		req.Tools = e.tools.ResolveAll(task.ToolNames)
	}

	if e.memory != nil && task.MemoryRef != "" {
		handle, err := e.memory.Load(ctx, task.MemoryRef)
		if err != nil {
			log.Printf("Failed to load memory %q for task %s: %v", task.MemoryRef, task.ID, err)
		} else {
			req.Memory = handle
		}
	}

	return req
}

// systemPrompt picks the prompt for a task type: the per-type entry, then the
// configured "default" entry, then the built-in generic prompt.
func (e *Executor) systemPrompt(taskType string) string {
	if prompt, ok := e.prompts[taskType]; ok {
		return prompt
	}
	if prompt, ok := e.prompts["default"]; ok {
		return prompt
	}
	return genericPrompt
}

func (e *Executor) complete(ctx context.Context, task *engine.Task, result *reasoning.Result, start time.Time) (*engine.Task, error) {
	resultMap := map[string]any{
		"output": result.Output,
	}
	if len(result.Steps) > 0 {
		steps := make([]any, len(result.Steps))
		for i, step := range result.Steps {
			steps[i] = map[string]any{
				"tool":   step.Tool,
				"input":  step.Input,
				"output": step.Output,
			}
		}
		resultMap["intermediate_steps"] = steps
	}

	final, err := e.store.UpdateTaskStatus(ctx, task.ID, engine.TaskCompleted, resultMap, "")
	if errors.Is(err, engine.ErrInvalidTransition) {
		// Lost the race against a cancel; the cancel wins
		return e.store.GetTask(ctx, task.ID)
	}
	if err != nil {
		return nil, err
	}

	e.recordTurns(ctx, final, fmt.Sprintf("%v", result.Output))

	e.publish(events.TopicTask, events.TaskCompletedEvent{
		ID:        final.ID,
		Output:    result.Output,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
	return final, nil
}

func (e *Executor) fail(ctx context.Context, task *engine.Task, runErr error, start time.Time) (*engine.Task, error) {
	final, err := e.store.UpdateTaskStatus(ctx, task.ID, engine.TaskFailed, nil, runErr.Error())
	if errors.Is(err, engine.ErrInvalidTransition) {
		return e.store.GetTask(ctx, task.ID)
	}
	if err != nil {
		return nil, err
	}

	e.publish(events.TopicTask, events.TaskFailedEvent{
		ID:        final.ID,
		Err:       runErr,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
	return final, nil
}

// recordTurns appends the task exchange to conversational memory.
func (e *Executor) recordTurns(ctx context.Context, task *engine.Task, output string) {
	if e.memory == nil || task.MemoryRef == "" {
		return
	}

	input := fmt.Sprintf("%v", task.Input)
	if err := e.memory.Append(ctx, task.MemoryRef, "user", input); err != nil {
		log.Printf("Failed to record memory for task %s: %v", task.ID, err)
		return
	}
	if err := e.memory.Append(ctx, task.MemoryRef, "assistant", output); err != nil {
		log.Printf("Failed to record memory for task %s: %v", task.ID, err)
	}
}

func (e *Executor) publish(topic string, event events.Event) {
	if e.bus != nil {
		e.bus.Publish(topic, event)
	}
}
