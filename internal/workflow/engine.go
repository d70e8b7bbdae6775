// Package workflow runs multi-step workflows. Steps execute sequentially in
// declaration order; a step marked updateContext broadcasts its task result
// into the other steps' contexts under the "previousResult" key.
package workflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/conductor/internal/engine"
	"github.com/aristath/conductor/internal/events"
	"github.com/aristath/conductor/internal/persistence"
)

// TaskRouter resolves a task to an agent ID.
type TaskRouter interface {
	Route(ctx context.Context, task *engine.Task) string
}

// TaskExecutor runs a persisted task to a terminal state.
type TaskExecutor interface {
	Execute(ctx context.Context, taskID string) (*engine.Task, error)
}

// Store is the persistence surface the workflow engine needs.
type Store interface {
	persistence.TaskStore
	persistence.WorkflowStore
}

// Engine creates and executes workflows.
type Engine struct {
	store  Store
	router TaskRouter
	exec   TaskExecutor
	bus    *events.EventBus
}

// NewEngine creates a workflow engine. The event bus may be nil.
func NewEngine(store Store, router TaskRouter, exec TaskExecutor, bus *events.EventBus) *Engine {
	return &Engine{
		store:  store,
		router: router,
		exec:   exec,
		bus:    bus,
	}
}

// Create validates and persists a new workflow in the created state.
// Missing workflow and step IDs are assigned.
func (e *Engine) Create(ctx context.Context, wf *engine.Workflow) (*engine.Workflow, error) {
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	for i := range wf.Steps {
		if wf.Steps[i].ID == "" {
			wf.Steps[i].ID = uuid.NewString()
		}
	}

	if err := validateSteps(wf.Steps); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	wf.Status = engine.WorkflowCreated
	if err := e.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// Get returns the workflow record, including accumulated step results.
func (e *Engine) Get(ctx context.Context, workflowID string) (*engine.Workflow, error) {
	return e.store.GetWorkflow(ctx, workflowID)
}

// Execute runs the workflow's steps in order, stopping at the first step whose
// task does not complete. Only completed steps record an entry in Results, so
// a failed workflow retains the results of the steps that succeeded and
// nothing for the step that failed. The error return is for infrastructure
// problems; a step failure is recorded on the workflow itself.
func (e *Engine) Execute(ctx context.Context, workflowID string) (*engine.Workflow, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.Status != engine.WorkflowCreated {
		return nil, fmt.Errorf("%w: workflow %s is %s", engine.ErrInvalidTransition, workflowID, wf.Status)
	}

	start := time.Now()
	wf.Status = engine.WorkflowRunning
	if wf.Results == nil {
		wf.Results = make(map[string]engine.StepResult)
	}
	if err := e.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, err
	}

	e.publish(events.TopicWorkflow, events.WorkflowStartedEvent{
		ID:        wf.ID,
		Name:      wf.Name,
		Steps:     len(wf.Steps),
		Timestamp: start,
	})

	for i := range wf.Steps {
		step := wf.Steps[i]

		task, err := e.runStep(ctx, wf, step)
		if err != nil {
			wf.Status = engine.WorkflowFailed
			wf.Error = err.Error()
			if saveErr := e.store.SaveWorkflow(ctx, wf); saveErr != nil {
				log.Printf("Failed to save workflow %s after error: %v", wf.ID, saveErr)
			}
			e.publish(events.TopicWorkflow, events.WorkflowFailedEvent{
				ID:        wf.ID,
				StepID:    step.ID,
				Err:       err,
				Timestamp: time.Now(),
			})
			return nil, err
		}

		failed := task.Status != engine.TaskCompleted
		if !failed {
			wf.Results[step.ID] = engine.StepResult{
				TaskID: task.ID,
				Result: task.Result,
			}
		}
		e.publish(events.TopicWorkflow, events.WorkflowStepCompletedEvent{
			ID:        wf.ID,
			StepID:    step.ID,
			TaskID:    task.ID,
			Failed:    failed,
			Timestamp: time.Now(),
		})
		e.publishProgress(wf, i+1, failed)

		if failed {
			stepErr := fmt.Errorf("step %s (task %s) finished %s: %s", step.ID, task.ID, task.Status, task.Error)
			wf.Status = engine.WorkflowFailed
			wf.Error = stepErr.Error()
			if err := e.store.SaveWorkflow(ctx, wf); err != nil {
				return nil, err
			}
			e.publish(events.TopicWorkflow, events.WorkflowFailedEvent{
				ID:        wf.ID,
				StepID:    step.ID,
				Err:       stepErr,
				Timestamp: time.Now(),
			})
			return wf, nil
		}

		if step.UpdateContext {
			broadcastResult(wf, step.ID, task.Result)
		}

		if err := e.store.SaveWorkflow(ctx, wf); err != nil {
			return nil, err
		}
	}

	wf.Status = engine.WorkflowCompleted
	if err := e.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	e.publish(events.TopicWorkflow, events.WorkflowCompletedEvent{
		ID:        wf.ID,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})

	return wf, nil
}

// runStep materializes the step as a task, routes it, and runs it to a
// terminal state.
func (e *Engine) runStep(ctx context.Context, wf *engine.Workflow, step engine.WorkflowStep) (*engine.Task, error) {
	task := &engine.Task{
		ID:        uuid.NewString(),
		Type:      step.Type,
		Input:     engine.CopyMap(step.Input),
		Context:   engine.CopyMap(step.Context),
		ToolNames: step.ToolNames,
		MemoryRef: step.MemoryRef,
		Status:    engine.TaskPending,
	}
	task.AgentID = e.router.Route(ctx, task)

	if err := e.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task for step %s: %w", step.ID, err)
	}
	e.publish(events.TopicTask, events.TaskCreatedEvent{
		ID:        task.ID,
		Type:      task.Type,
		AgentID:   task.AgentID,
		Timestamp: time.Now(),
	})

	return e.exec.Execute(ctx, task.ID)
}

// broadcastResult merges a step's task result into every other step's context
// under the "previousResult" key. Steps that already ran keep the updated
// context on the record; steps still to run pick it up when they execute.
func broadcastResult(wf *engine.Workflow, stepID string, result map[string]any) {
	for i := range wf.Steps {
		if wf.Steps[i].ID == stepID {
			continue
		}
		if wf.Steps[i].Context == nil {
			wf.Steps[i].Context = make(map[string]any)
		}
		wf.Steps[i].Context["previousResult"] = engine.CopyMap(result)
	}
}

func (e *Engine) publishProgress(wf *engine.Workflow, done int, failed bool) {
	progress := events.ProgressEvent{
		ID:        wf.ID,
		Total:     len(wf.Steps),
		Completed: done,
		Pending:   len(wf.Steps) - done,
		Timestamp: time.Now(),
	}
	if failed {
		progress.Completed = done - 1
		progress.Failed = 1
	}
	e.publish(events.TopicWorkflow, progress)
}

func (e *Engine) publish(topic string, event events.Event) {
	if e.bus != nil {
		e.bus.Publish(topic, event)
	}
}
