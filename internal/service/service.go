// Package service exposes the orchestration facade: task intake and routing,
// synchronous and asynchronous execution, agent registration, and workflow
// management. The HTTP layer and the TUI both sit on top of this package.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/conductor/internal/engine"
	"github.com/aristath/conductor/internal/events"
	"github.com/aristath/conductor/internal/persistence"
	"github.com/aristath/conductor/internal/workflow"
)

// TaskExecutor runs a persisted task to a terminal state.
type TaskExecutor interface {
	Execute(ctx context.Context, taskID string) (*engine.Task, error)
}

// TaskRouter resolves a task to an agent ID.
type TaskRouter interface {
	Route(ctx context.Context, task *engine.Task) string
}

// Options configures service behavior at construction time.
type Options struct {
	// MultiTenant scopes every task operation to an owner. When set, task
	// creation requires an owner ID and reads never cross owners.
	MultiTenant bool
	// Concurrency bounds background task and workflow execution.
	Concurrency int
}

// CreateTaskRequest is the task intake payload.
type CreateTaskRequest struct {
	Type      string         `json:"type"`
	Input     map[string]any `json:"input,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	ToolNames []string       `json:"tools,omitempty"`
	MemoryRef string         `json:"memory_ref,omitempty"`
	OwnerID   string         `json:"owner_id,omitempty"`
}

// Service is the orchestration facade.
type Service struct {
	store      persistence.Store
	router     TaskRouter
	exec       TaskExecutor
	workflows  *workflow.Engine
	bus        *events.EventBus
	dispatcher *Dispatcher
	opts       Options
}

// New creates the orchestration service.
func New(ctx context.Context, store persistence.Store, router TaskRouter, exec TaskExecutor, workflows *workflow.Engine, bus *events.EventBus, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{
		store:      store,
		router:     router,
		exec:       exec,
		workflows:  workflows,
		bus:        bus,
		dispatcher: NewDispatcher(ctx, opts.Concurrency),
		opts:       opts,
	}
}

// Shutdown stops background execution and waits for in-flight work.
func (s *Service) Shutdown() {
	s.dispatcher.Shutdown()
}

// CreateTask validates, routes, and persists a new pending task.
func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (*engine.Task, error) {
	if req.Type == "" {
		return nil, fmt.Errorf("task type is required")
	}
	if s.opts.MultiTenant && req.OwnerID == "" {
		return nil, fmt.Errorf("owner ID is required")
	}
	ownerID := req.OwnerID
	if !s.opts.MultiTenant {
		ownerID = ""
	}

	task := &engine.Task{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Input:     engine.CopyMap(req.Input),
		Context:   engine.CopyMap(req.Context),
		ToolNames: req.ToolNames,
		MemoryRef: req.MemoryRef,
		OwnerID:   ownerID,
		Status:    engine.TaskPending,
	}
	task.AgentID = s.router.Route(ctx, task)

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	s.publish(events.TopicTask, events.TaskCreatedEvent{
		ID:        task.ID,
		Type:      task.Type,
		AgentID:   task.AgentID,
		Timestamp: time.Now(),
	})
	return task, nil
}

// ProcessTask executes the task synchronously and returns the final record.
func (s *Service) ProcessTask(ctx context.Context, taskID, ownerID string) (*engine.Task, error) {
	if _, err := s.GetTask(ctx, taskID, ownerID); err != nil {
		return nil, err
	}
	return s.exec.Execute(ctx, taskID)
}

// ProcessTaskAsync schedules the task for background execution.
func (s *Service) ProcessTaskAsync(ctx context.Context, taskID, ownerID string) error {
	if _, err := s.GetTask(ctx, taskID, ownerID); err != nil {
		return err
	}
	s.dispatcher.Go("task "+taskID, func(ctx context.Context) error {
		_, err := s.exec.Execute(ctx, taskID)
		return err
	})
	return nil
}

// GetTask returns the task, scoped to its owner in multi-tenant mode. A task
// belonging to another owner is indistinguishable from a missing one.
func (s *Service) GetTask(ctx context.Context, taskID, ownerID string) (*engine.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if s.opts.MultiTenant && task.OwnerID != ownerID {
		return nil, engine.ErrNotFound
	}
	return task, nil
}

// ListTasks returns tasks matching the filter. In multi-tenant mode the
// filter is forced onto the caller's owner ID.
func (s *Service) ListTasks(ctx context.Context, filter persistence.TaskFilter, ownerID string) ([]*engine.Task, error) {
	if s.opts.MultiTenant {
		filter.OwnerID = ownerID
	}
	return s.store.ListTasks(ctx, filter)
}

// CancelTask cancels a non-terminal task.
func (s *Service) CancelTask(ctx context.Context, taskID, ownerID string) (*engine.Task, error) {
	if _, err := s.GetTask(ctx, taskID, ownerID); err != nil {
		return nil, err
	}
	task, err := s.store.CancelTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.publish(events.TopicTask, events.TaskCancelledEvent{
		ID:        task.ID,
		Timestamp: time.Now(),
	})
	return task, nil
}

// RegisterAgent validates and stores an agent registration. Re-registering
// an existing ID updates the record.
func (s *Service) RegisterAgent(ctx context.Context, agent *engine.Agent) (*engine.Agent, error) {
	if agent.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if agent.Status == "" {
		agent.Status = engine.AgentActive
	}
	if !agent.Status.Valid() {
		return nil, fmt.Errorf("invalid agent status %q", agent.Status)
	}
	if err := s.store.PutAgent(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// GetAgent returns the agent registration record.
func (s *Service) GetAgent(ctx context.Context, agentID string) (*engine.Agent, error) {
	return s.store.GetAgent(ctx, agentID)
}

// ListAgents returns agents matching the filter.
func (s *Service) ListAgents(ctx context.Context, filter persistence.AgentFilter) ([]*engine.Agent, error) {
	return s.store.ListAgents(ctx, filter)
}

// CreateWorkflow validates and persists a new workflow.
func (s *Service) CreateWorkflow(ctx context.Context, wf *engine.Workflow) (*engine.Workflow, error) {
	return s.workflows.Create(ctx, wf)
}

// GetWorkflowStatus returns the workflow record with accumulated results.
func (s *Service) GetWorkflowStatus(ctx context.Context, workflowID string) (*engine.Workflow, error) {
	return s.workflows.Get(ctx, workflowID)
}

// ExecuteWorkflow runs the workflow synchronously.
func (s *Service) ExecuteWorkflow(ctx context.Context, workflowID string) (*engine.Workflow, error) {
	return s.workflows.Execute(ctx, workflowID)
}

// ExecuteWorkflowAsync schedules the workflow for background execution.
// The workflow must exist and be in the created state.
func (s *Service) ExecuteWorkflowAsync(ctx context.Context, workflowID string) error {
	wf, err := s.workflows.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.Status != engine.WorkflowCreated {
		return fmt.Errorf("%w: workflow %s is %s", engine.ErrInvalidTransition, workflowID, wf.Status)
	}
	s.dispatcher.Go("workflow "+workflowID, func(ctx context.Context) error {
		_, err := s.workflows.Execute(ctx, workflowID)
		return err
	})
	return nil
}

func (s *Service) publish(topic string, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, event)
	}
}
