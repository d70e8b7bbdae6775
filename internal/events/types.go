package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	SubjectID() string
}

// Topic constants
const (
	TopicTask     = "task"
	TopicWorkflow = "workflow"
)

// Event type constants
const (
	EventTypeTaskCreated   = "task.created"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskCancelled = "task.cancelled"

	EventTypeWorkflowStarted       = "workflow.started"
	EventTypeWorkflowStepCompleted = "workflow.step.completed"
	EventTypeWorkflowCompleted     = "workflow.completed"
	EventTypeWorkflowFailed        = "workflow.failed"
	EventTypeProgress              = "workflow.progress"
)

// TaskCreatedEvent is published when a task is accepted and persisted.
type TaskCreatedEvent struct {
	ID        string
	Type      string
	AgentID   string
	Timestamp time.Time
}

func (e TaskCreatedEvent) EventType() string { return EventTypeTaskCreated }
func (e TaskCreatedEvent) SubjectID() string { return e.ID }

// TaskStartedEvent is published when a task moves to processing.
type TaskStartedEvent struct {
	ID        string
	Type      string
	AgentID   string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) SubjectID() string { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Output    any
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) SubjectID() string { return e.ID }

// TaskFailedEvent is published when a task fails.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) SubjectID() string { return e.ID }

// TaskCancelledEvent is published when a task is cancelled before completion.
type TaskCancelledEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskCancelledEvent) EventType() string { return EventTypeTaskCancelled }
func (e TaskCancelledEvent) SubjectID() string { return e.ID }

// WorkflowStartedEvent is published when workflow execution begins.
type WorkflowStartedEvent struct {
	ID        string
	Name      string
	Steps     int
	Timestamp time.Time
}

func (e WorkflowStartedEvent) EventType() string { return EventTypeWorkflowStarted }
func (e WorkflowStartedEvent) SubjectID() string { return e.ID }

// WorkflowStepCompletedEvent is published after each step's task reaches a
// terminal state.
type WorkflowStepCompletedEvent struct {
	ID        string // workflow ID
	StepID    string
	TaskID    string
	Failed    bool
	Timestamp time.Time
}

func (e WorkflowStepCompletedEvent) EventType() string { return EventTypeWorkflowStepCompleted }
func (e WorkflowStepCompletedEvent) SubjectID() string { return e.ID }

// WorkflowCompletedEvent is published when all steps succeed.
type WorkflowCompletedEvent struct {
	ID        string
	Duration  time.Duration
	Timestamp time.Time
}

func (e WorkflowCompletedEvent) EventType() string { return EventTypeWorkflowCompleted }
func (e WorkflowCompletedEvent) SubjectID() string { return e.ID }

// WorkflowFailedEvent is published when a step failure aborts the workflow.
type WorkflowFailedEvent struct {
	ID        string
	StepID    string
	Err       error
	Timestamp time.Time
}

func (e WorkflowFailedEvent) EventType() string { return EventTypeWorkflowFailed }
func (e WorkflowFailedEvent) SubjectID() string { return e.ID }

// ProgressEvent summarizes step counts for a running workflow.
type ProgressEvent struct {
	ID        string // workflow ID
	Total     int
	Completed int
	Failed    int
	Pending   int
	Timestamp time.Time
}

func (e ProgressEvent) EventType() string { return EventTypeProgress }
func (e ProgressEvent) SubjectID() string { return e.ID }
