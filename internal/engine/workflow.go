package engine

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowCreated   WorkflowStatus = "created"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowCreated, WorkflowRunning, WorkflowCompleted, WorkflowFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the workflow reached a final state.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// WorkflowStep describes one step of a workflow. Each step is materialized as
// a regular Task at execution time. DependsOn declarations are validated at
// creation; execution order is the declaration order regardless.
type WorkflowStep struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Input         map[string]any `json:"input,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	ToolNames     []string       `json:"tool_names,omitempty"`
	MemoryRef     string         `json:"memory_ref,omitempty"`
	DependsOn     []string       `json:"depends_on,omitempty"`
	UpdateContext bool           `json:"update_context,omitempty"`
}

// StepResult records the task spawned for a step and its output.
type StepResult struct {
	TaskID string         `json:"task_id"`
	Result map[string]any `json:"result,omitempty"`
}

// Workflow is an ordered composition of steps executed sequentially.
type Workflow struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Steps       []WorkflowStep        `json:"steps"`
	Status      WorkflowStatus        `json:"status"`
	Results     map[string]StepResult `json:"results"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Clone returns a copy of the workflow with its own steps and results.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	cp := *w
	cp.Steps = make([]WorkflowStep, len(w.Steps))
	for i, step := range w.Steps {
		s := step
		s.Input = CopyMap(step.Input)
		s.Context = CopyMap(step.Context)
		if step.ToolNames != nil {
			s.ToolNames = append([]string(nil), step.ToolNames...)
		}
		if step.DependsOn != nil {
			s.DependsOn = append([]string(nil), step.DependsOn...)
		}
		cp.Steps[i] = s
	}
	if w.Results != nil {
		cp.Results = make(map[string]StepResult, len(w.Results))
		for id, r := range w.Results {
			r.Result = CopyMap(r.Result)
			cp.Results[id] = r
		}
	}
	return &cp
}
