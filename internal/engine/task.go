// Package engine defines the records the orchestration engine operates on:
// tasks, agents, and workflows, together with their lifecycle state machines.
package engine

import "time"

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskProcessing, TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions may leave this status.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a task may move from one status to another.
// The machine is strictly forward: pending -> processing -> {completed|failed},
// with cancellation allowed from any non-terminal state.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskPending:
		return to == TaskProcessing || to == TaskCancelled
	case TaskProcessing:
		return to == TaskCompleted || to == TaskFailed || to == TaskCancelled
	default:
		return false
	}
}

// Task is one unit of orchestrated work assigned to an agent.
// Input is caller-supplied and immutable after creation; Context may be
// mutated by the workflow engine to propagate results between steps.
type Task struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Input     map[string]any `json:"input,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	ToolNames []string       `json:"tool_names,omitempty"`
	MemoryRef string         `json:"memory_ref,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	OwnerID   string         `json:"owner_id,omitempty"`
	Status    TaskStatus     `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a copy of the task with its own maps and slices.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Input = CopyMap(t.Input)
	cp.Context = CopyMap(t.Context)
	cp.Result = CopyMap(t.Result)
	if t.ToolNames != nil {
		cp.ToolNames = append([]string(nil), t.ToolNames...)
	}
	return &cp
}

// CopyMap returns a shallow copy of m, or nil if m is nil.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
