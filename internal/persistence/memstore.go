package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/conductor/internal/engine"
	"github.com/aristath/conductor/internal/memory"
)

// MemoryStore implements Store with in-process maps. Useful for tests and for
// running without a database file. Applies the same lifecycle rules as the
// SQLite store.
type MemoryStore struct {
	mu        sync.RWMutex
	tasks     map[string]*engine.Task
	agents    map[string]*engine.Agent
	workflows map[string]*engine.Workflow
	turns     map[string][]memory.Turn
	locks     *RecordLockManager
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:     make(map[string]*engine.Task),
		agents:    make(map[string]*engine.Agent),
		workflows: make(map[string]*engine.Workflow),
		turns:     make(map[string][]memory.Turn),
		locks:     NewRecordLockManager(),
	}
}

// CreateTask inserts a new task record. Timestamps are stamped if unset.
func (s *MemoryStore) CreateTask(ctx context.Context, task *engine.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// GetTask retrieves a task by ID.
func (s *MemoryStore) GetTask(ctx context.Context, taskID string) (*engine.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, exists := s.tasks[taskID]
	if !exists {
		return nil, engine.ErrNotFound
	}
	return task.Clone(), nil
}

// UpdateTaskStatus applies a status transition under the task's record lock.
func (s *MemoryStore) UpdateTaskStatus(ctx context.Context, taskID string, status engine.TaskStatus, result map[string]any, errMsg string) (*engine.Task, error) {
	s.locks.Lock(taskID)
	defer s.locks.Unlock(taskID)

	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, engine.ErrNotFound
	}
	if !engine.CanTransition(task.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", engine.ErrInvalidTransition, task.Status, status)
	}

	task.Status = status
	task.Result = nil
	task.Error = ""
	if status == engine.TaskCompleted {
		task.Result = engine.CopyMap(result)
	}
	if status == engine.TaskFailed {
		task.Error = errMsg
	}
	task.UpdatedAt = time.Now().UTC()

	return task.Clone(), nil
}

// CancelTask marks a non-terminal task cancelled.
func (s *MemoryStore) CancelTask(ctx context.Context, taskID string) (*engine.Task, error) {
	s.locks.Lock(taskID)
	defer s.locks.Unlock(taskID)

	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, engine.ErrNotFound
	}
	if task.Status.Terminal() {
		return nil, fmt.Errorf("%w: task %s is %s", engine.ErrAlreadyTerminal, taskID, task.Status)
	}

	task.Status = engine.TaskCancelled
	task.UpdatedAt = time.Now().UTC()
	return task.Clone(), nil
}

// ListTasks returns tasks matching the filter, newest-created-first.
func (s *MemoryStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*engine.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*engine.Task
	for _, task := range s.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.AgentID != "" && task.AgentID != filter.AgentID {
			continue
		}
		if filter.OwnerID != "" && task.OwnerID != filter.OwnerID {
			continue
		}
		tasks = append(tasks, task.Clone())
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	if filter.Limit > 0 {
		start := filter.Offset
		if start > len(tasks) {
			start = len(tasks)
		}
		end := start + filter.Limit
		if end > len(tasks) {
			end = len(tasks)
		}
		tasks = tasks[start:end]
	}

	return tasks, nil
}

// PutAgent inserts or replaces an agent record.
func (s *MemoryStore) PutAgent(ctx context.Context, agent *engine.Agent) error {
	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent.Clone()
	return nil
}

// GetAgent retrieves an agent by ID.
func (s *MemoryStore) GetAgent(ctx context.Context, agentID string) (*engine.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, exists := s.agents[agentID]
	if !exists {
		return nil, engine.ErrNotFound
	}
	return agent.Clone(), nil
}

// ListAgents returns agents matching the filter, oldest-registered-first.
func (s *MemoryStore) ListAgents(ctx context.Context, filter AgentFilter) ([]*engine.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var agents []*engine.Agent
	for _, agent := range s.agents {
		if filter.Status != "" && agent.Status != filter.Status {
			continue
		}
		if filter.Capability != "" && !agent.HasCapability(filter.Capability) {
			continue
		}
		agents = append(agents, agent.Clone())
	}

	sort.Slice(agents, func(i, j int) bool {
		if agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].ID < agents[j].ID
		}
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})

	return agents, nil
}

// CreateWorkflow inserts a new workflow record.
func (s *MemoryStore) CreateWorkflow(ctx context.Context, wf *engine.Workflow) error {
	now := time.Now().UTC()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	if wf.UpdatedAt.IsZero() {
		wf.UpdatedAt = wf.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workflows[wf.ID]; exists {
		return fmt.Errorf("workflow %s already exists", wf.ID)
	}
	s.workflows[wf.ID] = wf.Clone()
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *MemoryStore) GetWorkflow(ctx context.Context, workflowID string) (*engine.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, exists := s.workflows[workflowID]
	if !exists {
		return nil, engine.ErrNotFound
	}
	return wf.Clone(), nil
}

// SaveWorkflow replaces an existing workflow record in full.
func (s *MemoryStore) SaveWorkflow(ctx context.Context, wf *engine.Workflow) error {
	s.locks.Lock(wf.ID)
	defer s.locks.Unlock(wf.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workflows[wf.ID]; !exists {
		return engine.ErrNotFound
	}
	wf.UpdatedAt = time.Now().UTC()
	s.workflows[wf.ID] = wf.Clone()
	return nil
}

// AppendTurn records a conversation turn under the given memory ref.
func (s *MemoryStore) AppendTurn(ctx context.Context, ref, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[ref] = append(s.turns[ref], memory.Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// History returns the turns recorded under ref in chronological order.
// An unknown ref yields an empty history, not an error.
func (s *MemoryStore) History(ctx context.Context, ref string) ([]memory.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]memory.Turn, len(s.turns[ref]))
	copy(turns, s.turns[ref])
	return turns, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
