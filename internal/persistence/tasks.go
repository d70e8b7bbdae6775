package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/conductor/internal/engine"
)

// CreateTask inserts a new task record. Timestamps are stamped if unset.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *engine.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	input, err := encodeMap(task.Input)
	if err != nil {
		return fmt.Errorf("failed to encode task input: %w", err)
	}
	taskCtx, err := encodeMap(task.Context)
	if err != nil {
		return fmt.Errorf("failed to encode task context: %w", err)
	}
	result, err := encodeMap(task.Result)
	if err != nil {
		return fmt.Errorf("failed to encode task result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, type, input, context, tool_names, memory_ref, agent_id, owner_id, status, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.Type, input, taskCtx, strings.Join(task.ToolNames, ","), task.MemoryRef,
		task.AgentID, task.OwnerID, string(task.Status), result, task.Error,
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*engine.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, input, context, tool_names, memory_ref, agent_id, owner_id, status, result, error, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`, taskID)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return task, nil
}

// UpdateTaskStatus applies a status transition under the task's record lock.
// Invalid transitions (including any write after a terminal state) return
// engine.ErrInvalidTransition.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID string, status engine.TaskStatus, result map[string]any, errMsg string) (*engine.Task, error) {
	s.locks.Lock(taskID)
	defer s.locks.Unlock(taskID)

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !engine.CanTransition(task.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", engine.ErrInvalidTransition, task.Status, status)
	}

	task.Status = status
	task.Result = nil
	task.Error = ""
	if status == engine.TaskCompleted {
		task.Result = result
	}
	if status == engine.TaskFailed {
		task.Error = errMsg
	}
	task.UpdatedAt = time.Now().UTC()

	encoded, err := encodeMap(task.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, result = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, string(task.Status), encoded, task.Error, formatTime(task.UpdatedAt), taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	return task, nil
}

// CancelTask marks a non-terminal task cancelled.
func (s *SQLiteStore) CancelTask(ctx context.Context, taskID string) (*engine.Task, error) {
	s.locks.Lock(taskID)
	defer s.locks.Unlock(taskID)

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status.Terminal() {
		return nil, fmt.Errorf("%w: task %s is %s", engine.ErrAlreadyTerminal, taskID, task.Status)
	}

	task.Status = engine.TaskCancelled
	task.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, updated_at = ?
		WHERE id = ?
	`, string(task.Status), formatTime(task.UpdatedAt), taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel task: %w", err)
	}

	return task, nil
}

// ListTasks returns tasks matching the filter, newest-created-first.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*engine.Task, error) {
	query := `
		SELECT id, type, input, context, tool_names, memory_ref, agent_id, owner_id, status, result, error, created_at, updated_at
		FROM tasks
	`
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AgentID != "" {
		clauses = append(clauses, "agent_id = ?")
		args = append(args, filter.AgentID)
	}
	if filter.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*engine.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*engine.Task, error) {
	task := &engine.Task{}
	var input, taskCtx, toolNames, result, status, createdAt, updatedAt string

	err := row.Scan(&task.ID, &task.Type, &input, &taskCtx, &toolNames, &task.MemoryRef,
		&task.AgentID, &task.OwnerID, &status, &result, &task.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	task.Status = engine.TaskStatus(status)
	if task.Input, err = decodeMap(input); err != nil {
		return nil, fmt.Errorf("failed to decode task input: %w", err)
	}
	if task.Context, err = decodeMap(taskCtx); err != nil {
		return nil, fmt.Errorf("failed to decode task context: %w", err)
	}
	if task.Result, err = decodeMap(result); err != nil {
		return nil, fmt.Errorf("failed to decode task result: %w", err)
	}
	if toolNames != "" {
		task.ToolNames = strings.Split(toolNames, ",")
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

// encodeMap serializes a map to JSON, with "" for nil.
func encodeMap(m map[string]any) (string, error) {
	if m == nil {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeMap deserializes a JSON object, with nil for "".
func decodeMap(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
