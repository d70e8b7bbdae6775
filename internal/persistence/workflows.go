package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/conductor/internal/engine"
)

// CreateWorkflow inserts a new workflow record.
func (s *SQLiteStore) CreateWorkflow(ctx context.Context, wf *engine.Workflow) error {
	now := time.Now().UTC()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	if wf.UpdatedAt.IsZero() {
		wf.UpdatedAt = wf.CreatedAt
	}

	steps, results, err := encodeWorkflowParts(wf)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, description, steps, status, results, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, wf.ID, wf.Name, wf.Description, steps, string(wf.Status), results, wf.Error,
		formatTime(wf.CreatedAt), formatTime(wf.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, workflowID string) (*engine.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, steps, status, results, error, created_at, updated_at
		FROM workflows
		WHERE id = ?
	`, workflowID)

	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow: %w", err)
	}
	return wf, nil
}

// SaveWorkflow upserts the full workflow record, including step contexts and
// accumulated results. The workflow engine calls this after every step.
func (s *SQLiteStore) SaveWorkflow(ctx context.Context, wf *engine.Workflow) error {
	s.locks.Lock(wf.ID)
	defer s.locks.Unlock(wf.ID)

	wf.UpdatedAt = time.Now().UTC()

	steps, results, err := encodeWorkflowParts(wf)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE workflows
		SET name = ?, description = ?, steps = ?, status = ?, results = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, wf.Name, wf.Description, steps, string(wf.Status), results, wf.Error,
		formatTime(wf.UpdatedAt), wf.ID)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return engine.ErrNotFound
	}

	return nil
}

func encodeWorkflowParts(wf *engine.Workflow) (steps string, results string, err error) {
	stepData, err := json.Marshal(wf.Steps)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode workflow steps: %w", err)
	}
	resultData := ""
	if wf.Results != nil {
		data, err := json.Marshal(wf.Results)
		if err != nil {
			return "", "", fmt.Errorf("failed to encode workflow results: %w", err)
		}
		resultData = string(data)
	}
	return string(stepData), resultData, nil
}

func scanWorkflow(row rowScanner) (*engine.Workflow, error) {
	wf := &engine.Workflow{}
	var steps, results, status, createdAt, updatedAt string

	err := row.Scan(&wf.ID, &wf.Name, &wf.Description, &steps, &status, &results, &wf.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	wf.Status = engine.WorkflowStatus(status)
	if err := json.Unmarshal([]byte(steps), &wf.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode workflow steps: %w", err)
	}
	if results != "" {
		if err := json.Unmarshal([]byte(results), &wf.Results); err != nil {
			return nil, fmt.Errorf("failed to decode workflow results: %w", err)
		}
	}
	if wf.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if wf.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return wf, nil
}
