package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/conductor/internal/engine"
)

// PutAgent inserts or replaces an agent registration record.
func (s *SQLiteStore) PutAgent(ctx context.Context, agent *engine.Agent) error {
	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, description, capabilities, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			capabilities = excluded.capabilities,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, agent.ID, agent.Name, agent.Description, strings.Join(agent.Capabilities, ","),
		string(agent.Status), formatTime(agent.CreatedAt), formatTime(agent.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert agent: %w", err)
	}

	return nil
}

// GetAgent retrieves an agent by ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, agentID string) (*engine.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, capabilities, status, created_at, updated_at
		FROM agents
		WHERE id = ?
	`, agentID)

	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query agent: %w", err)
	}
	return agent, nil
}

// ListAgents returns agents matching the filter, oldest-registered-first.
// Capability filtering happens in Go: capability sets are small and stored
// as a comma-joined column.
func (s *SQLiteStore) ListAgents(ctx context.Context, filter AgentFilter) ([]*engine.Agent, error) {
	query := `
		SELECT id, name, description, capabilities, status, created_at, updated_at
		FROM agents
	`
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var agents []*engine.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		if filter.Capability != "" && !agent.HasCapability(filter.Capability) {
			continue
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return agents, nil
}

func scanAgent(row rowScanner) (*engine.Agent, error) {
	agent := &engine.Agent{}
	var capabilities, status, createdAt, updatedAt string

	err := row.Scan(&agent.ID, &agent.Name, &agent.Description, &capabilities, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	agent.Status = engine.AgentStatus(status)
	if capabilities != "" {
		agent.Capabilities = strings.Split(capabilities, ",")
	}
	if agent.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if agent.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return agent, nil
}
