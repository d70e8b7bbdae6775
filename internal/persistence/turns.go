package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/conductor/internal/memory"
)

// AppendTurn appends a conversation turn under the given memory reference.
func (s *SQLiteStore) AppendTurn(ctx context.Context, ref, role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_turns (ref, role, content, timestamp)
		VALUES (?, ?, ?, ?)
	`, ref, role, content, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to insert memory turn: %w", err)
	}
	return nil
}

// History returns all turns stored under ref in chronological order.
// An unknown ref yields an empty history, not an error.
func (s *SQLiteStore) History(ctx context.Context, ref string) ([]memory.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, timestamp
		FROM memory_turns
		WHERE ref = ?
		ORDER BY id
	`, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory turns: %w", err)
	}
	defer rows.Close()

	var turns []memory.Turn
	for rows.Next() {
		var turn memory.Turn
		var ts string
		if err := rows.Scan(&turn.Role, &turn.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan memory turn: %w", err)
		}
		if turn.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memory turns: %w", err)
	}

	return turns, nil
}
