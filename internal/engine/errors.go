package engine

import "errors"

// Store and lifecycle errors shared across the engine.
var (
	// ErrNotFound is returned for an unknown task, agent, or workflow ID.
	ErrNotFound = errors.New("engine: record not found")

	// ErrInvalidTransition is returned for a status change that the state
	// machine forbids, including a second terminal write.
	ErrInvalidTransition = errors.New("engine: invalid status transition")

	// ErrAlreadyTerminal is returned when cancellation is requested for a
	// task or workflow that already reached a terminal state.
	ErrAlreadyTerminal = errors.New("engine: already in a terminal state")
)
