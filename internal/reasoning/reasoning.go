// Package reasoning abstracts the LLM collaborator that executes tasks. The
// engine hands a Runner the task input, accumulated context, resolved tools,
// and conversational memory; the Runner returns a final output plus the tool
// invocations it made along the way.
package reasoning

import (
	"context"

	"github.com/aristath/conductor/internal/memory"
	"github.com/aristath/conductor/internal/tools"
)

// ToolInvocation records one tool call made during a reasoning run.
type ToolInvocation struct {
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input,omitempty"`
	Output map[string]any `json:"output,omitempty"`
}

// Request carries everything a Runner needs for one task execution.
type Request struct {
	SystemPrompt string
	Input        map[string]any
	Context      map[string]any
	Tools        []tools.Tool
	Memory       *memory.Handle
}

// Result is the outcome of a successful reasoning run.
type Result struct {
	Output any
	Steps  []ToolInvocation
}

// Runner executes a single reasoning request. Implementations must honor
// context cancellation and make exactly one attempt; retry policy lives in
// the Resilient wrapper.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}
