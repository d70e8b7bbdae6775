package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aristath/conductor/internal/config"
	"github.com/aristath/conductor/internal/tools"
)

// maxToolRounds bounds the tool-calling loop for a single run.
const maxToolRounds = 8

// CLIRunner implements Runner on top of the Claude Code CLI. Each Run opens a
// fresh CLI session; tool-calling rounds within the run resume that session so
// the model keeps its own conversation state.
type CLIRunner struct {
	command string
	model   string
	procMgr *ProcessManager
}

// cliResponse is the JSON structure returned by the CLI.
// Example: {"session_id": "uuid", "result": {"content": [{"type": "text", "text": "response"}]}}
type cliResponse struct {
	SessionID string `json:"session_id"`
	Result    struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
}

// toolCall is the shape the model is asked to emit when it wants a tool.
type toolCall struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// NewCLIRunner creates a CLI-backed runner from the runner configuration.
// The ProcessManager is optional; if nil, subprocesses aren't tracked.
func NewCLIRunner(cfg config.RunnerConfig, pm *ProcessManager) *CLIRunner {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	return &CLIRunner{
		command: command,
		model:   cfg.Model,
		procMgr: pm,
	}
}

// Run executes one reasoning request. The first CLI call carries the full
// prompt; follow-up calls feed tool observations back into the same session
// until the model produces a final answer or the round limit is hit.
func (r *CLIRunner) Run(ctx context.Context, req Request) (*Result, error) {
	sessionID := uuid.NewString()
	prompt := buildPrompt(req)

	var steps []ToolInvocation
	resume := false

	for round := 0; round <= maxToolRounds; round++ {
		content, err := r.send(ctx, prompt, sessionID, resume, req.SystemPrompt)
		if err != nil {
			return nil, err
		}
		resume = true

		call, ok := decodeToolCall(content)
		if !ok {
			return &Result{Output: decodeOutput(content), Steps: steps}, nil
		}

		step := ToolInvocation{Tool: call.Tool, Input: call.Input}
		tool, found := findTool(req.Tools, call.Tool)
		if !found {
			prompt = fmt.Sprintf("Tool %q is not available. Answer without it.", call.Tool)
			steps = append(steps, step)
			continue
		}

		output, err := tool.Invoke(ctx, call.Input)
		if err != nil {
			prompt = fmt.Sprintf("Tool %q failed: %v. Continue without its result or try another tool.", call.Tool, err)
			steps = append(steps, step)
			continue
		}

		step.Output = output
		steps = append(steps, step)

		observation, err := json.Marshal(output)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool output: %w", err)
		}
		prompt = fmt.Sprintf("Tool %q returned: %s\nContinue. Reply with another tool call or your final answer.", call.Tool, observation)
	}

	return nil, fmt.Errorf("no final answer after %d tool rounds", maxToolRounds)
}

// send makes one CLI invocation and returns the text content of the reply.
func (r *CLIRunner) send(ctx context.Context, prompt, sessionID string, resume bool, systemPrompt string) (string, error) {
	args := buildArgs(prompt, sessionID, resume, r.model, systemPrompt)

	cmd := newCommand(ctx, r.command, args...)
	stdout, stderr, err := executeCommand(ctx, cmd, r.procMgr)
	if err != nil {
		return "", fmt.Errorf("%s command failed: %w", r.command, err)
	}

	content, err := parseCLIResponse(stdout)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s response: %w (stderr: %s)", r.command, err, string(stderr))
	}
	return content, nil
}

// buildArgs constructs the CLI arguments. The first call in a session uses
// --session-id, subsequent calls use --resume.
func buildArgs(prompt, sessionID string, resume bool, model, systemPrompt string) []string {
	args := []string{"-p", prompt, "--output-format", "json"}

	if resume {
		args = append(args, "--resume", sessionID)
	} else {
		args = append(args, "--session-id", sessionID)
	}

	if model != "" {
		args = append(args, "--model", model)
	}
	if systemPrompt != "" {
		args = append(args, "--system-prompt", systemPrompt)
	}

	return args
}

// buildPrompt renders the request into the opening prompt: memory transcript,
// accumulated context, task input, and the tool-calling protocol.
func buildPrompt(req Request) string {
	var b strings.Builder

	if req.Memory != nil && len(req.Memory.Turns) > 0 {
		b.WriteString("Earlier conversation:\n")
		for _, turn := range req.Memory.Turns {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}

	if len(req.Context) > 0 {
		data, err := json.Marshal(req.Context)
		if err == nil {
			fmt.Fprintf(&b, "Context:\n%s\n\n", data)
		}
	}

	if len(req.Input) > 0 {
		data, err := json.Marshal(req.Input)
		if err == nil {
			fmt.Fprintf(&b, "Task:\n%s\n\n", data)
		}
	}

	if len(req.Tools) > 0 {
		b.WriteString("Available tools:\n")
		for _, tool := range req.Tools {
			fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
		}
		b.WriteString("\nTo use a tool, reply with only a JSON object: {\"tool\": \"<name>\", \"input\": {...}}.\n")
		b.WriteString("Otherwise reply with your final answer.\n")
	}

	return b.String()
}

// parseCLIResponse extracts the concatenated text content from CLI JSON output.
func parseCLIResponse(data []byte) (string, error) {
	var cr cliResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var content strings.Builder
	for _, item := range cr.Result.Content {
		if item.Type == "text" {
			content.WriteString(item.Text)
		}
	}

	return content.String(), nil
}

// decodeToolCall reports whether the reply is a tool-call object.
func decodeToolCall(content string) (toolCall, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return toolCall{}, false
	}

	var call toolCall
	if err := json.Unmarshal([]byte(trimmed), &call); err != nil {
		return toolCall{}, false
	}
	if call.Tool == "" {
		return toolCall{}, false
	}
	return call, true
}

// decodeOutput parses a final answer: JSON when the reply is valid JSON,
// otherwise the raw text.
func decodeOutput(content string) any {
	trimmed := strings.TrimSpace(content)
	var out any
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out
	}
	return content
}

func findTool(list []tools.Tool, name string) (tools.Tool, bool) {
	for _, tool := range list {
		if tool.Name == name {
			return tool, true
		}
	}
	return tools.Tool{}, false
}
