package reasoning

import (
	"context"
	"strings"
	"testing"

	"github.com/aristath/conductor/internal/memory"
	"github.com/aristath/conductor/internal/tools"
)

// TestBuildArgs_FirstCall verifies the opening call uses --session-id.
func TestBuildArgs_FirstCall(t *testing.T) {
	args := buildArgs("do the thing", "session-1", false, "", "")

	assertArgPair(t, args, "-p", "do the thing")
	assertArgPair(t, args, "--output-format", "json")
	assertArgPair(t, args, "--session-id", "session-1")
	if containsArg(args, "--resume") {
		t.Error("first call should not use --resume")
	}
	if containsArg(args, "--model") || containsArg(args, "--system-prompt") {
		t.Error("empty model and system prompt should be omitted")
	}
}

// TestBuildArgs_ResumeWithOptions verifies follow-up calls resume the session
// and carry the optional flags.
func TestBuildArgs_ResumeWithOptions(t *testing.T) {
	args := buildArgs("tool result", "session-1", true, "opus", "You write Go.")

	assertArgPair(t, args, "--resume", "session-1")
	assertArgPair(t, args, "--model", "opus")
	assertArgPair(t, args, "--system-prompt", "You write Go.")
	if containsArg(args, "--session-id") {
		t.Error("resumed call should not use --session-id")
	}
}

func TestParseCLIResponse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{
			name: "single text block",
			data: `{"session_id":"s1","result":{"content":[{"type":"text","text":"hello"}]}}`,
			want: "hello",
		},
		{
			name: "concatenates text blocks and skips others",
			data: `{"result":{"content":[{"type":"text","text":"a"},{"type":"image","text":"x"},{"type":"text","text":"b"}]}}`,
			want: "ab",
		},
		{
			name: "empty content",
			data: `{"result":{"content":[]}}`,
			want: "",
		},
		{
			name:    "invalid JSON",
			data:    `not json at all`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCLIResponse([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDecodeToolCall(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantTool string
		wantOK   bool
	}{
		{
			name:     "valid tool call",
			content:  `{"tool":"search","input":{"query":"go"}}`,
			wantTool: "search",
			wantOK:   true,
		},
		{
			name:     "tool call with surrounding whitespace",
			content:  "  {\"tool\":\"search\",\"input\":{}}\n",
			wantTool: "search",
			wantOK:   true,
		},
		{
			name:    "plain text answer",
			content: "The answer is 42.",
			wantOK:  false,
		},
		{
			name:    "JSON object without tool field",
			content: `{"answer": 42}`,
			wantOK:  false,
		},
		{
			name:    "malformed JSON",
			content: `{"tool": "search"`,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := decodeToolCall(tt.content)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && call.Tool != tt.wantTool {
				t.Errorf("expected tool %q, got %q", tt.wantTool, call.Tool)
			}
		})
	}
}

func TestDecodeOutput(t *testing.T) {
	if out := decodeOutput(`{"answer": 42}`); out.(map[string]any)["answer"] != float64(42) {
		t.Errorf("expected parsed JSON object, got %v", out)
	}
	if out := decodeOutput("plain text"); out != "plain text" {
		t.Errorf("expected raw string, got %v", out)
	}
}

func TestBuildPrompt_IncludesAllSections(t *testing.T) {
	req := Request{
		Input:   map[string]any{"description": "summarize the report"},
		Context: map[string]any{"previousResult": "draft notes"},
		Tools: []tools.Tool{
			{Name: "search", Description: "Search the web", Invoke: func(ctx context.Context, in map[string]any) (map[string]any, error) {
				return nil, nil
			}},
		},
		Memory: &memory.Handle{
			Ref: "session-1",
			Turns: []memory.Turn{
				{Role: "user", Content: "earlier question"},
			},
		},
	}

	prompt := buildPrompt(req)

	for _, want := range []string{
		"earlier question",
		"previousResult",
		"summarize the report",
		"search: Search the web",
		`{"tool": "<name>", "input": {...}}`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPrompt_NoToolsNoProtocol(t *testing.T) {
	prompt := buildPrompt(Request{Input: map[string]any{"description": "think"}})
	if strings.Contains(prompt, "Available tools") {
		t.Error("expected no tool section without tools")
	}
}

// assertArgPair fails unless flag is immediately followed by value in args.
func assertArgPair(t *testing.T, args []string, flag, value string) {
	t.Helper()
	for i, a := range args {
		if a == flag {
			if i+1 >= len(args) || args[i+1] != value {
				t.Errorf("expected %s %q, got %v", flag, value, args)
			}
			return
		}
	}
	t.Errorf("flag %s not found in %v", flag, args)
}

func containsArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
