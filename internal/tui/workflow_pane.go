package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/conductor/internal/events"
)

// workflowProgress tracks one workflow's step counts.
type workflowProgress struct {
	id        string
	name      string
	total     int
	completed int
	failed    int
	pending   int
	status    string // "running", "completed", "failed"
}

// WorkflowPaneModel shows progress for recent workflows.
type WorkflowPaneModel struct {
	workflows []*workflowProgress // display order, oldest first
	byID      map[string]*workflowProgress
	width     int
	height    int
	focused   bool
}

// NewWorkflowPaneModel creates a new workflow pane model.
func NewWorkflowPaneModel() WorkflowPaneModel {
	return WorkflowPaneModel{
		byID: make(map[string]*workflowProgress),
	}
}

// Update handles messages for the workflow pane.
func (m WorkflowPaneModel) Update(msg tea.Msg) (WorkflowPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.WorkflowStartedEvent:
		if _, exists := m.byID[msg.ID]; !exists {
			wf := &workflowProgress{
				id:      msg.ID,
				name:    msg.Name,
				total:   msg.Steps,
				pending: msg.Steps,
				status:  "running",
			}
			m.byID[msg.ID] = wf
			m.workflows = append(m.workflows, wf)
		}

	case events.ProgressEvent:
		if wf, exists := m.byID[msg.ID]; exists {
			wf.total = msg.Total
			wf.completed = msg.Completed
			wf.failed = msg.Failed
			wf.pending = msg.Pending
		}

	case events.WorkflowCompletedEvent:
		if wf, exists := m.byID[msg.ID]; exists {
			wf.status = "completed"
		}

	case events.WorkflowFailedEvent:
		if wf, exists := m.byID[msg.ID]; exists {
			wf.status = "failed"
		}
	}

	return m, nil
}

// View renders the workflow pane.
func (m WorkflowPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Workflows")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if len(m.workflows) == 0 {
		b.WriteString(StyleStatusPending.Render("No workflows yet"))
	} else {
		// Most recent workflows first, capped to the pane height
		shown := 0
		for i := len(m.workflows) - 1; i >= 0 && shown < maxWorkflowRows(m.height); i-- {
			wf := m.workflows[i]
			b.WriteString(m.renderWorkflow(wf))
			b.WriteString("\n")
			shown++
		}
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// renderWorkflow renders one workflow's name, status icon, and progress bar.
func (m WorkflowPaneModel) renderWorkflow(wf *workflowProgress) string {
	var icon string
	switch wf.status {
	case "completed":
		icon = StyleStatusComplete.Render("✓")
	case "failed":
		icon = StyleStatusFailed.Render("✗")
	default:
		icon = StyleStatusRunning.Render("●")
	}

	name := wf.name
	if name == "" {
		name = wf.id
	}

	line := fmt.Sprintf("%s %s\n", icon, name)

	if wf.total > 0 {
		barWidth := min(m.width-8, 40)
		completedWidth := (wf.completed * barWidth) / wf.total
		failedWidth := (wf.failed * barWidth) / wf.total
		pendingWidth := barWidth - completedWidth - failedWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		line += fmt.Sprintf("  [%s]  %d/%d\n", bar, wf.completed, wf.total)
	}

	return line
}

// maxWorkflowRows bounds how many workflows fit in the pane.
func maxWorkflowRows(height int) int {
	rows := (height - 6) / 3
	if rows < 1 {
		rows = 1
	}
	return rows
}

// SetSize updates the pane dimensions.
func (m *WorkflowPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *WorkflowPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
