package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/conductor/internal/events"
)

// TaskState tracks one task's lifecycle for display.
type TaskState struct {
	TaskID    string
	Type      string
	AgentID   string
	Status    string // "pending", "running", "completed", "failed", "cancelled"
	Output    []string
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel shows the task list with an output viewport for the
// selected task.
type TaskPaneModel struct {
	tasks       map[string]*TaskState // taskID -> state
	taskOrder   []string              // insertion order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	vp := viewport.New(0, 0)
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: vp,
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			// Delegate other keys to viewport for scrolling
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskCreatedEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &TaskState{
				TaskID:  msg.ID,
				Type:    msg.Type,
				AgentID: msg.AgentID,
				Status:  "pending",
				Output:  []string{fmt.Sprintf("Routed to %s", msg.AgentID)},
			}
			m.taskOrder = append(m.taskOrder, msg.ID)
			if len(m.taskOrder) == 1 {
				m.selectedIdx = 0
				m.updateViewportContent()
			}
		}

	case events.TaskStartedEvent:
		task := m.ensure(msg.ID, msg.Type, msg.AgentID)
		task.Status = "running"
		task.StartTime = msg.Timestamp
		m.refreshIfSelected(msg.ID)

	case events.TaskCompletedEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Status = "completed"
			task.Duration = msg.Duration
			task.Output = append(task.Output, renderOutput(msg.Output),
				fmt.Sprintf("\n[Completed in %v]", msg.Duration))
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskFailedEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Status = "failed"
			task.Duration = msg.Duration
			task.Output = append(task.Output, fmt.Sprintf("\n[Failed: %v]", msg.Err))
			m.refreshIfSelected(msg.ID)
		}

	case events.TaskCancelledEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Status = "cancelled"
			task.Output = append(task.Output, "\n[Cancelled]")
			m.refreshIfSelected(msg.ID)
		}
	}

	return m, cmd
}

// ensure returns the tracked state for a task, creating it when the pane
// missed the created event (e.g. subscribed mid-run).
func (m *TaskPaneModel) ensure(taskID, taskType, agentID string) *TaskState {
	if task, exists := m.tasks[taskID]; exists {
		return task
	}
	task := &TaskState{TaskID: taskID, Type: taskType, AgentID: agentID, Status: "pending"}
	m.tasks[taskID] = task
	m.taskOrder = append(m.taskOrder, taskID)
	return task
}

func (m *TaskPaneModel) refreshIfSelected(taskID string) {
	if m.getSelectedTaskID() == taskID {
		m.updateViewportContent()
	}
}

// renderOutput pretty-prints a task output value for the viewport.
func renderOutput(output any) string {
	switch v := output.(type) {
	case string:
		return v
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 25
	viewportWidth := m.width - listWidth - 4 // account for borders and padding

	listContent := m.renderTaskList(listWidth)
	viewportContent := m.viewport.View()

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		listContent,
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(viewportContent),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderTaskList renders the task list column.
func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, taskID := range m.taskOrder {
			task := m.tasks[taskID]
			icon := m.StatusIcon(task.Status)
			label := task.Type
			if len(label) > width-6 {
				label = label[:width-9] + "..."
			}

			line := fmt.Sprintf("%s %s", icon, label)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func (m TaskPaneModel) StatusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "cancelled":
		return StyleStatusCancelled.Render("⊘")
	default:
		return StyleStatusPending.Render("○")
	}
}

// getSelectedTaskID returns the task ID of the currently selected row.
func (m TaskPaneModel) getSelectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

// updateViewportContent fills the viewport with the selected task's output.
func (m *TaskPaneModel) updateViewportContent() {
	taskID := m.getSelectedTaskID()
	if taskID == "" {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	task, exists := m.tasks[taskID]
	if !exists {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	header := fmt.Sprintf("%s  (%s → %s)\n\n", task.TaskID, task.Type, task.AgentID)
	m.viewport.SetContent(header + strings.Join(task.Output, "\n"))
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *TaskPaneModel) resizeViewport() {
	listWidth := 25
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
