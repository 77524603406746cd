package tui

import (
	"context"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/domain"
)

const (
	editFieldTitle = iota
	editFieldDescription
)

// editedMsg reports the end of one task edit.
type editedMsg struct {
	task domain.Task
	err  error
}

// newModalInput constructs one form input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// startEdit opens the edit form for the selected task.
func (m Model) startEdit() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskValue()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	m.editing = true
	m.editTaskID = task.ID
	m.editInputs = []textinput.Model{
		newModalInput("title: ", "task title", task.Title, domain.MaxTitleLength),
		newModalInput("description: ", "markdown, empty clears", task.Description, domain.MaxDescriptionLength),
	}
	m.status = "editing " + truncate(task.Title, 32) + " • tab next field • enter save • esc cancel"
	return m, m.focusEditField(editFieldTitle)
}

// focusEditField focuses one edit form input.
func (m *Model) focusEditField(idx int) tea.Cmd {
	if len(m.editInputs) == 0 {
		return nil
	}
	idx = clamp(idx, 0, len(m.editInputs)-1)
	m.editFocus = idx
	for i := range m.editInputs {
		m.editInputs[i].Blur()
	}
	return m.editInputs[idx].Focus()
}

// closeEdit drops the edit form state.
func (m *Model) closeEdit() {
	m.editing = false
	m.editTaskID = ""
	m.editInputs = nil
	m.editFocus = 0
}

// handleEditKey routes key presses while the edit form is open. Printable
// keys go to the focused input, so board bindings like q are not active.
func (m Model) handleEditKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case msg.Code == tea.KeyEscape || msg.String() == "esc":
		m.closeEdit()
		m.status = "edit cancelled"
		return m, nil
	case msg.Code == tea.KeyTab || msg.String() == "tab":
		return m, m.focusEditField((m.editFocus + 1) % len(m.editInputs))
	case msg.String() == "shift+tab":
		return m, m.focusEditField((m.editFocus + len(m.editInputs) - 1) % len(m.editInputs))
	case msg.Code == tea.KeyEnter || msg.String() == "enter":
		return m.submitEdit()
	}
	var cmd tea.Cmd
	m.editInputs[m.editFocus], cmd = m.editInputs[m.editFocus].Update(msg)
	return m, cmd
}

// submitEdit saves the form through the store in the background.
func (m Model) submitEdit() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.editInputs[editFieldTitle].Value())
	if title == "" {
		m.status = "title is required"
		return m, m.focusEditField(editFieldTitle)
	}
	description := m.editInputs[editFieldDescription].Value()
	store, owner, taskID := m.store, m.coord.OwnerID(), m.editTaskID
	m.closeEdit()
	m.status = "saving..."
	return m, func() tea.Msg {
		task, err := store.UpdateTask(context.Background(), owner, taskID, app.TaskPatch{
			Title:       &title,
			Description: &description,
		})
		return editedMsg{task: task, err: err}
	}
}

// renderEditPane draws the open edit form.
func (m Model) renderEditPane() string {
	width := max(24, m.width-4)
	heading := lipgloss.NewStyle().Bold(true).Render("edit task") +
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  "+m.editTaskID)
	lines := []string{heading}
	for _, in := range m.editInputs {
		lines = append(lines, in.View())
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}
