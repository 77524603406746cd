package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/domain"
)

// signalKind names one coordinator notification.
type signalKind string

const (
	signalReorderSucceeded signalKind = "reorder_succeeded"
	signalMoveSucceeded    signalKind = "move_succeeded"
	signalSyncFailed       signalKind = "sync_failed"
)

// signalBuffer bounds queued notifications; extra signals are dropped
// rather than blocking a sync.
const signalBuffer = 16

// signalMsg carries one coordinator notification into the update loop.
type signalMsg struct {
	kind   signalKind
	reason error
}

// channelNotifier forwards coordinator signals to the board's channel.
type channelNotifier struct {
	ch chan<- signalMsg
}

func (n channelNotifier) ReorderSucceeded() { n.send(signalMsg{kind: signalReorderSucceeded}) }
func (n channelNotifier) MoveSucceeded()    { n.send(signalMsg{kind: signalMoveSucceeded}) }
func (n channelNotifier) SyncFailed(reason error) {
	n.send(signalMsg{kind: signalSyncFailed, reason: reason})
}

func (n channelNotifier) send(msg signalMsg) {
	select {
	case n.ch <- msg:
	default:
	}
}

// loadedMsg reports the end of one board refresh.
type loadedMsg struct {
	err error
}

// syncedMsg reports the end of one persisted drop.
type syncedMsg struct {
	result app.ApplyResult
}

// begunMsg carries a drop that was planned off the update loop.
type begunMsg struct {
	target  app.DragLocation
	pending *app.PendingSync
	err     error
}

// statusMsg replaces the status line.
type statusMsg struct {
	status string
}

// dragState tracks a grabbed task and its current drop target.
type dragState struct {
	taskID string
	source app.DragLocation
	target app.DragLocation
}

// Model is the terminal board for one owner.
type Model struct {
	store    app.TaskStore
	coord    *app.SyncCoordinator
	signals  chan signalMsg
	syncOpts []app.CoordinatorOption

	ready  bool
	width  int
	height int
	err    error
	status string

	help help.Model
	keys keyMap

	board          domain.BoardState
	selectedColumn int
	selectedTask   int

	dragging bool
	drag     dragState
	inFlight int

	editing    bool
	editTaskID string
	editInputs []textinput.Model
	editFocus  int

	showDescription bool
	descriptions    *descriptionRenderer
	copyText        func(string) error
}

// NewModel constructs a board over store for ownerID. The board is empty
// until Init loads it.
func NewModel(store app.TaskStore, ownerID string, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		store:        store,
		signals:      make(chan signalMsg, signalBuffer),
		status:       "loading...",
		help:         h,
		keys:         newKeyMap(),
		descriptions: &descriptionRenderer{},
		copyText:     defaultClipboard,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.coord = app.NewSyncCoordinator(store, ownerID, channelNotifier{ch: m.signals}, m.syncOpts...)
	m.board = m.coord.Board()
	return m
}

// Init loads the board and starts listening for sync signals.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh, m.waitForSignal)
}

// Update applies one message to the board.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.board = m.coord.Board()
		m.clampSelection()
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		if m.status == "" || m.status == "loading..." || m.status == "reloading..." {
			m.status = "ready"
		}
		return m, nil

	case syncedMsg:
		m.inFlight = max(0, m.inFlight-1)
		m.board = m.coord.Board()
		m.clampSelection()
		if msg.result.RefreshErr != nil {
			m.status = "refresh failed: " + msg.result.RefreshErr.Error()
		}
		return m, nil

	case signalMsg:
		m.status = signalStatus(msg)
		return m, m.waitForSignal

	case begunMsg:
		return m.installDrop(msg.target, msg.pending, msg.err)

	case editedMsg:
		if msg.err != nil {
			m.status = "edit failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "task updated"
		return m, m.refresh

	case statusMsg:
		m.status = msg.status
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

// refresh reloads the board from the store.
func (m Model) refresh() tea.Msg {
	return loadedMsg{err: m.coord.Refresh(context.Background())}
}

// waitForSignal blocks until the coordinator emits a signal.
func (m Model) waitForSignal() tea.Msg {
	return <-m.signals
}

func signalStatus(msg signalMsg) string {
	switch msg.kind {
	case signalReorderSucceeded:
		return "order saved"
	case signalMoveSucceeded:
		return "task moved"
	case signalSyncFailed:
		if msg.reason != nil {
			return "sync failed, board reloaded: " + msg.reason.Error()
		}
		return "sync failed, board reloaded"
	default:
		return string(msg.kind)
	}
}

// handleKey routes key presses for normal and drag modes.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		return m.handleEditKey(msg)
	}
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.err != nil {
		if key.Matches(msg, m.keys.reload) {
			m.err = nil
			m.status = "reloading..."
			return m, m.refresh
		}
		return m, nil
	}
	if m.dragging {
		return m.handleDragKey(msg)
	}

	categories := domain.Categories()
	switch {
	case key.Matches(msg, m.keys.left):
		m.selectedColumn = clamp(m.selectedColumn-1, 0, len(categories)-1)
		m.clampSelection()
	case key.Matches(msg, m.keys.right):
		m.selectedColumn = clamp(m.selectedColumn+1, 0, len(categories)-1)
		m.clampSelection()
	case key.Matches(msg, m.keys.up):
		m.selectedTask = clamp(m.selectedTask-1, 0, m.columnLen(m.selectedColumn)-1)
	case key.Matches(msg, m.keys.down):
		m.selectedTask = clamp(m.selectedTask+1, 0, m.columnLen(m.selectedColumn)-1)
	case key.Matches(msg, m.keys.grab):
		task, ok := m.selectedTaskValue()
		if !ok {
			m.status = "nothing to grab"
			return m, nil
		}
		loc := app.DragLocation{Category: categories[m.selectedColumn], Index: m.selectedTask}
		m.dragging = true
		m.drag = dragState{taskID: task.ID, source: loc, target: loc}
		m.status = "moving " + truncate(task.Title, 32) + " • enter drop • esc cancel"
	case key.Matches(msg, m.keys.edit):
		return m.startEdit()
	case key.Matches(msg, m.keys.description):
		m.showDescription = !m.showDescription
	case key.Matches(msg, m.keys.copyID):
		task, ok := m.selectedTaskValue()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m, m.copyCmd(task.ID)
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.refresh
	}
	return m, nil
}

// handleDragKey moves the drop target of the grabbed task.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	categories := domain.Categories()
	col := slices.Index(categories, m.drag.target.Category)
	switch {
	case key.Matches(msg, m.keys.left), key.Matches(msg, m.keys.right):
		delta := -1
		if key.Matches(msg, m.keys.right) {
			delta = 1
		}
		next := clamp(col+delta, 0, len(categories)-1)
		if next != col {
			m.drag.target.Category = categories[next]
			m.drag.target.Index = clamp(m.drag.target.Index, 0, m.dropLimit(m.drag.target.Category))
		}
	case key.Matches(msg, m.keys.up):
		m.drag.target.Index = clamp(m.drag.target.Index-1, 0, m.dropLimit(m.drag.target.Category))
	case key.Matches(msg, m.keys.down):
		m.drag.target.Index = clamp(m.drag.target.Index+1, 0, m.dropLimit(m.drag.target.Category))
	case key.Matches(msg, m.keys.drop):
		return m.dropGrabbed()
	case key.Matches(msg, m.keys.cancel):
		return m.cancelDrag()
	}
	return m, nil
}

// dropLimit returns the largest valid drop index in category.
func (m Model) dropLimit(category domain.Category) int {
	n := m.board.ListFor(category).Len()
	if category == m.drag.source.Category {
		return max(0, n-1)
	}
	return n
}

// dropGrabbed installs the planned board and persists it in the background.
// With serialized syncs Begin waits for the previous drop, so it runs as a
// command instead of blocking the update loop.
func (m Model) dropGrabbed() (tea.Model, tea.Cmd) {
	target := m.drag.target
	ev := app.DragEvent{TaskID: m.drag.taskID, Source: m.drag.source, Destination: &target}
	m.dragging = false

	if m.coord.Serialized() {
		coord := m.coord
		m.status = "waiting for previous sync..."
		return m, func() tea.Msg {
			pending, err := coord.Begin(ev)
			return begunMsg{target: target, pending: pending, err: err}
		}
	}
	pending, err := m.coord.Begin(ev)
	return m.installDrop(target, pending, err)
}

// installDrop shows the outcome of one Begin call.
func (m Model) installDrop(target app.DragLocation, pending *app.PendingSync, err error) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(err, app.ErrNoOp):
		m.status = "no change"
		return m, nil
	case err != nil:
		m.status = "drop rejected: " + err.Error()
		m.board = m.coord.Board()
		m.clampSelection()
		return m, m.refresh
	}

	m.board = m.coord.Board()
	m.selectedColumn = slices.Index(domain.Categories(), target.Category)
	m.selectedTask = target.Index
	m.clampSelection()
	m.inFlight++
	m.status = "syncing..."
	return m, persistCmd(pending)
}

// cancelDrag ends the drag without touching the board.
func (m Model) cancelDrag() (tea.Model, tea.Cmd) {
	m.dragging = false
	m.status = "drag cancelled"
	return m, nil
}

func persistCmd(pending *app.PendingSync) tea.Cmd {
	return func() tea.Msg {
		return syncedMsg{result: pending.Persist(context.Background())}
	}
}

// copyCmd writes one task id to the clipboard.
func (m Model) copyCmd(taskID string) tea.Cmd {
	write := m.copyText
	return func() tea.Msg {
		if err := write(taskID); err != nil {
			return statusMsg{status: "copy failed: " + err.Error()}
		}
		return statusMsg{status: "copied " + taskID}
	}
}

// columnLen returns the task count of one board column.
func (m Model) columnLen(col int) int {
	categories := domain.Categories()
	if col < 0 || col >= len(categories) {
		return 0
	}
	return m.board.ListFor(categories[col]).Len()
}

// selectedTaskValue returns the task under the cursor.
func (m Model) selectedTaskValue() (domain.Task, bool) {
	categories := domain.Categories()
	if m.selectedColumn < 0 || m.selectedColumn >= len(categories) {
		return domain.Task{}, false
	}
	task, err := m.board.ListFor(categories[m.selectedColumn]).At(m.selectedTask)
	if err != nil {
		return domain.Task{}, false
	}
	return task, true
}

// clampSelection keeps the cursor inside the board.
func (m *Model) clampSelection() {
	m.selectedColumn = clamp(m.selectedColumn, 0, len(domain.Categories())-1)
	m.selectedTask = clamp(m.selectedTask, 0, m.columnLen(m.selectedColumn)-1)
}

// previewBoard returns the board as it would look if the grabbed task were
// dropped at its current target.
func (m Model) previewBoard() domain.BoardState {
	if !m.dragging {
		return m.board
	}
	target := m.drag.target
	plan, err := app.PlanReorder(m.board, app.DragEvent{
		TaskID:      m.drag.taskID,
		Source:      m.drag.source,
		Destination: &target,
	})
	if err != nil {
		return m.board
	}
	return plan.Board
}

// View renders the board.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render builds the full-screen board text.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("tracktask") + "  " + m.coord.OwnerID()
	if m.dragging {
		header += statusStyle.Render("  [moving]")
	}
	if m.inFlight > 0 {
		header += statusStyle.Render(fmt.Sprintf("  syncing: %d", m.inFlight))
	}

	var pane string
	switch {
	case m.editing:
		pane = m.renderEditPane()
	case m.showDescription:
		pane = m.renderDescriptionPane()
	}

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	statusLine := ""
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		statusLine = statusStyle.Render(m.status)
	}

	reserved := 2 + lipgloss.Height(helpLine) + 1
	if pane != "" {
		reserved += lipgloss.Height(pane)
	}
	colHeight := max(3, m.height-reserved)
	body := m.renderColumns(colHeight)

	sections := []string{header, "", body}
	if pane != "" {
		sections = append(sections, pane)
	}
	sections = append(sections, statusLine)
	content := strings.Join(sections, "\n")
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

// renderColumns draws the three category columns.
func (m Model) renderColumns(height int) string {
	board := m.previewBoard()
	categories := domain.Categories()
	colWidth := max(12, m.width/len(categories)-5)

	accentColor := lipgloss.Color("62")
	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("239")).
		Padding(0, 1).
		MarginRight(1).
		Width(colWidth)
	selColStyle := baseColStyle.BorderForeground(accentColor)
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	grabbedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("237")).Bold(true)

	activeCol := m.selectedColumn
	if m.dragging {
		activeCol = slices.Index(categories, m.drag.target.Category)
	}

	views := make([]string, 0, len(categories))
	for colIdx, category := range categories {
		tasks := board.ListFor(category).Tasks()
		lines := []string{colTitle.Render(fmt.Sprintf("%s (%d)", category, len(tasks)))}
		if len(tasks) == 0 {
			lines = append(lines, emptyStyle.Render("(empty)"))
		}
		for taskIdx, task := range tasks {
			title := truncate(task.Title, max(1, colWidth-6))
			switch {
			case m.dragging && task.ID == m.drag.taskID:
				lines = append(lines, grabbedStyle.Render("▸ "+title))
			case !m.dragging && colIdx == m.selectedColumn && taskIdx == m.selectedTask:
				lines = append(lines, selectedStyle.Render("│ "+title))
			default:
				lines = append(lines, "  "+title)
			}
		}
		content := fitLines(strings.Join(lines, "\n"), max(1, height-2))
		if colIdx == activeCol {
			views = append(views, selColStyle.Render(content))
		} else {
			views = append(views, baseColStyle.Render(content))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// renderDescriptionPane draws the selected task's markdown description.
func (m Model) renderDescriptionPane() string {
	task, ok := m.selectedTaskValue()
	if !ok {
		return ""
	}
	width := max(24, m.width-4)
	body := m.descriptions.render(task.ID, task.Description, width-4)
	heading := lipgloss.NewStyle().Bold(true).Render(truncate(task.Title, width-4)) +
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  "+task.ID)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("239")).
		Padding(0, 1).
		Width(width).
		Render(heading + "\n" + body)
}

// clamp bounds v to [minV, maxV], preferring minV when the range is empty.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or cuts content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
