package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	plannerdto "studydesk/internal/modules/planner/dto"
	sessiondto "studydesk/internal/modules/session/dto"
	syncdto "studydesk/internal/modules/syncstate/dto"
	apperrors "studydesk/internal/platform/errors"
	"studydesk/internal/ui/components"
	"studydesk/internal/ui/theme"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type sessionPort interface {
	Status(ctx context.Context) sessiondto.Status
	Start(ctx context.Context, subjectID, subjectName, taskID, taskLabel string) (sessiondto.Status, error)
	Toggle(ctx context.Context) (sessiondto.Status, error)
	End(ctx context.Context) (sessiondto.RecordOutput, error)
}

type plannerPort interface {
	Today(ctx context.Context) (plannerdto.DayOutput, bool, error)
	SetCompleted(ctx context.Context, planRef, taskRef string, done bool) (plannerdto.PlanOutput, error)
}

type syncPort interface {
	Sync(ctx context.Context) syncdto.SyncReport
}

const tickInterval = time.Second

// ─── async messages ───────────────────────────────────────────────────────────

type tickMsg time.Time

type statusMsg struct{ status sessiondto.Status }

type sessionChangedMsg struct {
	verb   string
	status sessiondto.Status
	err    error
}

type sessionEndedMsg struct {
	record sessiondto.RecordOutput
	err    error
}

type todayMsg struct {
	day plannerdto.DayOutput
	ok  bool
	err error
}

type taskToggledMsg struct {
	name string
	done bool
	err  error
}

type syncedMsg struct{ report syncdto.SyncReport }

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Start   key.Binding
	Pause   key.Binding
	End     key.Binding
	Refresh key.Binding
	Up      key.Binding
	Down    key.Binding
	Done    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/continue")),
		End:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "sync")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Done:    key.NewBinding(key.WithKeys("x", " "), key.WithHelp("x", "toggle done")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Pause, k.End, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Pause, k.End},
		{k.Up, k.Down, k.Done},
		{k.Refresh, k.Help, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the timer screen: the active session on the left and today's
// planner slots on the right.
type Model struct {
	userID  string
	session sessionPort
	planner plannerPort
	sync    syncPort

	status   sessiondto.Status
	today    plannerdto.DayOutput
	hasPlan  bool
	cursor   int
	keys     keyMap
	help     help.Model
	showHelp bool
	prompt   components.Prompt
	message  string
	width    int
	height   int
}

// ─── constructor ─────────────────────────────────────────────────────────────

func NewModel(userID string, session sessionPort, planner plannerPort, sync syncPort) Model {
	return Model{
		userID:  userID,
		session: session,
		planner: planner,
		sync:    sync,
		keys:    defaultKeys(),
		help:    help.New(),
		prompt:  components.NewPrompt("Start session", "subject or task name"),
		message: "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.statusCmd(), m.todayCmd(), tick())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		// The clock keeps running while the prompt is open.
		return m, tea.Batch(m.statusCmd(), tick())

	case statusMsg:
		m.status = msg.status
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.prompt.SetWidth(min(m.width-4, 64))
		m.help.Width = m.width
		return m, nil
	}

	// The prompt takes keys and its own cursor messages while open.
	if _, isKey := msg.(tea.KeyMsg); isKey && m.prompt.Visible() {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case sessionChangedMsg:
		if msg.err != nil {
			m.message = msg.verb + ": " + describe(msg.err)
			return m, nil
		}
		m.status = msg.status
		m.message = msg.verb
		if msg.status.Active != nil {
			m.message += ": " + msg.status.Active.Label
		}

	case sessionEndedMsg:
		if msg.err != nil {
			m.message = "end: " + describe(msg.err)
			return m, nil
		}
		m.status = sessiondto.Status{}
		m.message = fmt.Sprintf("logged %s (%.1f min)", msg.record.Label, msg.record.DurationMinutes)

	case todayMsg:
		if msg.err != nil {
			m.message = "planner: " + msg.err.Error()
			return m, nil
		}
		m.today = msg.day
		m.hasPlan = msg.ok
		if m.cursor >= len(m.today.Tasks) {
			m.cursor = max(len(m.today.Tasks)-1, 0)
		}

	case taskToggledMsg:
		if msg.err != nil {
			m.message = "planner: " + msg.err.Error()
			return m, nil
		}
		if msg.done {
			m.message = "done: " + msg.name
		} else {
			m.message = "reopened: " + msg.name
		}
		return m, m.todayCmd()

	case syncedMsg:
		if msg.report.RemoteErr != nil {
			m.message = "sync: offline, using local data"
		} else {
			m.message = fmt.Sprintf("synced (%d adopted)", len(msg.report.Adopted()))
		}
		return m, tea.Batch(m.statusCmd(), m.todayCmd())

	case components.PromptSubmitMsg:
		return m, m.startCmd(msg.Input)

	case components.PromptCancelMsg:
		m.message = "ready"

	case tea.KeyMsg:
		if m.showHelp {
			if key.Matches(msg, m.keys.Help) || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
		case key.Matches(msg, m.keys.Start):
			if m.status.Active != nil {
				m.message = "start: " + describe(apperrors.ErrActiveSessionExists)
				return m, nil
			}
			cmd := m.prompt.Open(m.selectedTaskName(), m.taskNames())
			return m, cmd
		case key.Matches(msg, m.keys.Pause):
			return m, m.toggleCmd()
		case key.Matches(msg, m.keys.End):
			return m, m.endCmd()
		case key.Matches(msg, m.keys.Refresh):
			m.message = "syncing…"
			return m, m.syncCmd()
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.today.Tasks)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Done):
			if task, ok := m.selectedTask(); ok {
				return m, m.toggleTaskCmd(task)
			}
		}

	default:
		if m.prompt.Visible() {
			var cmd tea.Cmd
			m.prompt, cmd = m.prompt.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	contentH := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).Render(m.help.View(m.keys))
	case m.prompt.Visible():
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center, m.prompt.View())
	default:
		paneW := max(m.width/2-2, 24)
		content = lipgloss.JoinHorizontal(lipgloss.Top,
			theme.PaneActive.Width(paneW).Render(m.renderTimer()),
			theme.Pane.Width(paneW).Render(m.renderToday()),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (m Model) renderHeader() string {
	return theme.Title.Render("studydesk") + theme.Muted.Render("  "+m.userID)
}

func (m Model) renderTimer() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Timer") + "\n\n")
	active := m.status.Active
	if active == nil {
		sb.WriteString(theme.Muted.Render(FormatElapsed(0)) + "\n")
		sb.WriteString(theme.Muted.Render("idle, press s to start"))
		return sb.String()
	}
	clock := theme.Running
	state := "running"
	if m.status.IsPaused {
		clock = theme.Paused
		state = "paused"
	}
	sb.WriteString(clock.Render(FormatElapsed(m.status.ElapsedSeconds)) + "  " + theme.Muted.Render(state) + "\n")
	sb.WriteString(theme.Hot.Render(active.Label) + "\n")
	if active.SubjectName != "" && active.TaskLabel != "" {
		sb.WriteString(theme.Muted.Render(active.SubjectName) + "\n")
	}
	sb.WriteString(theme.Muted.Render("since " + active.StartTime.Local().Format("15:04")))
	return sb.String()
}

func (m Model) renderToday() string {
	var sb strings.Builder
	if !m.hasPlan {
		sb.WriteString(theme.Title.Render("Today") + "\n\n")
		sb.WriteString(theme.Muted.Render("no study plan"))
		return sb.String()
	}
	sb.WriteString(theme.Title.Render(fmt.Sprintf("%s · day %d/%d", m.today.PlanName, m.today.Day, m.today.TotalDays)) + "\n")
	sb.WriteString(theme.Muted.Render(fmt.Sprintf("%d of %d tasks done", m.today.Completed, m.today.Total)) + "\n\n")
	if len(m.today.Tasks) == 0 {
		sb.WriteString(theme.Muted.Render("nothing scheduled"))
		return sb.String()
	}
	for i, task := range m.today.Tasks {
		box := "[ ]"
		name := task.Name
		style := lipgloss.NewStyle()
		if task.Completed {
			box = "[x]"
			style = theme.Done
		}
		prefix := "  "
		if i == m.cursor {
			prefix = theme.Selected.Render("› ")
		}
		sb.WriteString(prefix + box + " " + style.Render(name) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) renderFooter() string {
	left := m.message
	right := m.help.ShortHelpView(m.keys.ShortHelp())
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// FormatElapsed renders seconds as H:MM:SS.
func FormatElapsed(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
}

func describe(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrActiveSessionExists):
		return "a session is already running"
	case errors.Is(err, apperrors.ErrNoActiveSession):
		return "no active session"
	default:
		return err.Error()
	}
}

// ─── selection ───────────────────────────────────────────────────────────────

func (m Model) selectedTask() (plannerdto.TaskOutput, bool) {
	if !m.hasPlan || m.cursor < 0 || m.cursor >= len(m.today.Tasks) {
		return plannerdto.TaskOutput{}, false
	}
	return m.today.Tasks[m.cursor], true
}

func (m Model) selectedTaskName() string {
	if task, ok := m.selectedTask(); ok && !task.Completed {
		return task.Name
	}
	return ""
}

func (m Model) taskNames() []string {
	names := make([]string, 0, len(m.today.Tasks))
	for _, task := range m.today.Tasks {
		if !task.Completed {
			names = append(names, task.Name)
		}
	}
	return names
}

// taskNamed finds a slot of today by case-insensitive name.
func (m Model) taskNamed(name string) (plannerdto.TaskOutput, bool) {
	for _, task := range m.today.Tasks {
		if strings.EqualFold(task.Name, name) {
			return task, true
		}
	}
	return plannerdto.TaskOutput{}, false
}

// ─── commands ────────────────────────────────────────────────────────────────

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) statusCmd() tea.Cmd {
	return func() tea.Msg {
		return statusMsg{status: m.session.Status(context.Background())}
	}
}

func (m Model) todayCmd() tea.Cmd {
	if m.planner == nil {
		return nil
	}
	return func() tea.Msg {
		day, ok, err := m.planner.Today(context.Background())
		return todayMsg{day: day, ok: ok, err: err}
	}
}

// startCmd starts a session for input. A name matching one of today's slots
// links the session to that task.
func (m Model) startCmd(input string) tea.Cmd {
	var taskID, taskLabel string
	if task, ok := m.taskNamed(input); ok {
		taskID, taskLabel = task.ID, task.Name
	}
	subject := input
	if taskID != "" && m.hasPlan {
		subject = m.today.PlanName
	}
	return func() tea.Msg {
		status, err := m.session.Start(context.Background(), "", subject, taskID, taskLabel)
		return sessionChangedMsg{verb: "started", status: status, err: err}
	}
}

func (m Model) toggleCmd() tea.Cmd {
	paused := m.status.IsPaused
	return func() tea.Msg {
		status, err := m.session.Toggle(context.Background())
		verb := "paused"
		switch {
		case err != nil:
			verb = "pause"
		case paused:
			verb = "continued"
		}
		return sessionChangedMsg{verb: verb, status: status, err: err}
	}
}

func (m Model) endCmd() tea.Cmd {
	return func() tea.Msg {
		record, err := m.session.End(context.Background())
		return sessionEndedMsg{record: record, err: err}
	}
}

func (m Model) toggleTaskCmd(task plannerdto.TaskOutput) tea.Cmd {
	planID := m.today.PlanID
	return func() tea.Msg {
		_, err := m.planner.SetCompleted(context.Background(), planID, task.ID, !task.Completed)
		return taskToggledMsg{name: task.Name, done: !task.Completed, err: err}
	}
}

func (m Model) syncCmd() tea.Cmd {
	return func() tea.Msg {
		return syncedMsg{report: m.sync.Sync(context.Background())}
	}
}
