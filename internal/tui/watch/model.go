package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/buildmaster/internal/api"
	"github.com/mattjoyce/buildmaster/internal/events"
)

const (
	maxEventLog    = 50
	healthInterval = 5 * time.Second
	reconnectDelay = 3 * time.Second
)

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	client *Client

	width  int
	height int

	health   HealthState
	builders []api.BuilderSummary
	eventLog []events.Event

	table    table.Model
	output   viewport.Model
	selected string
	theme    Theme

	hubEvents chan events.Event
	lastError string
	now       func() time.Time
}

// New creates a watch model for the API at apiURL.
func New(apiURL string) *Model {
	return &Model{
		client:    NewClient(apiURL),
		table:     newBuilderTable(),
		output:    viewport.New(0, 0),
		theme:     NewDefaultTheme(),
		hubEvents: make(chan events.Event, 100),
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.client, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		fetchHealth(m.client),
		fetchBuilders(m.client),
		tick(),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.selected != "" {
				return m, redeploy(m.client, m.selected)
			}
			return m, nil
		case "x":
			if m.selected != "" {
				return m, terminate(m.client, m.selected)
			}
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, tea.Batch(cmd, m.syncSelection())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(m.width - 6)
		m.output.Width = m.width - 6
		m.output.Height = m.height / 3

	case tickMsg:
		// Output of a running builder keeps growing; poll the selected one.
		if m.selected != "" {
			return m, tea.Batch(tick(), fetchOutput(m.client, m.selected))
		}
		return m, tick()

	case eventMsg:
		e := events.Event(msg)
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}
		m.health.LastEvent = m.now()
		m.health.Connected = true
		m.lastError = ""

		cmds := []tea.Cmd{receiveNextEvent(m.hubEvents)}
		var known bool
		m.builders, known = applyEvent(m.builders, e)
		if known {
			m.table.SetRows(builderRows(m.builders))
		} else {
			cmds = append(cmds, fetchBuilders(m.client))
		}
		if e.Builder != "" && e.Builder == m.selected {
			cmds = append(cmds, fetchOutput(m.client, m.selected))
		}
		return m, tea.Batch(cmds...)

	case buildersMsg:
		m.builders = []api.BuilderSummary(msg)
		m.table.SetRows(builderRows(m.builders))
		return m, m.syncSelection()

	case outputMsg:
		if msg.Name != m.selected {
			return m, nil
		}
		atBottom := m.output.AtBottom()
		m.output.SetContent(formatOutput(api.BuilderResponse(msg), m.theme))
		if atBottom {
			m.output.GotoBottom()
		}

	case actionMsg:
		if msg.err != nil {
			m.lastError = fmt.Sprintf("%s %s: %v", msg.action, msg.name, msg.err)
			return m, nil
		}
		m.lastError = ""
		return m, tea.Batch(fetchBuilders(m.client), fetchOutput(m.client, msg.name))

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.BuildersRunning = msg.BuildersRunning
		m.health.ScriptsKnown = msg.ScriptsKnown
		m.health.Connected = true
		m.health.LastCheck = m.now()
		m.lastError = ""
		return m, m.healthAfter(healthInterval)

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		// The pending receiveNextEvent keeps waiting on the same channel,
		// so the new subscription feeds it.
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, tea.Batch(subscribeToEvents(m.client, m.hubEvents), fetchBuilders(m.client))

	case errMsg:
		m.lastError = msg.Error()
		return m, m.healthAfter(healthInterval)
	}

	return m, nil
}

func (m Model) healthAfter(d time.Duration) tea.Cmd {
	c := m.client
	return tea.Tick(d, func(time.Time) tea.Msg { return fetchHealth(c)() })
}

// syncSelection follows the table cursor and loads the newly selected
// builder's output.
func (m *Model) syncSelection() tea.Cmd {
	name := ""
	if row := m.table.SelectedRow(); len(row) > 1 {
		name = row[1]
	}
	if name == m.selected {
		return nil
	}
	m.selected = name
	m.output.SetContent("")
	if name == "" {
		return nil
	}
	return fetchOutput(m.client, name)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting..."
	}

	title := "OUTPUT"
	if m.selected != "" {
		title = "OUTPUT " + m.selected
	}
	output := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.theme.Title.Render(title), m.output.View()),
	)

	parts := []string{
		renderHeader(m.health, m.theme, m.width, m.now()),
		renderBuilders(m.table, m.theme, m.width),
		output,
		renderEventStream(m.eventLog, m.theme, m.width),
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Select • [r] Redeploy • [x] Terminate • [pgup/pgdn] Scroll output"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
